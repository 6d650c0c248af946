// Package config loads and merges engine configuration from defaults, a
// config file, and command-line flags, the same flags+file+defaults
// layering CWBudde-go-pocket-tts's internal/config uses, adapted to the
// decoder's own tuning surface (model paths, beam widths, envelope size,
// pass-2 expansion limits, worker-pool size) instead of a TTS backend's.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the engine's full runtime configuration.
type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Decoder   DecoderConfig   `mapstructure:"decoder"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	LogLevel  string          `mapstructure:"log_level"`
}

// PathsConfig names the on-disk inputs spec.md §6 lists.
type PathsConfig struct {
	AcousticModel string `mapstructure:"acoustic_model"`
	HMMList       string `mapstructure:"hmm_list"`
	Dictionary    string `mapstructure:"dictionary"`
	LanguageModel string `mapstructure:"language_model"`
	// ReverseLanguageModel optionally names a separately-trained
	// reverse-direction ARPA/binary resource (same format as
	// LanguageModel) for pass-2's right-to-left scoring. Left empty,
	// Engine.Load derives an approximate reverse model from
	// LanguageModel instead (lm.NewReversed).
	ReverseLanguageModel string `mapstructure:"reverse_language_model"`
	GrammarFile          string `mapstructure:"grammar_file"`
}

// DecoderConfig tunes pass-1 and pass-2 directly; field names mirror
// decoder.Pass1Config/Pass2Config so Engine.Load can copy them across
// without a lossy intermediate translation.
type DecoderConfig struct {
	BeamWidth     float64 `mapstructure:"beam_width"`
	Envelope      int     `mapstructure:"envelope"`
	WordPair      bool    `mapstructure:"word_pair"`
	MaxPops       int     `mapstructure:"max_pops"`
	MaxExpansions int     `mapstructure:"max_expansions"`
	Pass2Beam     float64 `mapstructure:"pass2_beam"`
	MaxWordSpan   int     `mapstructure:"max_word_span"`
	NBest         int     `mapstructure:"nbest"`
}

// RuntimeConfig holds the DNN worker-count setting (§5). DNNWorkers is
// loaded but not read anywhere: DNN layers size their worker pool from
// runtime.GOMAXPROCS(0).
type RuntimeConfig struct {
	DNNWorkers int `mapstructure:"dnn_workers"`
}

// TelemetryConfig configures the Prometheus metrics exporter.
type TelemetryConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoadOptions bundles Load's inputs: a flag set already parsed by the
// caller's cobra command, an explicit config file path (empty to fall
// back to the default search path), and the baseline defaults to layer
// flags and file contents on top of.
type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// DefaultConfig returns the engine's built-in defaults.
func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			AcousticModel:        "models/acoustic.bin",
			HMMList:              "models/hmmlist",
			Dictionary:           "models/dict.txt",
			LanguageModel:        "models/lm.arpa",
			ReverseLanguageModel: "",
			GrammarFile:          "",
		},
		Decoder: DecoderConfig{
			BeamWidth:     400.0,
			Envelope:      2000,
			WordPair:      true,
			MaxPops:       10000,
			MaxExpansions: 8,
			Pass2Beam:     150.0,
			MaxWordSpan:   30,
			NBest:         10,
		},
		Runtime: RuntimeConfig{
			DNNWorkers: 4,
		},
		Telemetry: TelemetryConfig{
			ListenAddr: ":9100",
		},
		LogLevel: "info",
	}
}

// RegisterFlags registers every config field as a pflag, defaulted from
// defaults, so a cobra command can expose them on its own flag set for
// Load's Cmd to bind against.
func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("acoustic-model", defaults.Paths.AcousticModel, "Path to the acoustic model file")
	fs.String("hmm-list", defaults.Paths.HMMList, "Path to the logical-to-physical HMM list file")
	fs.String("dictionary", defaults.Paths.Dictionary, "Path to the pronunciation dictionary")
	fs.String("language-model", defaults.Paths.LanguageModel, "Path to the ARPA/binary language model")
	fs.String("reverse-language-model", defaults.Paths.ReverseLanguageModel, "Path to a reverse-trained ARPA/binary language model for pass-2 (derived by approximation from language-model if unset)")
	fs.String("grammar-file", defaults.Paths.GrammarFile, "Path to a DFA grammar file (grammar mode; empty disables)")
	fs.Float64("beam-width", defaults.Decoder.BeamWidth, "Pass-1 beam width in log-probability")
	fs.Int("envelope", defaults.Decoder.Envelope, "Pass-1 envelope cap on surviving tokens per frame")
	fs.Bool("word-pair", defaults.Decoder.WordPair, "Enable the word-pair token approximation")
	fs.Int("max-pops", defaults.Decoder.MaxPops, "Pass-2 total priority-queue pop budget")
	fs.Int("max-expansions", defaults.Decoder.MaxExpansions, "Pass-2 per-pop predecessor fan-out cap")
	fs.Float64("pass2-beam", defaults.Decoder.Pass2Beam, "Pass-2 second-pass beam width")
	fs.Int("max-word-span", defaults.Decoder.MaxWordSpan, "Pass-2 widest frame span short Viterbi re-alignment searches")
	fs.Int("nbest", defaults.Decoder.NBest, "Number of completed sentences pass-2 returns")
	fs.Int("dnn-workers", defaults.Runtime.DNNWorkers, "DNN worker-pool size (not read; DNN scoring uses GOMAXPROCS workers)")
	fs.String("metrics-addr", defaults.Telemetry.ListenAddr, "Prometheus metrics listen address")
	fs.String("log-level", defaults.LogLevel, "Log verbosity: debug sets glog -v=2, trace sets -v=3, any other value -v=0")
}

// Load merges defaults, an optional config file, and any flags bound via
// opts.Cmd, in that precedence order (flags win, then file, then
// defaults), mirroring CWBudde-go-pocket-tts's internal/config.Load.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("config: bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("LVCSR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read config file: %w", err)
		}
	} else {
		v.SetConfigName("lvcsr")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("config: read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.acoustic_model", c.Paths.AcousticModel)
	v.SetDefault("paths.hmm_list", c.Paths.HMMList)
	v.SetDefault("paths.dictionary", c.Paths.Dictionary)
	v.SetDefault("paths.language_model", c.Paths.LanguageModel)
	v.SetDefault("paths.reverse_language_model", c.Paths.ReverseLanguageModel)
	v.SetDefault("paths.grammar_file", c.Paths.GrammarFile)
	v.SetDefault("decoder.beam_width", c.Decoder.BeamWidth)
	v.SetDefault("decoder.envelope", c.Decoder.Envelope)
	v.SetDefault("decoder.word_pair", c.Decoder.WordPair)
	v.SetDefault("decoder.max_pops", c.Decoder.MaxPops)
	v.SetDefault("decoder.max_expansions", c.Decoder.MaxExpansions)
	v.SetDefault("decoder.pass2_beam", c.Decoder.Pass2Beam)
	v.SetDefault("decoder.max_word_span", c.Decoder.MaxWordSpan)
	v.SetDefault("decoder.nbest", c.Decoder.NBest)
	v.SetDefault("runtime.dnn_workers", c.Runtime.DNNWorkers)
	v.SetDefault("telemetry.listen_addr", c.Telemetry.ListenAddr)
	v.SetDefault("log_level", c.LogLevel)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("paths.acoustic_model", "acoustic-model")
	v.RegisterAlias("paths.hmm_list", "hmm-list")
	v.RegisterAlias("paths.dictionary", "dictionary")
	v.RegisterAlias("paths.language_model", "language-model")
	v.RegisterAlias("paths.reverse_language_model", "reverse-language-model")
	v.RegisterAlias("paths.grammar_file", "grammar-file")
	v.RegisterAlias("decoder.beam_width", "beam-width")
	v.RegisterAlias("decoder.envelope", "envelope")
	v.RegisterAlias("decoder.word_pair", "word-pair")
	v.RegisterAlias("decoder.max_pops", "max-pops")
	v.RegisterAlias("decoder.max_expansions", "max-expansions")
	v.RegisterAlias("decoder.pass2_beam", "pass2-beam")
	v.RegisterAlias("decoder.max_word_span", "max-word-span")
	v.RegisterAlias("decoder.nbest", "nbest")
	v.RegisterAlias("runtime.dnn_workers", "dnn-workers")
	v.RegisterAlias("telemetry.listen_addr", "metrics-addr")
	v.RegisterAlias("log_level", "log-level")
}
