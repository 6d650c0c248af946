// Command lvcsr is the multi-command CLI front end for the decoding
// core: recognize runs batch recognition over a feature file, compile-lm
// freezes an ARPA language model into the packed binary format
// internal/lm loads quickly at startup, and doctor sanity-checks a
// configured model set without running a full decode. Grounded on
// CWBudde-go-pocket-tts's cmd/pockettts/root.go: a root command whose
// PersistentPreRunE loads configuration and sets up logging once, shared
// by every subcommand.
package main

import (
	"flag"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/julius-speech/julius-sub004/internal/config"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func newRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "lvcsr",
		Short: "LVCSR decoding core command line",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			setupLogging(loaded.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newRecognizeCmd())
	cmd.AddCommand(newCompileLMCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

// setupLogging maps the configured log level onto glog's -v verbosity,
// the closest glog equivalent to a named level since glog itself has no
// concept of named severities below Info.
func setupLogging(level string) {
	v := "0"
	switch level {
	case "debug":
		v = "2"
	case "trace":
		v = "3"
	}
	flag.Set("v", v)
	flag.Set("logtostderr", "true")
}
