package main

import (
	"context"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/julius-speech/julius-sub004/internal/engine"
	"github.com/julius-speech/julius-sub004/internal/feature"
	"github.com/julius-speech/julius-sub004/internal/telemetry"
)

func newRecognizeCmd() *cobra.Command {
	var grammarWatch bool

	cmd := &cobra.Command{
		Use:   "recognize [feature-file]",
		Short: "Decode a single HTK-format feature file and print the N-best result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecognize(cmd.Context(), args[0], grammarWatch)
		},
	}
	cmd.Flags().BoolVar(&grammarWatch, "watch-grammar", false, "hot-reload the grammar file on change while recognizing")
	return cmd
}

func runRecognize(ctx context.Context, featurePath string, watchGrammar bool) error {
	met, shutdown, err := telemetry.InitProvider(ctx, telemetry.ProviderConfig{ServiceName: "lvcsr-recognize"})
	if err != nil {
		return fmt.Errorf("recognize: init telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			glog.Warningf("recognize: telemetry shutdown: %v", err)
		}
	}()

	eng := engine.New(met)
	if err := eng.Load(activeCfg); err != nil {
		return fmt.Errorf("recognize: load engine: %w", err)
	}

	var watcher *grammarWatcher
	if watchGrammar && activeCfg.Paths.GrammarFile != "" {
		w, err := newGrammarWatcher(activeCfg.Paths.GrammarFile, eng)
		if err != nil {
			return fmt.Errorf("recognize: start grammar watcher: %w", err)
		}
		watcher = w
		defer watcher.Stop()
	}

	utt, err := feature.ReadAllFile(featurePath)
	if err != nil {
		return fmt.Errorf("recognize: read feature file: %w", err)
	}

	if err := eng.OpenStream(batchSource{utt}); err != nil {
		return fmt.Errorf("recognize: open stream: %w", err)
	}
	defer eng.CloseStream()

	result, err := eng.RecognizeOneUtterance()
	if err != nil {
		return fmt.Errorf("recognize: %w", err)
	}
	printResult(os.Stdout, result)
	return nil
}

// batchSource adapts a fully-read *feature.Utterance to engine.FrameSource
// for the offline, non-streaming recognize subcommand: the whole
// utterance is already available, so Done is always true.
type batchSource struct {
	u *feature.Utterance
}

func (b batchSource) At(t int) (feature.Frame, bool) { return b.u.At(t) }
func (b batchSource) Len() int                       { return b.u.Len() }
func (b batchSource) Done() bool                     { return true }

func printResult(w *os.File, r *engine.Result) {
	fmt.Fprintf(w, "utterance %s: %s\n", r.UtteranceID, r.Outcome)
	for _, h := range r.NBest {
		fmt.Fprintf(w, "  [%d] score=%.2f confidence=%.3f:", h.Rank, h.Score, h.Confidence)
		for _, wr := range h.Words {
			fmt.Fprintf(w, " %s", wr.Text)
		}
		fmt.Fprintln(w)
	}
}
