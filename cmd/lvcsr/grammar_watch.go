package main

import (
	"github.com/julius-speech/julius-sub004/internal/config"
	"github.com/julius-speech/julius-sub004/internal/engine"
)

// grammarWatcher ties a config.Watcher to an engine's RequestReloadGrammar,
// the wiring spec.md §5 describes: a grammar-file change fires a
// fire-and-forget reload that is only applied at the next
// between-utterance checkpoint.
type grammarWatcher struct {
	w *config.Watcher
}

func newGrammarWatcher(path string, eng *engine.Engine) (*grammarWatcher, error) {
	w, err := config.NewWatcher(path, config.WithOnChange(func(p string) {
		eng.RequestReloadGrammar(p)
	}))
	if err != nil {
		return nil, err
	}
	return &grammarWatcher{w: w}, nil
}

func (g *grammarWatcher) Stop() { g.w.Stop() }
