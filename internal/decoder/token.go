// Package decoder implements the two-pass search at the heart of the
// recognizer: a frame-synchronous Viterbi beam search over the tree
// lexicon (pass-1, spec component C3) feeding a word trellis (C4) that an
// A* stack decoder (pass-2, C5) expands into N-best word sequences, with
// an optional word-graph/confusion-network builder (C6) over the
// retained pass-2 hypotheses.
package decoder

import (
	"github.com/julius-speech/julius-sub004/internal/evaluator"
	"github.com/julius-speech/julius-sub004/internal/hmm"
	"github.com/julius-speech/julius-sub004/internal/lexicon"
	"github.com/kho/word"
)

// Token is one live pass-1 hypothesis: a position inside the tree
// lexicon's currently-traversed arc HMM, the accumulated acoustic+LM
// score that reached it, and just enough linguistic context to resume
// scoring once the word under way is finally known. Factor records the
// last factoring-LM contribution folded into Score, so an arc-boundary
// migration can subtract it back out before adding whatever replaces it
// (a child node's factor, or the exact LM log-probability at a leaf) --
// spec.md's "subtract the parent's factoring contribution, add the
// child's" rule.
//
// Back-pointers reach into the word trellis rather than other tokens:
// once a token's own arc is abandoned to pruning, nothing should still
// need to walk through it, so tokens never need to outlive the frame
// they were pruned at and the trellis, not Token, owns the utterance's
// durable history.
type Token struct {
	Node     lexicon.NodeId
	Physical *hmm.Physical // the HMM backing the arc currently being traversed
	State    int           // 1..Physical.NumStates(): the emitting state last scored
	Score    float64
	LastWord word.Id
	Hist     evaluator.History
	Factor   float64
	Back     *TrellisWord // nil until the first word has completed
}

// tokenKey identifies a destination cell for token merging. Under the
// word-pair approximation both fields participate, so at most one token
// per (node, last word) pair survives a frame; plain Viterbi collapses
// LastWord to the zero value and keeps one token per node.
type tokenKey struct {
	Node     lexicon.NodeId
	LastWord word.Id
}
