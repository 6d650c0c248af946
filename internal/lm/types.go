// Package lm implements the N-gram half of the language-model / grammar
// evaluator (spec component C7): a finite-state representation of a
// back-off N-gram model, loadable from ARPA text or a packed binary dump,
// with hashed and sorted transition-table backends.
package lm

import (
	"fmt"
	"io"

	"github.com/kho/word"
)

// StateId identifies a language-model state, i.e. a (possibly backed-off)
// N-gram context. StateId 0 and 1 are reserved for the empty context and
// the sentence-start context respectively; see _STATE_EMPTY/_STATE_START.
type StateId uint32

const (
	// STATE_NIL is an invalid state, used as a sentinel in the builder
	// while a state's back-off link has not yet been resolved.
	STATE_NIL StateId = ^StateId(0)

	_STATE_EMPTY StateId = 0
	_STATE_START StateId = 1
)

// Weight is the floating point type for log-probabilities. The acoustic
// scorer works in float64, so callers convert with float64(w) to combine
// the two.
type Weight float32

// WEIGHT_LOG0 is the sentinel used in place of -Inf, following the SRILM
// convention. It differs from the acoustic scorer's LogZero (-1e10).
const WEIGHT_LOG0 Weight = -99

// StateWeight is a (destination state, transition weight) pair.
type StateWeight struct {
	State  StateId
	Weight Weight
}

// WordStateWeight additionally carries the word consumed by the
// transition; word.NIL marks a back-off transition.
type WordStateWeight struct {
	Word   word.Id
	State  StateId
	Weight Weight
}

// Model is the general interface of an N-gram language model. Concrete
// backends (Hashed, Sorted) should be used directly on hot paths; Model is
// for code that is agnostic to the storage strategy (e.g. the pass-2
// re-scoring path, which only needs NextI/Final).
type Model interface {
	// Start returns the start state, i.e. the state with context <s>.
	// Callers should never explicitly query <s> through NextI/NextS.
	Start() StateId
	// NextI finds the next state reached from p consuming word x, applying
	// back-off as needed. x must not be the model's BOS or EOS id. The
	// returned weight is WEIGHT_LOG0 exactly when unigram x is an OOV.
	NextI(p StateId, x word.Id) (q StateId, w Weight)
	// NextS is NextI by surface string.
	NextS(p StateId, s string) (q StateId, w Weight)
	// Final returns the final (end-of-sentence) weight from state p.
	Final(p StateId) Weight
	// Vocab returns the model's vocabulary together with the sentence
	// boundary strings and their ids.
	Vocab() (vocab *word.Vocab, bos, eos string, bosId, eosId word.Id)
}

// IterableModel additionally exposes the model's states and transitions,
// used by tooling (Graphviz dumps, diagnostics) and round-trip tests.
type IterableModel interface {
	Model
	NumStates() int
	Transitions(p StateId) chan WordStateWeight
	BackOff(p StateId) (q StateId, w Weight)
}

// Kind enumerates the implemented storage strategies, used by the binary
// file header to select the right decoder on load.
type Kind int

const (
	KindHashed Kind = iota
	KindSorted
)

const (
	magicHashed = "#lvcsr.lm.hash\n"
	magicSorted = "#lvcsr.lm.sort\n"
)

// Graphviz renders the finite-state topology of m for debugging. Quite
// slow on large models; not on any hot path.
func Graphviz(m IterableModel, w io.Writer) {
	vocab, _, _, _, _ := m.Vocab()
	fmt.Fprintln(w, "digraph {")
	fmt.Fprintln(w, "  // lexical transitions")
	for i := 0; i < m.NumStates(); i++ {
		p := StateId(i)
		for xqw := range m.Transitions(p) {
			fmt.Fprintf(w, "  %d -> %d [label=%q]\n", p, xqw.State,
				fmt.Sprintf("%s : %g", vocab.StringOf(xqw.Word), xqw.Weight))
		}
	}
	fmt.Fprintln(w, "  // back-off transitions")
	for i := 0; i < m.NumStates(); i++ {
		q, ww := m.BackOff(StateId(i))
		fmt.Fprintf(w, "  %d -> %d [label=%q,style=dashed]\n", i, q, fmt.Sprintf("%g", ww))
	}
	fmt.Fprintln(w, "}")
}
