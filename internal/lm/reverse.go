package lm

import "github.com/kho/word"

// Reversed adapts a forward-trained Model into an approximate
// reverse-direction one, for use as pass-2's evaluator (spec.md §4.7:
// "Reverse N-gram (right-to-left) is supported to match pass-2
// direction ... for pass-1 a forward 2-gram is either derived from the
// reverse 3-gram by approximation or supplied as a separate resource")
// when no separately-trained reverse model is configured. The exact
// option -- a genuinely reverse-trained ARPA/binary resource sharing the
// forward format -- is preferred whenever one is available; Reversed is
// the fallback so pass-2 never silently re-uses the forward evaluator's
// P(w | history-before-w) to score words being prepended to an
// already-decoded suffix, which is not the same conditional
// distribution.
//
// The approximation reverses at the bigram level via Bayes' rule:
//
//	P(x | y) = P(y | x) * P(x) / P(y)
//
// where x is the candidate word being placed immediately to the left of
// y, and P(x)/P(y) are fwd's own unigram (state-0) probabilities. The
// correction is applied uniformly, including at both utterance
// boundaries, with <s> and </s> pinned to a certain (log-probability 0)
// marginal rather than read from fwd's own unigram table for them:
// neither is a member of the open vocabulary whose relative frequency
// should enter the normalization, and fwd's own <s> unigram entry is a
// WEIGHT_LOG0 sentinel ("never generated mid-sentence") rather than a
// usable number. Applied uniformly this way, a reverse walk over a
// whole utterance telescopes to exactly the same total fwd itself would
// assign reading forward, for any model whose highest order is 2:
// multiplication of a chain's conditional factors is invariant under
// which end of the chain you start from. Trigram-and-above back-off
// structure in fwd is not reflected, since that telescoping argument
// only holds one step of context at a time.
type Reversed struct {
	fwd Model
}

// NewReversed returns a Model that approximates the reverse-direction
// conditional distribution of fwd. fwd must not be nil.
func NewReversed(fwd Model) *Reversed {
	return &Reversed{fwd: fwd}
}

// unigram returns fwd's own context-free log-probability of x, pinned to
// 0 (certain) for the bos/eos boundary markers instead of read from
// fwd's unigram table for them.
func (m *Reversed) unigram(x word.Id) Weight {
	_, _, _, bos, eos := m.fwd.Vocab()
	if x == bos || x == eos {
		return 0
	}
	_, w := m.fwd.NextI(_STATE_EMPTY, x)
	return w
}

// Start returns a state boxing fwd's end-of-sentence id, the sentinel
// standing in for "the word immediately to the right of the utterance's
// last word" when pass-2 seeds its search at the utterance's end.
func (m *Reversed) Start() StateId {
	_, _, _, _, eos := m.fwd.Vocab()
	return StateId(eos)
}

// NextI scores x as the word immediately preceding the word boxed in p,
// returning a new state boxing x itself (so the next call down the
// reverse walk can score whatever precedes x in turn).
func (m *Reversed) NextI(p StateId, x word.Id) (q StateId, w Weight) {
	_, _, _, _, eos := m.fwd.Vocab()
	y := word.Id(p)
	q = StateId(x)

	stateX, _ := m.fwd.NextI(_STATE_EMPTY, x)
	var logPyGivenX Weight
	if y == eos {
		logPyGivenX = m.fwd.Final(stateX)
	} else {
		_, logPyGivenX = m.fwd.NextI(stateX, y)
	}
	if logPyGivenX <= WEIGHT_LOG0 {
		return q, WEIGHT_LOG0
	}

	logPx := m.unigram(x)
	if logPx <= WEIGHT_LOG0 {
		return q, WEIGHT_LOG0
	}
	logPy := m.unigram(y)
	if logPy <= WEIGHT_LOG0 {
		// y itself has no usable unigram entry (e.g. OOV mapped in some
		// other way): skip the normalization term rather than dividing by
		// LOG0.
		return q, logPyGivenX + logPx
	}
	return q, logPyGivenX + logPx - logPy
}

// NextS is NextI by surface string.
func (m *Reversed) NextS(p StateId, s string) (StateId, Weight) {
	vocab, _, _, _, _ := m.fwd.Vocab()
	return m.NextI(p, vocab.IdOf(s))
}

// Final scores p (boxing the leftmost word pass-2 has placed so far) as
// the utterance's first word: the same Bayes correction as NextI, with x
// fixed to <s> (so logPyGivenX is fwd's own P(p | <s>), read directly
// off fwd's start state, and logPx is the pinned bos marginal, 0).
func (m *Reversed) Final(p StateId) Weight {
	_, logPyGivenX := m.fwd.NextI(m.fwd.Start(), word.Id(p))
	if logPyGivenX <= WEIGHT_LOG0 {
		return WEIGHT_LOG0
	}
	logPy := m.unigram(word.Id(p))
	if logPy <= WEIGHT_LOG0 {
		return logPyGivenX
	}
	return logPyGivenX - logPy
}

// Vocab delegates to fwd; Reversed introduces no vocabulary of its own.
func (m *Reversed) Vocab() (vocab *word.Vocab, bos, eos string, bosId, eosId word.Id) {
	return m.fwd.Vocab()
}
