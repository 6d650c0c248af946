// Package evaluator implements the polymorphic capability set of spec
// component C7: a single interface pass-1 and pass-2 consult for
// linguistic scoring, backed interchangeably by internal/lm's N-gram
// models or internal/grammar's DFA category grammar. Concrete decoder
// code should depend only on Evaluator, never on *lm.Hashed or
// *grammar.DFA directly, so that switching recognition mode is a matter
// of which constructor is called at load time.
package evaluator

import (
	"github.com/julius-speech/julius-sub004/internal/grammar"
	"github.com/julius-speech/julius-sub004/internal/lm"
	"github.com/kho/word"
)

// History is an opaque LM/grammar state threaded alongside a token; its
// concrete representation depends on which Evaluator produced it.
// N-gram evaluators hand out lm.StateId boxed as History; the grammar
// evaluator hands out the last category.
type History interface{}

// LogZero stands in for log(0) in additive score arithmetic, matching
// the acoustic scorer's LOG_ZERO convention so cross-component sums never
// need special-casing.
const LogZero = -1e10

// Evaluator is the capability set every linguistic back-end implements.
// Not every method is meaningful for every mode: a pure DFA grammar
// returns 0 from LogP (uniform cost within the grammar's own hard
// admissibility constraint); a pure N-gram's Admissible always returns
// true (no category constraint). Pass-1/pass-2 call whichever subset
// their configured mode actually needs.
type Evaluator interface {
	// Start returns the initial history, corresponding to the sentence
	// start symbol having just been consumed.
	Start() History
	// LogP scores word w following h, returning the next history and
	// the incremental log-probability (0 for grammar-only evaluators).
	LogP(h History, w word.Id) (next History, logp float64)
	// Admissible reports whether word w may follow the word that
	// produced history h, consulting the category-pair table for
	// grammar modes; always true for a pure N-gram evaluator.
	Admissible(h History, w word.Id) bool
	// Final returns the sentence-end log-probability/admissibility from
	// history h.
	Final(h History) (ok bool, logp float64)
	// BeginOfSentence and EndOfSentence return the reserved word ids
	// bracketing every utterance.
	BeginOfSentence() word.Id
	EndOfSentence() word.Id
	// UnknownId returns the open-vocabulary OOV word id, and false if
	// this evaluator's vocabulary is closed.
	UnknownId() (word.Id, bool)
}

// ---- N-gram backend -------------------------------------------------

type ngramHistory lm.StateId

// NGram adapts any lm.Model (Hashed or Sorted) to Evaluator. unk, when
// non-nil, names the model's OOV bucket word.
type NGram struct {
	model lm.Model
	unk   word.Id
	hasUnk bool
}

func NewNGram(model lm.Model, unk string) *NGram {
	vocab, _, _, _, _ := model.Vocab()
	e := &NGram{model: model}
	if unk != "" {
		if id := vocab.IdOf(unk); id != word.NIL {
			e.unk, e.hasUnk = id, true
		}
	}
	return e
}

func (e *NGram) Start() History { return ngramHistory(e.model.Start()) }

func (e *NGram) LogP(h History, w word.Id) (History, float64) {
	q, weight := e.model.NextI(lm.StateId(h.(ngramHistory)), w)
	if weight <= lm.WEIGHT_LOG0 {
		return ngramHistory(q), LogZero
	}
	return ngramHistory(q), float64(weight)
}

func (e *NGram) Admissible(History, word.Id) bool { return true }

func (e *NGram) Final(h History) (bool, float64) {
	w := e.model.Final(lm.StateId(h.(ngramHistory)))
	if w <= lm.WEIGHT_LOG0 {
		return false, LogZero
	}
	return true, float64(w)
}

func (e *NGram) BeginOfSentence() word.Id {
	_, _, _, bos, _ := e.model.Vocab()
	return bos
}

func (e *NGram) EndOfSentence() word.Id {
	_, _, _, _, eos := e.model.Vocab()
	return eos
}

func (e *NGram) UnknownId() (word.Id, bool) { return e.unk, e.hasUnk }

// ---- DFA grammar backend ---------------------------------------------

type grammarHistory grammar.Category

// Grammar adapts a grammar.DFA to Evaluator. bos/eos are synthetic word
// ids reserved by the caller (the lexicon assigns them, since the DFA
// itself has no notion of sentence-boundary words, only categories).
type Grammar struct {
	dfa      *grammar.DFA
	bos, eos word.Id
}

func NewGrammar(dfa *grammar.DFA, bos, eos word.Id) *Grammar {
	return &Grammar{dfa: dfa, bos: bos, eos: eos}
}

func (e *Grammar) Start() History { return grammarHistory(grammar.CategoryInvalid) }

func (e *Grammar) LogP(h History, w word.Id) (History, float64) {
	return grammarHistory(e.dfa.CategoryOf(w)), 0
}

func (e *Grammar) Admissible(h History, w word.Id) bool {
	left := grammar.Category(h.(grammarHistory))
	right := e.dfa.CategoryOf(w)
	if left == grammar.CategoryInvalid {
		return e.dfa.AdmissibleBegin(right)
	}
	return e.dfa.Admissible(left, right)
}

func (e *Grammar) Final(h History) (bool, float64) {
	left := grammar.Category(h.(grammarHistory))
	return e.dfa.AdmissibleEnd(left), 0
}

func (e *Grammar) BeginOfSentence() word.Id { return e.bos }
func (e *Grammar) EndOfSentence() word.Id   { return e.eos }
func (e *Grammar) UnknownId() (word.Id, bool) { return word.NIL, false }

// ---- Grammar + N-gram class composite ---------------------------------

type classHistory struct {
	lm   lm.StateId
	last grammar.Category
}

// GrammarClass composes a DFA's hard category admissibility with an
// N-gram's soft scoring over word classes, the "grammar+N-gram class
// mode" the capability set's Admissible/LogP split exists to support:
// Admissible enforces the grammar; LogP supplies the cost.
type GrammarClass struct {
	*NGram
	dfa *grammar.DFA
}

func NewGrammarClass(model lm.Model, dfa *grammar.DFA, unk string) *GrammarClass {
	return &GrammarClass{NGram: NewNGram(model, unk), dfa: dfa}
}

func (e *GrammarClass) Start() History {
	return classHistory{lm: lm.StateId(e.NGram.Start().(ngramHistory)), last: grammar.CategoryInvalid}
}

func (e *GrammarClass) LogP(h History, w word.Id) (History, float64) {
	ch := h.(classHistory)
	nextLM, logp := e.NGram.LogP(ngramHistory(ch.lm), w)
	return classHistory{lm: lm.StateId(nextLM.(ngramHistory)), last: e.dfa.CategoryOf(w)}, logp
}

func (e *GrammarClass) Admissible(h History, w word.Id) bool {
	ch := h.(classHistory)
	right := e.dfa.CategoryOf(w)
	if ch.last == grammar.CategoryInvalid {
		return e.dfa.AdmissibleBegin(right)
	}
	return e.dfa.Admissible(ch.last, right)
}

func (e *GrammarClass) Final(h History) (bool, float64) {
	ch := h.(classHistory)
	ok, logp := e.NGram.Final(ngramHistory(ch.lm))
	if !e.dfa.AdmissibleEnd(ch.last) {
		return false, LogZero
	}
	return ok, logp
}

// ---- multi-grammar backend --------------------------------------------

type multiHistory struct {
	id  grammar.GrammarId
	cat grammar.Category
}

// MultiGrammar adapts a grammar.MultiDFA (several DFA grammars active at
// once) to Evaluator, generalizing Grammar the same bounded way
// grammar.MultiDFA generalizes grammar.DFA: a word is admissible if it is
// admissible within whichever single active grammar its predecessor word
// was also drawn from.
type MultiGrammar struct {
	multi    *grammar.MultiDFA
	bos, eos word.Id
}

func NewMultiGrammar(multi *grammar.MultiDFA, bos, eos word.Id) *MultiGrammar {
	return &MultiGrammar{multi: multi, bos: bos, eos: eos}
}

func (e *MultiGrammar) Start() History {
	return multiHistory{cat: grammar.CategoryInvalid}
}

func (e *MultiGrammar) LogP(h History, w word.Id) (History, float64) {
	id, cat := e.multi.CategoryOf(w)
	return multiHistory{id: id, cat: cat}, 0
}

func (e *MultiGrammar) Admissible(h History, w word.Id) bool {
	mh := h.(multiHistory)
	id, cat := e.multi.CategoryOf(w)
	if mh.cat == grammar.CategoryInvalid {
		return e.multi.AdmissibleBegin(id, cat)
	}
	return e.multi.Admissible(mh.id, mh.cat, id, cat)
}

func (e *MultiGrammar) Final(h History) (bool, float64) {
	mh := h.(multiHistory)
	if e.multi.AdmissibleEnd(mh.id, mh.cat) {
		return true, 0
	}
	return false, LogZero
}

func (e *MultiGrammar) BeginOfSentence() word.Id   { return e.bos }
func (e *MultiGrammar) EndOfSentence() word.Id     { return e.eos }
func (e *MultiGrammar) UnknownId() (word.Id, bool) { return word.NIL, false }
