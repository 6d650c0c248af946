// Package grammar implements the DFA grammar half of the language-model /
// grammar evaluator (spec component C7): a finite-state category grammar
// compiled offline by a grammar tool (mkdfa.pl-style), together with the
// category-pair admissibility table pass-1 uses as its degenerate
// look-ahead constraint. It mirrors internal/lm's Builder/frozen-model
// split: Builder accumulates states and arcs from the text grammar file,
// then Compile freezes them into a DFA ready for recognition.
package grammar

import "github.com/kho/word"

// Category identifies a DFA terminal symbol. In the on-disk grammar format
// categories are plain small integers assigned by the grammar compiler;
// the dictionary maps each word to exactly one category via CategoryOf.
type Category int32

const CategoryInvalid Category = -1

// StateId identifies a DFA state (node in the category-transition graph).
type StateId int32

const StateInvalid StateId = -1

// Arc is one (category-labelled) transition out of a state.
type Arc struct {
	Category Category
	To       StateId
}

// stateFlags bits, following the original is_initial/is_accept state
// classification.
type stateFlags uint8

const (
	flagInitial stateFlags = 1 << iota
	flagAccept
)

// state is a builder-time node: its flags plus the arcs leaving it.
type state struct {
	flags stateFlags
	arcs  []Arc
}

// DFA is the frozen, read-only grammar used at recognition time. Multiple
// DFAs may be active simultaneously (spec's "multiple simultaneous
// grammars" feature); each keeps its own category-pair table and its own
// slice of the shared terminal-to-word mapping built by AssignVocabulary.
type DFA struct {
	states []state
	// isSp[c] is true when category c consists solely of a short-pause
	// word, i.e. it may be transparently skipped by pass-1's envelope
	// search the way a cross-word silence model is.
	isSp  []bool
	spCat Category

	// cp holds the category-pair admissibility matrix: cp[right][left]
	// is true when a word of category left may be immediately followed,
	// in some grammatical sentence, by a word of category right. cpBegin
	// and cpEnd record which categories may start or end a sentence.
	cp      [][]bool
	cpBegin []bool
	cpEnd   []bool

	// wordsOf[c] lists the dictionary words belonging to category c,
	// populated by AssignVocabulary.
	wordsOf [][]word.Id
	// categoryOf maps a dictionary word to its category; words absent
	// from the grammar's dictionary map to CategoryInvalid.
	categoryOf map[word.Id]Category
}

// NumCategories returns the number of terminal symbols in the grammar.
func (d *DFA) NumCategories() int { return len(d.isSp) }

// NumStates returns the number of DFA states.
func (d *DFA) NumStates() int { return len(d.states) }

// Arcs returns the outgoing arcs of state p.
func (d *DFA) Arcs(p StateId) []Arc { return d.states[p].arcs }

// IsInitial reports whether p is an initial (sentence-start) state.
func (d *DFA) IsInitial(p StateId) bool { return d.states[p].flags&flagInitial != 0 }

// IsAccept reports whether p is an accepting (sentence-end) state.
func (d *DFA) IsAccept(p StateId) bool { return d.states[p].flags&flagAccept != 0 }

// IsShortPause reports whether c is a skippable short-pause category.
func (d *DFA) IsShortPause(c Category) bool {
	if int(c) < 0 || int(c) >= len(d.isSp) {
		return false
	}
	return d.isSp[c]
}

// ShortPauseCategory returns the first category found consisting solely
// of short-pause words, or CategoryInvalid if the grammar defines none.
func (d *DFA) ShortPauseCategory() Category { return d.spCat }

// Admissible reports whether a word of category right may immediately
// follow a word of category left, per the category-pair matrix built by
// FinalizeCategoryPairs. This is the degenerate grammar look-ahead pass-1
// consults in place of the N-gram's LM-factoring score.
func (d *DFA) Admissible(left, right Category) bool {
	if int(left) < 0 || int(right) < 0 || int(right) >= len(d.cp) {
		return false
	}
	row := d.cp[right]
	if int(left) >= len(row) {
		return false
	}
	return row[left]
}

// AdmissibleBegin reports whether a word of category c may start a sentence.
func (d *DFA) AdmissibleBegin(c Category) bool {
	return int(c) >= 0 && int(c) < len(d.cpBegin) && d.cpBegin[c]
}

// AdmissibleEnd reports whether a word of category c may end a sentence.
func (d *DFA) AdmissibleEnd(c Category) bool {
	return int(c) >= 0 && int(c) < len(d.cpEnd) && d.cpEnd[c]
}

// CategoryOf returns the grammar category assigned to dictionary word w,
// or CategoryInvalid if w is not covered by this grammar's vocabulary
// mapping.
func (d *DFA) CategoryOf(w word.Id) Category {
	if c, ok := d.categoryOf[w]; ok {
		return c
	}
	return CategoryInvalid
}

// WordsIn returns the dictionary words belonging to category c.
func (d *DFA) WordsIn(c Category) []word.Id {
	if int(c) < 0 || int(c) >= len(d.wordsOf) {
		return nil
	}
	return d.wordsOf[c]
}
