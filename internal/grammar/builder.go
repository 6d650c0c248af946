package grammar

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/kho/word"
)

// Builder accumulates states and arcs read from a text grammar file (see
// parse.go), then Compile freezes them into a DFA with its category-pair
// admissibility table built in.
type Builder struct {
	states  []state
	nextCat Category
}

func NewBuilder() *Builder {
	return &Builder{}
}

// AddArc records one from-state -> to-state transition labelled with
// category cat. to is marked as accepting when accept is true. Both
// states are grown into existence as needed.
func (b *Builder) AddArc(from StateId, cat Category, to StateId, accept bool) {
	b.grow(from)
	b.grow(to)
	b.states[from].arcs = append(b.states[from].arcs, Arc{Category: cat, To: to})
	if accept {
		b.states[to].flags |= flagAccept
	}
	if cat+1 > b.nextCat {
		b.nextCat = cat + 1
	}
}

func (b *Builder) grow(s StateId) {
	for StateId(len(b.states)) <= s {
		b.states = append(b.states, state{})
	}
}

// Compile determines initial states (any state never targeted by an arc)
// and returns a read-only DFA with an empty category-pair table. Callers
// must follow with any MarkShortPause calls and then FinalizeCategoryPairs,
// since extraction needs to know which categories are skippable short
// pauses, and with AssignVocabulary, before the grammar is usable by
// pass-1. FinalizeCategoryPairs does not read the vocabulary, so
// AssignVocabulary may come before or after it. The builder must not be
// reused afterwards.
func (b *Builder) Compile() *DFA {
	targeted := make([]bool, len(b.states))
	for _, s := range b.states {
		for _, a := range s.arcs {
			targeted[a.To] = true
		}
	}
	for i := range b.states {
		if !targeted[i] {
			b.states[i].flags |= flagInitial
		}
	}

	return &DFA{
		states:     b.states,
		isSp:       make([]bool, b.nextCat),
		spCat:      CategoryInvalid,
		categoryOf: make(map[word.Id]Category),
	}
}

// FinalizeCategoryPairs extracts the category-pair admissibility matrix,
// mirroring the original extract_cpair. Must be called once, after any
// MarkShortPause call; it does not depend on AssignVocabulary.
//
// for every initial state, every outgoing category may end a sentence;
// for every arc A->B labelled left, every category labelling an arc out
// of B may follow left; when an exit of B is a short-pause category, the
// category after the pause also counts as following left, so that pass-1
// can transparently skip the pause state.
func (d *DFA) FinalizeCategoryPairs() {
	n := len(d.isSp)
	d.cp = make([][]bool, n)
	for i := range d.cp {
		d.cp[i] = make([]bool, n)
	}
	d.cpBegin = make([]bool, n)
	d.cpEnd = make([]bool, n)

	for i := range d.states {
		if d.states[i].flags&flagInitial != 0 {
			for _, arc := range d.states[i].arcs {
				if d.isSp[arc.Category] {
					glog.Warningf("grammar: skippable short-pause category %d at sentence end", arc.Category)
					continue
				}
				d.cpEnd[arc.Category] = true
			}
		}
	}
	for i := range d.states {
		for _, left := range d.states[i].arcs {
			mid := left.To
			if d.states[mid].flags&flagAccept != 0 {
				if d.isSp[left.Category] {
					glog.Warningf("grammar: skippable short-pause category %d at sentence start", left.Category)
				} else {
					d.cpBegin[left.Category] = true
				}
			}
			for _, right := range d.states[mid].arcs {
				d.cp[right.Category][left.Category] = true
				if d.isSp[right.Category] {
					for _, right2 := range d.states[right.To].arcs {
						d.cp[right2.Category][left.Category] = true
					}
				}
			}
		}
	}
}

// MarkShortPause designates cat as the grammar's skippable short-pause
// category. The caller chooses cat; no package here detects pause
// categories from the lexicon. Compile must already have run;
// re-running FinalizeCategoryPairs afterwards
// would additionally need to special-case cat at sentence boundaries
// (the original compiler forbids pause categories there instead).
func (d *DFA) MarkShortPause(cat Category) {
	if int(cat) < 0 || int(cat) >= len(d.isSp) {
		return
	}
	d.isSp[cat] = true
	if d.spCat == CategoryInvalid {
		d.spCat = cat
	}
}

// WordCategory pairs a dictionary word with the grammar category assigned
// to it (read off the word's category field in the lexicon, see Input 3).
type WordCategory struct {
	Word     word.Id
	Category Category
}

// AssignVocabulary maps each (word, category) pair supplied by the
// dictionary loader into the grammar's word<->category tables, mirroring
// make_dfa_voca_ref/make_terminfo. It returns an error naming any word
// whose category id falls outside the grammar's terminal range.
func (d *DFA) AssignVocabulary(pairs []WordCategory) error {
	for _, p := range pairs {
		if int(p.Category) < 0 || int(p.Category) >= len(d.isSp) {
			return fmt.Errorf("grammar: word %d: no such category %d", p.Word, p.Category)
		}
		d.categoryOf[p.Word] = p.Category
	}
	if cap(d.wordsOf) < len(d.isSp) {
		d.wordsOf = make([][]word.Id, len(d.isSp))
	}
	for w, c := range d.categoryOf {
		d.wordsOf[c] = append(d.wordsOf[c], w)
	}
	return nil
}
