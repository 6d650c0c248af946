package grammar

import "github.com/kho/word"

// GrammarId identifies one grammar within a MultiDFA's active set, stable
// across AddGrammar/RemoveGrammar calls so a caller (the config hot-reload
// watcher, say) can name a grammar it wants replaced without disturbing
// any of the others.
type GrammarId int32

// MultiDFA holds several DFA grammars active at once, per the original
// engine's multi-gram support (a base grammar plus a per-session
// vocabulary, for instance): a word is admissible if it is admissible in
// any currently active grammar, never narrowed by the others. This is a
// direct, bounded generalization of the single-DFA case -- with exactly
// one grammar active it behaves identically to calling that DFA's own
// methods.
type MultiDFA struct {
	grammars map[GrammarId]*DFA
	nextId   GrammarId
}

// NewMultiDFA returns an empty active set.
func NewMultiDFA() *MultiDFA {
	return &MultiDFA{grammars: make(map[GrammarId]*DFA)}
}

// AddGrammar activates dfa, returning the id future RemoveGrammar calls
// use to deactivate it again.
func (m *MultiDFA) AddGrammar(dfa *DFA) GrammarId {
	id := m.nextId
	m.nextId++
	m.grammars[id] = dfa
	return id
}

// RemoveGrammar deactivates the grammar previously returned by AddGrammar;
// a no-op if id is not currently active.
func (m *MultiDFA) RemoveGrammar(id GrammarId) {
	delete(m.grammars, id)
}

// Grammar returns the DFA registered under id, or nil if it is not
// currently active.
func (m *MultiDFA) Grammar(id GrammarId) *DFA { return m.grammars[id] }

// NumActive returns how many grammars are currently active.
func (m *MultiDFA) NumActive() int { return len(m.grammars) }

// CategoryOf returns the category word w is assigned in whichever active
// grammar first claims it, tagged with that grammar's id so later calls
// (Admissible, AdmissibleBegin/End) know which DFA's tables to consult;
// CategoryInvalid (paired with an arbitrary id) if no active grammar's
// vocabulary covers w.
func (m *MultiDFA) CategoryOf(w word.Id) (GrammarId, Category) {
	for id, g := range m.grammars {
		if c := g.CategoryOf(w); c != CategoryInvalid {
			return id, c
		}
	}
	return 0, CategoryInvalid
}

// Admissible reports whether a word tagged (rightId, right) may follow a
// word tagged (leftId, left): true when the two tags name the same active
// grammar and that grammar's own category-pair table admits the pair.
// Words from two different active grammars are never admissible adjacent
// to each other -- only the union of what sentences each grammar alone
// admits is supported, not cross-grammar sentences.
func (m *MultiDFA) Admissible(leftId GrammarId, left Category, rightId GrammarId, right Category) bool {
	if leftId != rightId {
		return false
	}
	g, ok := m.grammars[leftId]
	if !ok {
		return false
	}
	return g.Admissible(left, right)
}

// AdmissibleBegin reports whether a word tagged (id, c) may start a
// sentence under any active grammar providing that tag.
func (m *MultiDFA) AdmissibleBegin(id GrammarId, c Category) bool {
	g, ok := m.grammars[id]
	if !ok {
		return false
	}
	return g.AdmissibleBegin(c)
}

// AdmissibleEnd reports whether a word tagged (id, c) may end a sentence
// under any active grammar providing that tag.
func (m *MultiDFA) AdmissibleEnd(id GrammarId, c Category) bool {
	g, ok := m.grammars[id]
	if !ok {
		return false
	}
	return g.AdmissibleEnd(c)
}
