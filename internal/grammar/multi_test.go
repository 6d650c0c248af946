package grammar

import (
	"strings"
	"testing"

	"github.com/kho/word"
)

func TestMultiDFAAdmitsWithinOneActiveGrammar(t *testing.T) {
	base := mustCompile(t, tinyGrammar)
	base.AssignVocabulary([]WordCategory{{Word: word.Id(10), Category: 0}, {Word: word.Id(11), Category: 1}})

	other := mustCompile(t, tinyGrammar)
	other.AssignVocabulary([]WordCategory{{Word: word.Id(20), Category: 0}, {Word: word.Id(21), Category: 1}})

	m := NewMultiDFA()
	baseId := m.AddGrammar(base)
	otherId := m.AddGrammar(other)
	if m.NumActive() != 2 {
		t.Fatalf("NumActive() = %d; want 2", m.NumActive())
	}

	leftId, left := m.CategoryOf(word.Id(10))
	rightId, right := m.CategoryOf(word.Id(11))
	if leftId != baseId || rightId != baseId {
		t.Fatalf("expected both words tagged with the base grammar's id")
	}
	if !m.Admissible(leftId, left, rightId, right) {
		t.Error("word 11 should be admissible after word 10 within the base grammar")
	}

	if _, otherLeft := m.CategoryOf(word.Id(20)); otherLeft == CategoryInvalid {
		t.Error("word 20 should resolve to a valid category in the other grammar")
	}

	m.RemoveGrammar(otherId)
	if m.NumActive() != 1 {
		t.Fatalf("NumActive() after removal = %d; want 1", m.NumActive())
	}
	if m.Grammar(otherId) != nil {
		t.Error("expected a removed grammar id to resolve to nil")
	}
}

func TestMultiDFARejectsCrossGrammarAdjacency(t *testing.T) {
	base := mustCompile(t, tinyGrammar)
	base.AssignVocabulary([]WordCategory{{Word: word.Id(10), Category: 0}, {Word: word.Id(11), Category: 1}})
	other := mustCompile(t, tinyGrammar)
	other.AssignVocabulary([]WordCategory{{Word: word.Id(20), Category: 1}})

	m := NewMultiDFA()
	baseId := m.AddGrammar(base)
	otherId := m.AddGrammar(other)

	leftId, left := m.CategoryOf(word.Id(10))
	rightId, right := m.CategoryOf(word.Id(20))
	if leftId != baseId || rightId != otherId {
		t.Fatalf("expected words tagged with distinct grammar ids")
	}
	if m.Admissible(leftId, left, rightId, right) {
		t.Error("words from two different active grammars must never be admissible adjacent to each other")
	}
}

func TestMultiDFACategoryOfUnknownWord(t *testing.T) {
	m := NewMultiDFA()
	m.AddGrammar(mustCompile(t, strings.TrimSpace(tinyGrammar)))
	if _, c := m.CategoryOf(word.Id(999)); c != CategoryInvalid {
		t.Errorf("CategoryOf(unknown) category = %d; want CategoryInvalid", c)
	}
}
