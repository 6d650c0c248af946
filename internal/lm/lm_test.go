package lm

// Shared fixtures and helpers for the hashed/sorted backend tests below,
// adapted from the teacher's common test routines.

import (
	"errors"
	"strings"
	"testing"
)

type ngram struct {
	Context, Word   string
	Weight, BackOff Weight
}

func (n ngram) Params() ([]string, string, Weight, Weight) {
	var context []string
	if n.Context != "" {
		context = strings.Fields(n.Context)
	}
	return context, n.Word, n.Weight, n.BackOff
}

type tok struct {
	Word   string
	Weight Weight
}

var simpleTrigramLM = []ngram{
	{"", "<s>", WEIGHT_LOG0, -1},
	{"", "</s>", -0.01, 0},
	{"", "a", -2, -1},
	{"", "b", -4, -2},
	{"<s>", "a", -1, -0.5},
	{"a", "b", -2, -1},
	{"<s> a", "b", -1.5, 0},
	{"a b", "</s>", -0.001, 0},
}

var simpleTrigramSents = [][]tok{
	{{"a", -1}, {"</s>", -0.5 - 1 - 0.01}},
	{{"a", -1}, {"b", -1.5}, {"</s>", -0.001}},
	{{"a", -1}, {"b", -1.5}, {"a", -1 - 2 - 2}, {"b", -2}, {"</s>", -0.001}},
	{{"a", -1}, {"b", -1.5}, {"c", WEIGHT_LOG0}, {"</s>", -0.01}},
}

var sparseFivegramLM = []ngram{
	{"", "<s>", WEIGHT_LOG0, -1},
	{"", "</s>", 0.1, 0},
	{"<s> a a a", "a", -1, -2},
	{"a a", "a", -3, -4},
}

var sparseFivegramSents = [][]tok{
	{{"a", 0}, {"</s>", 0.1}},
	{{"a", 0}, {"a", 0}, {"</s>", 0.1}},
	{{"a", 0}, {"a", 0}, {"a", 0}, {"</s>", -4 + 0.1}},
	{{"a", 0}, {"a", 0}, {"a", 0}, {"a", -1}, {"</s>", -2 - 4 + 0.1}},
	{{"a", 0}, {"a", 0}, {"a", 0}, {"a", -1}, {"a", -2 - 4 - 3}, {"</s>", -4 + 0.1}},
}

var trickyBackOffLM = []ngram{
	{"", "<s>", 0, -1},
	{"", "</s>", 0.1, 0},
	{"a b c", "d", -1, -2},
	{"b c", "e", -4, 1},
	{"c", "d", 0, -3},
}

var trickyBackOffSents = [][]tok{
	{{"</s>", -1 + 0.1}},
	{{"a", -1}, {"b", 0}, {"c", 0}, {"d", -1}, {"</s>", -2 - 3 + 0.1}},
	{{"a", -1}, {"b", 0}, {"c", 0}, {"e", -4}, {"</s>", 1 + 0.1}},
}

const floatTol = 1e-6

func readyBuilder(entries []ngram) *Builder {
	builder := NewBuilder(nil, "<s>", "</s>")
	for _, e := range entries {
		c, w, weight, bo := e.Params()
		builder.AddNgram(c, w, weight, bo)
	}
	return builder
}

func sentTest(t *testing.T, model Model, sents [][]tok) {
	t.Helper()
	for _, sent := range sents {
		var w0, w1 Weight
		var ws []Weight
		p := model.Start()
		for _, x := range sent {
			var w Weight
			if x.Word != "</s>" {
				p, w = model.NextS(p, x.Word)
			} else {
				w = model.Final(p)
			}
			w0 += x.Weight
			w1 += w
			ws = append(ws, w)
		}
		if w0-w1 >= floatTol || w1-w0 >= floatTol {
			t.Errorf("expected total weight %g; got %g\nsent: %v\nweights: %v", w0, w1, sent, ws)
		}
	}
}

func checkModel(m IterableModel) error {
	uf := newUnionFind(m.NumStates())
	for i := 0; i < m.NumStates(); i++ {
		p := StateId(i)
		if bo, _ := m.BackOff(p); bo != STATE_NIL {
			uf.union(i, int(bo))
		}
		for xqw := range m.Transitions(p) {
			if xqw.State != STATE_NIL {
				uf.union(int(p), int(xqw.State))
			}
		}
	}
	for i := range uf {
		if uf.find(i) != uf.find(int(_STATE_START)) {
			return errors.New("lm: unreachable states from start")
		}
	}
	if p, _ := m.BackOff(_STATE_EMPTY); p != STATE_NIL {
		return errors.New("lm: _STATE_EMPTY must not back off")
	}
	bf := newUnionFind(m.NumStates())
	for i := 0; i < m.NumStates(); i++ {
		if b, _ := m.BackOff(StateId(i)); b != STATE_NIL {
			bf.union(int(b), i)
		}
	}
	for i := range bf[_STATE_EMPTY+1:] {
		if bf.find(i) != int(_STATE_EMPTY) {
			return errors.New("lm: a state does not eventually back off to empty")
		}
	}
	internal := map[StateId]bool{}
	for i := 0; i < m.NumStates(); i++ {
		p := StateId(i)
		n := 0
		for range m.Transitions(p) {
			n++
		}
		if n > 0 {
			internal[p] = true
		}
	}
	for i := int(_STATE_EMPTY) + 1; i < m.NumStates(); i++ {
		b, _ := m.BackOff(StateId(i))
		if !internal[b] {
			return errors.New("lm: a state backs off to a leaf")
		}
	}
	return nil
}

type unionFind []int

func newUnionFind(n int) unionFind {
	uf := make(unionFind, n)
	for i := range uf {
		uf[i] = i
	}
	return uf
}

func (uf unionFind) union(a, b int) int {
	ra, rb := uf.find(a), uf.find(b)
	uf[rb] = ra
	return ra
}

func (uf unionFind) find(a int) int {
	r := uf[a]
	for r != uf[r] {
		r = uf[r]
	}
	for uf[a] != r {
		uf[a], a = r, uf[a]
	}
	return r
}
