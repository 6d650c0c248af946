package lm

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestSortedSimple(t *testing.T) { sortedTest(t, simpleTrigramLM, simpleTrigramSents) }
func TestSortedSparse(t *testing.T) { sortedTest(t, sparseFivegramLM, sparseFivegramSents) }
func TestSortedTrickyBackOff(t *testing.T) {
	sortedTest(t, trickyBackOffLM, trickyBackOffSents)
}

func sortedTest(t *testing.T, entries []ngram, sents [][]tok) {
	t.Helper()
	builder := readyBuilder(entries)
	model := builder.DumpSorted()

	var buf bytes.Buffer
	Graphviz(model, &buf)
	t.Log(buf.String())

	if err := checkModel(model); err != nil {
		t.Errorf("checkModel: %v", err)
	}
	sentTest(t, model, sents)
}

func TestSortedBinaryRoundTrip(t *testing.T) {
	builder := readyBuilder(simpleTrigramLM)
	model := builder.DumpSorted()

	path := filepath.Join(t.TempDir(), "model.sorted.bin")
	if err := model.WriteBinary(path); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}

	loaded, closer, err := FromSortedBinary(path)
	if err != nil {
		t.Fatalf("FromSortedBinary: %v", err)
	}
	defer closer.Close()

	sentTest(t, loaded, simpleTrigramSents)
}

func TestHashedSortedAgree(t *testing.T) {
	for _, lm := range []struct {
		entries []ngram
		sents   [][]tok
	}{
		{simpleTrigramLM, simpleTrigramSents},
		{sparseFivegramLM, sparseFivegramSents},
		{trickyBackOffLM, trickyBackOffSents},
	} {
		h := readyBuilder(lm.entries).DumpHashed(0)
		s := readyBuilder(lm.entries).DumpSorted()
		sentTest(t, h, lm.sents)
		sentTest(t, s, lm.sents)
	}
}
