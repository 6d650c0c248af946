package decoder

import (
	"testing"

	"github.com/kho/word"
)

func TestTrellisAppendAndAt(t *testing.T) {
	tr := NewTrellis(4)
	tw := &TrellisWord{Word: word.Id(3), End: 2, Score: -5}
	tr.Append(2, tw)

	got := tr.At(2)
	if len(got) != 1 || got[0] != tw {
		t.Fatalf("At(2) = %v; want [%v]", got, tw)
	}
	if tr.At(0) != nil {
		t.Errorf("At(0) = %v; want nil (no word ended there)", tr.At(0))
	}
	if tr.NumFrames() != 3 {
		t.Errorf("NumFrames() = %d; want 3", tr.NumFrames())
	}
}

func TestTrellisGrowsBeyondInitialCapacity(t *testing.T) {
	tr := NewTrellis(0)
	tw := &TrellisWord{Word: word.Id(1), End: 500}
	tr.Append(500, tw)
	if got := tr.At(500); len(got) != 1 || got[0] != tw {
		t.Fatalf("At(500) after growth = %v", got)
	}
}

func TestTrellisSortByScoreDescending(t *testing.T) {
	tr := NewTrellis(1)
	tr.Append(0, &TrellisWord{Word: word.Id(1), Score: -3})
	tr.Append(0, &TrellisWord{Word: word.Id(2), Score: -1})
	tr.Append(0, &TrellisWord{Word: word.Id(3), Score: -2})
	tr.SortByScore()

	b := tr.At(0)
	for i := 1; i < len(b); i++ {
		if b[i-1].Score < b[i].Score {
			t.Fatalf("bucket not sorted descending: %+v", b)
		}
	}
	if b[0].Word != word.Id(2) {
		t.Errorf("best-scoring word = %v; want 2", b[0].Word)
	}
}

func TestTrellisAtOutOfRange(t *testing.T) {
	tr := NewTrellis(2)
	if got := tr.At(-1); got != nil {
		t.Errorf("At(-1) = %v; want nil", got)
	}
	if got := tr.At(100); got != nil {
		t.Errorf("At(100) on empty trellis = %v; want nil", got)
	}
}
