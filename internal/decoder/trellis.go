package decoder

import (
	"sort"

	"github.com/kho/word"
)

// trellisGrowStep mirrors feature.StreamBuffer's chunked growth so the
// trellis doesn't reallocate on every frame of a long utterance.
const trellisGrowStep = 200

// TrellisWord is one surviving word end recorded by pass-1: word ended
// at frame End with the best accumulated score Score (AM + true LM, not
// the factoring estimate) and the incremental LM log-probability
// LMScore that produced it, chained back to whichever trellis-word
// preceded it (nil at an utterance's first word).
type TrellisWord struct {
	Word    word.Id
	End     int
	Score   float64
	LMScore float64
	Prev    *TrellisWord
}

// Trellis is the word trellis B[0..T-1] of spec component C4: a dense,
// block-allocated, per-end-frame list of surviving trellis-words. Pass-1
// only ever appends; pass-2 treats it as immutable once an utterance's
// pass-1 run has finished.
type Trellis struct {
	buckets [][]*TrellisWord

	// Frontier[t] is the best active-token score pass-1 reached at frame
	// t, recorded before that frame's beam pruning. Pass-2's A* search
	// uses it as the admissible backward heuristic for the still-
	// unexplored prefix [0,t]: since every token's score already folds in
	// the factoring LM's upper bound on the true word score, Frontier[t]
	// can never understate what a real completion covering [0,t] costs.
	Frontier []float64
}

// NewTrellis returns an empty trellis sized for roughly capacityFrames
// frames; it grows automatically if more frames arrive.
func NewTrellis(capacityFrames int) *Trellis {
	if capacityFrames < 0 {
		capacityFrames = 0
	}
	return &Trellis{buckets: make([][]*TrellisWord, 0, capacityFrames)}
}

// Append records tw as ending at frame.
func (tr *Trellis) Append(frame int, tw *TrellisWord) {
	tr.ensure(frame + 1)
	tr.buckets[frame] = append(tr.buckets[frame], tw)
}

// At returns every trellis-word ending at frame, or nil if none did.
func (tr *Trellis) At(frame int) []*TrellisWord {
	if frame < 0 || frame >= len(tr.buckets) {
		return nil
	}
	return tr.buckets[frame]
}

// NumFrames returns one past the highest frame index any word has ended
// at (the trellis's current length).
func (tr *Trellis) NumFrames() int { return len(tr.buckets) }

func (tr *Trellis) ensure(n int) {
	for len(tr.buckets) < n {
		grown := make([][]*TrellisWord, len(tr.buckets), len(tr.buckets)+trellisGrowStep)
		copy(grown, tr.buckets)
		tr.buckets = append(grown, nil)
	}
}

// SortByScore sorts every bucket's trellis-words by descending Score, so
// pass-2's A* initialization can consider the best-scoring end first.
// Safe to call repeatedly; pass-1 calls it once, after the last frame.
func (tr *Trellis) SortByScore() {
	for _, b := range tr.buckets {
		sort.Slice(b, func(i, j int) bool { return b[i].Score > b[j].Score })
	}
}
