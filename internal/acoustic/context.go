package acoustic

import "github.com/julius-speech/julius-sub004/internal/feature"

// SpliceContext concatenates the left context frames, the center frame t,
// and the right context frames into one input vector for a DNN layer,
// clamping at the utterance boundary by repeating the edge frame -- the
// common context-window splicing convention for frame-level DNN acoustic
// scoring.
func SpliceContext(frames []feature.Frame, t, left, right int) []float32 {
	if len(frames) == 0 {
		return nil
	}
	dim := len(frames[0])
	width := left + 1 + right
	out := make([]float32, 0, width*dim)
	for off := -left; off <= right; off++ {
		idx := t + off
		if idx < 0 {
			idx = 0
		}
		if idx >= len(frames) {
			idx = len(frames) - 1
		}
		out = append(out, frames[idx]...)
	}
	return out
}
