package acoustic

import (
	"math"
	"testing"

	"github.com/julius-speech/julius-sub004/internal/hmm"
)

func TestScorerCachesWithinFrame(t *testing.T) {
	m := hmm.NewModel()
	st := &hmm.State{Mixtures: []hmm.Gaussian{{Mean: []float32{0}, Prec: []float32{1}, GConst: math.Log(2 * math.Pi)}}}
	s := NewScorer(m)
	s.SetFrame([]float32{0})
	a := s.Score(st)
	b := s.Score(st)
	if a != b {
		t.Errorf("repeated Score calls within a frame should be identical: %v vs %v", a, b)
	}
	if _, ok := s.cache[st]; !ok {
		t.Error("expected Score to populate the per-frame cache")
	}
}

func TestScorerClearsCacheOnNewFrame(t *testing.T) {
	m := hmm.NewModel()
	st := &hmm.State{Mixtures: []hmm.Gaussian{{Mean: []float32{0}, Prec: []float32{1}, GConst: math.Log(2 * math.Pi)}}}
	s := NewScorer(m)
	s.SetFrame([]float32{0})
	s.Score(st)
	s.SetFrame([]float32{10})
	if _, ok := s.cache[st]; ok {
		t.Error("SetFrame should clear the previous frame's cache")
	}
	got := s.Score(st)
	want := scoreMixture(*st, []float32{10}, DefaultPruneWidth)
	if got != want {
		t.Errorf("Score after new frame = %v; want %v", got, want)
	}
}

func TestScorerDNNPath(t *testing.T) {
	d := &DNN{Layers: []Layer{
		{Weights: []float32{1, 0, 0, 1}, Bias: []float32{0, 0}, In: 2, Out: 2, Activation: ActivationSoftmax},
	}}
	m := hmm.NewModel()
	s := NewScorer(m)
	s.DNN = d
	if err := s.SetDNNContext([]float32{5, 0}); err != nil {
		t.Fatalf("SetDNNContext: %v", err)
	}
	senone0 := &hmm.State{SenoneID: 0}
	senone1 := &hmm.State{SenoneID: 1}
	p0 := s.Score(senone0)
	p1 := s.Score(senone1)
	if p0 <= p1 {
		t.Errorf("senone 0 should score higher given input favoring it: p0=%v p1=%v", p0, p1)
	}
}

func TestScorerNoDNNConfiguredIsLogZero(t *testing.T) {
	m := hmm.NewModel()
	s := NewScorer(m)
	s.SetFrame([]float32{0})
	st := &hmm.State{SenoneID: 0}
	if got := s.Score(st); got != LogZero {
		t.Errorf("Score with no mixtures and no DNN = %v; want LogZero", got)
	}
}
