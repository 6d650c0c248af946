package acoustic

import (
	"math"

	"github.com/julius-speech/julius-sub004/internal/hmm"
)

// Scorer computes per-frame output log-probabilities for HMM states,
// memoizing each state's score for the current frame so pass-1's many
// overlapping token hypotheses (the same physical state reached via
// different triphone paths) never recompute the same mixture, or the
// same DNN forward pass, twice within a frame.
type Scorer struct {
	Model      *hmm.Model
	PruneWidth int // <=0 disables pruning: score every Gaussian in the mixture
	DNN        *DNN

	frame  []float32
	dnnOut []float32
	cache  map[*hmm.State]float64
}

// NewScorer returns a Scorer over m with Gaussian pruning at
// DefaultPruneWidth. Set DNN on the result to switch a tied-senone model
// to neural scoring.
func NewScorer(m *hmm.Model) *Scorer {
	return &Scorer{Model: m, PruneWidth: DefaultPruneWidth, cache: make(map[*hmm.State]float64)}
}

// SetFrame installs the current GMM observation frame and clears the
// per-frame state cache. Call once per decoded frame before any Score
// calls for that frame.
func (s *Scorer) SetFrame(f []float32) {
	s.frame = f
	s.dnnOut = nil
	if len(s.cache) > 0 {
		s.cache = make(map[*hmm.State]float64, len(s.cache))
	}
}

// SetDNNContext runs the DNN forward pass once for the current frame's
// spliced context-window input (see SpliceContext) and caches the
// resulting senone distribution for subsequent Score calls. No-op if the
// Scorer has no DNN configured.
func (s *Scorer) SetDNNContext(input []float32) error {
	if s.DNN == nil {
		return nil
	}
	out, err := s.DNN.Forward(input)
	if err != nil {
		return err
	}
	s.dnnOut = out
	return nil
}

// Score returns the log-likelihood of the current frame under st, using
// the mixture scorer when st carries Gaussians and the DNN senone
// distribution installed by SetDNNContext otherwise.
func (s *Scorer) Score(st *hmm.State) float64 {
	if v, ok := s.cache[st]; ok {
		return v
	}
	var v float64
	switch {
	case len(st.Mixtures) > 0:
		v = scoreMixture(*st, s.frame, s.PruneWidth)
	case s.dnnOut != nil:
		if st.SenoneID >= 0 && st.SenoneID < len(s.dnnOut) && s.dnnOut[st.SenoneID] > 0 {
			v = math.Log(float64(s.dnnOut[st.SenoneID]))
		} else {
			v = LogZero
		}
	default:
		v = LogZero
	}
	s.cache[st] = v
	return v
}
