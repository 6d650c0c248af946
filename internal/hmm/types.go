// Package hmm implements the HMM acoustic model data types and file I/O
// (spec Input 2): physical HMMs with Gaussian-mixture output states, the
// logical (triphone) -> physical mapping read from an HMMList file, and
// the pseudo-HMM fallback built by clustering for triphones the model
// never saw in training.
package hmm

import "fmt"

// Gaussian is one multivariate diagonal-covariance component of a mixture
// output distribution, held in the parameter domain the scorer needs
// directly: Prec already stores the diagonal precision (1/variance), and
// GConst is the constant term of the log density (log((2*pi)^D * det(Sigma)))
// so the scorer's per-frame inner loop is pure multiply-accumulate.
type Gaussian struct {
	Weight float64 // log mixture weight
	Mean   []float32
	Prec   []float32 // 1/variance, per dimension
	GConst float64
}

// State is one HMM output state: a mixture of Gaussians, or (when Mixtures
// is empty and SenoneID is set) a tied DNN senone scored by the DNN
// backend in internal/acoustic instead.
type State struct {
	Mixtures []Gaussian
	SenoneID int // index into the DNN softmax output layer; -1 if unused
}

// Physical is a concretely-defined HMM: S output states (State, excluding
// the non-emitting entry/exit states) plus a full (S+2)x(S+2) transition
// matrix in log domain, indices 0 and S+1 being entry and exit.
type Physical struct {
	Name   string
	States []State
	Trans  [][]float64 // log-domain, Trans[i][j] = log P(j | i)
}

func (p *Physical) NumStates() int { return len(p.States) }

// LogZero is the scorer's log(0) sentinel; an absent arc is stored as
// LogZero in Trans.
const LogZero = -1e10

// LogTrans returns the log transition probability from state from to
// state to in the (S+2)-sized indexing (0 = entry, NumStates()+1 = exit),
// or LogZero if there is no such arc.
func (p *Physical) LogTrans(from, to int) float64 {
	if from < 0 || from >= len(p.Trans) || to < 0 || to >= len(p.Trans[from]) {
		return LogZero
	}
	return p.Trans[from][to]
}

// Logical maps a dictionary phone name (possibly a triphone, e.g.
// "k-a+e") to the Physical that actually scores it -- either a model
// directly defined in the acoustic model file, or a pseudo-HMM
// synthesized by Resolve when the exact triphone was never trained.
type Logical struct {
	Name     string
	Physical *Physical
	Pseudo   bool // true if Physical was synthesized, not directly defined
}

// Model is the full acoustic model: every physical HMM definition plus
// the logical-name lookup table built from an HMMList file.
type Model struct {
	Physicals map[string]*Physical
	Logicals  map[string]*Logical
}

func NewModel() *Model {
	return &Model{
		Physicals: make(map[string]*Physical),
		Logicals:  make(map[string]*Logical),
	}
}

// AddPhysical registers a directly-defined HMM.
func (m *Model) AddPhysical(p *Physical) { m.Physicals[p.Name] = p }

// Lookup returns the Physical a logical name resolves to, per the
// invariant that every phone referenced by the lexicon resolves to
// exactly one logical->physical chain.
func (m *Model) Lookup(logicalName string) (*Physical, error) {
	l, ok := m.Logicals[logicalName]
	if !ok {
		return nil, fmt.Errorf("hmm: no logical HMM named %q", logicalName)
	}
	return l.Physical, nil
}
