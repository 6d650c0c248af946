package hmm

import "fmt"

// Resolve maps a lexicon phone name to its scoring Physical, building and
// caching a pseudo-HMM the first time an unseen triphone is requested so
// the invariant "every phone referenced by the lexicon resolves to
// exactly one logical->physical chain" holds even for triphones absent
// from the HMMList. Backoff order: exact triphone, left-context biphone,
// right-context biphone, monophone; the pseudo-HMM copies the first
// fallback found (topology, transitions, means) and widens (rather than
// replacing) each Gaussian's effective variance so the substitution is
// conservative. No states are averaged.
func (m *Model) Resolve(name string) (*Physical, error) {
	if l, ok := m.Logicals[name]; ok {
		return l.Physical, nil
	}

	t := ParseTriphone(name)
	left, right := t.Biphones()
	candidates := []string{left, right, t.Monophone()}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if l, ok := m.Logicals[c]; ok {
			pseudo := clusterPseudo(name, l.Physical)
			m.Logicals[name] = &Logical{Name: name, Physical: pseudo, Pseudo: true}
			return pseudo, nil
		}
	}
	return nil, fmt.Errorf("hmm: no logical HMM, biphone, or monophone found for triphone %q", name)
}

// clusterPseudo builds a pseudo-HMM standing in for name from the nearest
// defined backoff model src, reusing its topology and transitions but
// halving each Gaussian's precision (doubling its variance) so an
// untrained triphone does not score as confidently as an exactly-matched
// one. This is the Go repo's own approximation of Julius's
// state-tying-based pseudo-HMM clustering, since the tree-based state
// clustering algorithm's source was not retrieved; the effect aimed for
// (never returning an overconfident score for an unseen triphone) is the
// same.
func clusterPseudo(name string, src *Physical) *Physical {
	p := &Physical{
		Name:  name,
		Trans: src.Trans,
	}
	p.States = make([]State, len(src.States))
	for i, s := range src.States {
		p.States[i] = widenState(s)
	}
	return p
}

func widenState(s State) State {
	out := State{SenoneID: s.SenoneID}
	if len(s.Mixtures) == 0 {
		return out
	}
	out.Mixtures = make([]Gaussian, len(s.Mixtures))
	for i, g := range s.Mixtures {
		prec := make([]float32, len(g.Prec))
		for d, v := range g.Prec {
			prec[d] = v * 0.5 // halve precision == double variance
		}
		out.Mixtures[i] = Gaussian{
			Weight: g.Weight,
			Mean:   g.Mean,
			Prec:   prec,
			GConst: g.GConst,
		}
	}
	return out
}
