package hmm

import "testing"

func TestResolveExactLogical(t *testing.T) {
	m := NewModel()
	m.AddPhysical(gaussianPhysical("a"))
	m.Logicals["k-a+e"] = &Logical{Name: "k-a+e", Physical: m.Physicals["a"]}

	p, err := m.Resolve("k-a+e")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Name != "a" {
		t.Errorf("Resolve returned %q; want a", p.Name)
	}
}

func TestResolveFallsBackToBiphone(t *testing.T) {
	m := NewModel()
	m.AddPhysical(gaussianPhysical("a"))
	m.Logicals["k-a"] = &Logical{Name: "k-a", Physical: m.Physicals["a"]}

	p, err := m.Resolve("k-a+e")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	l, ok := m.Logicals["k-a+e"]
	if !ok || !l.Pseudo {
		t.Fatalf("expected a cached pseudo logical, got %+v, %v", l, ok)
	}
	// pseudo state should have wider (smaller) precision than the source.
	if p.States[0].Mixtures[0].Prec[0] >= m.Physicals["a"].States[0].Mixtures[0].Prec[0] {
		t.Errorf("pseudo precision %v should be smaller than source %v",
			p.States[0].Mixtures[0].Prec[0], m.Physicals["a"].States[0].Mixtures[0].Prec[0])
	}
}

func TestResolveFallsBackToMonophone(t *testing.T) {
	m := NewModel()
	m.AddPhysical(gaussianPhysical("a"))
	m.Logicals["a"] = &Logical{Name: "a", Physical: m.Physicals["a"]}

	p, err := m.Resolve("k-a+e")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Name != "k-a+e" {
		t.Errorf("pseudo Physical.Name = %q; want k-a+e", p.Name)
	}
}

func TestResolveUnresolvable(t *testing.T) {
	m := NewModel()
	if _, err := m.Resolve("k-a+e"); err == nil {
		t.Error("expected error when no backoff form is defined")
	}
}

func gaussianPhysical(name string) *Physical {
	return &Physical{
		Name: name,
		States: []State{
			{Mixtures: []Gaussian{{Weight: 0, Mean: []float32{1, 2}, Prec: []float32{4, 4}, GConst: 1}}},
		},
		Trans: [][]float64{
			{LogZero, 0, LogZero},
			{LogZero, -1, -0.5},
			{LogZero, LogZero, LogZero},
		},
	}
}
