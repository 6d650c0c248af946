package acoustic

import (
	"math"
	"testing"

	"github.com/julius-speech/julius-sub004/internal/hmm"
)

func TestLogDensityMatchesPeakAtMean(t *testing.T) {
	g := hmm.Gaussian{
		Weight: 0,
		Mean:   []float32{0, 0},
		Prec:   []float32{1, 1},
		GConst: 2 * math.Log(2*math.Pi), // unit variance, 2 dims, var=1 each
	}
	atMean := logDensity(g, []float32{0, 0})
	off := logDensity(g, []float32{1, 1})
	if atMean <= off {
		t.Errorf("density at mean (%v) should exceed density off mean (%v)", atMean, off)
	}
	// standard bivariate unit normal at the origin: -log(2*pi)
	want := -math.Log(2 * math.Pi)
	if diff := atMean - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("logDensity at mean = %v; want %v", atMean, want)
	}
}

func TestLogDensityAppliesMixtureWeight(t *testing.T) {
	base := hmm.Gaussian{Mean: []float32{0}, Prec: []float32{1}, GConst: math.Log(2 * math.Pi)}
	weighted := base
	weighted.Weight = -2
	if diff := logDensity(weighted, []float32{0}) - (logDensity(base, []float32{0}) - 2); diff > 1e-9 || diff < -1e-9 {
		t.Error("mixture weight should add directly in log domain")
	}
}

func TestScoreMixturePrunesToTopK(t *testing.T) {
	st := hmm.State{Mixtures: []hmm.Gaussian{
		{Mean: []float32{0}, Prec: []float32{1}, GConst: math.Log(2 * math.Pi)},         // best: sits at the frame
		{Mean: []float32{50}, Prec: []float32{1}, GConst: math.Log(2 * math.Pi)},        // terrible
		{Mean: []float32{0.1}, Prec: []float32{1}, GConst: math.Log(2 * math.Pi)},       // close second
	}}
	frame := []float32{0}
	full := scoreMixture(st, frame, 0) // width<=0: score everything
	pruned := scoreMixture(st, frame, 1) // keep only the single best Gaussian
	if pruned > full {
		t.Errorf("pruned score %v should never exceed the full sum %v", pruned, full)
	}
	if math.Abs(full-pruned) > 1 {
		t.Errorf("keeping only the best Gaussian should barely move the sum: full=%v pruned=%v", full, pruned)
	}
}

func TestScoreMixtureEmptyMixturesIsLogZero(t *testing.T) {
	st := hmm.State{}
	if got := scoreMixture(st, []float32{0}, DefaultPruneWidth); got != LogZero {
		t.Errorf("scoreMixture on empty mixture = %v; want LogZero", got)
	}
}

func TestWeightedSquaredDiffSumWideVector(t *testing.T) {
	const d = 39 // exercises both the vectorized loop and the scalar tail
	x := make([]float32, d)
	mean := make([]float32, d)
	prec := make([]float32, d)
	for i := range x {
		x[i] = float32(i) * 0.1
		mean[i] = 0
		prec[i] = 1
	}
	got := weightedSquaredDiffSum(x, mean, prec)
	var want float64
	for i := range x {
		diff := float64(x[i])
		want += diff * diff
	}
	if diff := got - want; diff > 1e-3 || diff < -1e-3 {
		t.Errorf("weightedSquaredDiffSum = %v; want %v", got, want)
	}
}
