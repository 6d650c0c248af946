package acoustic

import (
	"github.com/ajroetker/go-highway/hwy"
	"github.com/julius-speech/julius-sub004/internal/hmm"
)

// DefaultPruneWidth is the Gaussian-pruning top-K cap used when a Scorer
// doesn't override it: keep only the best few Gaussians per mixture, fold
// those together via addlog and drop the rest, the same trade gprune_common.c's
// cache_push makes between accuracy and per-frame cost.
const DefaultPruneWidth = 10

// logDensity computes the diagonal-covariance Gaussian log-density of
// frame x under g in natural-log domain, then folds in the mixture's log
// weight (log-domain multiplication by addition): g.GConst and g.Prec
// are precomputed by internal/hmm so this is pure multiply-accumulate,
// matching calc_mix.c's per-Gaussian inner loop.
func logDensity(g hmm.Gaussian, x []float32) float64 {
	return g.Weight - 0.5*(g.GConst+weightedSquaredDiffSum(x, g.Mean, g.Prec))
}

// weightedSquaredDiffSum computes sum_d prec[d]*(x[d]-mean[d])^2 using
// go-highway's portable SIMD ops where a full vector's worth of
// dimensions remain, falling back to a scalar loop for the remainder --
// the same load/multiply/accumulate shape calc_dnn_sse.c uses for its
// row dot product, here a three-operand weighted squared difference
// instead of a plain dot.
func weightedSquaredDiffSum(x, mean, prec []float32) float64 {
	n := len(x)
	lanes := hwy.MaxLanes[float32]()
	var sum float32
	i := 0
	for ; i+lanes <= n; i += lanes {
		xv := hwy.Load(x[i : i+lanes])
		mv := hwy.Load(mean[i : i+lanes])
		pv := hwy.Load(prec[i : i+lanes])
		d := hwy.Sub(xv, mv)
		sq := hwy.Mul(d, d)
		w := hwy.Mul(sq, pv)
		sum += hwy.ReduceSum(w)
	}
	for ; i < n; i++ {
		d := x[i] - mean[i]
		sum += prec[i] * d * d
	}
	return float64(sum)
}

// scoreMixture computes a state's output log-probability for frame x,
// pruning to the width best Gaussians (width <= 0 or >= the mixture size
// scores every Gaussian) and folding the kept scores with the log-add
// table, mirroring calc_mix's compute-then-addlog_array shape for a
// single-stream model.
func scoreMixture(st hmm.State, x []float32, width int) float64 {
	if width <= 0 || width > len(st.Mixtures) {
		width = len(st.Mixtures)
	}
	cache := newPruneCache(width)
	for i, g := range st.Mixtures {
		cache.push(i, logDensity(g, x))
	}
	scores, _ := cache.results()
	if len(scores) == 0 {
		return LogZero
	}
	return defaultTable.addArray(scores)
}
