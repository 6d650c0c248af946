package acoustic

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/ajroetker/go-highway/hwy"
	"golang.org/x/sync/errgroup"
)

// Activation names the nonlinearity a Layer applies after its affine
// transform.
type Activation int

const (
	ActivationLinear Activation = iota
	ActivationReLU
	ActivationSigmoid
	ActivationSoftmax
)

// Layer is one fully-connected layer: Weights is Out x In, row-major, so
// the i-th output is dot(Weights[i*In:(i+1)*In], input) + Bias[i] -- the
// same per-output-unit row dot product calc_dnn_sse.c computes, just
// scored in pure Go with a SIMD inner loop instead of compiler
// intrinsics.
type Layer struct {
	Weights    []float32
	Bias       []float32
	In, Out    int
	Activation Activation
}

// DNN scores a spliced context-window input vector into a softmax
// distribution over tied senone ids, replacing the Gaussian-mixture
// state output distribution where the acoustic model is a neural net
// rather than an HMM/GMM system.
type DNN struct {
	Layers []Layer
}

// Forward runs input through every layer in turn.
func (d *DNN) Forward(input []float32) ([]float32, error) {
	cur := input
	for i := range d.Layers {
		out, err := d.Layers[i].forward(cur)
		if err != nil {
			return nil, fmt.Errorf("acoustic: layer %d: %w", i, err)
		}
		cur = out
	}
	return cur, nil
}

// forward computes this layer's output rows in parallel chunks via
// errgroup, each chunk scoring its rows with a SIMD dot product; row i's
// result depends on no other row, so splitting the output dimension
// across workers needs no synchronization beyond the final Wait.
func (l *Layer) forward(input []float32) ([]float32, error) {
	if len(input) != l.In {
		return nil, fmt.Errorf("expected %d inputs, got %d", l.In, len(input))
	}
	out := make([]float32, l.Out)
	workers := runtime.GOMAXPROCS(0)
	if workers > l.Out {
		workers = l.Out
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (l.Out + workers - 1) / workers
	g, _ := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		start := w * chunk
		if start >= l.Out {
			break
		}
		end := start + chunk
		if end > l.Out {
			end = l.Out
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				row := l.Weights[i*l.In : (i+1)*l.In]
				out[i] = dotSIMD(row, input) + l.Bias[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	applyActivation(out, l.Activation)
	return out, nil
}

// dotSIMD computes the dot product of a and b (equal length) using
// go-highway's portable vector ops for the bulk of the dimensions and a
// scalar tail for the remainder.
func dotSIMD(a, b []float32) float32 {
	n := len(a)
	lanes := hwy.MaxLanes[float32]()
	var sum float32
	i := 0
	for ; i+lanes <= n; i += lanes {
		av := hwy.Load(a[i : i+lanes])
		bv := hwy.Load(b[i : i+lanes])
		sum += hwy.ReduceSum(hwy.Mul(av, bv))
	}
	for ; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func applyActivation(v []float32, act Activation) {
	switch act {
	case ActivationReLU:
		for i, x := range v {
			if x < 0 {
				v[i] = 0
			}
		}
	case ActivationSigmoid:
		for i, x := range v {
			v[i] = float32(1 / (1 + math.Exp(-float64(x))))
		}
	case ActivationSoftmax:
		softmaxInPlace(v)
	}
}

func softmaxInPlace(v []float32) {
	if len(v) == 0 {
		return
	}
	m := v[0]
	for _, x := range v[1:] {
		if x > m {
			m = x
		}
	}
	var sum float64
	for i, x := range v {
		e := math.Exp(float64(x - m))
		v[i] = float32(e)
		sum += e
	}
	if sum == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / sum)
	}
}

// LogProb runs input through the network and returns the log-probability
// of senone senoneID under the resulting softmax output.
func (d *DNN) LogProb(input []float32, senoneID int) (float64, error) {
	out, err := d.Forward(input)
	if err != nil {
		return LogZero, err
	}
	if senoneID < 0 || senoneID >= len(out) {
		return LogZero, fmt.Errorf("acoustic: senone id %d out of range [0,%d)", senoneID, len(out))
	}
	p := out[senoneID]
	if p <= 0 {
		return LogZero, nil
	}
	return math.Log(float64(p)), nil
}
