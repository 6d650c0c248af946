// Package acoustic implements the acoustic-likelihood engine (spec
// component C1): per-frame Gaussian-mixture and DNN state scoring for the
// HMM acoustic model internal/hmm reads, with Gaussian pruning and a
// precomputed log-add table to keep the decoder's innermost loop cheap.
package acoustic

import "math"

// LogZero stands in for probability zero in the log domain. Matches
// internal/hmm's sentinel so scores compare directly against transition
// log-probabilities.
const LogZero = -1e10

// logAddMin bounds how far apart two log values can be before the
// smaller one is simply dropped instead of looked up in the table --
// below this point its contribution underflows the table's precision
// anyway.
const logAddMin = -13.815510558

const tableSize = 500000
const vRange = 15.0
const tableMag = tableSize / vRange

// logAddTable precomputes log(1+e^x) for x in [-vRange, 0] so repeated
// log-domain sums (the inner loop of every mixture and state score) don't
// each pay for a log1p/exp pair.
type logAddTable struct {
	tbl []float64
}

var defaultTable = newLogAddTable()

func newLogAddTable() *logAddTable {
	t := &logAddTable{tbl: make([]float64, tableSize)}
	for i := 0; i < tableSize; i++ {
		x := -vRange * float64(i) / tableSize
		t.tbl[i] = math.Log(1 + math.Exp(x))
	}
	return t
}

// add computes log(e^x + e^y) without exponentiating either operand
// directly, returning the larger value unchanged once the gap exceeds
// logAddMin.
func (t *logAddTable) add(x, y float64) float64 {
	var big, small float64
	if x < y {
		big, small = y, x
	} else {
		big, small = x, y
	}
	diff := small - big
	if diff < logAddMin {
		return big
	}
	idx := int(-diff*tableMag + 0.5)
	if idx >= tableSize {
		idx = tableSize - 1
	}
	return big + t.tbl[idx]
}

// addArray computes log(sum(e^a_i)) by repeated pairwise add, the same
// running-max-and-fold approach as addlog_array.
func (t *logAddTable) addArray(a []float64) float64 {
	y := LogZero
	for _, x := range a {
		if x > y {
			x, y = y, x
		}
		diff := x - y
		if diff < logAddMin {
			continue
		}
		idx := int(-diff*tableMag + 0.5)
		if idx >= tableSize {
			idx = tableSize - 1
		}
		y += t.tbl[idx]
	}
	return y
}
