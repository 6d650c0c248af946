package decoder

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/julius-speech/julius-sub004/internal/acoustic"
	"github.com/julius-speech/julius-sub004/internal/evaluator"
	"github.com/julius-speech/julius-sub004/internal/feature"
	"github.com/julius-speech/julius-sub004/internal/hmm"
	"github.com/julius-speech/julius-sub004/internal/lexicon"
	"github.com/kho/word"
)

// HypState is a stack-decoder hypothesis's lifecycle state.
type HypState int

const (
	HypExpandable HypState = iota
	HypTerminal
	HypDiscarded
)

// Hypothesis is one A* stack-decoder search node: word, placed
// immediately to the left of Prev's word (pass-2 works back from the
// end of the utterance), re-aligned to the exact [Begin,End] frame span
// a short Viterbi pass picked, with G the exact backward score
// accumulated over every word placed so far (this one included) and H
// the admissible heuristic bounding whatever still precedes it.
type Hypothesis struct {
	Word  word.Id
	Begin int
	End   int
	G     float64
	H     float64
	Hist  evaluator.History
	Prev  *Hypothesis
	State HypState

	// WordAM and WordLM are this word's own re-aligned acoustic score and
	// incremental LM log-probability, as opposed to G's cumulative total
	// over every word from here to the end of the utterance. The graph
	// builder reads these directly; the search itself only ever needs G.
	WordAM float64
	WordLM float64
}

// F is the A* priority g+h.
func (h *Hypothesis) F() float64 { return h.G + h.H }

// Words returns the hypothesis's word sequence in left-to-right
// (utterance) order. Each Prev is the word to the right, so walking the
// Prev chain from h already yields that order.
func (h *Hypothesis) Words() []word.Id {
	var out []word.Id
	for cur := h; cur != nil; cur = cur.Prev {
		out = append(out, cur.Word)
	}
	return out
}

// Pass2Config tunes the A* stack decoder's expansion limits.
type Pass2Config struct {
	MaxPops       int     // total priority-queue pop budget for the whole search
	MaxExpansions int     // per-pop fan-out cap over candidate predecessor words
	Beam          float64 // reject a candidate hypothesis scoring below (F at the top of the queue - Beam); non-positive disables
	MaxWordSpan   int     // widest frame span a short Viterbi re-alignment searches over
	NBest         int     // stop once this many sentences have reached frame 0
}

// Pass2 performs A* stack decoding over a pass-1 word trellis: each pop
// extends a hypothesis one word further toward the start of the
// utterance, using a short Viterbi re-alignment of the candidate word
// against the raw acoustic frames to recover its exact [begin,end] span
// and true score (pass-1, under the word-pair approximation, only ever
// kept the end frame and an LM-factored estimate).
type Pass2 struct {
	Tree   *lexicon.Tree
	Model  *hmm.Model
	Eval   evaluator.Evaluator // scores words in utterance-reverse order
	Scorer *acoustic.Scorer
	Config Pass2Config

	// retained accumulates every hypothesis that survived pushCandidate's
	// beam check during the most recent Run, terminal or not -- the raw
	// material BuildGraph consolidates into a word graph.
	retained []*Hypothesis

	// Checkpoint, when set, is called once per priority-queue pop before
	// that pop is processed; a non-nil error aborts Run early, returning
	// whatever completed hypotheses have already been found. Mirrors
	// Pass1.Checkpoint for the engine's between-pops sampling point.
	Checkpoint func() error
}

// Retained returns every hypothesis BuildGraph can draw on after the most
// recent Run: every candidate that passed the per-push beam check, not
// just the ones that reached the utterance's first frame.
func (p *Pass2) Retained() []*Hypothesis { return p.retained }

func NewPass2(tree *lexicon.Tree, model *hmm.Model, eval evaluator.Evaluator, scorer *acoustic.Scorer, cfg Pass2Config) *Pass2 {
	return &Pass2{Tree: tree, Model: model, Eval: eval, Scorer: scorer, Config: cfg}
}

// Run decodes frames (the same frames pass-1 ran over) against tr (its
// resulting trellis), returning up to Config.NBest completed sentences,
// best first.
func (p *Pass2) Run(frames []feature.Frame, tr *Trellis) ([]*Hypothesis, error) {
	pq := &hypHeap{}
	heap.Init(pq)
	p.retained = nil

	end := tr.NumFrames() - 1
	for _, tw := range tr.At(end) {
		p.seed(tw, frames, tr, pq)
	}

	var done []*Hypothesis
	pops := 0
	for pq.Len() > 0 && (p.Config.MaxPops <= 0 || pops < p.Config.MaxPops) {
		if p.Config.NBest > 0 && len(done) >= p.Config.NBest {
			break
		}
		if p.Checkpoint != nil {
			if err := p.Checkpoint(); err != nil {
				return done, err
			}
		}
		h := heap.Pop(pq).(*Hypothesis)
		pops++

		if h.Begin == 0 {
			if ok, logp := p.Eval.Final(h.Hist); ok {
				h.G += logp
				h.State = HypTerminal
				done = append(done, h)
			} else {
				h.State = HypDiscarded
			}
			continue
		}
		p.expand(h, frames, tr, pq)
	}
	return done, nil
}

// seed pushes the initial hypothesis for a trellis-word that could be
// the utterance's last word.
func (p *Pass2) seed(tw *TrellisWord, frames []feature.Frame, tr *Trellis, pq *hypHeap) {
	start := p.Eval.Start()
	if !p.Eval.Admissible(start, tw.Word) {
		return
	}
	nextHist, logp := p.Eval.LogP(start, tw.Word)
	if logp <= evaluator.LogZero {
		return
	}
	p.pushCandidate(tw.Word, logp, nextHist, nil, frames, tr, tw.End, pq)
}

// expand pops the best-scoring predecessor candidates ending right
// before h's realigned start, capped at Config.MaxExpansions, each
// becoming a new hypothesis one word further back.
func (p *Pass2) expand(h *Hypothesis, frames []feature.Frame, tr *Trellis, pq *hypHeap) {
	cands := tr.At(h.Begin - 1)
	n := len(cands)
	if p.Config.MaxExpansions > 0 && n > p.Config.MaxExpansions {
		n = p.Config.MaxExpansions
	}
	for _, tw := range cands[:n] {
		if !p.Eval.Admissible(h.Hist, tw.Word) {
			continue
		}
		nextHist, logp := p.Eval.LogP(h.Hist, tw.Word)
		if logp <= evaluator.LogZero {
			continue
		}
		p.pushCandidate(tw.Word, logp, nextHist, h, frames, tr, tw.End, pq)
	}
}

// pushCandidate re-aligns word w ending at end, and if the alignment
// succeeds and survives the second-pass beam, pushes the resulting
// hypothesis.
func (p *Pass2) pushCandidate(w word.Id, lmAccum float64, hist evaluator.History, prev *Hypothesis, frames []feature.Frame, tr *Trellis, end int, pq *hypHeap) {
	chain, err := p.Tree.PhoneChain(int(w))
	if err != nil {
		return
	}
	maxSpan := p.Config.MaxWordSpan
	if maxSpan <= 0 {
		maxSpan = end + 1
	}
	begin, amScore, err := shortViterbiRealign(p.Model, p.Scorer, frames, chain, end, maxSpan)
	if err != nil {
		return
	}
	heuristic := 0.0
	if begin > 0 && begin-1 < len(tr.Frontier) {
		heuristic = tr.Frontier[begin-1]
	}
	g := amScore + lmAccum
	if prev != nil {
		g += prev.G
	}
	cand := &Hypothesis{Word: w, Begin: begin, End: end, G: g, H: heuristic, Hist: hist, Prev: prev, State: HypExpandable,
		WordAM: amScore, WordLM: lmAccum}
	if p.Config.Beam > 0 && pq.Len() > 0 && cand.F() < pq.peekF()-p.Config.Beam {
		return
	}
	heap.Push(pq, cand)
	p.retained = append(p.retained, cand)
}

// ---- short Viterbi re-alignment --------------------------------------

type chainUnit struct {
	phys  *hmm.Physical
	state int // 1..phys.NumStates()
}

func flattenChain(model *hmm.Model, arcs []string) ([]chainUnit, error) {
	var units []chainUnit
	for _, arc := range arcs {
		phys, err := model.Resolve(arc)
		if err != nil {
			return nil, err
		}
		for s := 1; s <= phys.NumStates(); s++ {
			units = append(units, chainUnit{phys: phys, state: s})
		}
	}
	return units, nil
}

func advanceCost(units []chainUnit, i int) float64 {
	cur := units[i]
	if i == 0 {
		return cur.phys.LogTrans(0, 1)
	}
	prev := units[i-1]
	if prev.phys == cur.phys {
		return prev.phys.LogTrans(prev.state, cur.state)
	}
	return prev.phys.LogTrans(prev.state, prev.phys.NumStates()+1) + cur.phys.LogTrans(0, 1)
}

func selfLoopCost(u chainUnit) float64 { return u.phys.LogTrans(u.state, u.state) }

// shortViterbiRealign force-aligns arcs (a word's concatenated phone
// chain) against frames so that it ends exactly at frame end, searching
// over every begin frame within the last maxSpan frames before end and
// returning whichever gives the best score -- spec.md's "short Viterbi
// re-alignment of candidate trellis-words", needed because pass-1's
// word-pair approximation never retained a word's true start frame.
func shortViterbiRealign(model *hmm.Model, scorer *acoustic.Scorer, frames []feature.Frame, arcs []string, end, maxSpan int) (begin int, score float64, err error) {
	if end < 0 || end >= len(frames) {
		return 0, 0, fmt.Errorf("decoder: end frame %d out of range", end)
	}
	units, err := flattenChain(model, arcs)
	if err != nil {
		return 0, 0, err
	}
	if len(units) == 0 {
		return 0, 0, fmt.Errorf("decoder: empty phone chain")
	}

	lowBound := end - maxSpan + 1
	if lowBound < 0 {
		lowBound = 0
	}
	window := end - lowBound + 1
	n := len(units)

	dp := make([][]float64, window)
	beginAt := make([][]int, window)
	for k := range dp {
		dp[k] = make([]float64, n)
		beginAt[k] = make([]int, n)
		for i := range dp[k] {
			dp[k][i] = hmm.LogZero
		}
	}

	for k := 0; k < window; k++ {
		t := lowBound + k
		scorer.SetFrame(frames[t])
		for i, u := range units {
			obs := scorer.Score(&u.phys.States[u.state-1])
			best := hmm.LogZero
			from := 0
			if i == 0 {
				best, from = advanceCost(units, i)+obs, t
			}
			if k > 0 {
				if i > 0 && dp[k-1][i-1] > hmm.LogZero {
					if c := dp[k-1][i-1] + advanceCost(units, i) + obs; c > best {
						best, from = c, beginAt[k-1][i-1]
					}
				}
				if self := selfLoopCost(u); dp[k-1][i] > hmm.LogZero && self > hmm.LogZero {
					if c := dp[k-1][i] + self + obs; c > best {
						best, from = c, beginAt[k-1][i]
					}
				}
			}
			dp[k][i] = best
			beginAt[k][i] = from
		}
	}

	last := dp[window-1][n-1]
	if last <= hmm.LogZero {
		return 0, 0, fmt.Errorf("decoder: no admissible alignment for span [%d,%d]", lowBound, end)
	}
	finalExit := units[n-1].phys.LogTrans(units[n-1].state, units[n-1].phys.NumStates()+1)
	return beginAt[window-1][n-1], last + finalExit, nil
}

// ---- priority queue ---------------------------------------------------

// hypHeap is a max-heap over F, the A* search's frontier of
// not-yet-expanded hypotheses.
type hypHeap []*Hypothesis

func (h hypHeap) Len() int            { return len(h) }
func (h hypHeap) Less(i, j int) bool  { return h[i].F() > h[j].F() }
func (h hypHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hypHeap) Push(x interface{}) { *h = append(*h, x.(*Hypothesis)) }
func (h *hypHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

func (h hypHeap) peekF() float64 {
	if len(h) == 0 {
		return math.Inf(-1)
	}
	return h[0].F()
}
