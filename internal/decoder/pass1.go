package decoder

import (
	"math"
	"sort"

	"github.com/julius-speech/julius-sub004/internal/acoustic"
	"github.com/julius-speech/julius-sub004/internal/evaluator"
	"github.com/julius-speech/julius-sub004/internal/feature"
	"github.com/julius-speech/julius-sub004/internal/hmm"
	"github.com/julius-speech/julius-sub004/internal/lexicon"
	"github.com/kho/word"
)

// Pass1Config tunes the frame-synchronous beam search.
type Pass1Config struct {
	// BeamWidth keeps a frame's surviving tokens within BeamWidth of the
	// best score; non-positive means no beam pruning (spec.md's B=infinity
	// exhaustive-search baseline).
	BeamWidth float64
	// Envelope caps the number of active tokens kept after a frame,
	// beyond whatever BeamWidth already discarded; zero disables the cap.
	Envelope int
	// WordPair enables the word-pair token approximation (one surviving
	// token per (node, last word) pair instead of one per node).
	WordPair bool
}

// Pass1 drives the tree-lexicon Viterbi beam search over one utterance.
// A Pass1 is reusable across utterances via Run; each call resets its
// internal state.
type Pass1 struct {
	Tree   *lexicon.Tree
	Model  *hmm.Model
	Eval   evaluator.Evaluator
	Scorer *acoustic.Scorer
	Config Pass1Config

	// Checkpoint, when set, is called once per frame before that frame is
	// processed; a non-nil error aborts Run early, returning the partial
	// trellis built so far alongside the error. The engine uses this to
	// sample its pause/terminate flag word between pass-1 frames without
	// pass-1 itself knowing anything about engine-level control state.
	Checkpoint func() error

	active  map[tokenKey]*Token
	trellis *Trellis
	frame   int
}

// NewPass1 builds a pass-1 searcher over a fixed tree lexicon, acoustic
// model, and linguistic evaluator; Scorer is shared with anything else
// that needs per-frame Gaussian/DNN scoring, since it self-memoizes per
// SetFrame call.
func NewPass1(tree *lexicon.Tree, model *hmm.Model, eval evaluator.Evaluator, scorer *acoustic.Scorer, cfg Pass1Config) *Pass1 {
	return &Pass1{Tree: tree, Model: model, Eval: eval, Scorer: scorer, Config: cfg}
}

// Run decodes one utterance's worth of feature frames, returning the
// resulting word trellis. An utterance that leaves no active tokens part
// way through (every path pruned, or the lexicon admits nothing) stops
// early and returns whatever the trellis holds so far, not an error: an
// empty trellis is itself a meaningful (if unhelpful) result.
func (p *Pass1) Run(frames []feature.Frame) (*Trellis, error) {
	p.active = make(map[tokenKey]*Token)
	p.trellis = NewTrellis(len(frames))
	p.frame = 0

	for _, f := range frames {
		if p.Checkpoint != nil {
			if err := p.Checkpoint(); err != nil {
				p.trellis.SortByScore()
				return p.trellis, err
			}
		}
		p.Scorer.SetFrame(f)
		next := make(map[tokenKey]*Token)

		if p.frame == 0 {
			p.arrive(p.Tree.Root(), 0, p.Eval.BeginOfSentence(), p.Eval.Start(), nil, next, 0)
		}
		for _, tok := range p.active {
			p.advance(tok, next)
		}

		if len(next) == 0 {
			break
		}
		p.trellis.Frontier = append(p.trellis.Frontier, bestScore(next))
		p.prune(next)
		p.active = next
		p.frame++
	}

	p.trellis.SortByScore()
	return p.trellis, nil
}

// advance scores tok against the frame already installed on p.Scorer:
// the self-loop, the move to the arc's next emitting state, or (having
// already reached the arc's last state) the exit transition that hands
// the token off to arrive at its own node.
func (p *Pass1) advance(tok *Token, next map[tokenKey]*Token) {
	numStates := tok.Physical.NumStates()

	if self := tok.Physical.LogTrans(tok.State, tok.State); self > hmm.LogZero {
		s := tok.Score + self + p.Scorer.Score(&tok.Physical.States[tok.State-1])
		p.settle(&Token{Node: tok.Node, Physical: tok.Physical, State: tok.State,
			Score: s, LastWord: tok.LastWord, Hist: tok.Hist, Factor: tok.Factor, Back: tok.Back}, next, 0)
	}

	if tok.State < numStates {
		if fwd := tok.Physical.LogTrans(tok.State, tok.State+1); fwd > hmm.LogZero {
			s := tok.Score + fwd + p.Scorer.Score(&tok.Physical.States[tok.State])
			p.settle(&Token{Node: tok.Node, Physical: tok.Physical, State: tok.State + 1,
				Score: s, LastWord: tok.LastWord, Hist: tok.Hist, Factor: tok.Factor, Back: tok.Back}, next, 0)
		}
		return
	}

	// tok was already at its arc's last state entering this frame (settle's
	// same-frame cascade either never ran for it, because it survived from
	// a frame where the cascade depth cap was hit, or it arrived here via
	// an active token carried over without a self-loop at all) -- give it
	// one more chance to exit now that a fresh frame's observation applies.
	if exit := tok.Physical.LogTrans(numStates, numStates+1); exit > hmm.LogZero {
		base := tok.Score + exit - tok.Factor
		p.arrive(tok.Node, base, tok.LastWord, tok.Hist, tok.Back, next, 0)
	}
}

// maxCascadeDepth bounds the zero-duration arrive/spawnChildren/settle
// cascade within a single frame: in principle a chain of single-state
// words with an always-admissible grammar could hand off to each other
// indefinitely without ever consuming a frame, so the cascade is capped
// rather than relied on to terminate by itself.
const maxCascadeDepth = 8

// arrive handles a token having just completed the arc HMM leading into
// n: it may complete a word there (n a leaf, emitting a trellis-word and
// spawning a fresh token back at the tree root) and/or continue into n's
// children, whichever apply. baseScore is the accumulated score up to
// and including n, with no factoring or LM contribution for what comes
// after n folded in yet.
func (p *Pass1) arrive(n lexicon.NodeId, baseScore float64, lastWord word.Id, hist evaluator.History, back *TrellisWord, next map[tokenKey]*Token, depth int) {
	if wid, ok := p.Tree.WordAtLeaf(n); ok {
		w := word.Id(wid)
		if p.Eval.Admissible(hist, w) {
			nextHist, logp := p.Eval.LogP(hist, w)
			if logp > evaluator.LogZero {
				wordScore := baseScore + logp
				tw := &TrellisWord{Word: w, End: p.frame, Score: wordScore, LMScore: logp, Prev: back}
				p.trellis.Append(p.frame, tw)
				p.spawnChildren(p.Tree.Root(), wordScore, w, nextHist, tw, next, depth)
			}
		}
	}
	p.spawnChildren(n, baseScore, lastWord, hist, back, next, depth)
}

// spawnChildren starts a fresh token on each outgoing arc of n, scoring
// its first emitting state against the frame already installed on
// p.Scorer. At the tree root the cross-word head variant matching
// lastWord's final phone is selected when one was registered; elsewhere
// (and when no matching variant exists) the arc's own logical name is
// used directly. A freshly spawned child that is already at its arc's
// last (and only) state is settled immediately, so a single-state HMM
// doesn't need a whole extra frame just to notice it can exit.
func (p *Pass1) spawnChildren(n lexicon.NodeId, baseScore float64, lastWord word.Id, hist evaluator.History, back *TrellisWord, next map[tokenKey]*Token, depth int) {
	neighbour := p.neighbourPhone(n, lastWord)
	for _, succ := range p.Tree.Successors(n) {
		phys, err := p.resolveArc(n, succ, neighbour)
		if err != nil {
			continue
		}
		entry := phys.LogTrans(0, 1)
		if entry <= hmm.LogZero {
			continue
		}
		score := baseScore + succ.Factor + entry + p.Scorer.Score(&phys.States[0])
		child := &Token{Node: succ.Child, Physical: phys, State: 1, Score: score,
			LastWord: lastWord, Hist: hist, Factor: succ.Factor, Back: back}
		p.settle(child, next, depth)
	}
}

// settle keeps tok alive into the next frame and, if tok already sits at
// its arc's last state, also tries the exit transition this same frame
// (bounded by maxCascadeDepth), matching advance's behavior for tokens
// that reach the last state on a later frame instead of at entry.
func (p *Pass1) settle(tok *Token, next map[tokenKey]*Token, depth int) {
	p.merge(next, tok)
	if depth >= maxCascadeDepth {
		return
	}
	numStates := tok.Physical.NumStates()
	if tok.State != numStates {
		return
	}
	if exit := tok.Physical.LogTrans(numStates, numStates+1); exit > hmm.LogZero {
		base := tok.Score + exit - tok.Factor
		p.arrive(tok.Node, base, tok.LastWord, tok.Hist, tok.Back, next, depth+1)
	}
}

// neighbourPhone returns the boundary phone a head-variant lookup at n
// (the tree root) should key on: the last phone of lastWord, or
// lexicon.BoundaryPhone at the very start of an utterance. Not the tree
// root, it returns "" (head variants never apply mid-tree).
func (p *Pass1) neighbourPhone(n lexicon.NodeId, lastWord word.Id) string {
	if n != p.Tree.Root() {
		return ""
	}
	if lastWord == word.NIL || lastWord == p.Eval.BeginOfSentence() {
		return lexicon.BoundaryPhone
	}
	if ph, err := p.Tree.LastPhone(int(lastWord)); err == nil {
		return ph
	}
	return lexicon.BoundaryPhone
}

// resolveArc picks the physical HMM for succ: a cross-word head variant
// keyed on neighbour when succ.Child is a head node and one was
// registered for that context, falling back to the first registered
// variant, and otherwise succ.Arc resolved directly.
func (p *Pass1) resolveArc(n lexicon.NodeId, succ lexicon.Successor, neighbour string) (*hmm.Physical, error) {
	if n == p.Tree.Root() {
		if vars := p.Tree.HeadVariantsAt(succ.Child); len(vars) > 0 {
			for _, v := range vars {
				if v.Context == neighbour {
					return p.Model.Resolve(v.Logical)
				}
			}
			return p.Model.Resolve(vars[0].Logical)
		}
	}
	return p.Model.Resolve(succ.Arc)
}

// merge keeps the higher-scoring of any existing token already occupying
// cand's cell, implementing word-pair (or plain Viterbi) token
// recombination.
func (p *Pass1) merge(next map[tokenKey]*Token, cand *Token) {
	key := tokenKey{Node: cand.Node}
	if p.Config.WordPair {
		key.LastWord = cand.LastWord
	}
	if cur, ok := next[key]; !ok || cand.Score > cur.Score {
		next[key] = cand
	}
}

// bestScore returns the highest token score in next, or -Inf if empty.
func bestScore(next map[tokenKey]*Token) float64 {
	best := math.Inf(-1)
	for _, t := range next {
		if t.Score > best {
			best = t.Score
		}
	}
	return best
}

// prune removes tokens scoring below the beam floor and, if the
// envelope is exceeded, raises the floor further to keep only the
// Envelope best.
func (p *Pass1) prune(next map[tokenKey]*Token) {
	best := bestScore(next)
	floor := math.Inf(-1)
	if p.Config.BeamWidth > 0 {
		floor = best - p.Config.BeamWidth
	}
	if p.Config.Envelope > 0 && len(next) > p.Config.Envelope {
		scores := make([]float64, 0, len(next))
		for _, t := range next {
			scores = append(scores, t.Score)
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(scores)))
		if cut := scores[p.Config.Envelope-1]; cut > floor {
			floor = cut
		}
	}
	for k, t := range next {
		if t.Score < floor {
			delete(next, k)
		}
	}
}
