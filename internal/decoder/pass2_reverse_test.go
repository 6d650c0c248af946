package decoder

import (
	"math"
	"testing"

	"github.com/julius-speech/julius-sub004/internal/acoustic"
	"github.com/julius-speech/julius-sub004/internal/evaluator"
	"github.com/julius-speech/julius-sub004/internal/feature"
	"github.com/julius-speech/julius-sub004/internal/hmm"
	"github.com/julius-speech/julius-sub004/internal/lexicon"
	"github.com/julius-speech/julius-sub004/internal/lm"
	"github.com/kho/word"
)

// noSelfLoopPhysical is twoStatePhysical generalized to a caller-chosen
// logical name, so a two-word lexicon can give each word its own
// (acoustically identical) two-state HMM without them colliding in
// Model.Logicals.
func noSelfLoopPhysical(name string) *hmm.Physical {
	const almostCertain = -1e-6
	return &hmm.Physical{
		Name: name,
		States: []hmm.State{
			{Mixtures: []hmm.Gaussian{{Mean: []float32{0}, Prec: []float32{1}, GConst: math.Log(2 * math.Pi)}}},
			{Mixtures: []hmm.Gaussian{{Mean: []float32{0}, Prec: []float32{1}, GConst: math.Log(2 * math.Pi)}}},
		},
		Trans: [][]float64{
			{0, almostCertain, hmm.LogZero, hmm.LogZero},
			{0, hmm.LogZero, almostCertain, hmm.LogZero},
			{0, hmm.LogZero, hmm.LogZero, almostCertain},
			{0, 0, 0, 0},
		},
	}
}

// buildTwoWordTree builds a two-word lexicon, "a" and "b", each a single
// distinct phone so BuildTree gives each its own root arc rather than
// sharing a prefix; entry order pins tree word ids to 0="a", 1="b",
// matching wordPairLM's vocabulary below.
func buildTwoWordTree(t *testing.T) (*lexicon.Tree, *hmm.Model) {
	t.Helper()
	physA := noSelfLoopPhysical("sil-pa+sil")
	physB := noSelfLoopPhysical("sil-pb+sil")
	m := hmm.NewModel()
	m.AddPhysical(physA)
	m.AddPhysical(physB)
	m.Logicals["sil-pa+sil"] = &hmm.Logical{Name: "sil-pa+sil", Physical: physA}
	m.Logicals["sil-pb+sil"] = &hmm.Logical{Name: "sil-pb+sil", Physical: physB}

	entries := []lexicon.Entry{
		{Word: "a", Phones: []string{"pa"}},
		{Word: "b", Phones: []string{"pb"}},
	}
	tree, err := lexicon.BuildTree(entries, unigramScorer{0: -1, 1: -3}, lexicon.BuildOptions{Model: m})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	return tree, m
}

// wordPairLM builds a tiny forward bigram strongly preferring the
// sequence "a b" over every other two-word sequence the tree in
// buildTwoWordTree admits ("a a", "b a", "b b"), by a wide enough margin
// that the acoustic score (identical for every sequence, since both
// words share the same Gaussian parameters) can never make up the
// difference. Its vocabulary is built explicitly so that "a"/"b" land on
// ids 0/1, matching the lexicon tree's own word ids -- evaluator.NGram
// forwards word.Id straight through to lm.Model.NextI with no
// translation layer, so the two spaces must already agree.
func wordPairLM(t *testing.T) *lm.Hashed {
	t.Helper()
	vocab := word.NewVocab([]string{"a", "b", "<s>", "</s>"})
	b := lm.NewBuilder(vocab, "<s>", "</s>")
	b.AddNgram(nil, "<s>", lm.WEIGHT_LOG0, -1)
	b.AddNgram(nil, "</s>", -0.2, 0)
	b.AddNgram(nil, "a", -1.0, -0.5)
	b.AddNgram(nil, "b", -3.0, -0.5)
	b.AddNgram([]string{"<s>"}, "a", -0.1, 0)
	b.AddNgram([]string{"a"}, "b", -0.2, 0)
	b.AddNgram([]string{"b"}, "</s>", -0.05, 0)
	return b.DumpHashed(1.5)
}

// wordLMTotal sums every WordLM the search recorded along h's chain --
// the incremental LM contributions pass-2 itself saw, as opposed to G,
// which also carries the acoustic score.
func wordLMTotal(h *Hypothesis) float64 {
	var total float64
	for cur := h; cur != nil; cur = cur.Prev {
		total += cur.WordLM
	}
	return total
}

// TestPass2UsesItsOwnReverseEvaluator runs pass-1 forward and pass-2
// backward over a two-word utterance with a real (non-stub) bigram
// language model, and checks that pass-2's own incremental LM scores
// plus its sentence-final contribution telescope to exactly the same
// total pass-1's forward model assigns the same sentence -- spec's
// reverse/forward equivalence property, which a decoder wired with two
// independently-scoring evaluators must satisfy and a decoder sharing
// one forward-only evaluator between both passes cannot.
func TestPass2UsesItsOwnReverseEvaluator(t *testing.T) {
	tree, model := buildTwoWordTree(t)
	fwd := wordPairLM(t)
	scorer := acoustic.NewScorer(model)
	frames := []feature.Frame{{0}, {0}, {0}, {0}}

	fwdEval := evaluator.NewNGram(fwd, "<unk>")
	p1 := NewPass1(tree, model, fwdEval, scorer, Pass1Config{WordPair: true})
	tr, err := p1.Run(frames)
	if err != nil {
		t.Fatalf("pass1 Run: %v", err)
	}

	revEval := evaluator.NewNGram(lm.NewReversed(fwd), "<unk>")
	p2 := NewPass2(tree, model, revEval, scorer, Pass2Config{MaxPops: 100, MaxExpansions: 4, MaxWordSpan: 4, NBest: 4})
	done, err := p2.Run(frames, tr)
	if err != nil {
		t.Fatalf("pass2 Run: %v", err)
	}
	if len(done) == 0 {
		t.Fatal("expected at least one completed hypothesis")
	}

	// done[0] is the hypothesis popped once the search reaches the
	// utterance's first frame, so its own Word is the sentence's leftmost
	// word and Prev is the word immediately to its right (Hypothesis's own
	// doc comment: "placed immediately to the left of Prev's word").
	if done[0].Begin != 0 {
		t.Fatalf("terminal hypothesis Begin = %d; want 0", done[0].Begin)
	}
	if done[0].Prev == nil || done[0].Prev.Prev != nil {
		t.Fatalf("expected a two-word hypothesis chain, got one of length %d", len(done[0].Words()))
	}
	if done[0].Word != word.Id(0) || done[0].Prev.Word != word.Id(1) {
		t.Fatalf("hypothesis chain words = [%v %v]; want [0 1] (\"a\" then \"b\")", done[0].Word, done[0].Prev.Word)
	}

	// p2.Run already folded the sentence-boundary contribution into G at
	// the Begin==0 completion check, but not into any single node's
	// WordLM; recover it by comparing G against the AM-only and
	// incremental-LM-only components.
	finalLogp := done[0].G - wordLMTotal(done[0]) - (done[0].WordAM + done[0].Prev.WordAM)

	const wantForwardTotal = -0.1 + -0.2 + -0.05 // logP(a|<s>) + logP(b|a) + logP(</s>|b)
	gotTotal := wordLMTotal(done[0]) + finalLogp
	if math.Abs(gotTotal-wantForwardTotal) >= floatTolForTest {
		t.Errorf("pass-2 reverse-evaluator LM total = %g; want %g (pass-1 forward total)", gotTotal, wantForwardTotal)
	}
}

// TestPass2ReverseEvaluatorDiffersFromForward guards the regression the
// maintainer flagged: pass-2's LM total must change if it is wired with
// the plain forward evaluator instead of a genuinely reverse-scoring
// one, since LogP(h, w) means something different depending on whether
// h encodes the history to w's left (forward) or the suffix to w's
// right (reverse). A decoder that reused one Evaluator instance for
// both passes could never fail this test, because the two totals would
// always come out identical.
func TestPass2ReverseEvaluatorDiffersFromForward(t *testing.T) {
	tree, model := buildTwoWordTree(t)
	fwd := wordPairLM(t)
	scorer := acoustic.NewScorer(model)
	frames := []feature.Frame{{0}, {0}, {0}, {0}}

	fwdEval := evaluator.NewNGram(fwd, "<unk>")
	p1 := NewPass1(tree, model, fwdEval, scorer, Pass1Config{WordPair: true})
	tr, err := p1.Run(frames)
	if err != nil {
		t.Fatalf("pass1 Run: %v", err)
	}

	runPass2 := func(eval evaluator.Evaluator) *Hypothesis {
		t.Helper()
		p2 := NewPass2(tree, model, eval, scorer, Pass2Config{MaxPops: 100, MaxExpansions: 4, MaxWordSpan: 4, NBest: 4})
		done, err := p2.Run(frames, tr)
		if err != nil {
			t.Fatalf("pass2 Run: %v", err)
		}
		if len(done) == 0 {
			t.Fatal("expected at least one completed hypothesis")
		}
		return done[0]
	}

	withReverse := runPass2(evaluator.NewNGram(lm.NewReversed(fwd), "<unk>"))
	withSharedForward := runPass2(fwdEval)

	if math.Abs(withReverse.G-withSharedForward.G) < floatTolForTest {
		t.Errorf("pass-2 scored the same (G=%g) whether given a reverse evaluator or the plain forward one shared with pass-1; "+
			"these must differ since LogP's history argument means something different in each direction", withReverse.G)
	}
}

const floatTolForTest = 1e-6
