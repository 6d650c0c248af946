package lexicon

import (
	"fmt"
	"sort"

	"github.com/julius-speech/julius-sub004/internal/hmm"
)

// boundaryPhone stands in for "no neighbouring word" at an utterance
// boundary -- the silence phone most dictionaries already bracket
// sentences with, and a safe default for the cross-word context a
// single-phone word's missing side can't otherwise resolve without
// knowing the word that hasn't been decided yet.
const boundaryPhone = "sil"

// BoundaryPhone is boundaryPhone, exported for callers outside this
// package (the decoder) that need the same sentinel for sentence-start
// and sentence-end neighbour context.
const BoundaryPhone = boundaryPhone

// negInf seeds a node's factoring score before any leaf beneath it has
// contributed one, so max-propagation in propagateFactors never mistakes
// "no word seen yet" for a real, possibly negative, log-probability.
const negInf = -1e10

// WordScorer supplies the generic-context LM log-probability for a word,
// the quantity propagateFactors folds up the tree as the non-increasing
// factoring score spec.md's Tree Lexicon requires. Implementations
// typically wrap an evaluator.Evaluator's unigram-context LogP.
type WordScorer interface {
	Score(wordID int) float64
}

// BuildOptions configures BuildTree. Model, when non-nil, triggers
// cross-word triphone variant resolution on head/tail arcs; a grammar
// evaluated at the phone-sequence level without an acoustic model (tests,
// grammar-only tooling) can leave it nil and get monophone-context arcs
// only.
type BuildOptions struct {
	Model *hmm.Model
}

// BuildTree constructs the tree lexicon from a parsed dictionary
// (Entry.Word order fixes word ids 0..len(entries)-1), attaching LM
// factoring scores from scorer and, when opts.Model is set, cross-word
// triphone variants on head and tail arcs.
func BuildTree(entries []Entry, scorer WordScorer, opts BuildOptions) (*Tree, error) {
	t := &Tree{nodes: []node{{Arc: "", Parent: 0, Factor: negInf}}}
	t.words = make([]NodeId, len(entries))

	for wid, e := range entries {
		leaf, err := t.insert(wid, e)
		if err != nil {
			return nil, fmt.Errorf("lexicon: word %q: %w", e.Word, err)
		}
		t.words[wid] = leaf
	}

	t.propagateFactors(scorer)

	if opts.Model != nil {
		initial, final := boundaryPhoneSets(entries)
		t.annotateCrossWord(opts.Model, initial, final)
	}

	return t, nil
}

// insert walks e's phone chain from the root, sharing prefix nodes with
// previously inserted words wherever the triphone-labelled arc matches,
// and always allocating a fresh node for the final phone so the "every
// word corresponds to exactly one leaf" invariant holds even for
// homophones (identical phone sequences get distinct sibling leaves).
func (t *Tree) insert(wid int, e Entry) (NodeId, error) {
	if len(e.Phones) == 0 {
		return 0, fmt.Errorf("empty phone sequence")
	}
	cur := NodeId(0)
	for i := range e.Phones {
		arc := triphoneLabel(e.Phones, i)
		isLast := i == len(e.Phones)-1
		child := NodeId(-1)
		if !isLast {
			for _, c := range t.nodes[cur].Children {
				if t.nodes[c].Arc == arc {
					child = c
					break
				}
			}
		}
		if child == -1 {
			t.nodes = append(t.nodes, node{Arc: arc, Parent: cur, Factor: negInf})
			child = NodeId(len(t.nodes) - 1)
			t.nodes[cur].Children = append(t.nodes[cur].Children, child)
		}
		cur = child
	}
	t.nodes[cur].IsLeaf = true
	t.nodes[cur].WordID = wid
	return cur, nil
}

// triphoneLabel builds the context-dependent arc label for phone index i
// of phones, using the word's own neighbouring phones where both sides
// are known statically and "*" where the neighbour is a yet-undetermined
// cross-word boundary (position 0's left context, the last position's
// right context) -- resolved later by annotateCrossWord.
func triphoneLabel(phones []string, i int) string {
	left := "*"
	if i > 0 {
		left = phones[i-1]
	}
	right := "*"
	if i < len(phones)-1 {
		right = phones[i+1]
	}
	return hmm.Triphone{Left: left, Center: phones[i], Right: right}.String()
}

// propagateFactors computes each node's factoring score bottom-up: nodes
// are always appended after their parent, so a single reverse pass
// guarantees every child is finalized before its parent is visited.
func (t *Tree) propagateFactors(scorer WordScorer) {
	for i := len(t.nodes) - 1; i >= 0; i-- {
		nd := &t.nodes[i]
		if nd.IsLeaf {
			if s := scorer.Score(nd.WordID); s > nd.Factor {
				nd.Factor = s
			}
		}
		for _, c := range nd.Children {
			if t.nodes[c].Factor > nd.Factor {
				nd.Factor = t.nodes[c].Factor
			}
		}
	}
}

// boundaryPhoneSets collects the distinct first and last phones appearing
// across the dictionary, the candidate contexts annotateCrossWord
// enumerates variants over, always including boundaryPhone for the
// utterance-edge case.
func boundaryPhoneSets(entries []Entry) (initial, final []string) {
	iSet := map[string]bool{boundaryPhone: true}
	fSet := map[string]bool{boundaryPhone: true}
	for _, e := range entries {
		if len(e.Phones) == 0 {
			continue
		}
		iSet[e.Phones[0]] = true
		fSet[e.Phones[len(e.Phones)-1]] = true
	}
	initial = setToSortedSlice(iSet)
	final = setToSortedSlice(fSet)
	return initial, final
}

func setToSortedSlice(s map[string]bool) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// annotateCrossWord resolves the concrete triphone variants for every
// head and tail arc. A multi-phone word's head keeps its fixed right
// context and varies only the left (the previous word's last phone); its
// tail keeps its fixed left context and varies only the right. A
// single-phone word's lone node is both head and tail with both contexts
// undetermined; rather than the full left x right cross product, this
// repo resolves each side independently against boundaryPhone standing
// in for the other -- an approximation noted in DESIGN.md, trading exact
// joint context sensitivity for a bounded number of variants per word.
func (t *Tree) annotateCrossWord(model *hmm.Model, initialPhones, finalPhones []string) {
	for i := 1; i < len(t.nodes); i++ {
		nd := &t.nodes[i]
		if nd.Parent == 0 {
			tp := hmm.ParseTriphone(nd.Arc)
			single := nd.IsLeaf && tp.Right == "*"
			right := tp.Right
			if single {
				right = boundaryPhone
			}
			nd.HeadVars = resolveVariants(model, finalPhones, func(ctx string) hmm.Triphone {
				return hmm.Triphone{Left: ctx, Center: tp.Center, Right: right}
			})
			if single {
				nd.TailVars = resolveVariants(model, initialPhones, func(ctx string) hmm.Triphone {
					return hmm.Triphone{Left: boundaryPhone, Center: tp.Center, Right: ctx}
				})
			}
			continue
		}
		if nd.IsLeaf {
			tp := hmm.ParseTriphone(nd.Arc)
			nd.TailVars = resolveVariants(model, initialPhones, func(ctx string) hmm.Triphone {
				return hmm.Triphone{Left: tp.Left, Center: tp.Center, Right: ctx}
			})
		}
	}
}

func resolveVariants(model *hmm.Model, contexts []string, build func(ctx string) hmm.Triphone) []Variant {
	var out []Variant
	for _, ctx := range contexts {
		full := build(ctx).String()
		if _, err := model.Resolve(full); err == nil {
			out = append(out, Variant{Context: ctx, Logical: full})
		}
	}
	return out
}
