package lexicon

import (
	"fmt"

	"github.com/julius-speech/julius-sub004/internal/hmm"
)

// NodeId indexes a node in a Tree's flat node array; the root is always 0.
type NodeId int32

// Variant annotates a head or tail arc with the physical HMM to use when
// the preceding or following word's boundary phone is Context -- the
// cross-word triphone switching spec.md's tree lexicon requires. Context
// is empty for the word-internal (non-cross-word) variant.
type Variant struct {
	Context  string // neighbouring word's boundary phone, "" = default/internal
	Logical  string // logical (possibly pseudo) HMM name to score with
}

// node is a single arc-labelled tree node: Arc is the logical HMM name
// labelling the incoming edge (empty only at the root), Children indexes
// this node's successors, and Factor holds the factoring LM score (the
// max LM probability over every word reachable through this node).
// IsLeaf nodes additionally carry the exact word id and the true LM
// score to apply there.
type node struct {
	Arc      string
	Parent   NodeId
	Children []NodeId
	Factor   float64
	IsLeaf   bool
	WordID   int
	HeadVars []Variant // populated only on the first node of a word's phone chain
	TailVars []Variant // populated only on the leaf (last node) of a word's phone chain
}

// Tree is the built, read-only prefix-shared phonetic tree. Node 0 is the
// (arc-less) root.
type Tree struct {
	nodes []node
	words []NodeId // word id -> leaf NodeId, for reverse lookup
}

// Successor describes one outgoing edge from a query node: the logical
// HMM labelling the arc, the child it leads to, and that child's
// factoring score.
type Successor struct {
	Arc    string
	Child  NodeId
	Factor float64
}

// Successors returns every outgoing edge of n, in no particular order.
func (t *Tree) Successors(n NodeId) []Successor {
	nd := t.nodes[n]
	out := make([]Successor, len(nd.Children))
	for i, c := range nd.Children {
		out[i] = Successor{Arc: t.nodes[c].Arc, Child: c, Factor: t.nodes[c].Factor}
	}
	return out
}

// IsLeaf reports whether n carries a complete word.
func (t *Tree) IsLeaf(n NodeId) bool { return t.nodes[n].IsLeaf }

// WordAtLeaf returns the word id stored at leaf n; ok is false if n is
// not a leaf.
func (t *Tree) WordAtLeaf(n NodeId) (int, bool) {
	nd := t.nodes[n]
	if !nd.IsLeaf {
		return 0, false
	}
	return nd.WordID, true
}

// Factor returns node n's factoring LM score.
func (t *Tree) Factor(n NodeId) float64 { return t.nodes[n].Factor }

// Root returns the tree's root node id.
func (t *Tree) Root() NodeId { return 0 }

// NumNodes returns the number of nodes in the tree, including the root.
func (t *Tree) NumNodes() int { return len(t.nodes) }

// LeafOf returns the leaf NodeId for wordID, as recorded at build time.
func (t *Tree) LeafOf(wordID int) (NodeId, error) {
	if wordID < 0 || wordID >= len(t.words) {
		return 0, fmt.Errorf("lexicon: no such word id %d", wordID)
	}
	return t.words[wordID], nil
}

// HeadVariants returns the cross-word triphone variants registered for
// the first arc of wordID's phone chain.
func (t *Tree) HeadVariants(wordID int) ([]Variant, error) {
	leaf, err := t.LeafOf(wordID)
	if err != nil {
		return nil, err
	}
	head := t.firstNodeOfWord(leaf)
	return t.nodes[head].HeadVars, nil
}

// TailVariants returns the cross-word triphone variants registered at
// wordID's leaf (last phone).
func (t *Tree) TailVariants(wordID int) ([]Variant, error) {
	leaf, err := t.LeafOf(wordID)
	if err != nil {
		return nil, err
	}
	return t.nodes[leaf].TailVars, nil
}

// HeadVariantsAt returns the cross-word triphone variants registered on
// node n, populated only when n is the first node of one or more words'
// phone chains (n.Parent == Root()).
func (t *Tree) HeadVariantsAt(n NodeId) []Variant { return t.nodes[n].HeadVars }

// TailVariantsAt returns the cross-word triphone variants registered on
// leaf node n.
func (t *Tree) TailVariantsAt(n NodeId) []Variant { return t.nodes[n].TailVars }

// LastPhone returns the center phone of wordID's final arc, the boundary
// phone a following word's head-variant resolution keys on.
func (t *Tree) LastPhone(wordID int) (string, error) {
	leaf, err := t.LeafOf(wordID)
	if err != nil {
		return "", err
	}
	return hmm.ParseTriphone(t.nodes[leaf].Arc).Center, nil
}

// PhoneChain returns the sequence of arc labels (logical HMM names) from
// the tree root down to wordID's leaf, in traversal order. It ignores
// cross-word head/tail variants -- a caller needing exact cross-word
// context (pass-1's search) resolves those separately via
// HeadVariantsAt/TailVariantsAt; this is the plain chain a short
// Viterbi re-alignment walks to re-score a candidate word in isolation.
func (t *Tree) PhoneChain(wordID int) ([]string, error) {
	leaf, err := t.LeafOf(wordID)
	if err != nil {
		return nil, err
	}
	var rev []string
	for n := leaf; n != 0; n = t.nodes[n].Parent {
		rev = append(rev, t.nodes[n].Arc)
	}
	chain := make([]string, len(rev))
	for i, a := range rev {
		chain[len(rev)-1-i] = a
	}
	return chain, nil
}

func (t *Tree) firstNodeOfWord(leaf NodeId) NodeId {
	n := leaf
	for t.nodes[n].Parent != 0 {
		n = t.nodes[n].Parent
	}
	return n
}
