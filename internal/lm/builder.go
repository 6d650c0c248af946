package lm

import (
	"sort"

	"github.com/golang/glog"
	"github.com/kho/word"
)

// Builder accumulates N-gram entries (as read from an ARPA file, see
// arpa.go) into an explicit context trie, then freezes the result into
// either a Hashed or a Sorted model. This is the "two-phase builder"
// pattern from the design notes: phase 1 (AddNgram calls) threads entries
// into name-indexed maps; phase 2 (Dump*) resolves back-off references and
// compacts everything into flat arrays.
type Builder struct {
	vocab        *word.Vocab
	bos, eos     string
	bosId, eosId word.Id

	// backoff[p] is the back-off state/weight of state p, or STATE_NIL
	// while unresolved (see link/linkTransition).
	backoff []StateWeight
	// transitions[p] is nil until p's first lexical transition is added;
	// a nil entry after pruning means p cannot be reached by any sentence
	// and is folded away in Dump.
	transitions []*xqwMap
}

// NewBuilder starts a Builder. vocab may be nil, in which case a fresh
// vocabulary is created with <unk> as the implicit OOV bucket. bos/eos
// name the sentence boundary symbols (added to vocab if absent).
func NewBuilder(vocab *word.Vocab, bos, eos string) *Builder {
	var b Builder
	if vocab == nil {
		vocab = word.NewVocab([]string{"<unk>"})
	}
	b.vocab = vocab
	b.bos, b.eos = bos, eos
	b.bosId = vocab.IdOrAdd(bos)
	b.eosId = vocab.IdOrAdd(eos)
	// _STATE_EMPTY and _STATE_START.
	b.newState()
	b.newState()
	b.setTransition(_STATE_EMPTY, b.bosId, _STATE_START, 0)
	return &b
}

// AddNgram adds one N-gram entry: P(word | context) = weight, with
// back-off weight backOff applied when a higher-order match is sought
// through this context and fails. context must be supplied in the same
// order used by the ARPA file (oldest word first).
func (b *Builder) AddNgram(context []string, surface string, weight, backOff Weight) {
	if len(context) > 0 && surface == b.bos && weight > -10 {
		glog.Warningf("non-unigram ending in %q has weight %g (expected log(0))", surface, weight)
	}
	if surface == b.eos && backOff != 0 {
		glog.Warningf("non-zero back-off %g for N-gram ending in %q", backOff, surface)
	}

	p := b.findState(_STATE_EMPTY, context)
	x := b.vocab.IdOrAdd(surface)
	q := STATE_NIL
	if x != b.eosId {
		q = b.findNextState(p, x)
		b.backoff[q].Weight = backOff
	}
	b.setTransition(p, x, q, weight)
}

func (b *Builder) newState() StateId {
	s := StateId(len(b.backoff))
	b.backoff = append(b.backoff, StateWeight{State: STATE_NIL})
	b.transitions = append(b.transitions, nil)
	return s
}

func (b *Builder) setTransition(p StateId, x word.Id, q StateId, w Weight) {
	if b.transitions[p] == nil {
		b.transitions[p] = newXqwMap(0, 0)
	}
	*b.transitions[p].FindOrInsert(x) = StateWeight{q, w}
}

func (b *Builder) findNextState(p StateId, x word.Id) StateId {
	if b.transitions[p] == nil {
		b.transitions[p] = newXqwMap(0, 0)
	}
	sw := b.transitions[p].FindOrInsert(x)
	if sw.State == STATE_NIL {
		sw.State = b.newState()
	}
	return sw.State
}

func (b *Builder) findState(p StateId, ws []string) StateId {
	for _, w := range ws {
		p = b.findNextState(p, b.vocab.IdOrAdd(w))
	}
	return p
}

// DumpHashed freezes the builder into a Hashed model. The builder must not be
// used afterwards.
func (b *Builder) DumpHashed(scale float64) *Hashed {
	b.link()
	oldToNew, numStates := b.prune()
	return b.moveHashed(oldToNew, numStates, scale)
}

// DumpSorted freezes the builder into a Sorted model.
func (b *Builder) DumpSorted() *Sorted {
	b.link()
	oldToNew, numStates := b.prune()
	return b.moveSorted(oldToNew, numStates)
}

// link resolves every state's back-off pointer to the nearest ancestor
// that has at least one lexical transition, per the design note that
// pass-2 re-scoring must never walk through a "dead" back-off state.
func (b *Builder) link() {
	if b.transitions[_STATE_EMPTY] != nil {
		for e := range b.transitions[_STATE_EMPTY].Range() {
			if e.Value.State != STATE_NIL {
				b.backoff[e.Value.State].State = _STATE_EMPTY
			}
		}
	}
	for i := int(_STATE_START) + 1; i < len(b.transitions); i++ {
		p := StateId(i)
		if b.transitions[p] == nil {
			continue
		}
		for e := range b.transitions[p].Range() {
			if e.Value.State != STATE_NIL {
				b.linkTransition(p, e.Key, e.Value.State)
			}
		}
	}
}

func (b *Builder) linkTransition(p StateId, x word.Id, q StateId) (StateId, Weight) {
	qBack := &b.backoff[q]
	if qBack.State == STATE_NIL {
		pBack := b.backoff[p].State
		sw := b.find(pBack, x)
		for sw == nil && pBack != _STATE_EMPTY {
			pBack = b.backoff[pBack].State
			sw = b.find(pBack, x)
		}
		if sw != nil {
			qBackState := sw.State
			grandBack, w := b.linkTransition(pBack, x, qBackState)
			if b.transitions[qBackState] == nil || b.transitions[qBackState].Size() == 0 {
				qBack.State = grandBack
				qBack.Weight += w
			} else {
				qBack.State = qBackState
			}
		} else {
			qBack.State = _STATE_EMPTY
		}
	}
	return qBack.State, qBack.Weight
}

func (b *Builder) find(p StateId, x word.Id) *StateWeight {
	if b.transitions[p] == nil {
		return nil
	}
	return b.transitions[p].Find(x)
}

// prune removes states that end up with no lexical transitions (possible
// when an N-gram is declared but pruned by SRILM-style back-off). Returns
// the old->new state renumbering and the post-prune state count.
func (b *Builder) prune() (oldToNew []StateId, numStates int) {
	if glog.V(1) {
		glog.Infof("lm builder: %d states before pruning", len(b.backoff))
	}
	oldToNew = make([]StateId, len(b.backoff))
	oldToNew[_STATE_EMPTY] = _STATE_EMPTY
	oldToNew[_STATE_START] = _STATE_START
	next := StateId(_STATE_START + 1)
	for i := int(_STATE_START) + 1; i < len(b.transitions); i++ {
		if b.transitions[i] != nil {
			oldToNew[i] = next
			next++
		} else {
			oldToNew[i] = STATE_NIL
		}
	}
	numStates = int(next)
	if glog.V(1) {
		glog.Infof("lm builder: %d states after pruning", numStates)
	}
	return
}

func (b *Builder) moveHashed(oldToNew []StateId, numStates int, scale float64) *Hashed {
	if scale <= 1 {
		scale = 1.5
	}
	m := &Hashed{vocab: b.vocab, bos: b.bos, eos: b.eos, bosId: b.bosId, eosId: b.eosId}
	m.transitions = make([]xqwBuckets, numStates)
	for o, n := range oldToNew {
		if n == STATE_NIL {
			continue
		}
		src := b.transitions[o]
		if src == nil {
			src = newXqwMap(0, 0)
		}
		src.resize(int(float64(src.Size())*scale) + 1)
		backoff := b.backoff[o]
		if backoff.State != STATE_NIL {
			backoff.State = oldToNew[backoff.State]
		}
		for i, e := range src.buckets {
			if e.Key != word.NIL {
				e.Value = b.resolveDestination(oldToNew, e.Value)
			} else {
				e.Value = backoff
			}
			src.buckets[i] = e
		}
		m.transitions[n] = src.buckets
	}
	return m
}

func (b *Builder) moveSorted(oldToNew []StateId, numStates int) *Sorted {
	m := &Sorted{vocab: b.vocab, bos: b.bos, eos: b.eos, bosId: b.bosId, eosId: b.eosId}
	m.transitions = make([][]WordStateWeight, numStates)
	for o, n := range oldToNew {
		if n == STATE_NIL {
			continue
		}
		var next []WordStateWeight
		if b.transitions[o] != nil {
			next = make([]WordStateWeight, 0, b.transitions[o].Size()+1)
			for e := range b.transitions[o].Range() {
				sw := b.resolveDestination(oldToNew, e.Value)
				next = append(next, WordStateWeight{e.Key, sw.State, sw.Weight})
			}
		}
		backoff := b.backoff[o]
		if backoff.State != STATE_NIL {
			backoff.State = oldToNew[backoff.State]
		}
		next = append(next, WordStateWeight{word.NIL, backoff.State, backoff.Weight})
		sort.Sort(byWord(next))
		m.transitions[n] = next
	}
	return m
}

func (b *Builder) resolveDestination(oldToNew []StateId, sw StateWeight) StateWeight {
	if sw.State == STATE_NIL {
		return sw
	}
	q := oldToNew[sw.State]
	if q == STATE_NIL {
		bo := b.backoff[sw.State]
		q = oldToNew[bo.State]
		sw.Weight += bo.Weight
	}
	return StateWeight{q, sw.Weight}
}
