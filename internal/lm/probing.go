package lm

import "github.com/kho/word"

// xqwEntry is one open-addressed bucket: a word key paired with its
// destination state and transition weight. A bucket with Key == word.NIL
// is either empty or (for the reserved NIL bucket of a state) holds that
// state's back-off transition.
type xqwEntry struct {
	Key   word.Id
	Value StateWeight
}

type xqwBuckets []xqwEntry

func newXqwBuckets(n int) xqwBuckets {
	b := make(xqwBuckets, n)
	for i := range b {
		b[i].Key = word.NIL
	}
	return b
}

func (b xqwBuckets) size() (n int) {
	for _, e := range b {
		if e.Key != word.NIL {
			n++
		}
	}
	return
}

// FindEntry does linear probing from the hash of k, stopping at the first
// matching key or the first empty bucket (which is itself the insertion
// point for k, or, for k == word.NIL, is never reached since at least one
// slot always holds the back-off entry in fully-built models).
func (b xqwBuckets) FindEntry(k word.Id) *xqwEntry {
	i := b.start(k)
	for {
		e := &b[i]
		if e.Key == k || e.Key == word.NIL {
			return e
		}
		i++
		if i == len(b) {
			i = 0
		}
	}
}

func (b xqwBuckets) start(k word.Id) int {
	return int(wordIdHash(k) % uint(len(b)))
}

func (b xqwBuckets) nextAvailable(k word.Id) *xqwEntry {
	i := b.start(k)
	for {
		e := &b[i]
		if e.Key == word.NIL {
			return e
		}
		i++
		if i == len(b) {
			i = 0
		}
	}
}

func (b xqwBuckets) Range() chan xqwEntry {
	ch := make(chan xqwEntry)
	go func() {
		for _, e := range b {
			if e.Key != word.NIL {
				ch <- e
			}
		}
		close(ch)
	}()
	return ch
}

// xqwMap is a growable open-addressing hash table from word.Id to
// StateWeight, used by the Builder while the final number of transitions
// per state is not yet known.
type xqwMap struct {
	buckets    xqwBuckets
	numEntries int
	threshold  int
}

func newXqwMap(initBuckets int, maxLoad float64) *xqwMap {
	if initBuckets < 2 {
		initBuckets = 4
	}
	if maxLoad <= 0 || maxLoad >= 1 {
		maxLoad = 0.8
	}
	threshold := int(float64(initBuckets) * maxLoad)
	if threshold < 1 {
		threshold = 1
	}
	if threshold > initBuckets-1 {
		threshold = initBuckets - 1
	}
	return &xqwMap{buckets: newXqwBuckets(initBuckets), threshold: threshold}
}

func (m *xqwMap) Size() int { return m.numEntries }

func (m *xqwMap) Find(k word.Id) *StateWeight {
	e := m.buckets.FindEntry(k)
	if e.Key == word.NIL {
		return nil
	}
	return &e.Value
}

func (m *xqwMap) FindOrInsert(k word.Id) *StateWeight {
	e := m.buckets.FindEntry(k)
	if e.Key != word.NIL {
		return &e.Value
	}
	if m.numEntries >= m.threshold {
		m.resize(len(m.buckets) * 2)
		e = m.buckets.nextAvailable(k)
	}
	*e = xqwEntry{Key: k, Value: StateWeight{State: STATE_NIL}}
	m.numEntries++
	return &e.Value
}

func (m *xqwMap) resize(numBuckets int) {
	if numBuckets < m.numEntries+1 {
		numBuckets = m.numEntries + 1
	}
	old := m.buckets
	m.buckets = newXqwBuckets(numBuckets)
	for _, e := range old {
		if e.Key != word.NIL {
			*m.buckets.nextAvailable(e.Key) = e
		}
	}
	m.threshold = m.threshold * numBuckets / len(old)
	if m.threshold < m.numEntries {
		m.threshold = m.numEntries
	}
}

func (m *xqwMap) Range() chan xqwEntry { return m.buckets.Range() }

// wordIdHash is fast-hash (https://code.google.com/p/fast-hash) restricted
// to the low 32 bits of a word.Id.
func wordIdHash(k word.Id) uint {
	h := uint64(k)
	h ^= h >> 23
	h *= 0x2127599bf4325c37
	h ^= h >> 47
	return uint(h)
}
