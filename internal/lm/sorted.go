package lm

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"unsafe"

	"github.com/kho/word"
)

// Sorted is a finite-state N-gram model whose per-state transitions are
// stored as a single array sorted by word id, searched with binary search.
// Slower to build than Hashed but more compact and cache-friendly for
// read-mostly serving. The engine loads Hashed models only; pass-2 does
// not select Sorted.
type Sorted struct {
	vocab        *word.Vocab
	bos, eos     string
	bosId, eosId word.Id
	// transitions[p] is sorted by Word; the last element always carries
	// the back-off transition (Word == word.NIL).
	transitions [][]WordStateWeight
}

func (m *Sorted) Start() StateId { return _STATE_START }

func (m *Sorted) NextI(p StateId, x word.Id) (q StateId, w Weight) {
	next := m.findNext(p, x)
	for next.Word == word.NIL && p != _STATE_EMPTY {
		p = next.State
		w += next.Weight
		next = m.findNext(p, x)
	}
	if next.Word != word.NIL {
		q = next.State
		w += next.Weight
	} else {
		q = _STATE_EMPTY
		w = WEIGHT_LOG0
	}
	return
}

func (m *Sorted) findNext(p StateId, x word.Id) *WordStateWeight {
	next := m.transitions[p]
	l, h := 0, len(next)-1 // last slot is the back-off sentinel, excluded from the search
	for l < h {
		mid := l + (h-l)>>1
		switch {
		case next[mid].Word < x:
			l = mid + 1
		case next[mid].Word > x:
			h = mid
		default:
			return &next[mid]
		}
	}
	if l < len(next)-1 && next[l].Word == x {
		return &next[l]
	}
	return &next[len(next)-1]
}

func (m *Sorted) NextS(p StateId, s string) (q StateId, w Weight) {
	return m.NextI(p, m.vocab.IdOf(s))
}

func (m *Sorted) Final(p StateId) Weight {
	_, w := m.NextI(p, m.eosId)
	return w
}

func (m *Sorted) BackOff(p StateId) (StateId, Weight) {
	if p == _STATE_EMPTY {
		return STATE_NIL, 0
	}
	last := m.transitions[p][len(m.transitions[p])-1]
	return last.State, last.Weight
}

func (m *Sorted) Vocab() (*word.Vocab, string, string, word.Id, word.Id) {
	return m.vocab, m.bos, m.eos, m.bosId, m.eosId
}

func (m *Sorted) NumStates() int { return len(m.transitions) }

func (m *Sorted) Transitions(p StateId) chan WordStateWeight {
	ch := make(chan WordStateWeight)
	go func() {
		next := m.transitions[p]
		for _, e := range next[:len(next)-1] {
			ch <- e
		}
		close(ch)
	}()
	return ch
}

type byWord []WordStateWeight

func (s byWord) Len() int           { return len(s) }
func (s byWord) Less(i, j int) bool { return s[i].Word < s[j].Word }
func (s byWord) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

func (m *Sorted) header() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(gobEnvelope{m.vocab, m.bos, m.eos}); err != nil {
		return nil, err
	}
	counts := make([]int, len(m.transitions))
	for i, t := range m.transitions {
		counts[i] = len(t) - 1
	}
	if err := enc.Encode(counts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *Sorted) parseHeader(header []byte) ([]int, error) {
	dec := gob.NewDecoder(bytes.NewReader(header))
	var env gobEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, err
	}
	m.vocab, m.bos, m.eos = env.Vocab, env.Bos, env.Eos
	if err := m.resolveBoundaryIds(); err != nil {
		return nil, err
	}
	var counts []int
	if err := dec.Decode(&counts); err != nil {
		return nil, err
	}
	return counts, nil
}

func (m *Sorted) resolveBoundaryIds() error {
	if m.bosId = m.vocab.IdOf(m.bos); m.bosId == word.NIL {
		return fmt.Errorf("lm: %q not in vocabulary", m.bos)
	}
	if m.eosId = m.vocab.IdOf(m.eos); m.eosId == word.NIL {
		return fmt.Errorf("lm: %q not in vocabulary", m.eos)
	}
	return nil
}

func (m *Sorted) WriteBinary(path string) (err error) {
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	defer w.Close()
	if _, err = w.Write([]byte(magicSorted)); err != nil {
		return err
	}
	header, err := m.header()
	if err != nil {
		return err
	}
	lenBytes := make([]byte, binary.MaxVarintLen64)
	binary.PutUvarint(lenBytes, uint64(len(header)))
	if _, err = w.Write(lenBytes); err != nil {
		return err
	}
	if _, err = w.Write(header); err != nil {
		return err
	}
	written, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	align := unsafe.Alignof(WordStateWeight{})
	if _, err = w.Write(make([]byte, (align-uintptr(written)%align)%align)); err != nil {
		return err
	}
	size := unsafe.Sizeof(WordStateWeight{})
	for _, next := range m.transitions {
		if len(next) == 0 {
			continue
		}
		hdr := (*reflect.SliceHeader)(unsafe.Pointer(&next))
		var raw []byte
		rawHdr := (*reflect.SliceHeader)(unsafe.Pointer(&raw))
		rawHdr.Data = hdr.Data
		rawHdr.Len = int(uintptr(hdr.Len) * size)
		rawHdr.Cap = rawHdr.Len
		if _, err = w.Write(raw); err != nil {
			return err
		}
	}
	return nil
}

func (m *Sorted) unsafeParseBinary(raw []byte) error {
	if len(raw) < len(magicSorted) || string(raw[:len(magicSorted)]) != magicSorted {
		return errors.New("lm: not a packed sorted N-gram binary")
	}
	read := uintptr(len(magicSorted))
	headerLen, n := binary.Uvarint(raw[read : read+binary.MaxVarintLen64])
	if n <= 0 {
		return errors.New("lm: error reading header size")
	}
	read += binary.MaxVarintLen64
	counts, err := m.parseHeader(raw[read : read+uintptr(headerLen)])
	if err != nil {
		return err
	}
	read += uintptr(headerLen)
	align, size := unsafe.Alignof(WordStateWeight{}), unsafe.Sizeof(WordStateWeight{})
	read += (align - read%align) % align
	if (uintptr(len(raw))-read)%size != 0 {
		return fmt.Errorf("lm: trailing bytes are not a multiple of %d", size)
	}
	entryBytes := raw[read:]
	var entries []WordStateWeight
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&entryBytes))
	dstHdr := (*reflect.SliceHeader)(unsafe.Pointer(&entries))
	dstHdr.Data = srcHdr.Data
	dstHdr.Len = srcHdr.Len / int(size)
	dstHdr.Cap = dstHdr.Len
	m.transitions = make([][]WordStateWeight, len(counts))
	low := 0
	for i, n := range counts {
		m.transitions[i] = entries[low : low+n+1]
		low += n + 1
	}
	return nil
}

// FromSortedBinary mmaps path and returns a Sorted model backed directly by
// the mapped pages.
func FromSortedBinary(path string) (*Sorted, io.Closer, error) {
	mf, err := openMappedFile(path)
	if err != nil {
		return nil, nil, err
	}
	var m Sorted
	if err := m.unsafeParseBinary(mf.data); err != nil {
		mf.Close()
		return nil, nil, err
	}
	return &m, mf, nil
}
