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
	"syscall"
	"unsafe"

	"github.com/kho/word"
)

// Hashed is a finite-state N-gram model whose per-state transition buckets
// are open-addressed hash tables. Construct via Builder.DumpHashed or load
// from a binary dump with FromHashedBinary.
type Hashed struct {
	vocab        *word.Vocab
	bos, eos     string
	bosId, eosId word.Id
	transitions  []xqwBuckets
}

func (m *Hashed) Start() StateId { return _STATE_START }

func (m *Hashed) NextI(p StateId, i word.Id) (q StateId, w Weight) {
	next := m.transitions[p].FindEntry(i)
	for next.Key == word.NIL && p != _STATE_EMPTY {
		p = next.Value.State
		w += next.Value.Weight
		next = m.transitions[p].FindEntry(i)
	}
	if next.Key != word.NIL {
		q = next.Value.State
		w += next.Value.Weight
	} else {
		q = _STATE_EMPTY
		w = WEIGHT_LOG0
	}
	return
}

func (m *Hashed) NextS(p StateId, s string) (q StateId, w Weight) {
	return m.NextI(p, m.vocab.IdOf(s))
}

func (m *Hashed) Final(p StateId) Weight {
	_, w := m.NextI(p, m.eosId)
	return w
}

func (m *Hashed) BackOff(p StateId) (StateId, Weight) {
	if p == _STATE_EMPTY {
		return STATE_NIL, 0
	}
	bo := m.transitions[p].FindEntry(word.NIL).Value
	return bo.State, bo.Weight
}

func (m *Hashed) Vocab() (*word.Vocab, string, string, word.Id, word.Id) {
	return m.vocab, m.bos, m.eos, m.bosId, m.eosId
}

func (m *Hashed) NumStates() int { return len(m.transitions) }

func (m *Hashed) Transitions(p StateId) chan WordStateWeight {
	ch := make(chan WordStateWeight)
	go func() {
		for e := range m.transitions[p].Range() {
			if e.Key != word.NIL {
				ch <- WordStateWeight{e.Key, e.Value.State, e.Value.Weight}
			}
		}
		close(ch)
	}()
	return ch
}

// gobEnvelope is the subset of Hashed serialized with gob; the bulk
// transition data is written separately as raw, alignment-padded arrays
// (see WriteBinary) so that FromHashedBinary can mmap it without copying.
type gobEnvelope struct {
	Vocab    *word.Vocab
	Bos, Eos string
}

func (m *Hashed) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(gobEnvelope{m.vocab, m.bos, m.eos}); err != nil {
		return nil, err
	}
	if err := enc.Encode(m.transitions); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *Hashed) UnmarshalBinary(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var env gobEnvelope
	if err := dec.Decode(&env); err != nil {
		return err
	}
	if err := dec.Decode(&m.transitions); err != nil {
		return err
	}
	m.vocab, m.bos, m.eos = env.Vocab, env.Bos, env.Eos
	return m.resolveBoundaryIds()
}

func (m *Hashed) resolveBoundaryIds() error {
	if m.bosId = m.vocab.IdOf(m.bos); m.bosId == word.NIL {
		return fmt.Errorf("lm: %q not in vocabulary", m.bos)
	}
	if m.eosId = m.vocab.IdOf(m.eos); m.eosId == word.NIL {
		return fmt.Errorf("lm: %q not in vocabulary", m.eos)
	}
	return nil
}

func (m *Hashed) header() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(gobEnvelope{m.vocab, m.bos, m.eos}); err != nil {
		return nil, err
	}
	numBuckets := make([]int, len(m.transitions))
	for i, t := range m.transitions {
		numBuckets[i] = len(t)
	}
	if err := enc.Encode(numBuckets); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *Hashed) parseHeader(header []byte) ([]int, error) {
	dec := gob.NewDecoder(bytes.NewReader(header))
	var env gobEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, err
	}
	m.vocab, m.bos, m.eos = env.Vocab, env.Bos, env.Eos
	if err := m.resolveBoundaryIds(); err != nil {
		return nil, err
	}
	var numBuckets []int
	if err := dec.Decode(&numBuckets); err != nil {
		return nil, err
	}
	return numBuckets, nil
}

// WriteBinary writes m to path in the packed mmap-friendly layout that
// FromHashedBinary reads back without per-entry copies.
func (m *Hashed) WriteBinary(path string) (err error) {
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	defer w.Close()
	if _, err = w.Write([]byte(magicHashed)); err != nil {
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
	align := unsafe.Alignof(xqwEntry{})
	if _, err = w.Write(make([]byte, (align-uintptr(written)%align)%align)); err != nil {
		return err
	}
	size := unsafe.Sizeof(xqwEntry{})
	for _, buckets := range m.transitions {
		if len(buckets) == 0 {
			continue
		}
		hdr := (*reflect.SliceHeader)(unsafe.Pointer(&buckets))
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

func (m *Hashed) unsafeParseBinary(raw []byte) error {
	if len(raw) < len(magicHashed) || string(raw[:len(magicHashed)]) != magicHashed {
		return errors.New("lm: not a packed N-gram binary")
	}
	read := uintptr(len(magicHashed))
	headerLen, n := binary.Uvarint(raw[read : read+binary.MaxVarintLen64])
	if n <= 0 {
		return errors.New("lm: error reading header size")
	}
	read += binary.MaxVarintLen64
	numBuckets, err := m.parseHeader(raw[read : read+uintptr(headerLen)])
	if err != nil {
		return err
	}
	read += uintptr(headerLen)
	align, size := unsafe.Alignof(xqwEntry{}), unsafe.Sizeof(xqwEntry{})
	read += (align - read%align) % align
	if (uintptr(len(raw))-read)%size != 0 {
		return fmt.Errorf("lm: trailing bytes are not a multiple of %d", size)
	}
	entryBytes := raw[read:]
	var entries []xqwEntry
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&entryBytes))
	dstHdr := (*reflect.SliceHeader)(unsafe.Pointer(&entries))
	dstHdr.Data = srcHdr.Data
	dstHdr.Len = srcHdr.Len / int(size)
	dstHdr.Cap = dstHdr.Len
	m.transitions = make([]xqwBuckets, len(numBuckets))
	low := 0
	for i, n := range numBuckets {
		if n > 0 {
			m.transitions[i] = xqwBuckets(entries[low : low+n])
		}
		low += n
	}
	return nil
}

// mappedFile is a read-only mmap of a model file, kept open for the
// lifetime of the returned model.
type mappedFile struct {
	file *os.File
	data []byte
}

func openMappedFile(path string) (*mappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	data, err := syscall.Mmap(int(f.Fd()), 0, int(stat.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &mappedFile{f, data}, nil
}

func (m *mappedFile) Close() error {
	err1 := syscall.Munmap(m.data)
	err2 := m.file.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// FromHashedBinary mmaps path and returns a Hashed model backed directly by
// the mapped pages; the returned closer must be closed once the model is
// no longer needed (it is released as part of Engine.CloseStream/Load
// teardown).
func FromHashedBinary(path string) (*Hashed, io.Closer, error) {
	mf, err := openMappedFile(path)
	if err != nil {
		return nil, nil, err
	}
	var m Hashed
	if err := m.unsafeParseBinary(mf.data); err != nil {
		mf.Close()
		return nil, nil, err
	}
	return &m, mf, nil
}
