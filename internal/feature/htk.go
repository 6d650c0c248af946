package feature

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/kho/easy"
)

const headerBytes = 12 // samplenum(4) + wshift(4) + sampsize(2) + samptype(2)

// readHeader decodes the fixed HTK parameter header. All HTK files are
// big-endian regardless of host byte order, per the original format's
// convention; NewReader and ReadAll both go through this so the byte order
// is never revisited elsewhere in this package.
func readHeader(r io.Reader) (Header, error) {
	var raw [headerBytes]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return Header{}, fmt.Errorf("feature: reading header: %w", err)
	}
	h := Header{
		SampleCount: binary.BigEndian.Uint32(raw[0:4]),
		FrameShift:  binary.BigEndian.Uint32(raw[4:8]),
		SampSize:    binary.BigEndian.Uint16(raw[8:10]),
		SampType:    SampType(binary.BigEndian.Uint16(raw[10:12])),
	}
	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

func writeHeader(w io.Writer, h Header) error {
	var raw [headerBytes]byte
	binary.BigEndian.PutUint32(raw[0:4], h.SampleCount)
	binary.BigEndian.PutUint32(raw[4:8], h.FrameShift)
	binary.BigEndian.PutUint16(raw[8:10], h.SampSize)
	binary.BigEndian.PutUint16(raw[10:12], uint16(h.SampType))
	_, err := w.Write(raw[:])
	return err
}

// readFrame decodes one frame using scratch as the read buffer, growing
// and returning it so the caller can reuse it on the next call instead of
// allocating a new byte buffer per frame.
func readFrame(r io.Reader, dim int, scratch []byte) (Frame, []byte, error) {
	need := dim * 4
	if cap(scratch) < need {
		scratch = make([]byte, need)
	}
	buf := scratch[:need]
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, scratch, err
	}
	f := make(Frame, dim)
	for i := 0; i < dim; i++ {
		bits := binary.BigEndian.Uint32(buf[i*4 : i*4+4])
		f[i] = math.Float32frombits(bits)
	}
	return f, scratch, nil
}

func writeFrame(w io.Writer, f Frame) error {
	buf := make([]byte, len(f)*4)
	for i, v := range f {
		binary.BigEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	_, err := w.Write(buf)
	return err
}

// Reader is a pull iterator over the frames of one HTK parameter file:
// NextFrame returns one frame per call rather than requiring the whole
// utterance up front. ReadAll is built on it; the decoder itself takes
// frames through engine.FrameSource, not through a Reader.
type Reader struct {
	r       io.Reader
	Header  Header
	dim     int
	read    uint32
	scratch []byte
	err     error
}

// NewReader reads and validates the header of r, then returns a Reader
// ready to stream the remaining frames.
func NewReader(r io.Reader) (*Reader, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	return &Reader{r: r, Header: h, dim: h.Dim()}, nil
}

// NextFrame returns the next frame, or ok=false with a nil error once the
// header's declared sample count is exhausted. A non-nil error is sticky:
// once NextFrame fails it keeps failing.
func (r *Reader) NextFrame() (Frame, bool, error) {
	if r.err != nil {
		return nil, false, r.err
	}
	if r.read >= r.Header.SampleCount {
		return nil, false, nil
	}
	f, scratch, err := readFrame(r.r, r.dim, r.scratch)
	r.scratch = scratch
	if err != nil {
		r.err = fmt.Errorf("feature: frame %d: %w", r.read, err)
		return nil, false, r.err
	}
	r.read++
	return f, true, nil
}

// Dim returns the vector dimension of every frame this Reader yields.
func (r *Reader) Dim() int { return r.dim }

// Utterance is a fully-read parameter file, held in memory for pass-2's
// need to walk the trellis backward from an arbitrary boundary frame.
type Utterance struct {
	Header Header
	Frames []Frame
}

// At returns frame t, or ok=false if t is beyond the extracted input,
// mirroring the acoustic scorer's LOG_ZERO-on-out-of-range contract one
// layer down: callers translate a false ok into LOG_ZERO rather than
// indexing out of bounds.
func (u *Utterance) At(t int) (Frame, bool) {
	if t < 0 || t >= len(u.Frames) {
		return nil, false
	}
	return u.Frames[t], true
}

func (u *Utterance) Len() int { return len(u.Frames) }

// ReadAll reads every declared frame of r into memory.
func ReadAll(r io.Reader) (*Utterance, error) {
	rd, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	frames := make([]Frame, 0, rd.Header.SampleCount)
	for {
		f, ok, err := rd.NextFrame()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		frames = append(frames, f)
	}
	return &Utterance{Header: rd.Header, Frames: frames}, nil
}

// ReadAllFile opens path (transparently decompressing .gz as needed) and
// reads the whole parameter file into memory.
func ReadAllFile(path string) (*Utterance, error) {
	in, err := easy.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return ReadAll(in)
}

// OpenStream opens path for streaming NextFrame reads; the caller owns the
// returned Reader's file handle and must close it when done.
func OpenStream(path string) (*Reader, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	rd, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return rd, f, nil
}

// WriteAll writes header h followed by frames to w, the inverse of
// ReadAll; used by tests.
func WriteAll(w io.Writer, h Header, frames []Frame) error {
	h.SampleCount = uint32(len(frames))
	if err := writeHeader(w, h); err != nil {
		return err
	}
	for _, f := range frames {
		if err := writeFrame(w, f); err != nil {
			return err
		}
	}
	return nil
}
