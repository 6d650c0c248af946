package feature

import (
	"bytes"
	"testing"
)

func sampleFrames() []Frame {
	return []Frame{
		{1, 2, 3},
		{4, 5, 6},
		{7, 8, 9},
	}
}

func TestWriteAllReadAllRoundTrip(t *testing.T) {
	h := Header{FrameShift: 100000, SampSize: 12, SampType: SampType(MFCC) | SampType(QualEnergy)}
	frames := sampleFrames()

	var buf bytes.Buffer
	if err := WriteAll(&buf, h, frames); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	u, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if u.Header.SampleCount != uint32(len(frames)) {
		t.Errorf("SampleCount = %d; want %d", u.Header.SampleCount, len(frames))
	}
	if u.Len() != len(frames) {
		t.Fatalf("Len() = %d; want %d", u.Len(), len(frames))
	}
	for i, f := range frames {
		got, ok := u.At(i)
		if !ok {
			t.Fatalf("At(%d): not ok", i)
		}
		for j := range f {
			if got[j] != f[j] {
				t.Errorf("frame %d[%d] = %v; want %v", i, j, got[j], f[j])
			}
		}
	}
	if _, ok := u.At(len(frames)); ok {
		t.Error("At(len(frames)) should report ok=false")
	}
	if _, ok := u.At(-1); ok {
		t.Error("At(-1) should report ok=false")
	}
}

func TestReaderStreaming(t *testing.T) {
	h := Header{SampSize: 8, SampType: SampType(MFCC)}
	frames := []Frame{{1, 2}, {3, 4}}

	var buf bytes.Buffer
	if err := WriteAll(&buf, h, frames); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Dim() != 2 {
		t.Fatalf("Dim() = %d; want 2", r.Dim())
	}
	var got []Frame
	for {
		f, ok, err := r.NextFrame()
		if err != nil {
			t.Fatalf("NextFrame: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, f)
	}
	if len(got) != len(frames) {
		t.Fatalf("read %d frames; want %d", len(got), len(frames))
	}
}

func TestHeaderValidateRejectsOddSampSize(t *testing.T) {
	h := Header{SampSize: 5, SampType: SampType(MFCC)}
	if err := h.Validate(); err == nil {
		t.Error("expected error for non-multiple-of-4 sample size")
	}
}

func TestHeaderValidateRejectsZeroSampSize(t *testing.T) {
	h := Header{SampType: SampType(MFCC)}
	if err := h.Validate(); err == nil {
		t.Error("expected error for zero sample size")
	}
}

func TestSampTypeBaseAndQual(t *testing.T) {
	st := SampType(MFCC) | SampType(QualEnergy) | SampType(QualDelta)
	if st.Base() != MFCC {
		t.Errorf("Base() = %v; want MFCC", st.Base())
	}
	if !st.Has(QualEnergy) || !st.Has(QualDelta) {
		t.Error("expected QualEnergy and QualDelta set")
	}
	if st.Has(QualAccel) {
		t.Error("QualAccel should not be set")
	}
}

func TestStreamBufferGrowsAndAnswersAt(t *testing.T) {
	b := NewStreamBuffer()
	for i := 0; i < incrementStepFrame+5; i++ {
		b.Push(Frame{float32(i)})
	}
	if b.Len() != incrementStepFrame+5 {
		t.Fatalf("Len() = %d; want %d", b.Len(), incrementStepFrame+5)
	}
	f, ok := b.At(0)
	if !ok || f[0] != 0 {
		t.Errorf("At(0) = %v, %v; want [0], true", f, ok)
	}
	if _, ok := b.At(b.Len()); ok {
		t.Error("At(Len()) should not be ok yet")
	}
	b.Close()
	if !b.Done() {
		t.Error("Done() should be true after Close")
	}
}

func TestStreamBufferPushAfterClosePanics(t *testing.T) {
	b := NewStreamBuffer()
	b.Close()
	defer func() {
		if recover() == nil {
			t.Error("expected panic on Push after Close")
		}
	}()
	b.Push(Frame{0})
}
