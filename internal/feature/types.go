// Package feature implements Feature frame I/O (spec Input 1): reading the
// HTK-format parameter files produced by an external front end, and the
// streaming frame interface the acoustic scorer and pass-1 decoder consume.
// Feature extraction itself (MFCC analysis from raw waveform) is out of
// scope; this package only reads already-extracted parameter vectors.
package feature

import "fmt"

// Frame is a single dense feature vector, D 32-bit floats as described by
// the data model's Feature frame type.
type Frame []float32

// ParamType is the base parameter kind, the low bits of an HTK sample type
// code (F_BASEMASK in the original format).
type ParamType int16

const (
	Waveform ParamType = iota
	LPC
	LPRefC
	LPCepstra
	LPDelCep
	IRefC
	MFCC
	FBank
	MelSpec
	User
	Discrete
	ErrInvalid
)

func (t ParamType) String() string {
	switch t {
	case Waveform:
		return "WAVEFORM"
	case LPC:
		return "LPC"
	case LPRefC:
		return "LPREFC"
	case LPCepstra:
		return "LPCEPSTRA"
	case LPDelCep:
		return "LPDELCEP"
	case IRefC:
		return "IREFC"
	case MFCC:
		return "MFCC"
	case FBank:
		return "FBANK"
	case MelSpec:
		return "MELSPEC"
	case User:
		return "USER"
	case Discrete:
		return "DISCRETE"
	default:
		return "INVALID"
	}
}

// Qual is a bitmask of parameter qualifiers layered on top of a base
// ParamType, matching the high bits of an HTK sample type code.
type Qual int16

const (
	QualEnergy    Qual = 0x0040
	QualEnergySup Qual = 0x0080
	QualDelta     Qual = 0x0100
	QualAccel     Qual = 0x0200
	QualCompress  Qual = 0x0400
	QualCepNorm   Qual = 0x0800
	QualChecksum  Qual = 0x1000
	QualZeroth    Qual = 0x2000

	baseMask Qual = 0x003f
)

// SampType is the full on-disk parameter type code: a ParamType in the low
// bits, Qual flags in the high bits.
type SampType int16

func (s SampType) Base() ParamType { return ParamType(int16(s) & int16(baseMask)) }
func (s SampType) Qual() Qual      { return Qual(s) &^ baseMask }
func (s SampType) Has(q Qual) bool { return Qual(s)&q != 0 }

// Header is the fixed-size header prefixing every HTK parameter file.
type Header struct {
	SampleCount uint32 // number of frames
	FrameShift  uint32 // window shift, in 100ns units
	SampSize    uint16 // bytes per sample (== 4 * dimension, for float vectors)
	SampType    SampType
}

// Dim returns the vector dimension implied by SampSize, assuming 4-byte
// float samples (the only sample width this package supports).
func (h Header) Dim() int { return int(h.SampSize) / 4 }

// Validate reports whether h describes a vector-valued parameter file this
// package can read: a positive sample size that is a whole number of
// 4-byte floats.
func (h Header) Validate() error {
	if h.SampSize == 0 || h.SampSize%4 != 0 {
		return fmt.Errorf("feature: sample size %d is not a positive multiple of 4 bytes", h.SampSize)
	}
	if h.SampType.Base() == ErrInvalid {
		return fmt.Errorf("feature: invalid base parameter type in sample type %d", h.SampType)
	}
	return nil
}
