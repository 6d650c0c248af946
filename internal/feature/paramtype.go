package feature

import (
	"fmt"
	"strings"
)

// baseNames and qualNames mirror the pbase/pqual description tables:
// the string form of a parameter type used in HMM-list and config files
// (e.g. "MFCC_E_D_Z"), convertible to and from the binary SampType code
// used on disk.
var baseNames = []struct {
	name string
	typ  ParamType
}{
	{"WAVEFORM", Waveform},
	{"DISCRETE", Discrete},
	{"LPC", LPC},
	{"LPCEPSTRA", LPCepstra},
	{"MFCC", MFCC},
	{"FBANK", FBank},
	{"MELSPEC", MelSpec},
	{"LPREFC", LPRefC},
	{"LPDELCEP", LPDelCep},
	{"USER", User},
}

var qualNames = []struct {
	name string
	qual Qual
}{
	{"_E", QualEnergy},
	{"_N", QualEnergySup},
	{"_D", QualDelta},
	{"_A", QualAccel},
	{"_C", QualCompress},
	{"_Z", QualCepNorm},
	{"_K", QualChecksum},
	{"_0", QualZeroth},
}

// ParseQual parses the qualifier suffix of a type string ("_E_D_Z"),
// returning an error naming the first unrecognized two-character
// qualifier token.
func ParseQual(s string) (Qual, error) {
	var q Qual
	for len(s) > 0 {
		if s[0] != '_' || len(s) < 2 {
			return 0, fmt.Errorf("feature: malformed qualifier at %q", s)
		}
		tok := s[:2]
		found := false
		for _, e := range qualNames {
			if strings.EqualFold(tok, e.name) {
				q |= e.qual
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("feature: unknown parameter qualifier %q", tok)
		}
		s = s[2:]
	}
	return q, nil
}

// ParseSampType parses a full type string such as "MFCC_E_D_Z" into a
// SampType, the form used by HMM-list headers and -htkconf style options.
func ParseSampType(s string) (SampType, error) {
	base := s
	rest := ""
	if i := strings.IndexByte(s, '_'); i >= 0 {
		base, rest = s[:i], s[i:]
	}
	for _, e := range baseNames {
		if strings.EqualFold(base, e.name) {
			q, err := ParseQual(rest)
			if err != nil {
				return 0, err
			}
			return SampType(e.typ) | SampType(q), nil
		}
	}
	return 0, fmt.Errorf("feature: unknown parameter base type %q", base)
}

// String renders a SampType back to its canonical "BASE_Q1_Q2..." form.
func (s SampType) String() string {
	var b strings.Builder
	base := s.Base()
	name := "INVALID"
	for _, e := range baseNames {
		if e.typ == base {
			name = e.name
			break
		}
	}
	b.WriteString(name)
	for _, e := range qualNames {
		if s.Has(e.qual) {
			b.WriteString(e.name)
		}
	}
	return b.String()
}
