package feature

import "github.com/golang/glog"

// invalidFrameEnergy reports whether v is outside the safe range for a
// valid absolute-energy coefficient. The original heuristic's own comment
// derives [-30, 30] as a bound that holds whether or not the upstream
// extractor applied energy normalization, since the extractor's own
// config is not recorded in the HTK parameter file; see StripZeroFrames.
func invalidFrameEnergy(v float32) bool {
	return v < -30.0 || v > 30.0
}

// guessBaseNum approximates the original's guess_basenum: the number of
// "static" cepstral coefficients before delta/acceleration coefficients
// are appended, inferred from the qualifier-stripped base-type dimension
// and the vector's total length. The true guess_basenum additionally knows
// the base analysis width (LPC order, filterbank channel count, ...) which
// is not recoverable from the header alone; for MFCC-family types, which
// is what the zero-stripping heuristic is defined for, dividing the total
// dimension by the number of derivative blocks present is exact whenever
// energy is present in every block (the normal case) and a safe
// under-estimate otherwise. Documented as an approximation, not a port.
func guessBaseNum(dim int, qual Qual) int {
	blocks := 1
	if qual&QualDelta != 0 {
		blocks++
	}
	if qual&QualAccel != 0 {
		blocks++
	}
	extra := 0
	if qual&QualEnergy != 0 {
		extra++
	}
	if qual&QualZeroth != 0 {
		extra++
	}
	perBlock := dim/blocks - extra
	if perBlock < 0 {
		return 0
	}
	return perBlock
}

// guessAbsELocation locates the dimension holding the absolute (0'th or
// C0) energy coefficient, or -1 if this type carries no absolute energy at
// all (in which case stripping is impossible and StripZeroFrames is a
// no-op). Grounded on guess_abs_e_location.
func guessAbsELocation(dim int, st SampType) int {
	qual := st.Qual() &^ (QualCompress | QualChecksum)
	if qual&QualEnergy == 0 {
		return -1
	}
	base := guessBaseNum(dim, qual)
	if qual&QualZeroth != 0 {
		return base + 1
	}
	return base
}

// StripZeroFrames removes frames whose absolute-energy coefficient falls
// outside the valid range, a heuristic for detecting zero-padded frames
// that a front end sometimes emits at utterance boundaries. Disabled by
// default: whether the [-30, 30] bound still applies once a front end has
// applied energy normalization (ENORMALIZE) is not recoverable from the
// parameter file, so callers opt in explicitly (the equivalent of the
// original's -nostrip being the default-safe choice).
func StripZeroFrames(u *Utterance) {
	eloc := guessAbsELocation(u.Header.Dim(), u.Header.SampType)
	if eloc < 0 {
		glog.Infof("feature: no absolute energy coefficient found, stripping skipped")
		return
	}
	dst := 0
	for src, f := range u.Frames {
		if eloc >= len(f) || invalidFrameEnergy(f[eloc]) {
			glog.Warningf("feature: frame %d has invalid energy, stripped", src)
			continue
		}
		if src != dst {
			u.Frames[dst] = f
		}
		dst++
	}
	if dst != len(u.Frames) {
		glog.Warningf("feature: input shrank from %d to %d frames", len(u.Frames), dst)
		u.Frames = u.Frames[:dst]
		u.Header.SampleCount = uint32(dst)
	}
}
