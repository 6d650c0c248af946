package hmm

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// tokenizer splits an HTK text HMM definition into whitespace-separated
// tokens, treating a quoted string ("name") as one token with the quotes
// stripped -- the same lexical shape as the macro-based format's
// `~h "name"` entries.
type tokenizer struct {
	sc  *bufio.Scanner
	buf []string
}

func newTokenizer(r io.Reader) *tokenizer {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	sc.Buffer(make([]byte, 4096), 1<<20)
	return &tokenizer{sc: sc}
}

func (t *tokenizer) next() (string, bool) {
	if len(t.buf) > 0 {
		tok := t.buf[0]
		t.buf = t.buf[1:]
		return tok, true
	}
	if !t.sc.Scan() {
		return "", false
	}
	return strings.Trim(t.sc.Text(), `"`), true
}

func (t *tokenizer) push(tok string) { t.buf = append([]string{tok}, t.buf...) }

func (t *tokenizer) expectFloats(n int) ([]float64, error) {
	out := make([]float64, n)
	for i := range out {
		tok, ok := t.next()
		if !ok {
			return nil, fmt.Errorf("hmm: unexpected end of input reading %d floats", n)
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("hmm: bad float %q: %w", tok, err)
		}
		out[i] = v
	}
	return out, nil
}

func (t *tokenizer) expectInt() (int, error) {
	tok, ok := t.next()
	if !ok {
		return 0, fmt.Errorf("hmm: unexpected end of input reading int")
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("hmm: bad int %q: %w", tok, err)
	}
	return v, nil
}

// ParseHTKText parses the macro-based HTK HMM definition text format
// (spec Input 2) into m, handling the `~h`, `~s`, `~t`, `~v` macros: `~h`
// begins a named HMM definition, `~s`/`~t` define a named State or
// transition matrix for later reference by name inside a `~h` block.
// `~v` variance vectors are parsed and recorded, but a `~v` reference
// inside a state is not resolved. `~m` (mixture macro) and `~w`/`~r` (stream weight /
// regression tree) are accepted and skipped: Julius's own repertoire of
// supported acoustic models does not require them for a diagonal
// single-stream Gaussian mixture system, which is what this package
// scores.
func ParseHTKText(r io.Reader, m *Model) error {
	tz := newTokenizer(r)
	states := make(map[string]State)
	transMats := make(map[string][][]float64)
	variances := make(map[string][]float64)

	for {
		tok, ok := tz.next()
		if !ok {
			return nil
		}
		switch {
		case tok == "~o":
			if err := skipGlobalOptions(tz); err != nil {
				return err
			}
		case tok == "~s":
			name, ok := tz.next()
			if !ok {
				return fmt.Errorf("hmm: ~s: missing name")
			}
			st, err := parseState(tz)
			if err != nil {
				return fmt.Errorf("hmm: ~s %q: %w", name, err)
			}
			states[name] = st
		case tok == "~t":
			name, ok := tz.next()
			if !ok {
				return fmt.Errorf("hmm: ~t: missing name")
			}
			trans, err := parseTransP(tz)
			if err != nil {
				return fmt.Errorf("hmm: ~t %q: %w", name, err)
			}
			transMats[name] = trans
		case tok == "~v":
			name, ok := tz.next()
			if !ok {
				return fmt.Errorf("hmm: ~v: missing name")
			}
			n, err := tz.expectInt()
			if err != nil {
				return err
			}
			v, err := tz.expectFloats(n)
			if err != nil {
				return err
			}
			variances[name] = v
		case tok == "~m" || tok == "~w" || tok == "~r":
			// Skip the macro name token; consumers in this format always
			// resolve these inline where referenced, so nothing further
			// to record at definition time here.
			tz.next()
		case tok == "~h":
			name, ok := tz.next()
			if !ok {
				return fmt.Errorf("hmm: ~h: missing name")
			}
			p, err := parseHMMBody(tz, name, states, transMats, variances)
			if err != nil {
				return fmt.Errorf("hmm: ~h %q: %w", name, err)
			}
			m.AddPhysical(p)
		default:
			// Unrecognized top-level token (comments, stray macros): ignore.
		}
	}
}

func skipGlobalOptions(tz *tokenizer) error {
	for {
		tok, ok := tz.next()
		if !ok {
			return nil
		}
		if strings.HasPrefix(tok, "~") || tok == "<BEGINHMM>" {
			tz.push(tok)
			return nil
		}
	}
}

func parseHMMBody(tz *tokenizer, name string, states map[string]State, transMats map[string][][]float64, variances map[string][]float64) (*Physical, error) {
	tok, ok := tz.next()
	if !ok || tok != "<BEGINHMM>" {
		return nil, fmt.Errorf("expected <BEGINHMM>, got %q", tok)
	}
	tok, ok = tz.next()
	if !ok || tok != "<NUMSTATES>" {
		return nil, fmt.Errorf("expected <NUMSTATES>, got %q", tok)
	}
	numStates, err := tz.expectInt() // includes entry+exit, per HTK convention
	if err != nil {
		return nil, err
	}
	p := &Physical{Name: name, States: make([]State, numStates-2)}
	for {
		tok, ok = tz.next()
		if !ok {
			return nil, fmt.Errorf("unexpected end of input before <ENDHMM>")
		}
		switch tok {
		case "<STATE>":
			idx, err := tz.expectInt()
			if err != nil {
				return nil, err
			}
			nt, ok := tz.next()
			if !ok {
				return nil, fmt.Errorf("expected state body or ~s")
			}
			var st State
			if nt == "~s" {
				ref, ok := tz.next()
				if !ok {
					return nil, fmt.Errorf("~s: missing reference name")
				}
				st, ok = states[ref]
				if !ok {
					return nil, fmt.Errorf("~s: undefined state %q", ref)
				}
			} else {
				tz.push(nt)
				st, err = parseState(tz)
				if err != nil {
					return nil, err
				}
			}
			// States 2..numStates-1 are emitting; index 1-based from <STATE>.
			pos := idx - 2
			if pos < 0 || pos >= len(p.States) {
				return nil, fmt.Errorf("state index %d out of range for %d emitting states", idx, len(p.States))
			}
			p.States[pos] = st
		case "~t":
			ref, ok := tz.next()
			if !ok {
				return nil, fmt.Errorf("~t: missing reference name")
			}
			trans, ok := transMats[ref]
			if !ok {
				return nil, fmt.Errorf("~t: undefined transition matrix %q", ref)
			}
			p.Trans = trans
		case "<TRANSP>":
			tz.push(tok)
			trans, err := parseTransP(tz)
			if err != nil {
				return nil, err
			}
			p.Trans = trans
		case "<ENDHMM>":
			return p, nil
		default:
			// Ignore macros/fields this parser does not model (e.g.
			// <STREAMINFO>, duration model tags): diagonal single-stream
			// GMMs are the only acoustic model kind the decoder scores.
		}
	}
}

func parseTransP(tz *tokenizer) ([][]float64, error) {
	tok, ok := tz.next()
	if !ok || tok != "<TRANSP>" {
		return nil, fmt.Errorf("expected <TRANSP>, got %q", tok)
	}
	n, err := tz.expectInt()
	if err != nil {
		return nil, err
	}
	trans := make([][]float64, n)
	for i := range trans {
		row, err := tz.expectFloats(n)
		if err != nil {
			return nil, err
		}
		trans[i] = make([]float64, n)
		for j, v := range row {
			if v <= 0 {
				trans[i][j] = LogZero
			} else {
				trans[i][j] = math.Log(v)
			}
		}
	}
	return trans, nil
}

func parseState(tz *tokenizer) (State, error) {
	tok, ok := tz.next()
	if !ok {
		return State{}, fmt.Errorf("expected state body")
	}
	numMixes := 1
	mixWeights := []float64{0}
	if tok == "<NUMMIXES>" {
		n, err := tz.expectInt()
		if err != nil {
			return State{}, err
		}
		numMixes = n
		mixWeights = make([]float64, numMixes)
		tok, ok = tz.next()
		if !ok {
			return State{}, fmt.Errorf("expected <MIXTURE> or <MEAN>")
		}
	}
	st := State{SenoneID: -1}
	for m := 0; m < numMixes; m++ {
		if tok == "<MIXTURE>" {
			idx, err := tz.expectInt()
			if err != nil {
				return State{}, err
			}
			w, err := tz.expectFloats(1)
			if err != nil {
				return State{}, err
			}
			mixWeights[idx-1] = math.Log(w[0])
			tok, ok = tz.next()
			if !ok {
				return State{}, fmt.Errorf("expected <MEAN>")
			}
		}
		if tok != "<MEAN>" {
			return State{}, fmt.Errorf("expected <MEAN>, got %q", tok)
		}
		dim, err := tz.expectInt()
		if err != nil {
			return State{}, err
		}
		mean, err := tz.expectFloats(dim)
		if err != nil {
			return State{}, err
		}
		tok, ok = tz.next()
		if !ok || tok != "<VARIANCE>" {
			return State{}, fmt.Errorf("expected <VARIANCE>, got %q", tok)
		}
		vdim, err := tz.expectInt()
		if err != nil {
			return State{}, err
		}
		variance, err := tz.expectFloats(vdim)
		if err != nil {
			return State{}, err
		}
		g := Gaussian{Weight: mixWeights[m], Mean: toF32(mean), Prec: invertToF32(variance)}
		g.GConst = gconst(variance)

		tok, ok = tz.next()
		if ok && tok == "<GCONST>" {
			v, err := tz.expectFloats(1)
			if err != nil {
				return State{}, err
			}
			g.GConst = v[0]
			tok, ok = tz.next()
		}
		st.Mixtures = append(st.Mixtures, g)
		if !ok {
			break
		}
	}
	if tok != "" {
		tz.push(tok)
	}
	return st, nil
}

func toF32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func invertToF32(variance []float64) []float32 {
	out := make([]float32, len(variance))
	for i, v := range variance {
		if v <= 0 {
			out[i] = 0
			continue
		}
		out[i] = float32(1.0 / v)
	}
	return out
}

// gconst computes the diagonal-Gaussian log-density constant term
// log((2*pi)^D * prod(variance)), matching HTK's own GCONST definition
// for when the defining file omits an explicit <GCONST> line.
func gconst(variance []float64) float64 {
	d := float64(len(variance))
	logDet := 0.0
	for _, v := range variance {
		if v > 0 {
			logDet += math.Log(v)
		}
	}
	return d*math.Log(2*math.Pi) + logDet
}
