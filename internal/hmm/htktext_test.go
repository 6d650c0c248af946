package hmm

import (
	"strings"
	"testing"
)

const tinyHTKDefs = `~h "a"
<BEGINHMM>
<NUMSTATES> 3
<STATE> 2
<MEAN> 2
  1.0 2.0
<VARIANCE> 2
  1.0 1.0
<TRANSP> 3
 0.0 1.0 0.0
 0.0 0.5 0.5
 0.0 0.0 0.0
<ENDHMM>
`

func TestParseHTKTextSingleGaussian(t *testing.T) {
	m := NewModel()
	if err := ParseHTKText(strings.NewReader(tinyHTKDefs), m); err != nil {
		t.Fatalf("ParseHTKText: %v", err)
	}
	p, ok := m.Physicals["a"]
	if !ok {
		t.Fatal("expected physical HMM \"a\"")
	}
	if len(p.States) != 1 {
		t.Fatalf("len(States) = %d; want 1", len(p.States))
	}
	g := p.States[0].Mixtures[0]
	if len(g.Mean) != 2 || g.Mean[0] != 1.0 || g.Mean[1] != 2.0 {
		t.Errorf("Mean = %v; want [1 2]", g.Mean)
	}
	if len(g.Prec) != 2 || g.Prec[0] != 1.0 {
		t.Errorf("Prec = %v; want [1 1]", g.Prec)
	}
	if p.LogTrans(0, 1) != 0 {
		t.Errorf("LogTrans(0,1) = %v; want 0", p.LogTrans(0, 1))
	}
	if p.LogTrans(0, 2) != LogZero {
		t.Errorf("LogTrans(0,2) = %v; want LogZero", p.LogTrans(0, 2))
	}
}

const sharedMacroHTKDefs = `~t "tr"
<TRANSP> 3
 0.0 1.0 0.0
 0.0 0.5 0.5
 0.0 0.0 0.0
~s "st"
<MEAN> 1
  0.0
<VARIANCE> 1
  2.0
~h "b"
<BEGINHMM>
<NUMSTATES> 3
<STATE> 2 ~s "st"
~t "tr"
<ENDHMM>
`

func TestParseHTKTextSharedMacros(t *testing.T) {
	m := NewModel()
	if err := ParseHTKText(strings.NewReader(sharedMacroHTKDefs), m); err != nil {
		t.Fatalf("ParseHTKText: %v", err)
	}
	p, ok := m.Physicals["b"]
	if !ok {
		t.Fatal("expected physical HMM \"b\"")
	}
	if p.Trans == nil {
		t.Fatal("expected shared ~t transition matrix to be applied")
	}
	if len(p.States) != 1 || len(p.States[0].Mixtures) != 1 {
		t.Fatalf("States = %+v", p.States)
	}
}
