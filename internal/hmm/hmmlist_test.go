package hmm

import (
	"strings"
	"testing"
)

func modelWithPhysical(name string) *Model {
	m := NewModel()
	m.AddPhysical(&Physical{Name: name, States: []State{{SenoneID: -1}}})
	return m
}

func TestParseHMMListOneColumn(t *testing.T) {
	m := modelWithPhysical("a")
	if err := ParseHMMList(strings.NewReader("a\n"), m); err != nil {
		t.Fatalf("ParseHMMList: %v", err)
	}
	l, ok := m.Logicals["a"]
	if !ok || l.Physical.Name != "a" {
		t.Fatalf("Logicals[a] = %+v, %v", l, ok)
	}
}

func TestParseHMMListTwoColumn(t *testing.T) {
	m := modelWithPhysical("a")
	if err := ParseHMMList(strings.NewReader("k-a+e a\n"), m); err != nil {
		t.Fatalf("ParseHMMList: %v", err)
	}
	l, ok := m.Logicals["k-a+e"]
	if !ok || l.Physical.Name != "a" {
		t.Fatalf("Logicals[k-a+e] = %+v, %v", l, ok)
	}
}

func TestParseHMMListMissingPhysical(t *testing.T) {
	m := NewModel()
	if err := ParseHMMList(strings.NewReader("k-a+e a\n"), m); err == nil {
		t.Error("expected error for undefined physical HMM")
	}
}

func TestParseHMMListDuplicate(t *testing.T) {
	m := modelWithPhysical("a")
	if err := ParseHMMList(strings.NewReader("a\na\n"), m); err == nil {
		t.Error("expected error for duplicated logical name")
	}
}

func TestParseHMMListSkipsBlankAndComment(t *testing.T) {
	m := modelWithPhysical("a")
	if err := ParseHMMList(strings.NewReader("\n# comment\na\n"), m); err != nil {
		t.Fatalf("ParseHMMList: %v", err)
	}
	if _, ok := m.Logicals["a"]; !ok {
		t.Error("expected Logicals[a] to be set")
	}
}
