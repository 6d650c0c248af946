package lm

import (
	"bufio"
	"reflect"
	"strings"
	"testing"
)

func Test_lineSplit(t *testing.T) {
	for _, c := range []struct {
		Data  string
		Lines []string
	}{
		{"a\nb\n", []string{"a", "b"}},
		{"ab\ncd", []string{"ab", "cd"}},
		{" \tab\ncd \n", []string{"ab", "cd"}},
		{"\nab\n\ncd\n\n", []string{"ab", "cd"}},
		{"", nil},
		{"\n\n\n\n", nil},
	} {
		in := bufio.NewScanner(strings.NewReader(c.Data))
		in.Split(lineSplit)
		var lines []string
		for in.Scan() {
			lines = append(lines, in.Text())
		}
		if err := in.Err(); err != nil {
			t.Errorf("case %q: unexpected error: %v", c.Data, err)
		}
		if !reflect.DeepEqual(lines, c.Lines) {
			t.Errorf("case %q: expected %q; got %q", c.Data, c.Lines, lines)
		}
	}
}

func Test_tokenSplit(t *testing.T) {
	for _, c := range []struct {
		Line   string
		Tokens []string
	}{
		{"a b c", []string{"a", "b", "c"}},
		{"ab cd", []string{"ab", "cd"}},
		{"", nil},
		{"ab \t cd", []string{"ab", "cd"}},
		{"ab cd \t ", []string{"ab", "cd"}},
	} {
		var tokens []string
		for x, xs := tokenSplit([]byte(c.Line)); x != ""; x, xs = tokenSplit(xs) {
			tokens = append(tokens, x)
		}
		if !reflect.DeepEqual(tokens, c.Tokens) {
			t.Errorf("case %q: expected %q; got %q", c.Line, c.Tokens, tokens)
		}
	}
}

func Test_ngramEntries_parseLine(t *testing.T) {
	for _, c := range []struct {
		N       int
		Line    string
		Err     bool
		Weight  Weight
		BackOff Weight
		Context []string
		Word    string
	}{
		{1, "-1 a -2", false, -1, -2, nil, "a"},
		{1, "-1 ab", false, -1, 0, nil, "ab"},
		{2, "-1 ab cd -2", false, -1, -2, []string{"ab"}, "cd"},
		{6, "-3 ab cd ef gh ij kl", false, -3, 0, []string{"ab", "cd", "ef", "gh", "ij"}, "kl"},
		{N: 3, Line: "-1 ab cd", Err: true},
		{N: 1, Line: "", Err: true},
		{N: 2, Line: "-1", Err: true},
		{N: 2, Line: "-1 ab cd -4 -5", Err: true},
		{N: 2, Line: "ab cd ef", Err: true},
	} {
		it := newNgramEntries(c.N, nil)
		err := it.parseLine([]byte(c.Line))
		if c.Err {
			if err == nil {
				t.Errorf("case %+v: expected error", c)
			}
			continue
		}
		if err != nil {
			t.Errorf("case %+v: unexpected error: %v", c, err)
			continue
		}
		if it.weight != c.Weight {
			t.Errorf("case %+v: weight = %g", c, it.weight)
		}
		if it.backOff != c.BackOff {
			t.Errorf("case %+v: backOff = %g", c, it.backOff)
		}
		if len(it.context) == 0 {
			it.context = nil
		}
		if !reflect.DeepEqual(it.context, c.Context) {
			t.Errorf("case %+v: context = %q", c, it.context)
		}
		if it.word != c.Word {
			t.Errorf("case %+v: word = %q", c, it.word)
		}
	}
}
