package lm

// ARPA text format parsing (spec Input 4), written as a chain of iteratees
// over github.com/kho/stream, mirroring the teacher's own ARPA reader.

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/golang/glog"
	"github.com/kho/stream"
)

// arpaTop drives the top-level grammar of an ARPA file:
//   \data\
//   ngram 1=... [ngram 2=... ...]
//   \1-grams:
//   ...
//   \end\
type arpaTop struct {
	builder *Builder
}

func (arpaTop) Final() error { return stream.Match(`\data\`).Final() }

func (it arpaTop) Next([]byte) (stream.Iteratee, bool, error) {
	return stream.Seq{
		stream.Match(`\data\`),
		skipNgramCounts{},
		stream.Star{Iteratee: ngramSection{it.builder}},
		stream.Match(`\end\`),
		stream.EOF,
	}, false, nil
}

// skipNgramCounts consumes the "ngram N=count" lines without validating
// them against the actual entry counts that follow; the builder does not
// need to preallocate.
type skipNgramCounts struct{}

func (skipNgramCounts) Final() error { return nil }

func (it skipNgramCounts) Next(line []byte) (stream.Iteratee, bool, error) {
	if len(line) > 0 && line[0] == '\\' {
		return nil, false, nil
	}
	return it, true, nil
}

// ngramSection parses one "\N-grams:" section header followed by zero or
// more entries of that order.
type ngramSection struct {
	builder *Builder
}

func (ngramSection) Final() error { return stream.ErrExpect(`"\N-grams:" section header`) }

func (it ngramSection) Next(line []byte) (stream.Iteratee, bool, error) {
	if len(line) == 0 || line[0] != '\\' || !bytes.HasSuffix(line, []byte("-grams:")) {
		return nil, false, stream.ErrExpect(`section header "\N-grams:"`)
	}
	n, err := strconv.Atoi(string(line[1 : len(line)-len("-grams:")]))
	if err != nil || n <= 0 {
		return nil, false, stream.ErrExpect(`positive integer in section header "\N-grams:"`)
	}
	return newNgramEntries(n, it.builder), true, nil
}

// ngramEntries scans entries of a fixed order n until the next section
// marker or \end\.
type ngramEntries struct {
	builder *Builder
	n       int
	weight  Weight
	backOff Weight
	context []string
	word    string
}

func newNgramEntries(n int, b *Builder) *ngramEntries {
	return &ngramEntries{builder: b, n: n, context: make([]string, n-1)}
}

func (it *ngramEntries) Final() error { return nil }

func (it *ngramEntries) Next(line []byte) (stream.Iteratee, bool, error) {
	if len(line) == 0 || line[0] == '\\' {
		if glog.V(2) {
			glog.Infof("lm: finished %d-gram section", it.n)
		}
		return nil, false, nil
	}
	if err := it.parseLine(line); err != nil {
		return nil, false, err
	}
	it.builder.AddNgram(it.context, it.word, it.weight, it.backOff)
	return it, true, nil
}

func (it *ngramEntries) parseLine(line []byte) error {
	tok, rest := tokenSplit(line)
	if tok == "" {
		return stream.ErrExpect("log-probability")
	}
	f, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		return err
	}
	it.weight = Weight(f)

	for i := 1; i < it.n; i++ {
		tok, rest = tokenSplit(rest)
		if tok == "" {
			return stream.ErrExpect(fmt.Sprintf("%d context word(s)", it.n-1))
		}
		it.context[i-1] = tok
	}

	tok, rest = tokenSplit(rest)
	if tok == "" {
		return stream.ErrExpect("word")
	}
	it.word = tok

	tok, rest = tokenSplit(rest)
	if tok == "" {
		it.backOff = 0
	} else {
		f, err := strconv.ParseFloat(tok, 32)
		if err != nil {
			return err
		}
		it.backOff = Weight(f)
	}

	if len(rest) != 0 {
		return stream.ErrExpect("end of line")
	}
	return nil
}

// Low-level ARPA lexer helpers.

func isSpace(b byte) bool {
	switch b {
	case '\t', '\v', '\f', '\r', ' ':
		return true
	default:
		return false
	}
}

// lineSplit is a bufio.SplitFunc: it yields trimmed, non-empty lines,
// skipping blank lines, used by stream.EnumRead.
func lineSplit(data []byte, atEOF bool) (advance int, token []byte, err error) {
	l := -1
	for i, b := range data {
		if !isSpace(b) && b != '\n' {
			l = i
			break
		}
	}
	if l < 0 {
		if atEOF && len(data) > 0 {
			return len(data), nil, nil
		}
		return len(data), nil, nil
	}
	r, n := -1, 0
	for i, b := range data[l+1:] {
		if b == '\n' {
			r, n = l+i, l+i+2
			break
		}
	}
	if r < 0 {
		if !atEOF {
			return l, nil, nil
		}
		r, n = len(data)-1, len(data)
	}
	for r > l && isSpace(data[r]) {
		r--
	}
	return n, data[l : r+1], nil
}

func tokenSplit(line []byte) (string, []byte) {
	r := len(line)
	for i, b := range line {
		if isSpace(b) {
			r = i
			break
		}
	}
	tok := string(line[:r])
	for i := r; i < len(line); i++ {
		if !isSpace(line[i]) {
			return tok, line[i:]
		}
	}
	return tok, nil
}
