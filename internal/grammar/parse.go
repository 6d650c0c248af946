package grammar

// Text grammar file parsing (spec Input 5), in this package's own line
// format: one arc per line,
//
//	<from-state> <category> <to-state> <accept-flag>
//
// A state is implicitly initial if it never appears as a <to-state>;
// accept-flag marks <to-state> (not <from-state>) as an accepting state,
// mirroring the original compiler's convention that a sentence ends the
// instant an accepting state is entered.
//
// ParseInto reads the file line by line with a bufio.Scanner and a Builder
// accumulates the arcs; Compile then freezes the states, and
// FinalizeCategoryPairs builds the category-pair table.

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseInto reads a text grammar from r into b. Blank lines and lines
// beginning with '#' are ignored.
func ParseInto(r io.Reader, b *Builder) error {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return fmt.Errorf("grammar: line %d: expected 4 fields, got %d", lineNo, len(fields))
		}
		from, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("grammar: line %d: bad from-state %q: %w", lineNo, fields[0], err)
		}
		cat, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("grammar: line %d: bad category %q: %w", lineNo, fields[1], err)
		}
		to, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("grammar: line %d: bad to-state %q: %w", lineNo, fields[2], err)
		}
		accept, err := strconv.Atoi(fields[3])
		if err != nil || (accept != 0 && accept != 1) {
			return fmt.Errorf("grammar: line %d: bad accept-flag %q", lineNo, fields[3])
		}
		b.AddArc(StateId(from), Category(cat), StateId(to), accept == 1)
	}
	return sc.Err()
}

// ParseFile opens path and parses it into a fresh Builder.
func ParseFile(path string) (*Builder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	b := NewBuilder()
	if err := ParseInto(f, b); err != nil {
		return nil, err
	}
	return b, nil
}
