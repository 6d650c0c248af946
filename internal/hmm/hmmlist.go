package hmm

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParseHMMList reads an HMMList file into m: one logical phone name per
// line, an optional second column naming the physical HMM it maps to (the
// first column's name is used when the second is omitted). Every
// Physical named must already be registered in m via AddPhysical.
// Grounded on rdhmmlist.c's one/two-column format and duplicate-name
// rejection.
func ParseHMMList(r io.Reader, m *Model) error {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 || len(fields) > 2 {
			return fmt.Errorf("hmm: hmmlist line %d: expected 1 or 2 fields, got %d", lineNo, len(fields))
		}
		lname := fields[0]
		pname := lname
		if len(fields) == 2 {
			pname = fields[1]
		}
		phys, ok := m.Physicals[pname]
		if !ok {
			return fmt.Errorf("hmm: hmmlist line %d: physical HMM %q not found", lineNo, pname)
		}
		if _, dup := m.Logicals[lname]; dup {
			return fmt.Errorf("hmm: hmmlist line %d: logical HMM %q duplicated", lineNo, lname)
		}
		m.Logicals[lname] = &Logical{Name: lname, Physical: phys}
	}
	return sc.Err()
}
