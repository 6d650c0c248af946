package hmm

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
)

// Binary dump magic strings (spec Input 2), detected at the start of the
// file to distinguish a binary dump from HTK text format.
const (
	magicV1 = "JBINHMM\n"
	magicV2 = "JBINHMMV2"
)

// V2Qualifiers are the single-byte flags following the JBINHMMV2 magic,
// selecting which optional sections the dump embeds.
type V2Qualifiers struct {
	EmbeddedParams  bool // 'P': acoustic-analysis parameters embedded
	VarianceInv     bool // 'V': variances stored pre-inverted
	MixturePDFMacro bool // 'M': has mixture-pdf macro definitions
}

func parseV2Qualifiers(flags []byte) V2Qualifiers {
	var q V2Qualifiers
	for _, f := range flags {
		switch f {
		case 'P':
			q.EmbeddedParams = true
		case 'V':
			q.VarianceInv = true
		case 'M':
			q.MixturePDFMacro = true
		}
	}
	return q
}

// DetectBinary peeks at r's first bytes to tell whether the stream is a
// binary HMM dump, and if so which version. ok is false for plain HTK
// text (the caller should fall back to ParseHTKText on the same,
// now-rewound reader).
func DetectBinary(r *bufio.Reader) (ok bool, v2 bool, qual V2Qualifiers, err error) {
	peek, err := r.Peek(len(magicV2))
	if err != nil && err != io.EOF {
		return false, false, V2Qualifiers{}, err
	}
	if len(peek) >= len(magicV1) && string(peek[:len(magicV1)]) == magicV1 {
		r.Discard(len(magicV1))
		return true, false, V2Qualifiers{}, nil
	}
	if len(peek) == len(magicV2) && string(peek) == magicV2 {
		r.Discard(len(magicV2))
		flags, ferr := readV2Flags(r)
		if ferr != nil {
			return false, false, V2Qualifiers{}, ferr
		}
		return true, true, parseV2Qualifiers(flags), nil
	}
	return false, false, V2Qualifiers{}, nil
}

func readV2Flags(r *bufio.Reader) ([]byte, error) {
	// V2 qualifier bytes run until a newline terminates the header line.
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	return []byte(line), nil
}

// binaryPayload is this repo's own on-disk representation of a Model dump
// following the magic header: the original binary dump's internal field
// layout (mkbinhmm.c's struct writer) was not part of the retrieval pack
// in enough detail to reproduce byte-for-byte, so the payload after the
// magic string is gob-encoded here instead. This keeps the two
// format-identifying magic strings (and the V2 qualifier byte contract)
// faithful to the original while not guessing at undocumented internal
// layout.
type binaryPayload struct {
	Physicals map[string]*Physical
	Logicals  map[string]string // logical name -> physical name
}

// ReadBinary reads a binary HMM dump (either magic version) from r into m.
func ReadBinary(r io.Reader, m *Model) error {
	br := bufio.NewReader(r)
	ok, _, _, err := DetectBinary(br)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("hmm: not a recognized binary HMM dump")
	}
	var payload binaryPayload
	if err := gob.NewDecoder(br).Decode(&payload); err != nil {
		return err
	}
	for name, p := range payload.Physicals {
		p.Name = name
		m.AddPhysical(p)
	}
	for lname, pname := range payload.Logicals {
		phys, ok := m.Physicals[pname]
		if !ok {
			return fmt.Errorf("hmm: binary dump: logical %q references undefined physical %q", lname, pname)
		}
		m.Logicals[lname] = &Logical{Name: lname, Physical: phys}
	}
	return nil
}

// WriteBinary writes m as a V2 binary dump with no optional sections set,
// the inverse of ReadBinary.
func WriteBinary(w io.Writer, m *Model) error {
	if _, err := io.WriteString(w, magicV2); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	payload := binaryPayload{
		Physicals: m.Physicals,
		Logicals:  make(map[string]string, len(m.Logicals)),
	}
	for lname, l := range m.Logicals {
		if l.Pseudo {
			continue // pseudo-HMMs are rebuilt by Resolve, not persisted
		}
		payload.Logicals[lname] = l.Physical.Name
	}
	return gob.NewEncoder(w).Encode(&payload)
}
