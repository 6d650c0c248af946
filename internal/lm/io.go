package lm

import (
	"bufio"
	"encoding/gob"
	"io"

	"github.com/kho/easy"
	"github.com/kho/stream"
	"github.com/kho/word"
)

// FromARPA builds a Hashed model by streaming an ARPA-format language model
// (spec Input 4) through the iteratee chain in arpa.go. scale sizes the
// hash buckets of the resulting model; see Builder.DumpHashed.
func FromARPA(in io.Reader, scale float64) (*Hashed, error) {
	builder := NewBuilder(nil, "<s>", "</s>")
	if err := stream.Run(stream.EnumRead(in, lineSplit), arpaTop{builder}); err != nil {
		return nil, err
	}
	return builder.DumpHashed(scale), nil
}

// FromARPAFile opens path (transparently decompressing .gz as needed, via
// kho/easy) and builds a Hashed model from its contents.
func FromARPAFile(path string, scale float64) (*Hashed, error) {
	in, err := easy.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return FromARPA(in, scale)
}

// FromARPAFileSorted is like FromARPAFile but freezes into a Sorted model.
// The engine and the CLI commands load only the Hashed backend and do not
// call it.
func FromARPAFileSorted(path string) (*Sorted, error) {
	in, err := easy.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	builder := NewBuilder(nil, "<s>", "</s>")
	if err := stream.Run(stream.EnumRead(in, lineSplit), arpaTop{builder}); err != nil {
		return nil, err
	}
	return builder.DumpSorted(), nil
}

// FromGob decodes a Hashed model previously written with gob.NewEncoder
// (Hashed implements encoding.BinaryMarshaler/Unmarshaler, see hashed.go).
func FromGob(in io.Reader) (*Hashed, error) {
	var m Hashed
	if err := gob.NewDecoder(in).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// FromGobFile opens path and decodes a gob-serialized Hashed model.
func FromGobFile(path string) (*Hashed, error) {
	in, err := easy.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return FromGob(in)
}

// DumpVocab writes the model's vocabulary, one word per line, ordered by
// word.Id. No CLI subcommand calls it.
func DumpVocab(w io.Writer, vocab *word.Vocab, n int) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < n; i++ {
		s := vocab.StringOf(word.Id(i))
		if _, err := bw.WriteString(s); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
