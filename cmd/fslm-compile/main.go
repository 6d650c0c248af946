// Command fslm-compile reads an ARPA-format language model from stdin and
// writes a gob-encoded Hashed model to stdout, mirroring the teacher's own
// cmd/compile one-shot tool against internal/lm instead of kho/fslm.
package main

import (
	"encoding/gob"
	"flag"
	"os"

	"github.com/golang/glog"
	"github.com/kho/easy"

	"github.com/julius-speech/julius-sub004/internal/lm"
)

func main() {
	scale := flag.Float64("lm.scale", 1.5, "scale multiplier for deciding the hash table size")
	easy.ParseFlagsAndArgs(nil)

	model, err := lm.FromARPA(os.Stdin, *scale)
	if err != nil {
		glog.Fatal(err)
	}
	if err := gob.NewEncoder(os.Stdout).Encode(*model); err != nil {
		glog.Fatal(err)
	}
}
