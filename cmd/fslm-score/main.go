// Command fslm-score loads a gob-encoded Hashed language model and scores
// a corpus of whitespace-tokenized sentences read from stdin, mirroring
// the teacher's own cmd/score one-shot tool against internal/lm.
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/golang/glog"
	"github.com/kho/easy"
	"github.com/kho/word"

	"github.com/julius-speech/julius-sub004/internal/lm"
)

var unkScore lm.Weight

func init() {
	flag.Var(weightValue{&unkScore}, "unk", "score for <unk>")
}

func main() {
	var args struct {
		Model string `name:"model" usage:"gob-encoded Hashed LM file"`
	}
	easy.ParseFlagsAndArgs(&args)

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	model, err := lm.FromGobFile(args.Model)
	if err != nil {
		glog.Fatal("error in loading model: ", err)
	}
	runtime.GC()
	runtime.ReadMemStats(&after)
	glog.Infof("LM memory overhead: %.2fMB", float64(after.Alloc-before.Alloc)/float64(1<<20))

	var corpus [][]word.Id
	glog.Info("loading corpus took ", easy.Timed(func() { corpus = loadCorpus(os.Stdin, model) }))

	numSents := len(corpus)
	var numWords int
	for _, s := range corpus {
		numWords += len(s)
	}

	var score float64
	var numOOVs int
	elapsed := easy.Timed(func() { score, numOOVs = scoreCorpus(model, corpus) })
	glog.Infof("scoring took %v; %g QPS", elapsed, float64(numSents+numWords)*float64(time.Second)/float64(elapsed))

	if numWords > 0 {
		fmt.Printf("%d sents, %d words, %d OOVs\n", numSents, numWords, numOOVs)
		fmt.Printf("logprob=%g ppl=%g ppl1=%g\n",
			score, math.Exp(-score/float64(numSents+numWords)*math.Log(10)),
			math.Exp(-score/float64(numWords)*math.Log(10)))
	}
}

func loadCorpus(r io.Reader, model *lm.Hashed) (sents [][]word.Id) {
	vocab, _, _, _, _ := model.Vocab()
	in := bufio.NewScanner(r)
	for in.Scan() {
		var sent []word.Id
		for _, tok := range bytes.Fields(in.Bytes()) {
			sent = append(sent, vocab.IdOf(string(tok)))
		}
		sents = append(sents, sent)
	}
	if err := in.Err(); err != nil {
		glog.Fatal("when loading corpus: ", err)
	}
	return
}

func scoreCorpus(model *lm.Hashed, corpus [][]word.Id) (total float64, numOOVs int) {
	verbose := glog.V(1)
	for _, sent := range corpus {
		p := model.Start()
		for _, x := range sent {
			var w lm.Weight
			p, w = model.NextI(p, x)
			if w == lm.WEIGHT_LOG0 {
				w = unkScore
				numOOVs++
				if verbose {
					fmt.Printf("<unk>")
				}
			} else if verbose {
				fmt.Printf("%q", x)
			}
			total += float64(w)
			if verbose {
				fmt.Printf("\t%g\t%g\n", w, total)
			}
		}
		w := model.Final(p)
		total += float64(w)
		if verbose {
			fmt.Printf("</s>\t%g\t%g\n\n", w, total)
		}
	}
	return
}

// weightValue adapts *lm.Weight to flag.Value so -unk=-5 parses directly,
// matching the teacher's flag.Var(&unkScore, ...) use against fslm.Weight.
type weightValue struct{ w *lm.Weight }

func (v weightValue) String() string {
	if v.w == nil {
		return "0"
	}
	return fmt.Sprintf("%g", *v.w)
}

func (v weightValue) Set(s string) error {
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err != nil {
		return err
	}
	*v.w = lm.Weight(f)
	return nil
}
