// Package engine implements the decoding core's control surface (spec
// §6): the Engine type sequences model loading, per-utterance pass-1 and
// pass-2 decoding, and the pause/terminate/resume/reload-grammar signals
// that cross into the decode loop from outside it. Grounded on the
// teacher's own top-level sequencing style (kho-fslm's cmd/score.go
// loads a model once then runs many scoring operations against it) and
// generalized to the engine's own idle/pass1/pass2/result state machine.
package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/julius-speech/julius-sub004/internal/acoustic"
	"github.com/julius-speech/julius-sub004/internal/config"
	"github.com/julius-speech/julius-sub004/internal/decoder"
	"github.com/julius-speech/julius-sub004/internal/evaluator"
	"github.com/julius-speech/julius-sub004/internal/feature"
	"github.com/julius-speech/julius-sub004/internal/grammar"
	"github.com/julius-speech/julius-sub004/internal/hmm"
	"github.com/julius-speech/julius-sub004/internal/lexicon"
	"github.com/julius-speech/julius-sub004/internal/lm"
	"github.com/julius-speech/julius-sub004/internal/telemetry"
	"github.com/kho/word"
)

// State is the engine's own position in its per-utterance state machine.
type State int

const (
	StateIdle State = iota
	StatePass1
	StatePass2
	StateResult
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePass1:
		return "pass1"
	case StatePass2:
		return "pass2"
	case StateResult:
		return "result"
	default:
		return "unknown"
	}
}

const (
	flagPause     int32 = 1 << 0
	flagTerminate int32 = 1 << 1
)

// errTerminated is returned by a checkpoint when RequestTerminate fired
// while that checkpoint was being sampled; RecognizeOneUtterance turns it
// into an "aborted" outcome rather than propagating it to the caller, per
// spec.md §7's "decode errors are non-fatal" policy.
var errTerminated = fmt.Errorf("engine: utterance terminated")

// hashScale sizes the Hashed LM's probing hash table; 1.5 is
// Builder.moveHashed's own fallback when no caller-supplied value is
// greater than 1.
const hashScale = 1.5

// FrameSource is the pull iterator a streaming front end exposes instead
// of pushing frames via callback (spec.md §9's "coroutines-of-sorts"
// design note): At reports frame t if it has arrived, Done reports
// whether the producer has finished supplying frames, and Len reports
// how many have arrived so far. *feature.StreamBuffer satisfies this
// directly.
type FrameSource interface {
	At(t int) (feature.Frame, bool)
	Len() int
	Done() bool
}

// WordResult is one recognized word with its re-aligned span and scores.
type WordResult struct {
	Word    word.Id
	Text    string
	Begin   int
	End     int
	AMScore float64
	LMScore float64
}

// Hypothesis is one ranked recognition result within an utterance's
// N-best list.
type Hypothesis struct {
	Words      []WordResult
	Score      float64
	Rank       int
	Confidence float64 // average graph posterior over the hypothesis's words; 0 if not computed
}

// Outcome names how an utterance's recognition attempt concluded.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeNoPath  Outcome = "no_path"
	OutcomeAborted Outcome = "aborted"
)

// Result is the per-utterance record the control surface returns (spec.md
// §6's "Result output").
type Result struct {
	UtteranceID uuid.UUID
	Outcome     Outcome
	NBest       []Hypothesis
}

// Engine sequences model loading and utterance decoding. The zero value
// is not usable; construct with New and call Load before OpenStream.
type Engine struct {
	cfg config.Config

	tree    *lexicon.Tree
	model   *hmm.Model
	scorer  *acoustic.Scorer
	vocab   *word.Vocab
	bos     word.Id
	eos     word.Id
	entries []lexicon.Entry

	mu        sync.Mutex
	eval      evaluator.Evaluator
	pass2Eval evaluator.Evaluator // scores words in utterance-reverse order; see Load

	pendingGrammar atomic.Pointer[grammar.DFA]

	flags  atomic.Int32
	state  atomic.Int32 // holds a State
	source FrameSource

	metrics *telemetry.Metrics
}

// New returns an unloaded Engine. Call Load before any other method.
func New(metrics *telemetry.Metrics) *Engine {
	return &Engine{metrics: metrics}
}

// Load reads every model input cfg.Paths names, builds the tree lexicon
// and linguistic evaluator, and leaves the engine ready for OpenStream.
// Load-time errors are fatal and propagate directly to the caller, per
// spec.md §7.
func (e *Engine) Load(cfg config.Config) error {
	model, err := loadHMMModel(cfg.Paths.AcousticModel, cfg.Paths.HMMList)
	if err != nil {
		return fmt.Errorf("engine: load acoustic model: %w", err)
	}

	entries, parseErrs, err := loadDictionary(cfg.Paths.Dictionary)
	if err != nil {
		return fmt.Errorf("engine: load dictionary: %w", err)
	}
	for _, pe := range parseErrs {
		glog.Warningf("engine: %v", pe)
	}

	var eval, pass2Eval evaluator.Evaluator
	var vocab *word.Vocab
	var bos, eos word.Id

	if cfg.Paths.GrammarFile != "" {
		dfa, v, b, s, gerr := loadGrammar(cfg.Paths.GrammarFile, entries)
		if gerr != nil {
			return fmt.Errorf("engine: load grammar: %w", gerr)
		}
		eval = evaluator.NewGrammar(dfa, b, s)
		pass2Eval = eval
		vocab, bos, eos = v, b, s
	} else {
		lmModel, lerr := lm.FromARPAFile(cfg.Paths.LanguageModel, hashScale)
		if lerr != nil {
			return fmt.Errorf("engine: load language model: %w", lerr)
		}
		v, _, _, b, s := lmModel.Vocab()
		eval = evaluator.NewNGram(lmModel, "<unk>")
		vocab, bos, eos = v, b, s

		if cfg.Paths.ReverseLanguageModel != "" {
			reverseModel, rerr := lm.FromARPAFile(cfg.Paths.ReverseLanguageModel, hashScale)
			if rerr != nil {
				return fmt.Errorf("engine: load reverse language model: %w", rerr)
			}
			pass2Eval = evaluator.NewNGram(reverseModel, "<unk>")
		} else {
			pass2Eval = evaluator.NewNGram(lm.NewReversed(lmModel), "<unk>")
		}
	}

	scorer := acoustic.NewScorer(model)
	wordScore := &unigramWordScorer{eval: eval, vocab: vocab, words: entries}
	tree, terr := lexicon.BuildTree(entries, wordScore, lexicon.BuildOptions{Model: model})
	if terr != nil {
		return fmt.Errorf("engine: build lexicon tree: %w", terr)
	}

	e.mu.Lock()
	e.cfg = cfg
	e.model = model
	e.tree = tree
	e.scorer = scorer
	e.vocab = vocab
	e.bos = bos
	e.eos = eos
	e.eval = eval
	e.pass2Eval = pass2Eval
	e.entries = entries
	e.mu.Unlock()

	e.state.Store(int32(StateIdle))
	glog.V(1).Infof("engine: loaded %d dictionary entries, %d tree nodes", len(entries), tree.NumNodes())
	return nil
}

// unigramWordScorer adapts an Evaluator's sentence-start context to
// lexicon.WordScorer, the "generic-context LM log-probability" the tree
// lexicon's factoring-score propagation needs for every word id.
type unigramWordScorer struct {
	eval  evaluator.Evaluator
	vocab *word.Vocab
	words []lexicon.Entry
}

func (s *unigramWordScorer) Score(wordID int) float64 {
	w := s.vocab.IdOf(s.words[wordID].Word)
	if w == word.NIL {
		return evaluator.LogZero
	}
	_, logp := s.eval.LogP(s.eval.Start(), w)
	return logp
}

// OpenStream attaches src as the frame source for subsequent
// RecognizeOneUtterance calls. Only one stream may be open at a time.
func (e *Engine) OpenStream(src FrameSource) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.source != nil {
		return fmt.Errorf("engine: a stream is already open")
	}
	e.source = src
	return nil
}

// CloseStream detaches the current frame source.
func (e *Engine) CloseStream() {
	e.mu.Lock()
	e.source = nil
	e.mu.Unlock()
}

// RequestPause sets the pause flag; the decode loop blocks at its next
// checkpoint until RequestResume or RequestTerminate.
func (e *Engine) RequestPause() { e.flags.Or(flagPause) }

// RequestResume clears the pause flag.
func (e *Engine) RequestResume() { e.flags.And(^flagPause) }

// RequestTerminate sets the terminate flag; the current utterance (if
// any) is abandoned at its next checkpoint and its buffers released.
func (e *Engine) RequestTerminate() { e.flags.Or(flagTerminate) }

// ReloadGrammar parses and compiles a new DFA grammar from path against
// the engine's current vocabulary, returning any load error synchronously
// (spec.md §7's load-errors-propagate-to-caller policy), but defers
// actually switching the active evaluator to the next between-utterance
// checkpoint per spec.md §5's "honoured only at the between-utterance
// checkpoint" rule.
func (e *Engine) ReloadGrammar(path string) error {
	e.mu.Lock()
	entries := e.entries
	e.mu.Unlock()

	b, err := grammar.ParseFile(path)
	if err != nil {
		return fmt.Errorf("engine: parse grammar %q: %w", path, err)
	}
	dfa := b.Compile()
	dfa.FinalizeCategoryPairs()
	if err := dfa.AssignVocabulary(wordCategoriesFromEntries(entries)); err != nil {
		return fmt.Errorf("engine: assign vocabulary to grammar %q: %w", path, err)
	}

	e.pendingGrammar.Store(dfa)
	return nil
}

// wordCategoriesFromEntries builds the per-word category table
// AssignVocabulary needs from the dictionary's own class-prob column
// (spec Input 5: "Category ids are integers that the dictionary points
// to via a per-word wton[]" -- this repo's dictionary parser already
// carries that column as Entry.ClassProb for class N-gram dictionaries,
// so a DFA grammar's category table reuses the same column rather than
// inventing a second per-word integer field).
func wordCategoriesFromEntries(entries []lexicon.Entry) []grammar.WordCategory {
	cats := make([]grammar.WordCategory, len(entries))
	for i, e := range entries {
		cats[i] = grammar.WordCategory{Word: word.Id(i), Category: grammar.Category(int(e.ClassProb))}
	}
	return cats
}

// RequestReloadGrammar is the fire-and-forget entry point a
// config.Watcher's onChange callback invokes: it wraps ReloadGrammar,
// logging rather than returning any load failure, since a watcher
// goroutine has no caller to hand an error back to.
func (e *Engine) RequestReloadGrammar(path string) {
	if err := e.ReloadGrammar(path); err != nil {
		glog.Warningf("engine: grammar hot-reload failed: %v", err)
		if e.metrics != nil {
			e.metrics.RecordGrammarReload(context.Background(), "failed")
		}
		return
	}
	if e.metrics != nil {
		e.metrics.RecordGrammarReload(context.Background(), "queued")
	}
}

// checkpoint samples the pause/terminate flag word. It blocks while
// paused, waking either on resume or terminate, and returns
// errTerminated once terminate has been observed.
func (e *Engine) checkpoint() error {
	for {
		f := e.flags.Load()
		if f&flagTerminate != 0 {
			return errTerminated
		}
		if f&flagPause == 0 {
			return nil
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// RecognizeOneUtterance drains the open stream's frames, runs pass-1 and
// pass-2 over them, and returns the resulting N-best record. A decode
// error (empty utterance, all-pruned beam, or a mid-decode terminate) is
// reflected in the result's Outcome rather than returned as an error, per
// spec.md §7.
func (e *Engine) RecognizeOneUtterance() (*Result, error) {
	if err := e.checkpoint(); err != nil {
		return e.abortedResult(), nil
	}

	if dfa := e.pendingGrammar.Swap(nil); dfa != nil {
		e.mu.Lock()
		e.eval = evaluator.NewGrammar(dfa, e.bos, e.eos)
		e.pass2Eval = e.eval
		e.mu.Unlock()
		if e.metrics != nil {
			e.metrics.RecordGrammarReload(context.Background(), "applied")
		}
		glog.V(1).Info("engine: applied pending grammar reload at utterance boundary")
	}

	e.mu.Lock()
	src := e.source
	e.mu.Unlock()
	if src == nil {
		return nil, fmt.Errorf("engine: no stream open")
	}

	id := uuid.New()
	uttStart := time.Now()
	frames, err := e.drain(src)
	if err != nil {
		return e.abortedResult(), nil
	}
	if len(frames) == 0 {
		return &Result{UtteranceID: id, Outcome: OutcomeNoPath}, nil
	}

	e.state.Store(int32(StatePass1))
	start := time.Now()
	e.mu.Lock()
	tree, model, scorer, eval, pass2Eval := e.tree, e.model, e.scorer, e.eval, e.pass2Eval
	pass1Cfg := decoder.Pass1Config{BeamWidth: e.cfg.Decoder.BeamWidth, Envelope: e.cfg.Decoder.Envelope, WordPair: e.cfg.Decoder.WordPair}
	pass2Cfg := decoder.Pass2Config{
		MaxPops:       e.cfg.Decoder.MaxPops,
		MaxExpansions: e.cfg.Decoder.MaxExpansions,
		Beam:          e.cfg.Decoder.Pass2Beam,
		MaxWordSpan:   e.cfg.Decoder.MaxWordSpan,
		NBest:         e.cfg.Decoder.NBest,
	}
	e.mu.Unlock()

	p1 := decoder.NewPass1(tree, model, eval, scorer, pass1Cfg)
	p1.Checkpoint = e.checkpoint
	trellis, err := p1.Run(frames)
	if e.metrics != nil {
		e.metrics.Pass1Duration.Record(context.Background(), time.Since(start).Seconds())
	}
	if err != nil {
		return e.abortedResult(), nil
	}

	e.state.Store(int32(StatePass2))
	start = time.Now()
	p2 := decoder.NewPass2(tree, model, pass2Eval, scorer, pass2Cfg)
	p2.Checkpoint = e.checkpoint
	hyps, err := p2.Run(frames, trellis)
	if e.metrics != nil {
		e.metrics.Pass2Duration.Record(context.Background(), time.Since(start).Seconds())
	}
	if err != nil {
		return e.abortedResult(), nil
	}
	if len(hyps) == 0 {
		e.state.Store(int32(StateIdle))
		if e.metrics != nil {
			e.metrics.RecordUtterance(context.Background(), string(OutcomeNoPath), time.Since(uttStart).Seconds())
		}
		return &Result{UtteranceID: id, Outcome: OutcomeNoPath}, nil
	}

	e.state.Store(int32(StateResult))
	graph := p2.BuildGraph(len(frames))
	result := &Result{UtteranceID: id, Outcome: OutcomeOK, NBest: make([]Hypothesis, len(hyps))}
	for i, h := range hyps {
		result.NBest[i] = e.toHypothesis(h, i, graph)
	}
	if e.metrics != nil {
		e.metrics.RecordUtterance(context.Background(), string(OutcomeOK), time.Since(uttStart).Seconds())
	}
	e.state.Store(int32(StateIdle))
	return result, nil
}

// abortedResult also clears the terminate flag, so one RequestTerminate
// aborts exactly one utterance.
func (e *Engine) abortedResult() *Result {
	e.flags.And(^flagTerminate)
	e.state.Store(int32(StateIdle))
	if e.metrics != nil {
		e.metrics.RecordUtterance(context.Background(), string(OutcomeAborted), 0)
	}
	return &Result{UtteranceID: uuid.New(), Outcome: OutcomeAborted}
}

// drain polls src until the producer signals Done, checking the
// between-frame checkpoint on every poll so a terminate request is
// observed even while still waiting for input rather than only once
// decoding starts.
func (e *Engine) drain(src FrameSource) ([]feature.Frame, error) {
	for !src.Done() {
		if err := e.checkpoint(); err != nil {
			return nil, err
		}
		time.Sleep(time.Millisecond)
	}
	n := src.Len()
	frames := make([]feature.Frame, 0, n)
	for t := 0; t < n; t++ {
		f, ok := src.At(t)
		if !ok {
			break
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func (e *Engine) toHypothesis(h *decoder.Hypothesis, rank int, graph *decoder.WordGraph) Hypothesis {
	words := h.Words()
	out := Hypothesis{Rank: rank, Score: h.G, Words: make([]WordResult, 0, len(words))}

	var confSum float64
	var confN int
	for cur := h; cur != nil; cur = cur.Prev {
		wr := WordResult{
			Word:    cur.Word,
			Text:    e.vocab.StringOf(cur.Word),
			Begin:   cur.Begin,
			End:     cur.End,
			AMScore: cur.WordAM,
			LMScore: cur.WordLM,
		}
		out.Words = append(out.Words, wr)
		if id, ok := findGraphNode(graph, cur.Word, cur.Begin, cur.End); ok {
			confSum += graph.Posterior(id)
			confN++
		}
	}
	if confN > 0 {
		out.Confidence = confSum / float64(confN)
	}
	return out
}

func findGraphNode(g *decoder.WordGraph, w word.Id, begin, end int) (decoder.GraphNodeId, bool) {
	for i := 0; i < g.NumNodes(); i++ {
		n := g.Node(decoder.GraphNodeId(i))
		if n.Word == w && n.Begin == begin && n.End == end {
			return decoder.GraphNodeId(i), true
		}
	}
	return 0, false
}

func loadHMMModel(modelPath, listPath string) (*hmm.Model, error) {
	data, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, err
	}
	m := hmm.NewModel()
	peek := bufio.NewReader(bytes.NewReader(data))
	ok, _, _, derr := hmm.DetectBinary(peek)
	if derr != nil {
		return nil, derr
	}
	if ok {
		if err := hmm.ReadBinary(bytes.NewReader(data), m); err != nil {
			return nil, err
		}
	} else {
		if err := hmm.ParseHTKText(bytes.NewReader(data), m); err != nil {
			return nil, err
		}
	}

	listData, err := os.ReadFile(listPath)
	if err != nil {
		return nil, err
	}
	if err := hmm.ParseHMMList(bytes.NewReader(listData), m); err != nil {
		return nil, err
	}
	return m, nil
}

func loadDictionary(path string) ([]lexicon.Entry, []*lexicon.ParseError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return lexicon.ParseDict(bytes.NewReader(data), false)
}

func loadGrammar(path string, entries []lexicon.Entry) (*grammar.DFA, *word.Vocab, word.Id, word.Id, error) {
	names := make([]string, 0, len(entries)+2)
	for _, e := range entries {
		names = append(names, e.Word)
	}
	names = append(names, "<s>", "</s>")
	vocab := word.NewVocab(names)
	bos := vocab.IdOf("<s>")
	eos := vocab.IdOf("</s>")

	b, err := grammar.ParseFile(path)
	if err != nil {
		return nil, nil, word.NIL, word.NIL, err
	}
	dfa := b.Compile()
	dfa.FinalizeCategoryPairs()
	if err := dfa.AssignVocabulary(wordCategoriesFromEntries(entries)); err != nil {
		return nil, nil, word.NIL, word.NIL, err
	}
	return dfa, vocab, bos, eos, nil
}
