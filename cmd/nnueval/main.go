// Command nnueval evaluates chess positions with the incrementally
// updatable network and cross-checks the incremental forward pass
// against full recomputation over every legal successor.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/notnil/chess"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/nnueval/internal/cache"
	"github.com/hailam/nnueval/internal/nnue"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	layoutName = flag.String("layout", "extended", "feature layout: compact or extended")
	seed       = flag.Int64("seed", 12345, "seed for random parameter initialization")
	quantize   = flag.Bool("quantize", true, "quantize parameters to integer scale")
	weightsIn  = flag.String("weights", "", "load parameters from a weights file")
	weightsOut = flag.String("save", "", "save parameters to a weights file")
	fensFile   = flag.String("fens", "", "read FENs from a file, one per line")
	useCache   = flag.Bool("cache", false, "cache scores in BadgerDB")
	cacheDir   = flag.String("cache-dir", "", "cache directory (default: platform data dir)")
	workers    = flag.Int("workers", 1, "number of parallel evaluation workers")
	check      = flag.Bool("check", false, "verify incremental results against full recomputation")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
)

func main() {
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	params, err := buildParams()
	if err != nil {
		log.Fatal(err)
	}
	if *weightsOut != "" {
		if err := params.SaveWeights(*weightsOut); err != nil {
			log.Fatal(err)
		}
		log.Printf("saved weights to %s", *weightsOut)
	}

	fens, err := collectFENs()
	if err != nil {
		log.Fatal(err)
	}

	var scores *cache.Cache
	if *useCache {
		scores, err = cache.Open(*cacheDir)
		if err != nil {
			log.Fatal(err)
		}
		defer scores.Close()
	}

	if err := run(params, fens, scores, *workers); err != nil {
		log.Fatal(err)
	}
}

// buildParams loads or initializes the parameter set. Quantization must
// happen before any evaluator is created so it cannot race with use.
func buildParams() (*nnue.ParameterSet, error) {
	if *weightsIn != "" {
		params, err := nnue.LoadWeights(*weightsIn)
		if err != nil {
			return nil, err
		}
		log.Printf("loaded %v weights from %s (quantized=%v)",
			params.Layout, *weightsIn, params.Quantized())
		return params, nil
	}

	layout, err := nnue.ParseLayout(*layoutName)
	if err != nil {
		return nil, err
	}
	params := nnue.NewParameterSet(layout, *seed)
	if *quantize {
		if err := params.Quantize(); err != nil {
			return nil, err
		}
	}
	return params, nil
}

func collectFENs() ([]string, error) {
	fens := flag.Args()

	if *fensFile != "" {
		f, err := os.Open(*fensFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				fens = append(fens, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(fens) == 0 {
		fens = []string{startFEN}
	}
	return fens, nil
}

// run fans positions out over workers. Every worker owns a private
// evaluator pair; only the read-only parameter set is shared. At least
// one consumer always starts, or the producer would block forever.
func run(params *nnue.ParameterSet, fens []string, scores *cache.Cache, numWorkers int) error {
	if numWorkers < 1 {
		numWorkers = 1
	}
	queue := make(chan string)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < numWorkers; i++ {
		g.Go(func() error {
			w := &worker{
				eval:   nnue.NewEvaluator(params),
				ref:    nnue.NewEvaluator(params),
				scores: scores,
			}
			for fen := range queue {
				if err := w.evaluate(fen); err != nil {
					return err
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(queue)
		for _, fen := range fens {
			select {
			case queue <- fen:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return g.Wait()
}

type worker struct {
	eval   *nnue.Evaluator
	ref    *nnue.Evaluator
	scores *cache.Cache
}

func (w *worker) evaluate(fen string) error {
	fenOpt, err := chess.FEN(fen)
	if err != nil {
		return fmt.Errorf("parse %q: %w", fen, err)
	}
	pos := chess.NewGame(fenOpt).Position()

	switch pos.Status() {
	case chess.Checkmate:
		log.Printf("%s: side to move is checkmated", fen)
		return nil
	case chess.Stalemate:
		log.Printf("%s: stalemate", fen)
		return nil
	}

	if w.scores != nil {
		if score, ok, err := w.scores.Get(pos.String()); err != nil {
			return err
		} else if ok {
			log.Printf("%s: score %.4f (%.2f cp, cached)", fen, score, nnue.Centipawns(score))
			return nil
		}
	}

	score := w.eval.EvaluateFull(pos)
	log.Printf("%s: score %.4f (%.2f cp)", fen, score, nnue.Centipawns(score))

	if w.scores != nil {
		if err := w.scores.Put(pos.String(), score); err != nil {
			return err
		}
	}

	// Walk every legal successor the way a search would: snapshot,
	// advance, evaluate, backtrack.
	for _, move := range pos.ValidMoves() {
		w.eval.Push()
		child := pos.Update(move)
		inc := w.eval.EvaluateIncremental(child)

		if *check {
			if err := w.eval.Verify(); err != nil {
				return fmt.Errorf("after %s: %w", move, err)
			}
			full := w.ref.EvaluateFull(child)
			if !scoresAgree(inc, full, w.eval.Params().Quantized()) {
				return fmt.Errorf("after %s: incremental %g != full %g", move, inc, full)
			}
		}

		if err := w.eval.Pop(); err != nil {
			return err
		}
	}

	return nil
}

func scoresAgree(a, b float64, quantized bool) bool {
	if quantized {
		return a == b
	}
	diff := math.Abs(a - b)
	return diff <= 1e-9 || diff <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}
