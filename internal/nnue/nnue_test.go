package nnue

import "testing"

// sicilianLine is a sequence of direct successor positions from the
// starting position (1. e4 c5 2. Nf3 d6 3. d4 cxd4).
var sicilianLine = []string{
	startFEN,
	afterE4FEN,
	sicilianFEN,
	"rnbqkbnr/pp1ppppp/8/2p5/4P3/5N2/PPPP1PPP/RNBQKB1R b KQkq - 1 2",
	"rnbqkbnr/pp2pppp/3p4/2p5/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 0 3",
	"rnbqkbnr/pp2pppp/3p4/2p5/3PP3/5N2/PPP2PPP/RNBQKB1R b KQkq d3 0 3",
	"rnbqkbnr/pp2pppp/3p4/8/3pP3/5N2/PPP2PPP/RNBQKB1R w KQkq - 0 4",
}

// TestLineIsDirectSuccessorChain guards the fixtures themselves: every
// step of sicilianLine must be reachable from its predecessor by one
// legal move, otherwise the equivalence tests exercise arbitrary bit
// flips instead of real moves.
func TestLineIsDirectSuccessorChain(t *testing.T) {
	enc := NewEncoder(Compact)

	for i := 1; i < len(sicilianLine); i++ {
		pos := mustPosition(t, sicilianLine[i-1])
		next := mustPosition(t, sicilianLine[i])
		want := enc.Encode(next)

		reachable := false
		for _, move := range pos.ValidMoves() {
			child := pos.Update(move)
			if child.Turn() != next.Turn() {
				continue
			}
			got := enc.Encode(child)
			same := true
			for j := range want {
				if got[j] != want[j] {
					same = false
					break
				}
			}
			if same {
				reachable = true
				break
			}
		}
		if !reachable {
			t.Errorf("no legal move leads from %q to %q", sicilianLine[i-1], sicilianLine[i])
		}
	}
}

func TestIncrementalMatchesFullAlongLine(t *testing.T) {
	for _, layout := range []Layout{Compact, Extended} {
		for _, quantized := range []bool{false, true} {
			params := NewParameterSet(layout, 42)
			if quantized {
				if err := params.Quantize(); err != nil {
					t.Fatal(err)
				}
			}

			eval := NewEvaluator(params)
			ref := NewEvaluator(params)

			score := eval.EvaluateFull(mustPosition(t, sicilianLine[0]))
			for _, fen := range sicilianLine[1:] {
				pos := mustPosition(t, fen)
				score = eval.EvaluateIncremental(pos)
				want := ref.EvaluateFull(pos)

				if quantized {
					if score != want {
						t.Fatalf("%v quantized %q: incremental %v != full %v", layout, fen, score, want)
					}
				} else if !almostEqual(score, want) {
					t.Fatalf("%v float %q: incremental %v, full %v (outside tolerance)", layout, fen, score, want)
				}
			}
			t.Logf("%v quantized=%v: final score %.4f (%.2f cp)", layout, quantized, score, Centipawns(score))
		}
	}
}

func TestIncrementalMatchesFullOverLegalMoves(t *testing.T) {
	params := NewParameterSet(Extended, 77)
	if err := params.Quantize(); err != nil {
		t.Fatal(err)
	}

	eval := NewEvaluator(params)
	ref := NewEvaluator(params)

	pos := mustPosition(t, italianFEN)
	eval.EvaluateFull(pos)

	for _, move := range pos.ValidMoves() {
		eval.Push()
		child := pos.Update(move)

		inc := eval.EvaluateIncremental(child)
		if err := eval.Verify(); err != nil {
			t.Fatalf("after %s: %v", move, err)
		}
		if full := ref.EvaluateFull(child); inc != full {
			t.Errorf("after %s: incremental %v != full %v", move, inc, full)
		}

		if err := eval.Pop(); err != nil {
			t.Fatalf("Pop after %s: %v", move, err)
		}
	}
}

func TestEvaluateAfterBacktrack(t *testing.T) {
	params := NewParameterSet(Compact, 101)
	if err := params.Quantize(); err != nil {
		t.Fatal(err)
	}

	eval := NewEvaluator(params)
	ref := NewEvaluator(params)

	p1 := mustPosition(t, afterE4FEN)
	p2 := mustPosition(t, sicilianFEN)

	eval.EvaluateFull(p1)
	eval.Push()
	eval.EvaluateIncremental(p2)
	if err := eval.Pop(); err != nil {
		t.Fatal(err)
	}

	// Branching to a different successor after backtracking must agree
	// with an independent full evaluation.
	p3 := mustPosition(t, "rnbqkbnr/ppppp1pp/8/5p2/4P3/8/PPPP1PPP/RNBQKBNR w KQkq f6 0 2")
	if got, want := eval.EvaluateIncremental(p3), ref.EvaluateFull(p3); got != want {
		t.Errorf("after backtrack: incremental %v != full %v", got, want)
	}
}

func TestUnquantizedScalesAreNoOp(t *testing.T) {
	params := NewParameterSet(Compact, 55)
	eval := NewEvaluator(params)

	pos := mustPosition(t, startFEN)
	score := eval.EvaluateFull(pos)

	// With QA=QB=1 the rescale divides by one: recompute the raw output
	// by hand and compare.
	acc := eval.Store().Accumulator()
	want := params.OutputBias
	for i, v := range acc {
		want += clipSquare(v, 1) * params.OutputWeights[i]
		want += clipSquare(-v, 1) * params.OutputWeights[HiddenSize+i]
	}
	if score != want {
		t.Errorf("unquantized score %v, want raw output %v", score, want)
	}
}

func TestEvaluatorsDoNotShareState(t *testing.T) {
	params := NewParameterSet(Extended, 9)
	if err := params.Quantize(); err != nil {
		t.Fatal(err)
	}

	a := NewEvaluator(params)
	b := NewEvaluator(params)

	p1 := mustPosition(t, startFEN)
	p2 := mustPosition(t, afterE4FEN)

	scoreA := a.EvaluateFull(p1)
	b.EvaluateFull(p2)
	b.EvaluateIncremental(mustPosition(t, sicilianFEN))

	// Advancing b must not disturb a.
	if again := a.EvaluateIncremental(p1); again != scoreA {
		t.Errorf("evaluator a changed from %v to %v after activity on b", scoreA, again)
	}
}
