// Package nnue implements an efficiently updatable neural network (NNUE)
// evaluator for chess positions.
//
// The defining property is the accumulator: the hidden layer's
// pre-activation values are maintained incrementally as the position
// changes by one move, instead of being recomputed per evaluation. A
// full recomputation and any chain of incremental updates must agree on
// the resulting score (exactly once the parameters are quantized to
// integer values).
//
// Positions come from the rules library (github.com/notnil/chess); this
// package never parses FEN itself.
package nnue

import "github.com/notnil/chess"

// Evaluator ties an encoder, a parameter set and an accumulator store
// into the two-stage evaluation: EvaluateFull at the start of a line,
// EvaluateIncremental for each successor along it. Each search line
// needs its own Evaluator; the ParameterSet may be shared read-only.
type Evaluator struct {
	params *ParameterSet
	enc    Encoder
	store  *AccumulatorStore
}

// NewEvaluator creates an evaluator over the given parameters.
func NewEvaluator(params *ParameterSet) *Evaluator {
	return &Evaluator{
		params: params,
		enc:    NewEncoder(params.Layout),
		store:  NewAccumulatorStore(params),
	}
}

// Params returns the underlying parameter set.
func (e *Evaluator) Params() *ParameterSet {
	return e.params
}

// Store returns the evaluator's accumulator store.
func (e *Evaluator) Store() *AccumulatorStore {
	return e.store
}

// EvaluateFull encodes the position, recomputes the accumulator from
// scratch and returns the score. Cost O(H*N).
func (e *Evaluator) EvaluateFull(pos *chess.Position) float64 {
	e.store.InitFull(e.enc.Encode(pos))
	return e.forward()
}

// EvaluateIncremental encodes the position, applies the on/off diff
// against the previously evaluated position and returns the score. The
// position must be a direct successor of the one the store currently
// holds; see AccumulatorStore.Advance for the contract.
func (e *Evaluator) EvaluateIncremental(pos *chess.Position) float64 {
	e.store.Advance(e.enc.Encode(pos))
	return e.forward()
}

// Push snapshots the accumulator state before branching.
func (e *Evaluator) Push() {
	e.store.Push()
}

// Pop restores the state saved by the matching Push.
func (e *Evaluator) Pop() error {
	return e.store.Pop()
}

// Verify cross-checks the incremental accumulator against a full
// recomputation. Debug aid only.
func (e *Evaluator) Verify() error {
	return e.store.Verify()
}

// forward applies the shared activation and output stage to the current
// accumulator. The doubled [acc, -acc] vector presents the position from
// both perspectives to the same learned features; each element is
// clipped to [0, QA] (QA=1 while unquantized) and squared before the
// output dot product. The raw output carries a factor of QA*QA*QB, which
// is divided back out so both forward modes share one scaling law.
func (e *Evaluator) forward() float64 {
	acc := e.store.Accumulator()
	bound := e.params.QA

	sum := e.params.OutputBias
	for i, v := range acc {
		sum += clipSquare(v, bound) * e.params.OutputWeights[i]
		sum += clipSquare(-v, bound) * e.params.OutputWeights[HiddenSize+i]
	}

	return sum / (e.params.QA * e.params.QA * e.params.QB)
}

// clipSquare is the clipped-squared activation: square(clip(x, 0, bound)).
func clipSquare(x, bound float64) float64 {
	if x < 0 {
		return 0
	}
	if x > bound {
		x = bound
	}
	return x * x
}

// Centipawns converts a network score to a conventional centipawn-like
// figure by dividing out the evaluation scale.
func Centipawns(score float64) float64 {
	return score / EvalScale
}
