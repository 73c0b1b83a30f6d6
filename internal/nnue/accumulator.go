package nnue

import (
	"errors"
	"fmt"
	"math"
)

// ErrEmptyStack is returned by Pop when no snapshot has been pushed.
var ErrEmptyStack = errors.New("nnue: snapshot stack is empty")

// AccumulatorStore maintains the hidden-layer accumulator for one line of
// play. The invariant at every observable point is
//
//	acc == Weights^T * currentInput + Biases
//
// whether acc was produced by InitFull or by any chain of Advance calls.
// A store is owned by a single search line; it is never shared across
// goroutines.
type AccumulatorStore struct {
	params *ParameterSet

	prev FeatureVector
	cur  FeatureVector
	acc  []float64

	stack []snapshot
	ready bool
}

// snapshot captures the state restored by Pop. Diffs are not inverted
// arithmetically; restoring a copy is O(H) and immune to drift.
type snapshot struct {
	input FeatureVector
	acc   []float64
	ready bool
}

// NewAccumulatorStore creates an uninitialized store over the given
// parameters.
func NewAccumulatorStore(params *ParameterSet) *AccumulatorStore {
	return &AccumulatorStore{
		params: params,
		acc:    make([]float64, HiddenSize),
	}
}

// Ready reports whether the store holds a valid accumulator.
func (s *AccumulatorStore) Ready() bool {
	return s.ready
}

// Accumulator returns the current hidden-layer values. The slice is owned
// by the store and only valid until the next update.
func (s *AccumulatorStore) Accumulator() []float64 {
	return s.acc
}

// InitFull recomputes the accumulator from scratch for the given feature
// vector. Cost O(H*N). Use at the root of a line or after any jump that
// invalidates the incremental history.
func (s *AccumulatorStore) InitFull(features FeatureVector) {
	s.checkSize(features)
	s.cur = features.Clone()
	s.prev = s.cur

	copy(s.acc, s.params.Biases)
	for i, on := range s.cur {
		if on {
			s.addColumn(i)
		}
	}
	s.ready = true
}

// Advance moves the store to a successor position's feature vector,
// updating the accumulator by the on/off diff only. Cost O(H*|diff|).
//
// The caller guarantees that features belongs to a direct successor of
// the stored position; Advance does not validate the diff against any
// legal move. A store that has never been initialized falls back to a
// full computation.
func (s *AccumulatorStore) Advance(features FeatureVector) {
	if !s.ready {
		s.InitFull(features)
		return
	}
	s.checkSize(features)

	s.prev = s.cur
	s.cur = features.Clone()

	on, off := Diff(s.prev, s.cur)
	for _, idx := range on {
		s.addColumn(idx)
	}
	for _, idx := range off {
		s.subColumn(idx)
	}
}

// Push saves the current state. Call before Advance when the line may
// backtrack.
func (s *AccumulatorStore) Push() {
	saved := make([]float64, HiddenSize)
	copy(saved, s.acc)
	s.stack = append(s.stack, snapshot{input: s.cur.Clone(), acc: saved, ready: s.ready})
}

// Pop restores the most recently pushed state in O(H). Popping back to a
// state saved before the store was initialized returns it to the
// uninitialized state, so the next Advance recomputes in full.
func (s *AccumulatorStore) Pop() error {
	if len(s.stack) == 0 {
		return ErrEmptyStack
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]

	s.cur = top.input
	s.prev = top.input
	copy(s.acc, top.acc)
	s.ready = top.ready
	return nil
}

// Depth returns the number of snapshots on the stack.
func (s *AccumulatorStore) Depth() int {
	return len(s.stack)
}

// Verify recomputes the accumulator from the current feature vector and
// compares it to the incrementally maintained one. It exists to catch
// violations of the Advance contract in debug runs; it is O(H*N) and has
// no place on a hot path.
func (s *AccumulatorStore) Verify() error {
	if !s.ready {
		return errors.New("nnue: accumulator not initialized")
	}

	want := make([]float64, HiddenSize)
	copy(want, s.params.Biases)
	for i, on := range s.cur {
		if on {
			col := s.params.column(i)
			for j := range want {
				want[j] += col[j]
			}
		}
	}

	for j := range want {
		if !almostEqual(s.acc[j], want[j]) {
			return fmt.Errorf("nnue: accumulator desynchronized at %d: have %g, want %g",
				j, s.acc[j], want[j])
		}
	}
	return nil
}

func (s *AccumulatorStore) addColumn(idx int) {
	col := s.params.column(idx)
	for j := range s.acc {
		s.acc[j] += col[j]
	}
}

func (s *AccumulatorStore) subColumn(idx int) {
	col := s.params.column(idx)
	for j := range s.acc {
		s.acc[j] -= col[j]
	}
}

func (s *AccumulatorStore) checkSize(features FeatureVector) {
	if len(features) != s.params.InputSize() {
		panic(fmt.Sprintf("nnue: feature vector length %d does not match layout %v",
			len(features), s.params.Layout))
	}
}

// almostEqual compares accumulator entries. Quantized parameters are
// integer-valued so the incremental and full paths agree exactly; float
// parameters accumulate in different orders and need a small tolerance.
func almostEqual(a, b float64) bool {
	const eps = 1e-9
	diff := math.Abs(a - b)
	return diff <= eps || diff <= eps*math.Max(math.Abs(a), math.Abs(b))
}
