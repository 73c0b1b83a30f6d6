package nnue

import (
	"errors"
	"math"
	"math/rand"
)

// Network dimensions and scale constants.
const (
	// HiddenSize is the accumulator width H. The output layer sees both
	// perspectives, so it has 2*HiddenSize inputs.
	HiddenSize = 256

	// FeatureQuant (QA) scales the feature layer, OutputQuant (QB) the
	// output layer, when the parameters are quantized to integer values.
	FeatureQuant = 255
	OutputQuant  = 64

	// EvalScale converts a network score to a centipawn-like figure.
	EvalScale = 400
)

// ErrAlreadyQuantized is returned by Quantize on a second call;
// quantization is a one-shot, irreversible transition.
var ErrAlreadyQuantized = errors.New("nnue: parameters already quantized")

// ParameterSet holds both linear layers. Weights are stored feature-major
// (Weights[feature*HiddenSize+j]) so that an incremental update touches a
// contiguous column. Values start as floats in [0,1); after Quantize they
// are integer-valued and the QA/QB scales must be divided back out at
// evaluation time.
type ParameterSet struct {
	Layout Layout

	Weights       []float64 // InputSize() * HiddenSize
	Biases        []float64 // HiddenSize
	OutputWeights []float64 // 2 * HiddenSize
	OutputBias    float64

	// Active scales: 1 until quantized.
	QA float64
	QB float64

	quantized bool
}

// NewParameterSet creates an unquantized parameter set with uniform
// random values in [0,1). There is no training pipeline; random
// parameters are only good for structural and equivalence testing.
func NewParameterSet(layout Layout, seed int64) *ParameterSet {
	rng := rand.New(rand.NewSource(seed))
	n := layout.Size()

	p := &ParameterSet{
		Layout:        layout,
		Weights:       make([]float64, n*HiddenSize),
		Biases:        make([]float64, HiddenSize),
		OutputWeights: make([]float64, 2*HiddenSize),
		QA:            1,
		QB:            1,
	}
	for i := range p.Weights {
		p.Weights[i] = rng.Float64()
	}
	for i := range p.Biases {
		p.Biases[i] = rng.Float64()
	}
	for i := range p.OutputWeights {
		p.OutputWeights[i] = rng.Float64()
	}
	return p
}

// InputSize returns the feature-vector length N.
func (p *ParameterSet) InputSize() int {
	return p.Layout.Size()
}

// Quantized reports whether Quantize has run.
func (p *ParameterSet) Quantized() bool {
	return p.quantized
}

// Quantize scales the feature layer by QA and the output layer by QB,
// rounding every parameter to the nearest integer. The output bias is
// scaled by QA*QA*QB because it is added after the squared activation.
// Calling Quantize twice fails with ErrAlreadyQuantized and leaves the
// parameters untouched.
func (p *ParameterSet) Quantize() error {
	if p.quantized {
		return ErrAlreadyQuantized
	}

	for i := range p.Weights {
		p.Weights[i] = math.Round(FeatureQuant * p.Weights[i])
	}
	for i := range p.Biases {
		p.Biases[i] = math.Round(FeatureQuant * p.Biases[i])
	}
	for i := range p.OutputWeights {
		p.OutputWeights[i] = math.Round(OutputQuant * p.OutputWeights[i])
	}
	p.OutputBias = math.Round(FeatureQuant * FeatureQuant * OutputQuant * p.OutputBias)

	p.QA = FeatureQuant
	p.QB = OutputQuant
	p.quantized = true
	return nil
}

// column returns the weight column for one feature index.
func (p *ParameterSet) column(idx int) []float64 {
	return p.Weights[idx*HiddenSize : (idx+1)*HiddenSize]
}
