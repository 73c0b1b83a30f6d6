package nnue

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Weight file format constants.
const (
	// "NVL1" little-endian.
	weightsMagic   = 0x314C564E
	weightsVersion = 1
)

// weightsHeader precedes the raw parameter arrays.
type weightsHeader struct {
	Magic      uint32
	Version    uint32
	InputSize  uint32
	HiddenSize uint32
	Quantized  uint32
	QA         float64
	QB         float64
}

// SaveWeights writes the parameter set to a binary file.
// File format, all little-endian:
//   - header: magic, version, input size, hidden size, quantized flag, QA, QB
//   - Weights: InputSize * HiddenSize * float64
//   - Biases: HiddenSize * float64
//   - OutputWeights: 2 * HiddenSize * float64
//   - OutputBias: float64
func (p *ParameterSet) SaveWeights(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create weights file: %w", err)
	}
	defer f.Close()

	if err := p.writeTo(f); err != nil {
		return err
	}
	return f.Close()
}

func (p *ParameterSet) writeTo(w io.Writer) error {
	quantized := uint32(0)
	if p.quantized {
		quantized = 1
	}
	header := weightsHeader{
		Magic:      weightsMagic,
		Version:    weightsVersion,
		InputSize:  uint32(p.InputSize()),
		HiddenSize: HiddenSize,
		Quantized:  quantized,
		QA:         p.QA,
		QB:         p.QB,
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, p.Weights); err != nil {
		return fmt.Errorf("failed to write weights: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, p.Biases); err != nil {
		return fmt.Errorf("failed to write biases: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, p.OutputWeights); err != nil {
		return fmt.Errorf("failed to write output weights: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, p.OutputBias); err != nil {
		return fmt.Errorf("failed to write output bias: %w", err)
	}
	return nil
}

// LoadWeights loads a parameter set from a binary weights file.
func LoadWeights(filename string) (*ParameterSet, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open weights file: %w", err)
	}
	defer f.Close()

	return LoadWeightsFromReader(f)
}

// LoadWeightsFromReader loads a parameter set from an io.Reader.
func LoadWeightsFromReader(r io.Reader) (*ParameterSet, error) {
	var header weightsHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if header.Magic != weightsMagic {
		return nil, fmt.Errorf("invalid magic number: expected %x, got %x", weightsMagic, header.Magic)
	}
	if header.Version != weightsVersion {
		return nil, fmt.Errorf("unsupported version: expected %d, got %d", weightsVersion, header.Version)
	}
	if header.HiddenSize != HiddenSize {
		return nil, fmt.Errorf("hidden size mismatch: expected %d, got %d", HiddenSize, header.HiddenSize)
	}

	var layout Layout
	switch header.InputSize {
	case CompactSize:
		layout = Compact
	case ExtendedSize:
		layout = Extended
	default:
		return nil, fmt.Errorf("unsupported input size %d", header.InputSize)
	}

	p := &ParameterSet{
		Layout:        layout,
		Weights:       make([]float64, int(header.InputSize)*HiddenSize),
		Biases:        make([]float64, HiddenSize),
		OutputWeights: make([]float64, 2*HiddenSize),
		QA:            header.QA,
		QB:            header.QB,
		quantized:     header.Quantized != 0,
	}

	if err := binary.Read(r, binary.LittleEndian, p.Weights); err != nil {
		return nil, fmt.Errorf("failed to read weights: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, p.Biases); err != nil {
		return nil, fmt.Errorf("failed to read biases: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, p.OutputWeights); err != nil {
		return nil, fmt.Errorf("failed to read output weights: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &p.OutputBias); err != nil {
		return nil, fmt.Errorf("failed to read output bias: %w", err)
	}

	return p, nil
}
