package nnue

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestWeightsRoundTrip(t *testing.T) {
	for _, quantized := range []bool{false, true} {
		params := NewParameterSet(Extended, 314)
		if quantized {
			if err := params.Quantize(); err != nil {
				t.Fatal(err)
			}
		}

		file := filepath.Join(t.TempDir(), "net.nvl")
		if err := params.SaveWeights(file); err != nil {
			t.Fatalf("SaveWeights failed: %v", err)
		}

		loaded, err := LoadWeights(file)
		if err != nil {
			t.Fatalf("LoadWeights failed: %v", err)
		}

		if loaded.Layout != params.Layout {
			t.Errorf("layout %v, want %v", loaded.Layout, params.Layout)
		}
		if loaded.Quantized() != quantized {
			t.Errorf("quantized flag %v, want %v", loaded.Quantized(), quantized)
		}
		if loaded.QA != params.QA || loaded.QB != params.QB {
			t.Errorf("scales QA=%v QB=%v, want QA=%v QB=%v", loaded.QA, loaded.QB, params.QA, params.QB)
		}

		// A reloaded network must score positions identically.
		pos := mustPosition(t, italianFEN)
		before := NewEvaluator(params).EvaluateFull(pos)
		after := NewEvaluator(loaded).EvaluateFull(pos)
		if before != after {
			t.Errorf("score changed across save/load: %v -> %v", before, after)
		}
	}
}

func TestLoadRejectsCorruptHeader(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bogus.nvl")
	if err := os.WriteFile(file, []byte("not a weights file at all"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadWeights(file); err == nil {
		t.Error("loading a corrupt file should fail")
	}
}

func TestLoadRejectsTruncatedFile(t *testing.T) {
	params := NewParameterSet(Compact, 2)

	var buf bytes.Buffer
	if err := params.writeTo(&buf); err != nil {
		t.Fatal(err)
	}

	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()/2])
	if _, err := LoadWeightsFromReader(truncated); err == nil {
		t.Error("loading a truncated file should fail")
	}
}
