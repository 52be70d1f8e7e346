package main

import (
	"bytes"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestClipGradient(t *testing.T) {
	g := mat.NewDense(1, 5, []float64{-20, -10, 0, 5, 17})
	clipGradient(g, -10, 10)

	want := []float64{-10, -10, 0, 5, 10}
	for i, w := range want {
		if v := g.At(0, i); v != w {
			t.Errorf("element %d: expected %f, got %f", i, w, v)
		}
	}

	// A nil gradient is passed through untouched.
	clipGradient(nil, -10, 10)
}

func TestRMSPropNilGradient(t *testing.T) {
	opt := NewRMSProp(0.1, 0.9)
	param := mat.NewDense(1, 2, []float64{1, 2})

	opt.Apply("w", param, nil)

	if param.At(0, 0) != 1 || param.At(0, 1) != 2 {
		t.Errorf("nil gradient modified parameter: %v", param.RawMatrix().Data)
	}
}

func TestRMSPropMovesAgainstGradient(t *testing.T) {
	opt := NewRMSProp(0.1, 0.9)
	param := mat.NewDense(1, 2, []float64{1, -1})
	grad := mat.NewDense(1, 2, []float64{2, -2})

	opt.Apply("w", param, grad)

	if param.At(0, 0) >= 1 {
		t.Errorf("positive gradient should decrease parameter, got %f", param.At(0, 0))
	}
	if param.At(0, 1) <= -1 {
		t.Errorf("negative gradient should increase parameter, got %f", param.At(0, 1))
	}
}

func testController(t *testing.T, lr float64, seed int64) *RecurrentController {
	t.Helper()
	c, err := NewRecurrentController(ControllerConfig{
		HiddenSize:   16,
		VocabSize:    10,
		LearningRate: lr,
		Momentum:     0.9,
		ClipLow:      -10,
		ClipHigh:     10,
		Seed:         seed,
	})
	if err != nil {
		t.Fatalf("building controller: %v", err)
	}
	return c
}

func TestControllerTrainStepLoss(t *testing.T) {
	c := testController(t, 1e-4, 7)

	enc, err := EncodeSample([]int{3, 7, 7, 9, 0, 9, 0}, 0, 10)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	loss, err := c.TrainStep(enc)
	if err != nil {
		t.Fatalf("train step failed: %v", err)
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) || loss <= 0 {
		t.Errorf("expected a positive finite loss, got %f", loss)
	}
}

func TestControllerShapeCheck(t *testing.T) {
	c := testController(t, 1e-4, 7)

	// Encoded against a wider vocabulary than the controller's.
	enc, err := EncodeSample([]int{3, 7, 7, 9, 0, 9, 0}, 0, 12)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if _, err := c.TrainStep(enc); err == nil {
		t.Error("expected shape mismatch error")
	}
}

func TestControllerDeterministicInit(t *testing.T) {
	a := testController(t, 1e-4, 11)
	b := testController(t, 1e-4, 11)

	enc, err := EncodeSample([]int{3, 7, 7, 9, 0, 9, 0}, 0, 10)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	lossA, err := a.TrainStep(enc)
	if err != nil {
		t.Fatalf("train step failed: %v", err)
	}
	lossB, err := b.TrainStep(enc)
	if err != nil {
		t.Fatalf("train step failed: %v", err)
	}
	if lossA != lossB {
		t.Errorf("same seed, same sample: losses differ (%f vs %f)", lossA, lossB)
	}
}

// TestControllerMemorizesSample: repeated steps on one sample must reduce
// the masked loss.
func TestControllerMemorizesSample(t *testing.T) {
	c := testController(t, 0.01, 3)

	enc, err := EncodeSample([]int{3, 7, 7, 9, 0, 9, 0}, 0, 10)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	first, err := c.TrainStep(enc)
	if err != nil {
		t.Fatalf("train step failed: %v", err)
	}

	var last float64
	for i := 0; i < 200; i++ {
		last, err = c.TrainStep(enc)
		if err != nil {
			t.Fatalf("train step %d failed: %v", i, err)
		}
	}

	if !(last < first) {
		t.Errorf("expected loss to decrease, first %f, last %f", first, last)
	}
}

// TestControllerStateRoundTrip: loading saved state reproduces it
// bit-identically.
func TestControllerStateRoundTrip(t *testing.T) {
	src := testController(t, 1e-4, 5)
	dst := testController(t, 1e-4, 99) // different weights before load

	var buf bytes.Buffer
	if err := src.SaveState(&buf); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := dst.LoadState(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	var again bytes.Buffer
	if err := dst.SaveState(&again); err != nil {
		t.Fatalf("re-save failed: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), again.Bytes()) {
		t.Error("state round trip is not bit-identical")
	}
}

func TestControllerLoadStateDimensionMismatch(t *testing.T) {
	src := testController(t, 1e-4, 5)

	other, err := NewRecurrentController(ControllerConfig{
		HiddenSize:   8,
		VocabSize:    10,
		LearningRate: 1e-4,
		Momentum:     0.9,
		ClipLow:      -10,
		ClipHigh:     10,
	})
	if err != nil {
		t.Fatalf("building controller: %v", err)
	}

	var buf bytes.Buffer
	if err := src.SaveState(&buf); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := other.LoadState(&buf); err == nil {
		t.Error("expected dimension mismatch error")
	}
}
