package main

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ===========================================================================
// Sample encoding
// ===========================================================================
//
// A raw sample is a flat sequence of token ids: the dialogue and question,
// one separator id, then the answer. Encoding splits at the first separator
// and produces the three tensors the model consumes per step:
//
//   input  (1, T, V)  one-hot context, T = prefix length
//   target (1, T, V)  one-hot answer, right-padded with the separator to T
//   mask   (1, T, 1)  1.0 at genuine answer positions, 0.0 at padding
//
// The padding scheme assumes answers never outgrow their context. That
// assumption is enforced: an answer longer than T is an explicit error, not
// a silent truncation.
//
// Encoding is a pure function. Every tensor is freshly allocated and aliases
// nothing; the caller hands it to the model exactly once.
// ===========================================================================

// StepTensor is a rank-3 tensor with an explicit (batch, steps, width)
// shape. Batch is always 1 in this design; keeping the dimension explicit
// makes shape mismatches checkable at every API boundary instead of
// surfacing as silent broadcasting.
type StepTensor struct {
	batch int
	steps int
	width int
	data  *mat.Dense // steps x width
}

// NewStepTensor allocates a zeroed (1, steps, width) tensor.
func NewStepTensor(steps, width int) *StepTensor {
	return &StepTensor{
		batch: 1,
		steps: steps,
		width: width,
		data:  mat.NewDense(steps, width, nil),
	}
}

// Batch returns the leading batch dimension (always 1).
func (t *StepTensor) Batch() int { return t.batch }

// Steps returns the time dimension T.
func (t *StepTensor) Steps() int { return t.steps }

// Width returns the per-step vector width (V for one-hot tensors, 1 for the
// loss mask).
func (t *StepTensor) Width() int { return t.width }

// At reads the value at time step t, component i.
func (t *StepTensor) At(step, i int) float64 { return t.data.At(step, i) }

// Set writes the value at time step t, component i.
func (t *StepTensor) Set(step, i int, v float64) { t.data.Set(step, i, v) }

// Row returns the vector at one time step as a column view.
func (t *StepTensor) Row(step int) mat.Vector { return t.data.RowView(step) }

// Dense exposes the (steps x width) backing matrix for the model's kernels.
func (t *StepTensor) Dense() *mat.Dense { return t.data }

// EncodedStep is the tensor triple plus sequence length for one training
// step.
type EncodedStep struct {
	Input  *StepTensor // (1, T, V)
	Target *StepTensor // (1, T, V)
	Mask   *StepTensor // (1, T, 1)
	SeqLen int
}

// EncodeSample transforms one raw sample into the model's expected tensors.
//
// The split point is the first occurrence of separatorID. Everything before
// it becomes the input sequence of length T; everything after becomes the
// answer, right-padded with separatorID to length T. The mask is derived
// from the padded answer before one-hot expansion: 1.0 where the id is not
// the separator, 0.0 otherwise.
func EncodeSample(sample []int, separatorID, vocabSize int) (*EncodedStep, error) {
	if vocabSize <= 0 {
		return nil, errors.Errorf("non-positive vocabulary size %d", vocabSize)
	}

	split := -1
	for i, id := range sample {
		if id == separatorID {
			split = i
			break
		}
	}
	if split < 0 {
		return nil, errors.Wrapf(ErrMalformedSample, "sample of length %d", len(sample))
	}
	if split == 0 {
		return nil, errors.Wrap(ErrMalformedSample, "empty context before separator")
	}

	context := sample[:split]
	answer := sample[split+1:]
	seqLen := len(context)

	if len(answer) > seqLen {
		return nil, errors.Wrapf(ErrAnswerOverflow, "answer length %d, context length %d", len(answer), seqLen)
	}

	// Pad the answer to T with the separator id, building the mask from
	// the pre-one-hot ids as we go.
	padded := make([]int, seqLen)
	mask := NewStepTensor(seqLen, 1)
	for t := 0; t < seqLen; t++ {
		if t < len(answer) {
			padded[t] = answer[t]
		} else {
			padded[t] = separatorID
		}
		if padded[t] != separatorID {
			mask.Set(t, 0, 1.0)
		}
	}

	input, err := oneHotSequence(context, vocabSize)
	if err != nil {
		return nil, errors.Wrap(err, "encoding input sequence")
	}
	target, err := oneHotSequence(padded, vocabSize)
	if err != nil {
		return nil, errors.Wrap(err, "encoding target sequence")
	}

	return &EncodedStep{
		Input:  input,
		Target: target,
		Mask:   mask,
		SeqLen: seqLen,
	}, nil
}

// oneHotSequence expands a sequence of ids into a (1, len, vocabSize)
// one-hot tensor.
func oneHotSequence(ids []int, vocabSize int) (*StepTensor, error) {
	t := NewStepTensor(len(ids), vocabSize)
	for step, id := range ids {
		if id < 0 || id >= vocabSize {
			return nil, errors.Wrapf(ErrEncodingRange, "id %d at position %d, vocabulary size %d", id, step, vocabSize)
		}
		t.Set(step, id, 1.0)
	}
	return t, nil
}
