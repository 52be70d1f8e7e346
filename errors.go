package main

import "github.com/pkg/errors"

// Sentinel errors for the training pipeline.
//
// Every data or encoding problem is fatal to the run: silently skipping a
// malformed sample would bias training with no observable signal, so the
// loop propagates these instead of retrying. Callers match them with
// errors.Is after any amount of Wrap/Wrapf context has been added.
var (
	// ErrMalformedSample marks a sample with no separator id (the split
	// point between context and answer is undefined) or an empty context
	// prefix.
	ErrMalformedSample = errors.New("malformed sample: missing separator")

	// ErrEncodingRange marks a token id outside [0, vocabSize).
	ErrEncodingRange = errors.New("token id outside vocabulary range")

	// ErrAnswerOverflow marks an answer longer than its context prefix.
	// The encoding pads short answers up to the context length but has no
	// defined behavior for long ones; truncating silently would hide the
	// tail from the model, so it is surfaced as an explicit error.
	ErrAnswerOverflow = errors.New("answer longer than context prefix")

	// ErrSampleNotFound marks a sample record that is missing or
	// unparsable on disk.
	ErrSampleNotFound = errors.New("sample record missing or unreadable")

	// ErrCheckpointLoad marks a named checkpoint that is absent or
	// corrupt at resume time. There is no fallback to a different
	// checkpoint.
	ErrCheckpointLoad = errors.New("checkpoint missing or unreadable")
)
