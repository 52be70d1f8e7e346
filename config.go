package main

import "github.com/pkg/errors"

// TrainConfig is the validated configuration for one training run,
// constructed once at startup from the command line.
type TrainConfig struct {
	// Paths.
	DataDir       string // directory of encoded sample files
	LexiconPath   string // JSON token -> id mapping
	CheckpointDir string
	LogDir        string

	// Corpus.
	SeparatorToken string // reserved boundary/padding token

	// Iteration control.
	Iterations     int    // final step number of the run
	Start          int    // explicit resume step; negative = checkpoint-derived
	FromCheckpoint string // explicit checkpoint name, empty = latest

	// Cadence.
	ReportInterval     int
	CheckpointInterval int

	// Controller.
	HiddenSize   int
	LearningRate float64
	Momentum     float64
	ClipLow      float64
	ClipHigh     float64
	Seed         int64
}

// DefaultTrainConfig mirrors the original training run's hyperparameters.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		DataDir:            "data/encoded/train",
		LexiconPath:        "data/encoded/lexicon.json",
		CheckpointDir:      "checkpoints",
		LogDir:             "logs",
		SeparatorToken:     "=",
		Iterations:         100000,
		Start:              -1,
		ReportInterval:     100,
		CheckpointInterval: 200,
		HiddenSize:         128,
		LearningRate:       1e-4,
		Momentum:           0.9,
		ClipLow:            -10,
		ClipHigh:           10,
	}
}

// Validate rejects configurations that could not drive a run.
func (c *TrainConfig) Validate() error {
	switch {
	case c.DataDir == "":
		return errors.New("data directory is required")
	case c.LexiconPath == "":
		return errors.New("lexicon path is required")
	case c.CheckpointDir == "":
		return errors.New("checkpoint directory is required")
	case c.SeparatorToken == "":
		return errors.New("separator token is required")
	case c.Iterations <= 0:
		return errors.Errorf("iterations must be positive, got %d", c.Iterations)
	case c.ReportInterval <= 0:
		return errors.Errorf("report interval must be positive, got %d", c.ReportInterval)
	case c.CheckpointInterval <= 0:
		return errors.Errorf("checkpoint interval must be positive, got %d", c.CheckpointInterval)
	case c.HiddenSize <= 0:
		return errors.Errorf("hidden size must be positive, got %d", c.HiddenSize)
	case c.LearningRate <= 0:
		return errors.Errorf("learning rate must be positive, got %g", c.LearningRate)
	case c.ClipLow >= c.ClipHigh:
		return errors.Errorf("invalid gradient clip range [%g, %g]", c.ClipLow, c.ClipHigh)
	}
	return nil
}
