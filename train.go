package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ===========================================================================
// Training loop
// ===========================================================================
//
// The orchestrator. Each step draws one sample, encodes it, hands the
// tensors to the model's combined forward+backward+apply call, records the
// loss, and on its cadence reports metrics and writes checkpoints.
//
// Steps are strictly sequential: a step fully completes before the next
// begins. Cancellation arrives through the run context and is observed only
// at step boundaries, never mid-tensor-construction; the response is a
// single best-effort checkpoint at the current step and a clean return.
//
// Any sample-load or encoding failure aborts the whole run. A malformed
// corpus is a configuration error, and skipping samples silently would bias
// training with no observable signal.
// ===========================================================================

// TrainingLoop owns the in-memory step counter and wires the pipeline
// components together for one run.
type TrainingLoop struct {
	cfg       TrainConfig
	store     *SampleStore
	model     Model
	ckpts     *CheckpointManager
	metrics   *MetricsTracker
	summaries *SummaryWriter

	separatorID int
	vocabSize   int
	start       int

	out io.Writer
}

// NewTrainingLoop performs the Initializing state: loads the lexicon, opens
// the sample store, builds the model, and resolves the resume step via the
// checkpoint manager's resume policy.
func NewTrainingLoop(cfg TrainConfig) (*TrainingLoop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating configuration")
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	lex, err := LoadLexicon(cfg.LexiconPath)
	if err != nil {
		return nil, errors.Wrap(err, "loading lexicon")
	}
	separatorID, err := lex.SeparatorID(cfg.SeparatorToken)
	if err != nil {
		return nil, errors.Wrap(err, "loading lexicon")
	}

	store, err := OpenSampleStore(cfg.DataDir, seed)
	if err != nil {
		return nil, errors.Wrap(err, "opening sample store")
	}

	model, err := NewRecurrentController(ControllerConfig{
		HiddenSize:   cfg.HiddenSize,
		VocabSize:    lex.Size(),
		LearningRate: cfg.LearningRate,
		Momentum:     cfg.Momentum,
		ClipLow:      cfg.ClipLow,
		ClipHigh:     cfg.ClipHigh,
		Seed:         seed,
	})
	if err != nil {
		return nil, errors.Wrap(err, "building model")
	}

	ckpts, err := NewCheckpointManager(cfg.CheckpointDir)
	if err != nil {
		return nil, errors.Wrap(err, "opening checkpoint directory")
	}
	start, err := ckpts.ResolveResume(cfg.FromCheckpoint, model)
	if err != nil {
		return nil, errors.Wrap(err, "resolving resume checkpoint")
	}
	if cfg.Start >= 0 {
		start = cfg.Start
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating log directory")
	}
	summaries, err := NewSummaryWriter(filepath.Join(cfg.LogDir, "summaries.jsonl"), uuid.NewString())
	if err != nil {
		return nil, errors.Wrap(err, "opening summary writer")
	}

	return &TrainingLoop{
		cfg:         cfg,
		store:       store,
		model:       model,
		ckpts:       ckpts,
		metrics:     NewMetricsTracker(cfg.ReportInterval, cfg.Iterations),
		summaries:   summaries,
		separatorID: separatorID,
		vocabSize:   lex.Size(),
		start:       start,
		out:         os.Stdout,
	}, nil
}

// Start returns the resolved first step of the run.
func (l *TrainingLoop) Start() int {
	return l.start
}

// Close releases the loop's reporting resources.
func (l *TrainingLoop) Close() error {
	if l.summaries != nil {
		return l.summaries.Close()
	}
	return nil
}

// Run executes steps from the resolved start through the final iteration
// inclusive. It returns nil on completion and on cancellation; cancellation
// is a clean stop, not an error.
func (l *TrainingLoop) Run(ctx context.Context) error {
	end := l.cfg.Iterations

	for i := l.start; i <= end; i++ {
		fmt.Fprintf(l.out, "\rIteration %d/%d", i, end)

		id, sample, err := l.store.NextRandom()
		if err != nil {
			return errors.Wrapf(err, "loading sample at step %d", i)
		}

		encoded, err := EncodeSample(sample, l.separatorID, l.vocabSize)
		if err != nil {
			return errors.Wrapf(err, "encoding sample %s at step %d", id, i)
		}

		loss, err := l.model.TrainStep(encoded)
		if err != nil {
			return errors.Wrapf(err, "model step %d", i)
		}
		l.metrics.Record(loss)

		if report := l.metrics.FlushIfDue(i); report != nil {
			l.printReport(report, loss)
			if err := l.summaries.Append(report); err != nil {
				return errors.Wrapf(err, "writing summary at step %d", i)
			}
		}

		if i > 0 && i%l.cfg.CheckpointInterval == 0 {
			fmt.Fprintf(l.out, "\nSaving Checkpoint ... ")
			if err := l.ckpts.Save(i, l.model); err != nil {
				return errors.Wrapf(err, "checkpointing at step %d", i)
			}
			fmt.Fprintf(l.out, "Done!\n")
		}

		// Step boundary: the one place cancellation is observed. One
		// best-effort checkpoint at the current step, then a clean stop.
		select {
		case <-ctx.Done():
			fmt.Fprintf(l.out, "\nSaving Checkpoint ... ")
			if err := l.ckpts.Save(i, l.model); err != nil {
				return errors.Wrapf(err, "checkpointing on cancellation at step %d", i)
			}
			fmt.Fprintf(l.out, "Done!\n")
			return nil
		default:
		}
	}

	fmt.Fprintln(l.out)
	return nil
}

// printReport writes the periodic progress lines.
func (l *TrainingLoop) printReport(r *Report, lastLoss float64) {
	fmt.Fprintf(l.out, "\n\tLoss value: %f\n", lastLoss)
	fmt.Fprintf(l.out, "\tAvg. Cross-Entropy: %.7f\n", r.MeanLoss)
	fmt.Fprintf(l.out, "\tAvg. %d iterations time: %.2f minutes\n", l.cfg.ReportInterval, r.AvgIntervalMinutes)
	fmt.Fprintf(l.out, "\tApprox. time to completion: %.2f hours\n\n", r.ETAHours)
}
