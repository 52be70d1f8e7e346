package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// newTrainCommand builds the train subcommand. All configuration lives in
// one validated TrainConfig resolved here at startup.
func newTrainCommand() *cobra.Command {
	cfg := DefaultTrainConfig()

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run the training loop, resuming from the latest checkpoint if present",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.DataDir, "data", cfg.DataDir, "directory of encoded sample files")
	flags.StringVar(&cfg.LexiconPath, "lexicon", cfg.LexiconPath, "path to the JSON lexicon file")
	flags.StringVar(&cfg.CheckpointDir, "checkpoint-dir", cfg.CheckpointDir, "checkpoint directory")
	flags.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "directory for structured summary records")
	flags.StringVar(&cfg.SeparatorToken, "separator", cfg.SeparatorToken, "separator token in the lexicon")
	flags.StringVar(&cfg.FromCheckpoint, "checkpoint", "", "resume from a specific checkpoint name (step-<N>)")
	flags.IntVar(&cfg.Iterations, "iterations", cfg.Iterations, "final step number of the run")
	flags.IntVar(&cfg.Start, "start", -1, "override the resume step (negative = checkpoint-derived)")
	flags.IntVar(&cfg.ReportInterval, "report-interval", cfg.ReportInterval, "steps between metric reports")
	flags.IntVar(&cfg.CheckpointInterval, "checkpoint-interval", cfg.CheckpointInterval, "steps between checkpoints")
	flags.IntVar(&cfg.HiddenSize, "hidden", cfg.HiddenSize, "controller hidden size")
	flags.Float64Var(&cfg.LearningRate, "lr", cfg.LearningRate, "learning rate")
	flags.Float64Var(&cfg.Momentum, "momentum", cfg.Momentum, "optimizer momentum")
	flags.Int64Var(&cfg.Seed, "seed", 0, "RNG seed (0 = time-derived)")

	return cmd
}

// runTrain wires signal delivery to the run context. An interrupt is a
// clean stop: the loop saves one checkpoint at the current step and Run
// returns nil, so the process exits zero.
func runTrain(cfg TrainConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop, err := NewTrainingLoop(cfg)
	if err != nil {
		return err
	}
	defer loop.Close()

	return loop.Run(ctx)
}

// newCheckpointsCommand lists the step-<N> artifacts in a checkpoint
// directory and the resolved latest step.
func newCheckpointsCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "List checkpoint artifacts and the resume point",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := NewCheckpointManager(dir)
			if err != nil {
				return err
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				return err
			}
			for _, e := range entries {
				if step, err := mgr.StepFromName(e.Name()); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t(step %d)\n", e.Name(), step)
				}
			}

			latest, ok, err := mgr.Latest()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no checkpoints; training would start from step 0")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "latest: %s; training would resume from step %d\n", mgr.Name(latest), latest+1)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "checkpoint-dir", DefaultTrainConfig().CheckpointDir, "checkpoint directory")
	return cmd
}
