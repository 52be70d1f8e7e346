package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "dnctrain",
		Short:         "Train a memory-augmented sequence model on an encoded dialogue QA corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newTrainCommand(), newCheckpointsCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
