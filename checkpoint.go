package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// checkpointPrefix names checkpoint artifacts: "step-<N>" where N is the
// decimal step number. Anything else in the directory is ignored.
const checkpointPrefix = "step-"

// CheckpointManager owns the on-disk checkpoint artifacts. Nothing else
// writes to its directory: the training loop delegates saves, and restores
// happen only during initialization.
type CheckpointManager struct {
	dir string
}

// NewCheckpointManager creates the checkpoint directory if needed.
func NewCheckpointManager(dir string) (*CheckpointManager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating checkpoint directory %s", dir)
	}
	return &CheckpointManager{dir: dir}, nil
}

// Name returns the artifact name for a step.
func (m *CheckpointManager) Name(step int) string {
	return fmt.Sprintf("%s%d", checkpointPrefix, step)
}

// StepFromName parses the step number embedded in a checkpoint name.
func (m *CheckpointManager) StepFromName(name string) (int, error) {
	suffix := strings.TrimPrefix(name, checkpointPrefix)
	if suffix == name {
		return 0, errors.Wrapf(ErrCheckpointLoad, "checkpoint name %q does not match %s<N>", name, checkpointPrefix)
	}
	step, err := strconv.Atoi(suffix)
	if err != nil || step < 0 {
		return 0, errors.Wrapf(ErrCheckpointLoad, "checkpoint name %q has no numeric step suffix", name)
	}
	return step, nil
}

// Save persists the model state under the step's artifact name. The state is
// written to a temporary file in the same directory and renamed into place,
// so a failed write leaves no artifact that a later Latest scan would pick
// up.
func (m *CheckpointManager) Save(step int, state ModelState) error {
	final := filepath.Join(m.dir, m.Name(step))

	tmp, err := os.CreateTemp(m.dir, "."+m.Name(step)+".tmp-")
	if err != nil {
		return errors.Wrap(err, "creating temporary checkpoint file")
	}
	tmpName := tmp.Name()

	if err := state.SaveState(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "writing checkpoint %s", m.Name(step))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "closing checkpoint %s", m.Name(step))
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "committing checkpoint %s", m.Name(step))
	}
	return nil
}

// Restore loads the named checkpoint into state. A missing or corrupt
// artifact is ErrCheckpointLoad; there is no implicit fallback to a
// different checkpoint.
func (m *CheckpointManager) Restore(name string, state ModelState) error {
	f, err := os.Open(filepath.Join(m.dir, name))
	if err != nil {
		return errors.Wrapf(ErrCheckpointLoad, "opening checkpoint %s: %v", name, err)
	}
	defer f.Close()

	if err := state.LoadState(f); err != nil {
		return errors.Wrapf(ErrCheckpointLoad, "decoding checkpoint %s: %v", name, err)
	}
	return nil
}

// Latest scans the checkpoint directory for step-<N> artifacts and returns
// the maximum step, or ok=false when none exist. Entries with non-numeric
// suffixes are ignored, not fatal.
func (m *CheckpointManager) Latest() (step int, ok bool, err error) {
	entries, readErr := os.ReadDir(m.dir)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return 0, false, nil
		}
		return 0, false, errors.Wrapf(readErr, "scanning checkpoint directory %s", m.dir)
	}

	for _, e := range entries {
		n, parseErr := m.StepFromName(e.Name())
		if parseErr != nil {
			continue
		}
		if !ok || n > step {
			step, ok = n, true
		}
	}
	return step, ok, nil
}

// ResolveResume applies the startup resume policy and returns the step the
// run should start at:
//
//   - an explicit checkpoint name is restored and its embedded step becomes
//     the start index;
//   - otherwise, if any checkpoint exists, the latest is restored and the
//     run resumes immediately after it;
//   - otherwise the run starts from step 0 with the freshly initialized
//     model it was given.
func (m *CheckpointManager) ResolveResume(explicit string, state ModelState) (int, error) {
	if explicit != "" {
		step, err := m.StepFromName(explicit)
		if err != nil {
			return 0, err
		}
		if err := m.Restore(explicit, state); err != nil {
			return 0, err
		}
		return step, nil
	}

	latest, ok, err := m.Latest()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	if err := m.Restore(m.Name(latest), state); err != nil {
		return 0, err
	}
	return latest + 1, nil
}
