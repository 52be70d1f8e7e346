package main

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// SampleStore enumerates the encoded training corpus: one file per sample,
// each holding a flat JSON array of token ids (dialogue, separator, answer).
// Samples are drawn uniformly at random with replacement.
type SampleStore struct {
	dir   string
	names []string
	rng   *rand.Rand
}

// OpenSampleStore captures a stable, sorted enumeration of the sample files
// in dir. The enumeration is fixed for the lifetime of the store; the corpus
// is not expected to change mid-run.
func OpenSampleStore(dir string, seed int64) (*SampleStore, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "enumerating sample directory %s", dir)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, errors.Errorf("sample directory %s contains no sample files", dir)
	}
	sort.Strings(names)

	return &SampleStore{
		dir:   dir,
		names: names,
		rng:   rand.New(rand.NewSource(seed)),
	}, nil
}

// List returns the stable enumeration of sample identifiers.
func (s *SampleStore) List() []string {
	return s.names
}

// Load deserializes one sample record. A missing or unparsable record is a
// corpus-integrity problem, reported as ErrSampleNotFound and never retried.
func (s *SampleStore) Load(id string) ([]int, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, id))
	if err != nil {
		return nil, errors.Wrapf(ErrSampleNotFound, "reading sample %s: %v", id, err)
	}

	var sample []int
	if err := json.Unmarshal(data, &sample); err != nil {
		return nil, errors.Wrapf(ErrSampleNotFound, "parsing sample %s: %v", id, err)
	}
	return sample, nil
}

// NextRandom draws one identifier uniformly with replacement and loads it.
func (s *SampleStore) NextRandom() (string, []int, error) {
	id := s.names[s.rng.Intn(len(s.names))]
	sample, err := s.Load(id)
	if err != nil {
		return id, nil, err
	}
	return id, sample, nil
}
