package main

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Lexicon is the fixed token → id mapping for the encoded corpus. It is
// loaded once at startup and never mutated; its size defines the vocabulary
// width V of every tensor in the pipeline.
type Lexicon struct {
	ids map[string]int
}

// LoadLexicon reads a JSON object mapping token strings to non-negative
// integer ids.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading lexicon file")
	}

	ids := make(map[string]int)
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, errors.Wrapf(err, "parsing lexicon file %s", path)
	}
	if len(ids) == 0 {
		return nil, errors.Errorf("lexicon file %s is empty", path)
	}
	for tok, id := range ids {
		if id < 0 {
			return nil, errors.Errorf("lexicon token %q has negative id %d", tok, id)
		}
	}

	return &Lexicon{ids: ids}, nil
}

// Size returns the vocabulary size V.
func (l *Lexicon) Size() int {
	return len(l.ids)
}

// ID looks up the id of a token.
func (l *Lexicon) ID(token string) (int, bool) {
	id, ok := l.ids[token]
	return id, ok
}

// SeparatorID resolves the reserved separator token. The separator marks the
// boundary between dialogue+question and answer within a sample, and doubles
// as the padding id for short answers.
func (l *Lexicon) SeparatorID(token string) (int, error) {
	id, ok := l.ids[token]
	if !ok {
		return 0, errors.Errorf("separator token %q not present in lexicon", token)
	}
	return id, nil
}
