package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeLexicon(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lexicon.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing lexicon: %v", err)
	}
	return path
}

func TestLoadLexicon(t *testing.T) {
	path := writeLexicon(t, `{"=": 0, "hello": 1, "world": 2}`)

	lex, err := LoadLexicon(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if lex.Size() != 3 {
		t.Errorf("expected vocabulary size 3, got %d", lex.Size())
	}
	if id, ok := lex.ID("hello"); !ok || id != 1 {
		t.Errorf("expected id 1 for hello, got %d (ok=%v)", id, ok)
	}
	if _, ok := lex.ID("absent"); ok {
		t.Error("expected lookup miss for unknown token")
	}

	sep, err := lex.SeparatorID("=")
	if err != nil {
		t.Fatalf("separator lookup failed: %v", err)
	}
	if sep != 0 {
		t.Errorf("expected separator id 0, got %d", sep)
	}
}

func TestLoadLexiconErrors(t *testing.T) {
	if _, err := LoadLexicon(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing lexicon file")
	}
	if _, err := LoadLexicon(writeLexicon(t, "not json")); err == nil {
		t.Error("expected error for unparsable lexicon")
	}
	if _, err := LoadLexicon(writeLexicon(t, "{}")); err == nil {
		t.Error("expected error for empty lexicon")
	}
	if _, err := LoadLexicon(writeLexicon(t, `{"a": -1}`)); err == nil {
		t.Error("expected error for negative id")
	}
}

func TestSeparatorMissing(t *testing.T) {
	lex, err := LoadLexicon(writeLexicon(t, `{"a": 0}`))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, err := lex.SeparatorID("="); err == nil {
		t.Error("expected error for separator token absent from lexicon")
	}
}
