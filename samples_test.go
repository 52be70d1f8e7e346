package main

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeSampleFiles(t *testing.T, samples map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range samples {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	return dir
}

func TestSampleStoreListIsSorted(t *testing.T) {
	dir := writeSampleFiles(t, map[string]string{
		"c.json": "[1,0,2]",
		"a.json": "[3,0,4]",
		"b.json": "[5,0,6]",
	})

	store, err := OpenSampleStore(dir, 1)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	want := []string{"a.json", "b.json", "c.json"}
	if !reflect.DeepEqual(store.List(), want) {
		t.Errorf("expected %v, got %v", want, store.List())
	}
}

func TestSampleStoreLoad(t *testing.T) {
	dir := writeSampleFiles(t, map[string]string{"s.json": "[3,7,7,9,0,9,0]"})

	store, err := OpenSampleStore(dir, 1)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	sample, err := store.Load("s.json")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !reflect.DeepEqual(sample, []int{3, 7, 7, 9, 0, 9, 0}) {
		t.Errorf("unexpected sample: %v", sample)
	}
}

func TestSampleStoreLoadErrors(t *testing.T) {
	dir := writeSampleFiles(t, map[string]string{"bad.json": "not json"})

	store, err := OpenSampleStore(dir, 1)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	if _, err := store.Load("missing.json"); !errors.Is(err, ErrSampleNotFound) {
		t.Errorf("expected ErrSampleNotFound for missing file, got %v", err)
	}
	if _, err := store.Load("bad.json"); !errors.Is(err, ErrSampleNotFound) {
		t.Errorf("expected ErrSampleNotFound for unparsable file, got %v", err)
	}
}

func TestSampleStoreNextRandom(t *testing.T) {
	dir := writeSampleFiles(t, map[string]string{
		"a.json": "[1,0,2]",
		"b.json": "[3,0,4]",
	})

	store, err := OpenSampleStore(dir, 42)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, sample, err := store.NextRandom()
		if err != nil {
			t.Fatalf("draw %d failed: %v", i, err)
		}
		if len(sample) != 3 {
			t.Fatalf("draw %d: unexpected sample %v", i, sample)
		}
		seen[id] = true
	}

	// Uniform with replacement over two files: 50 draws hit both.
	if len(seen) != 2 {
		t.Errorf("expected both samples drawn, saw %v", seen)
	}
}

func TestOpenSampleStoreEmpty(t *testing.T) {
	if _, err := OpenSampleStore(t.TempDir(), 1); err == nil {
		t.Error("expected error opening an empty sample directory")
	}
	if _, err := OpenSampleStore(filepath.Join(t.TempDir(), "nope"), 1); err == nil {
		t.Error("expected error opening a missing sample directory")
	}
}
