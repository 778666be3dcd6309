package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestMergeUnion(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base", "a\nb\n")
	local := writeFile(t, dir, "local", "a\nb\nc\n")
	remote := writeFile(t, dir, "remote", "a\nb\nd\n")

	merged, err := mergeFiles(base, local, remote)
	if err != nil {
		t.Fatalf("mergeFiles failed: %v", err)
	}
	if !reflect.DeepEqual(merged, []string{"a", "b", "c", "d"}) {
		t.Errorf("merged = %v", merged)
	}
}

func TestMergeSkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base", "")
	local := writeFile(t, dir, "local", "a\n\n\nb\n")
	remote := writeFile(t, dir, "remote", "\na\n")

	merged, err := mergeFiles(base, local, remote)
	if err != nil {
		t.Fatalf("mergeFiles failed: %v", err)
	}
	if !reflect.DeepEqual(merged, []string{"a", "b"}) {
		t.Errorf("merged = %v", merged)
	}
}

func TestMergeMissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	local := writeFile(t, dir, "local", "x\n")

	merged, err := mergeFiles(filepath.Join(dir, "absent"), local, filepath.Join(dir, "also-absent"))
	if err != nil {
		t.Fatalf("mergeFiles failed: %v", err)
	}
	if !reflect.DeepEqual(merged, []string{"x"}) {
		t.Errorf("merged = %v", merged)
	}
}

func TestWriteResultRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out")

	if err := writeResult(path, []string{"one", "two"}); err != nil {
		t.Fatalf("writeResult failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(content) != "one\ntwo\n" {
		t.Errorf("content = %q", content)
	}
}
