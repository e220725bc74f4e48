package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joshuapare/mallockit/internal/config"
	"github.com/joshuapare/mallockit/trace"
)

// resetFlags restores every global flag and the configuration to defaults.
func resetFlags(t *testing.T) {
	t.Helper()
	verbose, quiet, jsonOut, logJSON = false, false, false, false
	configPath = ""
	cfg = config.Default()

	runAlloc, runArena, runMaxSize = "", "", ""
	runCheckEvery, runTimeout, runLIFO = -1, 0, false

	genProfile = trace.Profile{Ops: 1000, IDs: 100, MinSize: 1, MaxSize: 4096, ReallocPct: 0.2, FreePct: 0.4, Seed: 1}
	classesMinShift, classesNumClasses = 0, 0
}

// writeTrace writes a generated trace into a temp dir and returns its path
func writeTrace(t *testing.T, name string, p trace.Profile) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := trace.Generate(p).WriteFile(path); err != nil {
		t.Fatalf("failed to write trace: %v", err)
	}
	return path
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	// Drain concurrently so large outputs cannot fill the pipe.
	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		done <- buf.Bytes()
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	return string(<-done), fnErr
}

// decodeJSON unmarshals output into v or fails the test
func decodeJSON(t *testing.T, output string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(output), v); err != nil {
		t.Fatalf("invalid JSON output: %v\nOutput: %s", err, output)
	}
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}
