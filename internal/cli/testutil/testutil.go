// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapunits/internal/cli/output"
)

// SetupTestProject creates a temporary project with a leapunits.yaml that
// loads units/extra.txt and enables the spectroscopy context.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, "units"), 0o750); err != nil {
		t.Fatalf("failed to create units directory: %v", err)
	}

	projectConfig := `extra_definitions:
  - units/extra.txt
contexts:
  - sp
context_params:
  n: 1.5
state_path: .leapunits/state.db
`
	if err := os.WriteFile(filepath.Join(tmpDir, "leapunits.yaml"), []byte(projectConfig), 0o600); err != nil {
		t.Fatalf("failed to create leapunits.yaml: %v", err)
	}

	extra := `# project units
smoot = 1.7018 * meter = _ = smoots
league = 3 * mile
mile_per_week = mile / week = mpw
`
	if err := os.WriteFile(filepath.Join(tmpDir, "units", "extra.txt"), []byte(extra), 0o600); err != nil {
		t.Fatalf("failed to create extra.txt: %v", err)
	}

	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRenderer(out, errOut, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation: balanced code
// fences, non-empty headers and tables whose rows match the header width.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	columns := -1
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
		if !strings.HasPrefix(trimmed, "|") {
			columns = -1
			continue
		}
		n := strings.Count(trimmed, "|")
		if columns == -1 {
			columns = n
		} else if n != columns {
			t.Errorf("table row at line %d has %d separators, want %d: %q", i+1, n, columns, line)
		}
	}
}
