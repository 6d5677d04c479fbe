// Package main provides tests for the leapunits CLI.
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapunits/internal/cli"
)

func testdataDir(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	return filepath.Join(wd, "..", "..", "testdata")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append(args, "--state", filepath.Join(t.TempDir(), "state.db")))
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	output, err := run(t, "version")
	if err != nil {
		t.Errorf("version command error = %v", err)
	}
	if !strings.Contains(output, "leapunits") {
		t.Errorf("version output should contain 'leapunits', got: %s", output)
	}
}

func TestHelpCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Errorf("help command error = %v", err)
	}

	output := buf.String()
	expectedCommands := []string{"convert", "dim", "base", "list", "contexts", "check", "define", "history", "repl", "serve"}
	for _, expected := range expectedCommands {
		if !strings.Contains(output, expected) {
			t.Errorf("help output should contain '%s', got: %s", expected, output)
		}
	}
}

func TestConvertCommand(t *testing.T) {
	output, err := run(t, "convert", "5", "km", "m")
	if err != nil {
		t.Fatalf("convert command error = %v", err)
	}
	if output != "5 kilometer = 5000 meter\n" {
		t.Errorf("unexpected convert output: %q", output)
	}
}

func TestConvertCommandExtraDefinitions(t *testing.T) {
	td := testdataDir(t)

	output, err := run(t, "convert", "2", "smoots", "m",
		"--extra-definitions", filepath.Join(td, "units", "lengths.txt"))
	if err != nil {
		t.Fatalf("convert command error = %v", err)
	}
	if output != "2 smoot = 3.4036 meter\n" {
		t.Errorf("unexpected convert output: %q", output)
	}
}

func TestConvertCommandJSON(t *testing.T) {
	output, err := run(t, "convert", "1", "km", "m", "--output", "json")
	if err != nil {
		t.Fatalf("convert --output json error = %v", err)
	}
	if !strings.Contains(output, `"result": 1000`) {
		t.Errorf("json output should contain the result, got: %s", output)
	}
}

func TestConvertCommandIncompatible(t *testing.T) {
	_, err := run(t, "convert", "1", "m", "s")
	if err == nil {
		t.Fatal("expected an error converting meters to seconds")
	}
	if !strings.Contains(err.Error(), "Cannot convert") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckCommand(t *testing.T) {
	td := testdataDir(t)

	output, err := run(t, "check", filepath.Join(td, "units", "lengths.txt"))
	if err != nil {
		t.Errorf("check command error = %v, output: %s", err, output)
	}

	output, err = run(t, "check", filepath.Join(td, "units", "broken.txt"))
	if err == nil {
		t.Error("check should fail for unresolved units")
	}
	if !strings.Contains(output, "widget") {
		t.Errorf("check output should name the unresolved unit, got: %s", output)
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	_, err := run(t, "dim", "m", "--output", "xml")
	if err == nil || !strings.Contains(err.Error(), "invalid output format") {
		t.Errorf("expected invalid output format error, got %v", err)
	}
}
