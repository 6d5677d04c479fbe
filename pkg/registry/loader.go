package registry

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapunits/pkg/contexts"
	"github.com/leapstack-labs/leapunits/pkg/definition"
	"github.com/leapstack-labs/leapunits/pkg/units"
)

const defaultDefinitions = "default_en.txt"

//go:embed default_en.txt
var embeddedFS embed.FS

// DefaultDefinitions returns the embedded default definitions file.
func DefaultDefinitions() ([]byte, error) {
	return embeddedFS.ReadFile(defaultDefinitions)
}

// fileLoader opens definition files and resolves @import paths.
type fileLoader struct {
	open func(name string) (io.ReadCloser, error)
	join func(base, rel string) string
}

var osLoader = fileLoader{
	open: func(name string) (io.ReadCloser, error) { return os.Open(name) },
	join: func(base, rel string) string {
		if filepath.IsAbs(rel) {
			return rel
		}
		dir := "."
		if base != "" {
			dir = filepath.Dir(base)
		}
		return filepath.Join(dir, filepath.Clean(rel))
	},
}

var embeddedLoader = fileLoader{
	open: func(name string) (io.ReadCloser, error) { return embeddedFS.Open(name) },
	join: func(base, rel string) string { return path.Join(path.Dir(base), rel) },
}

// LoadDefinitions loads a definitions file. Relative @import paths are
// resolved against the directory of filename.
func (r *Registry) LoadDefinitions(filename string) error {
	return r.loadFile(osLoader, filename)
}

// LoadDefinitionsReader loads definitions from rd. name is reported in
// errors and used as the base for relative @import paths.
func (r *Registry) LoadDefinitionsReader(name string, rd io.Reader) error {
	err := r.load(osLoader, name, rd)
	if name != "" {
		locate(err, name, 0)
	}
	return err
}

func (r *Registry) loadFile(l fileLoader, name string) error {
	rc, err := l.open(name)
	if err != nil {
		return fmt.Errorf("while opening %s: %w", name, err)
	}
	defer rc.Close()

	err = r.load(l, name, rc)
	locate(err, name, 0)
	return err
}

// load reads one definitions source. Syntax and redefinition errors abort
// the load; other failures are logged and the line is skipped.
func (r *Registry) load(l fileLoader, name string, rd io.Reader) error {
	src := newLineSource(rd)
	for {
		line, ok, err := src.next()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		if !ok {
			return nil
		}
		text := line.Text

		if strings.HasPrefix(text, "@") && !strings.HasPrefix(text, "@alias") {
			if strings.HasPrefix(text, "@import") {
				target := l.join(name, strings.TrimSpace(text[len("@import"):]))
				r.logger.Debug("importing definitions", "file", target, "from", name)
				if err := r.loadFile(l, target); err != nil {
					return err
				}
				continue
			}
			if err := r.directive(src, text); err != nil {
				locate(err, "", line.Lineno)
				return err
			}
			continue
		}

		def, err := definition.FromString(text)
		if err == nil {
			err = r.Define(def)
		}
		if err != nil {
			var loc units.Locatable
			if errors.As(err, &loc) {
				loc.SetLocation("", line.Lineno)
				return err
			}
			r.logger.Error("cannot add definition", "file", name, "line", line.Lineno, "definition", text, "error", err)
		}
	}
}

func (r *Registry) directive(src *lineSource, header string) error {
	keyword := header
	if i := strings.IndexAny(header, " ("); i >= 0 {
		keyword = header[:i]
	}
	switch keyword {
	case "@defaults":
		return r.parseDefaults(src)
	case "@context":
		return r.parseContext(src)
	}
	return units.NewDefinitionSyntaxError("Unknown directive %s", header)
}

func (r *Registry) parseDefaults(src *lineSource) error {
	block, err := src.block()
	if err != nil {
		return err
	}
	for _, line := range block[1:] {
		k, v, ok := strings.Cut(line.Text, "=")
		if !ok || strings.Contains(v, "=") || strings.TrimSpace(k) == "" {
			e := units.NewDefinitionSyntaxError("default must have the form key = value, got %q", line.Text)
			e.SetLocation("", line.Lineno)
			return e
		}
		r.defaults[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return nil
}

func (r *Registry) parseContext(src *lineSource) error {
	block, err := src.block()
	if err != nil {
		return err
	}
	ctx, err := contexts.FromLines(block, r.DimensionalityOf)
	if err != nil {
		return err
	}
	return r.AddContext(ctx)
}

// locate attaches a file and line to err when it can carry them.
func locate(err error, filename string, lineno int) {
	var loc units.Locatable
	if err != nil && errors.As(err, &loc) {
		loc.SetLocation(filename, lineno)
	}
}

func stripComment(line string) string {
	before, _, _ := strings.Cut(line, "#")
	return before
}

// lineSource yields the non-empty lines of a definitions source with
// comments removed, keeping track of line numbers.
type lineSource struct {
	scanner *bufio.Scanner
	lineno  int
	last    contexts.Line
}

func newLineSource(rd io.Reader) *lineSource {
	return &lineSource{scanner: bufio.NewScanner(rd)}
}

func (s *lineSource) next() (contexts.Line, bool, error) {
	for s.scanner.Scan() {
		s.lineno++
		text := strings.TrimSpace(stripComment(s.scanner.Text()))
		if text == "" {
			continue
		}
		s.last = contexts.Line{Lineno: s.lineno, Text: text}
		return s.last, true, nil
	}
	return contexts.Line{}, false, s.scanner.Err()
}

// block returns the current header line followed by every line up to the
// next @end. Nested directives are rejected.
func (s *lineSource) block() ([]contexts.Line, error) {
	lines := []contexts.Line{s.last}
	for {
		line, ok, err := s.next()
		if err != nil {
			return nil, err
		}
		if !ok || strings.HasPrefix(line.Text, "@end") {
			return lines, nil
		}
		if strings.HasPrefix(line.Text, "@") {
			e := units.NewDefinitionSyntaxError("cannot nest @ directives")
			e.SetLocation("", line.Lineno)
			return nil, e
		}
		lines = append(lines, line)
	}
}
