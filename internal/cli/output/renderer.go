// Package output renders command results as styled text, markdown, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// Mode selects how results are rendered.
type Mode string

// Output modes.
const (
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
	ModeYAML     Mode = "yaml"
)

// Styles holds the lipgloss styles used for text output.
type Styles struct {
	Header  lipgloss.Style
	Bold    lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style
	Unit    lipgloss.Style
	Value   lipgloss.Style
}

func newStyles(lg *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:  lg.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Bold:    lg.NewStyle().Bold(true),
		Success: lg.NewStyle().Foreground(lipgloss.Color("10")),
		Error:   lg.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Warning: lg.NewStyle().Foreground(lipgloss.Color("11")),
		Info:    lg.NewStyle().Foreground(lipgloss.Color("14")),
		Muted:   lg.NewStyle().Foreground(lipgloss.Color("8")),
		Unit:    lg.NewStyle().Foreground(lipgloss.Color("13")),
		Value:   lg.NewStyle().Bold(true),
	}
}

// Renderer writes command output in the selected mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	styles *Styles
}

// NewRenderer creates a renderer. An empty mode means text. Colors are only
// emitted when out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeText
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		styles: newStyles(lipgloss.NewRenderer(out)),
	}
}

// EffectiveMode returns the mode output is rendered in.
func (r *Renderer) EffectiveMode() Mode { return r.mode }

// Styles returns the text styles.
func (r *Renderer) Styles() *Styles { return r.styles }

// Writer returns the output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// Println writes a line.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header writes a section header. Level 1 is underlined.
func (r *Renderer) Header(level int, title string) {
	if r.mode == ModeMarkdown {
		r.Println(FormatHeader(level, title))
		r.Println()
		return
	}
	r.Println(r.styles.Header.Render(title))
	if level <= 1 {
		r.Println(r.styles.Muted.Render(strings.Repeat("─", lipgloss.Width(title))))
	}
}

// Success writes a success message.
func (r *Renderer) Success(msg string) {
	r.Println(r.styles.Success.Render("✓ " + msg))
}

// Warning writes a warning to the error stream.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render("! "+msg))
}

// Error writes an error to the error stream.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render("✗ "+msg))
}

// KeyValue writes a labelled value.
func (r *Renderer) KeyValue(key, value string) {
	if r.mode == ModeMarkdown {
		r.Println(FormatKeyValue(key, value))
		return
	}
	r.Printf("%s %s\n", r.styles.Muted.Render(key+":"), value)
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML writes v as YAML.
func (r *Renderer) YAML(v any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// Data writes v in the structured mode, and reports false in text and
// markdown modes so the caller renders it itself.
func (r *Renderer) Data(v any) (bool, error) {
	switch r.mode {
	case ModeJSON:
		return true, r.JSON(v)
	case ModeYAML:
		return true, r.YAML(v)
	}
	return false, nil
}

// Table writes rows under header as a light box table, or a markdown table
// in markdown mode.
func (r *Renderer) Table(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	t.AppendHeader(headerRow)

	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}

	if r.mode == ModeMarkdown {
		t.RenderMarkdown()
		return
	}
	t.Render()
}

// FormatHeader renders a markdown header.
func FormatHeader(level int, title string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + title
}

// FormatKeyValue renders a markdown list item.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s:** %s", key, value)
}
