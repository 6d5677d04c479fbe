package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapunits/pkg/registry"
)

const replPrompt = "units> "

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive units shell",
		Long: `Start an interactive shell for evaluating quantities.

Enter an expression to evaluate it, or "expr -> units" to convert it.
Lines starting with a dot are shell commands; type .help to list them.`,
		Args: cobra.NoArgs,
		RunE: runREPL,
	}
}

func runREPL(cmd *cobra.Command, _ []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	// Setup history file (project-local)
	historyFile := ""
	if cmdCtx.Cfg.StatePath != ":memory:" {
		historyFile = filepath.Join(filepath.Dir(cmdCtx.Cfg.StatePath), "repl_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newUnitCompleter(cmdCtx.Registry),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	s := &replSession{reg: cmdCtx.Registry, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}

	_, _ = fmt.Fprintf(s.out, "leapunits %d units (state: %s)\n", len(s.reg.Units()), cmdCtx.Cfg.StatePath)
	_, _ = fmt.Fprintln(s.out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(s.out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if quit := s.eval(line); quit {
			break
		}
	}
	return nil
}

// replSession evaluates REPL lines against a registry.
type replSession struct {
	reg    *registry.Registry
	out    io.Writer
	errOut io.Writer
}

// eval runs one line and reports whether the session should end.
func (s *replSession) eval(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return false
	}

	var err error
	if strings.HasPrefix(line, ".") {
		var quit bool
		quit, err = s.dotCommand(line)
		if quit {
			return true
		}
	} else {
		err = s.evalExpression(line)
	}
	if err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
	}
	return false
}

func (s *replSession) evalExpression(line string) error {
	expr, dst, convert := strings.Cut(line, "->")
	q, err := s.reg.ParseExpression(strings.TrimSpace(expr))
	if err != nil {
		return err
	}
	if convert {
		if q, err = q.To(strings.TrimSpace(dst)); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintln(s.out, q.String())
	return nil
}

func (s *replSession) dotCommand(line string) (bool, error) {
	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(command) {
	case ".quit", ".exit":
		return true, nil

	case ".help":
		printREPLHelp(s.out)

	case ".dim":
		dim, err := s.reg.GetDimensionality(rest)
		if err != nil {
			return false, err
		}
		_, _ = fmt.Fprintln(s.out, dim.String())

	case ".base":
		factor, base, err := s.reg.GetBaseUnits(rest)
		if err != nil {
			return false, err
		}
		_, _ = fmt.Fprintf(s.out, "%s %s\n", formatFloat(factor), base.String())

	case ".compatible":
		names, err := s.reg.GetCompatibleUnits(rest)
		if err != nil {
			return false, err
		}
		_, _ = fmt.Fprintln(s.out, strings.Join(names, ", "))

	case ".define":
		if rest == "" {
			return false, errors.New("usage: .define <definition>")
		}
		if err := s.reg.DefineString(rest); err != nil {
			return false, err
		}
		_, _ = fmt.Fprintln(s.out, "defined")

	case ".context":
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return false, errors.New("usage: .context <name> [param=value ...]")
		}
		params, err := parseParams(fields[1:])
		if err != nil {
			return false, err
		}
		if err := s.reg.EnableContexts(params, fields[0]); err != nil {
			return false, err
		}
		_, _ = fmt.Fprintf(s.out, "active: %s\n", strings.Join(s.reg.ActiveContexts(), ", "))

	case ".nocontext":
		s.reg.DisableContexts(0)
		_, _ = fmt.Fprintln(s.out, "no active contexts")

	case ".contexts":
		active := s.reg.ActiveContexts()
		_, _ = fmt.Fprintf(s.out, "available: %s\n", strings.Join(s.reg.Contexts(), ", "))
		if len(active) > 0 {
			_, _ = fmt.Fprintf(s.out, "active: %s\n", strings.Join(active, ", "))
		}

	default:
		return false, fmt.Errorf("unknown command: %s (type .help for commands)", command)
	}
	return false, nil
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help                     Show this help message
  .dim <expr>               Show the dimensionality of an expression
  .base <expr>              Reduce an expression to base units
  .compatible <expr>        List compatible units
  .define <line>            Add a definition for this session
  .context <name> [k=v ...] Enable a context
  .nocontext                Disable all contexts
  .contexts                 List contexts
  .quit / .exit             Exit the REPL

Tips:
  - "3 ft + 2 in" evaluates a quantity
  - "3 ft + 2 in -> cm" converts it
  - Tab completion works for unit names
`
	_, _ = fmt.Fprintln(w, help)
}

// newUnitCompleter completes dot-commands and unit names.
func newUnitCompleter(reg *registry.Registry) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, u := range reg.Units() {
		items = append(items, readline.PcItem(u.Name()))
	}

	var contextItems []readline.PrefixCompleterInterface
	for _, name := range reg.Contexts() {
		contextItems = append(contextItems, readline.PcItem(name))
	}

	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".dim"),
		readline.PcItem(".base"),
		readline.PcItem(".compatible"),
		readline.PcItem(".define"),
		readline.PcItem(".context", contextItems...),
		readline.PcItem(".nocontext"),
		readline.PcItem(".contexts"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}
