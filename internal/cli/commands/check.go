package commands

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapunits/internal/cli/output"
	"github.com/leapstack-labs/leapunits/pkg/registry"
)

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Standalone bool
	Explain    bool
}

// CheckResult is the outcome of checking one definitions source.
type CheckResult struct {
	Source     string               `json:"source" yaml:"source"`
	Units      int                  `json:"units" yaml:"units"`
	References int                  `json:"references" yaml:"references"`
	Levels     int                  `json:"levels" yaml:"levels"`
	Unresolved map[string]string    `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
	Trace      map[string]UnitTrace `json:"trace,omitempty" yaml:"trace,omitempty"`
	Error      string               `json:"error,omitempty" yaml:"error,omitempty"`
}

// UnitTrace places an unresolved unit in the dependency graph.
type UnitTrace struct {
	Uses      []string `json:"uses,omitempty" yaml:"uses,omitempty"`
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	UsedBy    []string `json:"used_by,omitempty" yaml:"used_by,omitempty"`
}

// OK reports whether the source loaded and every unit resolved.
func (c CheckResult) OK() bool {
	return c.Error == "" && len(c.Unresolved) == 0
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check [files...]",
		Short: "Validate definitions files",
		Long: `Load definitions files and check that every unit resolves to base
dimensions and base units, and that no units are defined in terms of each
other in a loop.

Each file is loaded on top of the built-in definitions, or on its own with
--standalone. Without arguments the configured registry is checked. With
--explain, every unit that does not resolve is listed with the units it is
defined from and the units defined from it.`,
		Example: `  leapunits check
  leapunits check units/*.txt
  leapunits check --standalone my_units.txt
  leapunits check --explain my_units.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Standalone, "standalone", false, "Load each file without the built-in definitions")
	cmd.Flags().BoolVar(&opts.Explain, "explain", false, "Show the dependencies of units that do not resolve")

	return cmd
}

func runCheck(cmd *cobra.Command, files []string, opts *CheckOptions) error {
	cmdCtx, err := NewCommandContextWithoutRegistry(cmd)
	if err != nil {
		return err
	}
	logger := cmdCtx.Logger
	r := cmdCtx.Renderer

	var results []CheckResult
	if len(files) == 0 {
		reg, err := cmdCtx.Cfg.NewRegistry(logger)
		if err != nil {
			results = append(results, CheckResult{Source: "configuration", Error: err.Error()})
		} else {
			results = append(results, checkRegistry("configuration", reg, opts.Explain))
		}
	} else {
		results = make([]CheckResult, len(files))
		g := new(errgroup.Group)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i, file := range files {
			g.Go(func() error {
				regOpts := []registry.Option{registry.WithLogger(logger), registry.WithDefinitionsFile(file)}
				if opts.Standalone {
					regOpts = append(regOpts, registry.WithoutDefaults())
				}
				reg, err := registry.New(regOpts...)
				if err != nil {
					results[i] = CheckResult{Source: file, Error: err.Error()}
					return nil
				}
				results[i] = checkRegistry(file, reg, opts.Explain)
				return nil
			})
		}
		_ = g.Wait()
	}

	failed := 0
	for _, res := range results {
		if !res.OK() {
			failed++
		}
	}

	if handled, err := r.Data(results); handled {
		if err != nil {
			return err
		}
	} else {
		renderCheckResults(r, results)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d definitions sources failed validation", failed, len(results))
	}
	return nil
}

func checkRegistry(source string, reg *registry.Registry, explain bool) CheckResult {
	report, err := reg.Validate()
	if err != nil {
		return CheckResult{Source: source, Error: err.Error()}
	}
	res := CheckResult{
		Source:     source,
		Units:      report.Units,
		References: report.References,
		Levels:     len(report.Levels),
	}
	if report.OK() {
		return res
	}
	res.Unresolved = report.Unresolved
	if explain {
		res.Trace = make(map[string]UnitTrace, len(report.Unresolved))
		for name := range report.Unresolved {
			res.Trace[name] = UnitTrace{
				Uses:      report.Uses(name),
				DependsOn: report.DependsOn(name),
				UsedBy:    report.UsedBy(name),
			}
		}
	}
	return res
}

func renderCheckResults(r *output.Renderer, results []CheckResult) {
	styles := r.Styles()
	for _, res := range results {
		if res.OK() {
			r.Printf("%s %s %s\n", styles.Success.Render("✓"), res.Source,
				styles.Muted.Render(fmt.Sprintf("(%d units, %d references, %d levels)", res.Units, res.References, res.Levels)))
			continue
		}

		r.Printf("%s %s\n", styles.Error.Render("✗"), res.Source)
		if res.Error != "" {
			r.Printf("    %s\n", res.Error)
		}
		names := make([]string, 0, len(res.Unresolved))
		for name := range res.Unresolved {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			r.Printf("    %s %s\n", styles.Bold.Render(name), styles.Muted.Render(res.Unresolved[name]))
			trace, ok := res.Trace[name]
			if !ok {
				continue
			}
			for _, line := range []struct {
				label string
				names []string
			}{
				{"uses", trace.Uses},
				{"depends on", trace.DependsOn},
				{"used by", trace.UsedBy},
			} {
				if len(line.names) > 0 {
					r.Printf("      %s: %s\n", line.label, strings.Join(line.names, ", "))
				}
			}
		}
	}
}
