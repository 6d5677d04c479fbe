package contexts

import (
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapunits/pkg/parser"
	"github.com/leapstack-labs/leapunits/pkg/units"
)

var (
	headerRe  = regexp.MustCompile(`^@context\s*(\(.*\))?\s+(\w+)\s*(=(.*))?$`)
	varNameRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
)

// Line is one source line of a context block.
type Line struct {
	Lineno int
	Text   string
}

// FromLines builds a context from a block such as
//
//	@context(n=1) spectroscopy = sp
//	    [length] <-> [frequency]: speed_of_light / n / value
//	    [frequency] -> [energy]: planck_constant * value
//
// The first line is the header; "@end" is expected to be stripped by the
// caller. toBase, when not nil, reduces both sides of every rule.
func FromLines(lines []Line, toBase func(units.Container) (units.Container, error)) (*Context, error) {
	if len(lines) == 0 {
		return nil, units.NewDefinitionSyntaxError("empty context block")
	}
	header := lines[0]
	name, aliases, defaults, err := parseHeader(strings.TrimSpace(header.Text))
	if err != nil {
		err.SetLocation("", header.Lineno)
		return nil, err
	}

	ctx := New(name, aliases, defaults)
	names := map[string]bool{}
	for _, line := range lines[1:] {
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}
		src, dst, bothWays, eq, perr := parseRelation(text)
		if perr == nil && toBase != nil {
			if src, perr = toBase(src); perr == nil {
				dst, perr = toBase(dst)
			}
		}
		if perr != nil {
			synErr := units.NewDefinitionSyntaxError("Could not parse Context %s relation '%s'", name, text)
			synErr.SetLocation("", line.Lineno)
			return nil, synErr
		}

		for _, v := range varNameRe.FindAllString(eq, -1) {
			names[v] = true
		}
		fn := equation(eq)
		ctx.AddTransformation(src, dst, fn)
		if bothWays {
			ctx.AddTransformation(dst, src, fn)
		}
	}

	var missing []string
	for k := range defaults {
		if !names[k] {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		synErr := units.NewDefinitionSyntaxError("Context parameters %v not found in any equation", missing)
		synErr.SetLocation("", header.Lineno)
		return nil, synErr
	}
	if toBase != nil {
		ctx.rules.normalized = true
	}
	return ctx, nil
}

func parseHeader(text string) (string, []string, map[string]float64, *units.DefinitionSyntaxError) {
	m := headerRe.FindStringSubmatch(text)
	if m == nil {
		return "", nil, nil, units.NewDefinitionSyntaxError("Could not parse the Context header '%s'", text)
	}

	defaults := map[string]float64{}
	if raw := strings.TrimSpace(strings.Trim(m[1], "()")); raw != "" {
		for _, pair := range strings.Split(raw, ",") {
			k, v, ok := strings.Cut(pair, "=")
			k = strings.TrimSpace(k)
			if !ok || k == "" {
				return "", nil, nil, units.NewDefinitionSyntaxError("Could not parse the Context header '%s'", text)
			}
			f, err := parser.ParseNumber(strings.TrimSpace(v))
			if err != nil {
				return "", nil, nil, units.NewDefinitionSyntaxError("Could not parse the Context header '%s'", text)
			}
			defaults[k] = f
		}
	}

	var aliases []string
	if m[3] != "" {
		for _, a := range strings.Split(m[4], "=") {
			if a = strings.TrimSpace(a); a != "" && !slices.Contains(aliases, a) {
				aliases = append(aliases, a)
			}
		}
	}
	return m[2], aliases, defaults, nil
}

func parseRelation(text string) (src, dst units.Container, bothWays bool, eq string, err error) {
	rel, eq, ok := strings.Cut(text, ":")
	if !ok {
		return src, dst, false, "", units.NewDefinitionSyntaxError("missing ':'")
	}
	eq = strings.TrimSpace(eq)
	if eq == "" {
		return src, dst, false, "", units.NewDefinitionSyntaxError("missing equation")
	}

	var left, right string
	if l, r, found := strings.Cut(rel, "<->"); found {
		left, right, bothWays = l, r, true
	} else if l, r, found := strings.Cut(rel, "->"); found {
		left, right = l, r
	} else {
		return src, dst, false, "", units.NewDefinitionSyntaxError("missing '->'")
	}

	srcTerm, err := parser.Parse(strings.TrimSpace(left))
	if err != nil {
		return src, dst, false, "", err
	}
	dstTerm, err := parser.Parse(strings.TrimSpace(right))
	if err != nil {
		return src, dst, false, "", err
	}
	return srcTerm.Units, dstTerm.Units, bothWays, eq, nil
}

// equation evaluates eq with "value" and the context parameters bound.
func equation(eq string) Transformation {
	return func(value parser.Term, params map[string]float64) (parser.Term, error) {
		vars := make(map[string]parser.Term, len(params)+1)
		for k, v := range params {
			vars[k] = parser.Number(v)
		}
		vars["value"] = value
		return parser.ParseWith(eq, parser.Env{Vars: vars})
	}
}
