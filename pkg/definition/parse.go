package definition

import (
	"errors"
	"strings"

	"github.com/leapstack-labs/leapunits/pkg/parser"
	"github.com/leapstack-labs/leapunits/pkg/units"
)

const aliasDirective = "@alias "

// FromString parses a single definition line:
//
//	name = value [= symbol] [= alias]*      unit
//	name- = value [= symbol] [= alias]*     prefix
//	[name] = [reference]                    dimension
//	@alias name = alias [= alias]*          extra aliases
//
// A symbol of "_" means no symbol; "_" aliases are placeholders and dropped.
func FromString(line string) (Definition, error) {
	name, rest, ok := strings.Cut(line, "=")
	if !ok {
		return nil, units.NewDefinitionSyntaxError("missing '=' in definition %q", strings.TrimSpace(line))
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, units.NewDefinitionSyntaxError("missing name in definition %q", strings.TrimSpace(line))
	}

	parts := strings.Split(rest, "=")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if strings.HasPrefix(name, aliasDirective) {
		target := strings.TrimSpace(name[len(aliasDirective):])
		aliases := dropPlaceholders(parts)
		if target == "" || len(aliases) == 0 {
			return nil, units.NewDefinitionSyntaxError("alias line needs a target and at least one alias")
		}
		return NewAlias(target, aliases...), nil
	}

	value := parts[0]
	var symbol string
	var aliases []string
	if extra := nonEmpty(parts[1:]); len(extra) > 0 {
		symbol, aliases = extra[0], dropPlaceholders(extra[1:])
		if symbol == "_" {
			symbol = ""
		}
	}

	switch {
	case strings.HasPrefix(name, "["):
		return parseDimension(name, symbol, aliases, value)
	case strings.HasSuffix(name, "-"):
		return parsePrefix(name, symbol, aliases, value)
	default:
		return parseUnit(name, symbol, aliases, value)
	}
}

func parsePrefix(name, symbol string, aliases []string, value string) (Definition, error) {
	scale, err := parser.ParseNumber(value)
	if err != nil {
		return nil, wrapParseError(err)
	}
	return NewPrefix(name, symbol, aliases, scale), nil
}

func parseDimension(name, symbol string, aliases []string, value string) (Definition, error) {
	if !units.IsDimensionName(name) {
		return nil, units.NewDefinitionSyntaxError("dimension name %q must be enclosed in brackets", name)
	}
	term, err := parser.Parse(value)
	if err != nil {
		return nil, wrapParseError(err)
	}
	if !term.Units.IsEmpty() && !term.Units.IsDimensional() {
		return nil, units.NewDefinitionSyntaxError(
			"Base dimensions must be referenced to None. Derived dimensions must only be referenced to dimensions.")
	}
	d := NewDimension(name, term.Units)
	d.symbol = symbol
	d.AddAliases(aliases...)
	return d, nil
}

func parseUnit(name, symbol string, aliases []string, value string) (Definition, error) {
	expr, modifiers, hasModifiers := strings.Cut(value, ";")

	offset := 0.0
	if hasModifiers {
		var err error
		if offset, err = parseModifiers(modifiers); err != nil {
			return nil, err
		}
	}

	term, err := parser.Parse(expr)
	if err != nil {
		return nil, wrapParseError(err)
	}

	isBase := false
	switch {
	case strings.TrimSpace(expr) == "":
		isBase = true
	case term.Units.IsEmpty():
	case term.Units.IsDimensional():
		isBase = true
	default:
		for _, k := range term.Units.Keys() {
			if units.IsDimensionName(k) {
				return nil, units.NewDefinitionSyntaxError(
					"Cannot mix dimensions and units in the same definition. " +
						"Base units must be referenced only to dimensions. " +
						"Derived units must be referenced only to units.")
			}
		}
	}

	return NewUnit(name, symbol, aliases, units.NewConverter(term.Scale, offset), term.Units, isBase), nil
}

// parseModifiers reads "offset: 273.15" style modifiers separated by ';'.
func parseModifiers(s string) (float64, error) {
	offset := 0.0
	for _, part := range strings.Split(s, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		key, raw, ok := strings.Cut(part, ":")
		if !ok {
			return 0, units.NewDefinitionSyntaxError("modifier %q must have the form key: value", strings.TrimSpace(part))
		}
		key = strings.TrimSpace(key)
		v, err := parser.ParseNumber(strings.TrimSpace(raw))
		if err != nil {
			return 0, wrapParseError(err)
		}
		switch key {
		case "offset":
			offset = v
		default:
			return 0, units.NewDefinitionSyntaxError("unknown modifier %q", key)
		}
	}
	return offset, nil
}

func wrapParseError(err error) error {
	var synErr *parser.SyntaxError
	if errors.As(err, &synErr) {
		return units.NewDefinitionSyntaxError("%s", synErr.Error())
	}
	return err
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func dropPlaceholders(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" && p != "_" {
			out = append(out, p)
		}
	}
	return out
}
