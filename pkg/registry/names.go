package registry

import (
	"strings"
	"unicode/utf8"

	"github.com/leapstack-labs/leapunits/pkg/definition"
	"github.com/leapstack-labs/leapunits/pkg/units"
)

// Candidate is one reading of a unit name as prefix + unit + suffix, all
// given by canonical name except the suffix.
type Candidate struct {
	Prefix string
	Unit   string
	Suffix string
}

// suffixes are tried in order; "s" covers regular plurals.
var suffixes = []string{"", "s"}

// ParseUnitName lists every way name splits into a known prefix, a known
// unit and a suffix. Prefixes are tried in definition order, starting with
// the empty prefix, so the first candidate is the most literal reading.
func (r *Registry) ParseUnitName(name string, caseSensitive bool) []Candidate {
	var out []Candidate
	add := func(c Candidate) {
		for _, seen := range out {
			if seen == c {
				return
			}
		}
		out = append(out, c)
	}

	for _, suffix := range suffixes {
		for _, prefix := range r.prefixKeys {
			if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
				continue
			}
			base := name[len(prefix):]
			if suffix != "" {
				if len(base) < len(suffix) {
					continue
				}
				base = base[:len(base)-len(suffix)]
				if utf8.RuneCountInString(base) == 1 {
					continue
				}
			}
			if base == "" {
				continue
			}
			p := r.prefixes[prefix].Name()

			if caseSensitive {
				if u, ok := r.units[base]; ok && !r.prefixed[base] {
					add(Candidate{Prefix: p, Unit: u.Name(), Suffix: suffix})
				}
				continue
			}
			for _, key := range r.unitsFold[r.foldKey(base)] {
				add(Candidate{Prefix: p, Unit: r.units[key].Name(), Suffix: suffix})
			}
		}
	}
	return out
}

// GetName returns the canonical name of a unit given its name, symbol,
// alias, plural or prefixed form. "dimensionless" maps to "".
func (r *Registry) GetName(nameOrAlias string) (string, error) {
	return r.LookupName(nameOrAlias, true)
}

// LookupName is GetName with optional case-insensitive matching. A
// prefixed unit is defined on first lookup.
func (r *Registry) LookupName(nameOrAlias string, caseSensitive bool) (string, error) {
	if nameOrAlias == "dimensionless" {
		return "", nil
	}
	if u, ok := r.units[nameOrAlias]; ok {
		return u.Name(), nil
	}

	c, err := r.pick(nameOrAlias, caseSensitive)
	if err != nil {
		return "", err
	}
	if c.Prefix == "" {
		return c.Unit, nil
	}

	name := c.Prefix + c.Unit
	if _, ok := r.units[name]; !ok {
		p := r.prefixes[c.Prefix]
		symbol := p.Symbol() + r.units[c.Unit].Symbol()
		r.units[name] = definition.NewUnit(name, symbol, nil, p.Converter(), units.Unit(c.Unit), false)
		r.prefixed[name] = true
	}
	return name, nil
}

// GetSymbol returns the preferred symbol of a unit, combining the prefix
// and unit symbols for prefixed forms.
func (r *Registry) GetSymbol(nameOrAlias string) (string, error) {
	c, err := r.pick(nameOrAlias, true)
	if err != nil {
		return "", err
	}
	return r.prefixes[c.Prefix].Symbol() + r.units[c.Unit].Symbol(), nil
}

func (r *Registry) pick(name string, caseSensitive bool) (Candidate, error) {
	candidates := r.ParseUnitName(name, caseSensitive)
	switch len(candidates) {
	case 0:
		return Candidate{}, units.NewUndefinedUnitError(name)
	case 1:
	default:
		r.logger.Warn("unit name has several readings, using the first",
			"name", name, "candidates", candidates)
	}
	return candidates[0], nil
}

// unitDef returns the definition behind any resolvable unit name.
func (r *Registry) unitDef(name string) (*definition.Unit, error) {
	canonical, err := r.GetName(name)
	if err != nil {
		return nil, err
	}
	u, ok := r.units[canonical]
	if !ok {
		return nil, units.NewUndefinedUnitError(name)
	}
	return u, nil
}
