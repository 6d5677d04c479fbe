// Package units provides the value types shared by every layer of leapunits:
// the units container, conversion rules, the magnitude capability set, and
// the error taxonomy.
package units

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Container is an immutable product of named units raised to real exponents.
//
// Keys keep their insertion order for display, but equality ignores order.
// Entries with a zero exponent never exist. The zero value is the empty
// (dimensionless) container.
type Container struct {
	keys []string
	exps map[string]float64
}

// Dimensionless is the empty container.
var Dimensionless = Container{}

// Unit returns a container holding a single name with exponent 1.
func Unit(name string) Container {
	return Container{}.Add(name, 1)
}

// NewContainer builds a container from a map. Keys are inserted in sorted
// order so the result is deterministic.
func NewContainer(m map[string]float64) Container {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	c := Container{}
	for _, name := range names {
		c = c.add(name, m[name])
	}
	return c
}

// Len returns the number of units in the container.
func (c Container) Len() int {
	return len(c.keys)
}

// IsEmpty reports whether the container has no units.
func (c Container) IsEmpty() bool {
	return len(c.keys) == 0
}

// Keys returns the unit names in insertion order.
func (c Container) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Get returns the exponent of name.
func (c Container) Get(name string) (float64, bool) {
	exp, ok := c.exps[name]
	return exp, ok
}

// Has reports whether name is present.
func (c Container) Has(name string) bool {
	_, ok := c.exps[name]
	return ok
}

// Each calls fn for every entry in insertion order.
func (c Container) Each(fn func(name string, exp float64)) {
	for _, k := range c.keys {
		fn(k, c.exps[k])
	}
}

// Single returns the name of the only unit when the container is a plain
// reference to one unit with exponent 1.
func (c Container) Single() (string, bool) {
	if len(c.keys) == 1 && c.exps[c.keys[0]] == 1 {
		return c.keys[0], true
	}
	return "", false
}

// Add returns a new container with exp added to the exponent of name.
func (c Container) Add(name string, exp float64) Container {
	return c.clone().add(name, exp)
}

// Mul returns the product of c and other.
func (c Container) Mul(other Container) Container {
	out := c.clone()
	for _, k := range other.keys {
		out = out.add(k, other.exps[k])
	}
	return out
}

// Div returns c divided by other.
func (c Container) Div(other Container) Container {
	out := c.clone()
	for _, k := range other.keys {
		out = out.add(k, -other.exps[k])
	}
	return out
}

// Pow returns c with every exponent multiplied by exp.
func (c Container) Pow(exp float64) Container {
	if exp == 0 {
		return Container{}
	}
	out := Container{}
	for _, k := range c.keys {
		out = out.add(k, c.exps[k]*exp)
	}
	return out
}

// Inv returns c raised to -1.
func (c Container) Inv() Container {
	return c.Pow(-1)
}

// Remove returns a container without the given names.
func (c Container) Remove(names ...string) Container {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := Container{}
	for _, k := range c.keys {
		if !drop[k] {
			out = out.add(k, c.exps[k])
		}
	}
	return out
}

// Rename returns a container where oldName is replaced by newName, keeping
// its position. Exponents are merged if newName already exists.
func (c Container) Rename(oldName, newName string) Container {
	out := Container{}
	for _, k := range c.keys {
		if k == oldName {
			out = out.add(newName, c.exps[k])
			continue
		}
		out = out.add(k, c.exps[k])
	}
	return out
}

// Equal reports structural equality regardless of key order.
func (c Container) Equal(other Container) bool {
	if len(c.keys) != len(other.keys) {
		return false
	}
	for k, v := range c.exps {
		if ov, ok := other.exps[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// IsDimensional reports whether every key is a bracketed dimension name.
func (c Container) IsDimensional() bool {
	for _, k := range c.keys {
		if !IsDimensionName(k) {
			return false
		}
	}
	return true
}

// IsDimensionName reports whether name has the form "[...]".
func IsDimensionName(name string) bool {
	return strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]")
}

// Key returns a canonical, order independent encoding usable as a map key.
func (c Container) Key() string {
	if len(c.keys) == 0 {
		return ""
	}
	sorted := c.Keys()
	sort.Strings(sorted)

	var b strings.Builder
	for i, k := range sorted {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('^')
		b.WriteString(FormatExponent(c.exps[k]))
	}
	return b.String()
}

// String renders the container as "meter / second ** 2".
func (c Container) String() string {
	if len(c.keys) == 0 {
		return "dimensionless"
	}

	var num, den []string
	for _, k := range c.keys {
		exp := c.exps[k]
		switch {
		case exp == 1:
			num = append(num, k)
		case exp == -1:
			den = append(den, k)
		case exp > 0:
			num = append(num, fmt.Sprintf("%s ** %s", k, FormatExponent(exp)))
		default:
			den = append(den, fmt.Sprintf("%s ** %s", k, FormatExponent(-exp)))
		}
	}

	out := strings.Join(num, " * ")
	if len(num) == 0 {
		out = "1"
	}
	if len(den) > 0 {
		out += " / " + strings.Join(den, " / ")
	}
	return out
}

// FormatExponent renders exponents without a trailing ".0".
func FormatExponent(exp float64) string {
	return strconv.FormatFloat(exp, 'g', -1, 64)
}

// MarshalJSON encodes the container as an ordered JSON object.
func (c Container) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.WriteString(FormatExponent(c.exps[k]))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object produced by MarshalJSON, keeping key order.
func (c *Container) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = Container{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("units container must be a JSON object")
	}

	out := Container{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected key %v in units container", keyTok)
		}
		var exp float64
		if err := dec.Decode(&exp); err != nil {
			return fmt.Errorf("exponent of %q: %w", name, err)
		}
		out = out.add(name, exp)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*c = out
	return nil
}

func (c Container) clone() Container {
	out := Container{
		keys: make([]string, len(c.keys)),
		exps: make(map[string]float64, len(c.exps)),
	}
	copy(out.keys, c.keys)
	for k, v := range c.exps {
		out.exps[k] = v
	}
	return out
}

// add mutates c in place; callers must own c.
func (c Container) add(name string, exp float64) Container {
	if c.exps == nil {
		c.exps = make(map[string]float64)
	}
	cur, ok := c.exps[name]
	next := cur + exp
	switch {
	case next == 0 && ok:
		delete(c.exps, name)
		for i, k := range c.keys {
			if k == name {
				c.keys = append(c.keys[:i:i], c.keys[i+1:]...)
				break
			}
		}
	case next == 0:
	case ok:
		c.exps[name] = next
	default:
		c.exps[name] = next
		c.keys = append(c.keys, name)
	}
	return c
}
