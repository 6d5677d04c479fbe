// Package registry holds units, prefixes, dimensions and contexts loaded from
// definition files, resolves unit names, reduces unit expressions to base
// units and dimensions, and converts magnitudes between compatible units.
//
// A Registry is not safe for concurrent mutation. Define and context
// changes must be serialized by the caller; lookups on a registry that is
// no longer mutated may run concurrently only after its caches are warm,
// so servers guard it with a mutex.
package registry

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/leapstack-labs/leapunits/pkg/contexts"
	"github.com/leapstack-labs/leapunits/pkg/definition"
	"github.com/leapstack-labs/leapunits/pkg/units"
)

// Registry is the set of known units and their relations.
type Registry struct {
	logger            *slog.Logger
	onRedefinition    RedefinitionPolicy
	defaultAsDelta    bool
	autoconvertOffset bool
	withoutDefaults   bool
	preprocessors     []func(string) string
	sources           []source

	// units maps names, symbols and aliases to unit definitions. It also
	// holds prefixed units created on first lookup, flagged in prefixed.
	units     map[string]*definition.Unit
	prefixed  map[string]bool
	unitsFold map[string][]string

	prefixes   map[string]*definition.Prefix
	prefixKeys []string // lookup order, "" first

	dimensions    map[string]*definition.Dimension
	dimensionBase map[string]string // base dimension -> unit defining it

	// owners maps every canonical name to the kind that owns it.
	owners   map[string]definition.Kind
	defaults map[string]string

	contexts map[string]*contexts.Context
	active   *contexts.Chain

	fold  cases.Caser
	cache *cache
}

type rootUnits struct {
	factor float64
	units  units.Container
}

// cache holds everything derived from the definitions. It is dropped on
// every Define and context change.
type cache struct {
	dimensionality map[string]units.Container
	rootUnits      map[string]rootUnits
	plans          map[string]conversion
	parsed         map[string]units.Container
	equivalents    map[string][]string
}

func newCache() *cache {
	return &cache{
		dimensionality: make(map[string]units.Container),
		rootUnits:      make(map[string]rootUnits),
		plans:          make(map[string]conversion),
		parsed:         make(map[string]units.Container),
	}
}

// New creates a registry. Unless WithoutDefaults is given, the embedded
// default definitions are loaded first, followed by every definitions file
// or reader passed as an option. The unit pi is always defined.
func New(opts ...Option) (*Registry, error) {
	r := &Registry{
		logger:        slog.Default(),
		units:         make(map[string]*definition.Unit),
		prefixed:      make(map[string]bool),
		unitsFold:     make(map[string][]string),
		prefixes:      make(map[string]*definition.Prefix),
		dimensions:    make(map[string]*definition.Dimension),
		dimensionBase: make(map[string]string),
		owners:        make(map[string]definition.Kind),
		defaults:      make(map[string]string),
		contexts:      make(map[string]*contexts.Context),
		active:        contexts.NewChain(),
		fold:          cases.Fold(),
		cache:         newCache(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.prefixes[""] = definition.NewPrefix("", "", nil, 1)
	r.prefixKeys = []string{""}
	r.owners[""] = definition.KindPrefix

	if err := r.Define(definition.NewUnit("pi", "π", nil, units.ScaleConverter{Factor: math.Pi}, units.Dimensionless, false)); err != nil {
		return nil, err
	}

	if !r.withoutDefaults {
		if err := r.loadFile(embeddedLoader, defaultDefinitions); err != nil {
			return nil, fmt.Errorf("failed to load default definitions: %w", err)
		}
	}
	for _, src := range r.sources {
		var err error
		if src.reader != nil {
			err = r.LoadDefinitionsReader(src.name, src.reader)
		} else {
			err = r.LoadDefinitions(src.path)
		}
		if err != nil {
			return nil, err
		}
	}
	r.sources = nil

	r.logger.Debug("registry ready",
		"units", len(r.unitNames()),
		"prefixes", len(r.prefixKeys)-1,
		"dimensions", len(r.Dimensions()),
		"contexts", len(r.Contexts()))
	return r, nil
}

// Logger returns the registry logger.
func (r *Registry) Logger() *slog.Logger {
	return r.logger
}

func (r *Registry) resetCache() {
	r.cache = newCache()
}

// Define adds a unit, prefix, dimension or alias definition.
//
// Re-registering a definition with identical content is a no-op. Any other
// reuse of a taken name, symbol or alias is handled by the redefinition
// policy. A unit with an offset also registers its multiplicative delta_
// twin, and a base unit defines the dimensions it references.
func (r *Registry) Define(def definition.Definition) error {
	var err error
	switch d := def.(type) {
	case *definition.Unit:
		err = r.defineUnit(d)
	case *definition.Prefix:
		err = r.definePrefix(d)
	case *definition.Dimension:
		err = r.defineDimension(d)
	case *definition.Alias:
		err = r.defineAlias(d)
	default:
		return fmt.Errorf("%T is not a valid definition", def)
	}
	r.resetCache()
	return err
}

// DefineString parses and defines every line of text. Blank lines and
// comments are skipped; directives are not allowed.
func (r *Registry) DefineString(text string) error {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(stripComment(line))
		if line == "" {
			continue
		}
		def, err := definition.FromString(line)
		if err == nil {
			err = r.Define(def)
		}
		if err != nil {
			if len(lines) > 1 {
				locate(err, "", i+1)
			}
			return err
		}
	}
	return nil
}

func (r *Registry) defineUnit(u *definition.Unit) error {
	if existing, ok := r.units[u.Name()]; ok && !r.prefixed[u.Name()] && existing.Equal(u) {
		return nil
	}

	// Every check runs before the first write so that a rejected
	// definition leaves the registry untouched.
	if err := r.checkUnit(u); err != nil {
		return err
	}
	var delta *definition.Unit
	if !u.IsMultiplicative() {
		delta = deltaOf(u)
		if err := r.checkUnit(delta); err != nil {
			return err
		}
	}
	var dims, missing []string
	if u.IsBase() {
		var err error
		if dims, missing, err = r.checkBaseDimensions(u); err != nil {
			return err
		}
	}

	for _, dim := range missing {
		r.storeDimension(definition.NewDimension(dim, units.Dimensionless))
	}
	for _, dim := range dims {
		r.dimensionBase[dim] = u.Name()
	}
	if delta != nil {
		r.storeUnit(delta)
	}
	r.storeUnit(u)
	return nil
}

// checkBaseDimensions validates the dimensions referenced by a base unit.
// It returns the dimensions the unit becomes the base of and, among them,
// those that are not defined yet.
func (r *Registry) checkBaseDimensions(u *definition.Unit) (dims, missing []string, err error) {
	for _, dim := range u.Reference().Keys() {
		if dim == "[]" {
			continue
		}
		d, exists := r.dimensions[dim]
		if !exists {
			nd := definition.NewDimension(dim, units.Dimensionless)
			if err := r.checkKeys(nd, keysOf(nd), r.lookupDimension); err != nil {
				return nil, nil, err
			}
			dims = append(dims, dim)
			missing = append(missing, dim)
			continue
		}
		if !d.IsBase() {
			return nil, nil, units.NewDefinitionSyntaxError("Base unit %s cannot reference derived dimension %s", u.Name(), dim)
		}
		if owner := r.dimensionBase[dim]; owner != "" && owner != u.Name() {
			return nil, nil, units.NewDefinitionSyntaxError("Only one unit per dimension can be a base unit")
		}
		dims = append(dims, dim)
	}
	return dims, missing, nil
}

// deltaOf returns the multiplicative twin of an offset unit.
func deltaOf(u *definition.Unit) *definition.Unit {
	var symbol string
	if u.HasSymbol() {
		symbol = "Δ" + u.Symbol()
	}
	aliases := make([]string, 0, 2*len(u.Aliases()))
	for _, a := range u.Aliases() {
		aliases = append(aliases, "Δ"+a)
	}
	for _, a := range u.Aliases() {
		aliases = append(aliases, "delta_"+a)
	}
	return definition.NewUnit("delta_"+u.Name(), symbol, aliases,
		units.ScaleConverter{Factor: u.Converter().Scale()}, u.Reference(), u.IsBase())
}

func (r *Registry) lookupUnit(k string) (definition.Definition, bool) {
	if r.prefixed[k] {
		return nil, false
	}
	d, ok := r.units[k]
	return d, ok
}

func (r *Registry) lookupDimension(k string) (definition.Definition, bool) {
	d, ok := r.dimensions[k]
	return d, ok
}

func (r *Registry) checkUnit(u *definition.Unit) error {
	for _, alias := range u.Aliases() {
		if strings.Contains(alias, " ") {
			r.logger.Warn("alias cannot contain a space", "alias", alias, "unit", u.Name())
		}
	}
	return r.checkKeys(u, keysOf(u), r.lookupUnit)
}

func (r *Registry) storeUnit(u *definition.Unit) {
	for _, k := range keysOf(u) {
		r.units[k] = u
		delete(r.prefixed, k)
		r.addFold(k)
	}
	r.owners[u.Name()] = definition.KindUnit
}

func (r *Registry) definePrefix(p *definition.Prefix) error {
	if existing, ok := r.prefixes[p.Name()]; ok && existing.Equal(p) {
		return nil
	}
	keys := keysOf(p)
	lookup := func(k string) (definition.Definition, bool) {
		d, ok := r.prefixes[k]
		return d, ok
	}
	if err := r.checkKeys(p, keys, lookup); err != nil {
		return err
	}
	for _, k := range keys {
		if _, ok := r.prefixes[k]; !ok {
			r.prefixKeys = append(r.prefixKeys, k)
		}
		r.prefixes[k] = p
	}
	r.owners[p.Name()] = definition.KindPrefix
	return nil
}

func (r *Registry) defineDimension(d *definition.Dimension) error {
	if existing, ok := r.dimensions[d.Name()]; ok && existing.Equal(d) {
		return nil
	}
	if err := r.checkKeys(d, keysOf(d), r.lookupDimension); err != nil {
		return err
	}
	r.storeDimension(d)
	return nil
}

func (r *Registry) storeDimension(d *definition.Dimension) {
	for _, k := range keysOf(d) {
		r.dimensions[k] = d
	}
	r.owners[d.Name()] = definition.KindDimension
}

// defineAlias adds aliases to an existing unit, prefix or dimension.
func (r *Registry) defineAlias(a *definition.Alias) error {
	target := a.Name()
	if u, ok := r.units[target]; ok && !r.prefixed[target] {
		return r.extend(u, a.Aliases(), r.lookupUnit, func(k string) {
			r.units[k] = u
			r.addFold(k)
		})
	}
	if p, ok := r.prefixes[target]; ok {
		return r.extend(p, a.Aliases(), func(k string) (definition.Definition, bool) {
			d, ok := r.prefixes[k]
			return d, ok
		}, func(k string) {
			if _, ok := r.prefixes[k]; !ok {
				r.prefixKeys = append(r.prefixKeys, k)
			}
			r.prefixes[k] = p
		})
	}
	if d, ok := r.dimensions[target]; ok {
		return r.extend(d, a.Aliases(), r.lookupDimension, func(k string) {
			r.dimensions[k] = d
		})
	}
	return units.NewUndefinedUnitError(target)
}

func (r *Registry) extend(def definition.Definition, aliases []string,
	lookup func(string) (definition.Definition, bool), store func(string)) error {
	var added []string
	for _, a := range aliases {
		if a != "" && !slices.Contains(def.Aliases(), a) && !slices.Contains(added, a) {
			added = append(added, a)
		}
	}
	if err := r.checkKeys(def, added, lookup); err != nil {
		return err
	}
	def.AddAliases(added...)
	for _, k := range added {
		store(k)
	}
	return nil
}

// checkKeys applies the redefinition policy to every key of def that is
// taken by something else: a different definition of the same kind, or the
// canonical name of another kind. Under Raise nothing is modified.
func (r *Registry) checkKeys(def definition.Definition, keys []string,
	lookup func(string) (definition.Definition, bool)) error {
	for _, k := range keys {
		collidesWith := ""
		if kind, ok := r.owners[k]; ok && kind != def.Kind() {
			collidesWith = kind.String()
		} else if existing, ok := lookup(k); ok && existing != def {
			collidesWith = existing.Kind().String()
		}
		if collidesWith == "" {
			continue
		}
		switch r.onRedefinition {
		case Raise:
			return &units.RedefinitionError{Name: k, DefinitionType: collidesWith}
		case Warn:
			r.logger.Warn("redefining", "name", k, "previous", collidesWith, "new", def.Kind().String())
		}
	}
	return nil
}

func keysOf(def definition.Definition) []string {
	keys := []string{def.Name()}
	if def.HasSymbol() && def.Symbol() != def.Name() {
		keys = append(keys, def.Symbol())
	}
	for _, a := range def.Aliases() {
		if !slices.Contains(keys, a) {
			keys = append(keys, a)
		}
	}
	return keys
}

func (r *Registry) foldKey(s string) string {
	return r.fold.String(s)
}

func (r *Registry) addFold(key string) {
	f := r.foldKey(key)
	if !slices.Contains(r.unitsFold[f], key) {
		r.unitsFold[f] = append(r.unitsFold[f], key)
	}
}

// unitNames returns the canonical names of the defined units, sorted.
func (r *Registry) unitNames() []string {
	var names []string
	for name, kind := range r.owners {
		if kind == definition.KindUnit {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Units returns the defined units sorted by name. Prefixed forms created
// by lookups are not included.
func (r *Registry) Units() []*definition.Unit {
	names := r.unitNames()
	out := make([]*definition.Unit, 0, len(names))
	for _, n := range names {
		out = append(out, r.units[n])
	}
	return out
}

// Prefixes returns the defined prefixes sorted by name.
func (r *Registry) Prefixes() []*definition.Prefix {
	var out []*definition.Prefix
	for name, kind := range r.owners {
		if kind == definition.KindPrefix && name != "" {
			out = append(out, r.prefixes[name])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Dimensions returns the defined dimensions sorted by name.
func (r *Registry) Dimensions() []*definition.Dimension {
	var out []*definition.Dimension
	for name, kind := range r.owners {
		if kind == definition.KindDimension {
			out = append(out, r.dimensions[name])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Defaults returns the key/value pairs of the @defaults sections.
func (r *Registry) Defaults() map[string]string {
	out := make(map[string]string, len(r.defaults))
	for k, v := range r.defaults {
		out[k] = v
	}
	return out
}

func (r *Registry) preprocess(s string) string {
	for _, p := range r.preprocessors {
		s = p(s)
	}
	return s
}
