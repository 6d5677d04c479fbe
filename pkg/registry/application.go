package registry

import (
	"sync"
)

// Lazy builds a registry on first use.
type Lazy struct {
	get func() (*Registry, error)
}

// NewLazy returns a registry built with opts the first time Registry is
// called. Later calls return the same registry or the same error.
func NewLazy(opts ...Option) *Lazy {
	return &Lazy{get: sync.OnceValues(func() (*Registry, error) {
		return New(opts...)
	})}
}

// Registry returns the underlying registry, building it if needed.
func (l *Lazy) Registry() (*Registry, error) {
	return l.get()
}

var (
	appMu  sync.Mutex
	appReg *Registry
	appDef = NewLazy()
)

// Application returns the process-wide registry used to decode
// quantities. It defaults to a registry over the embedded definitions.
func Application() (*Registry, error) {
	appMu.Lock()
	r := appReg
	appMu.Unlock()
	if r != nil {
		return r, nil
	}
	return appDef.Registry()
}

// SetApplication replaces the application registry. Quantities serialized
// with units only the previous registry knew no longer decode.
func SetApplication(r *Registry) {
	appMu.Lock()
	defer appMu.Unlock()
	appReg = r
}

// ResetApplication restores the default application registry.
func ResetApplication() {
	SetApplication(nil)
}
