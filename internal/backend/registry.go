package backend

import (
	"fmt"

	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/palhmerr"
)

// Registry is a name-keyed set of BackendCtors, built up by core's module
// registration path (builtin backends plus anything internal/mods
// contributes) and consulted once per BackupTask during config parsing.
type Registry struct {
	ctors map[string]core.BackendCtor
}

// NewRegistry returns a Registry seeded with the builtin "null" backend.
// "local-fs" is not seeded here; palhmcfg.Build registers it, and extension
// modules add to it, via Register.
func NewRegistry() *Registry {
	r := &Registry{ctors: map[string]core.BackendCtor{}}
	r.ctors["null"] = func(map[string]any) (core.Backend, error) { return NullBackend{}, nil }
	return r
}

// Register adds name to the registry. It fails if name is already taken,
// since backend names share one namespace across core and every loaded
// extension module (spec §9).
func (r *Registry) Register(name string, ctor core.BackendCtor) error {
	if _, exists := r.ctors[name]; exists {
		return fmt.Errorf("%w: backend %q already registered", palhmerr.ErrDuplicateID, name)
	}
	r.ctors[name] = ctor
	return nil
}

// Build constructs a Backend by name from its config fragment.
func (r *Registry) Build(name string, param map[string]any) (core.Backend, error) {
	ctor, ok := r.ctors[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend %q", palhmerr.ErrInvalidConfig, name)
	}
	return ctor(param)
}

// Ctors exposes the underlying map read-only, for conflict-checking
// against another registry (e.g. an extension module's contributions)
// via core.RaiseIfConflict.
func (r *Registry) Ctors() map[string]core.BackendCtor {
	return r.ctors
}
