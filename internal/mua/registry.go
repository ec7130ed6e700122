package mua

import (
	"fmt"

	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/palhmerr"
)

// Registry is a name-keyed set of MUACtors, seeded with the builtin MUAs
// and extended by internal/mods' extension modules.
type Registry struct {
	ctors map[string]core.MUACtor
}

// NewRegistry returns a Registry seeded with the builtin MUAs (spec §6:
// "mailx", "stdout").
func NewRegistry() *Registry {
	return &Registry{ctors: map[string]core.MUACtor{
		"mailx":  MailxCtor,
		"stdout": StdoutCtor,
	}}
}

// Register adds name to the registry, failing if it is already taken.
func (r *Registry) Register(name string, ctor core.MUACtor) error {
	if _, exists := r.ctors[name]; exists {
		return fmt.Errorf("%w: mua %q already registered", palhmerr.ErrDuplicateID, name)
	}
	r.ctors[name] = ctor
	return nil
}

// Build constructs an MUA by name from its config fragment.
func (r *Registry) Build(name string, param map[string]any) (core.MUA, error) {
	ctor, ok := r.ctors[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown mua %q", palhmerr.ErrInvalidConfig, name)
	}
	return ctor(param)
}

// Ctors exposes the underlying map read-only, for conflict-checking.
func (r *Registry) Ctors() map[string]core.MUACtor {
	return r.ctors
}
