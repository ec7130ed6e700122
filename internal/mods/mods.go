// Package mods is the build-time extension module registry (spec §9:
// "prefer build-time registration... over dynamic loading; the current
// dynamic-module list then becomes a compile-time feature-select"). Each
// entry names a module and the backend/MUA constructors it contributes;
// the config's "modules" list selects which are actually wired into a
// run's registries.
package mods

import (
	"fmt"

	"github.com/qqa112811/palhm/internal/backend"
	"github.com/qqa112811/palhm/internal/backend/objstore"
	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/mua"
	"github.com/qqa112811/palhm/internal/palhmerr"
)

// objstoreCtor adapts objstore.Ctor to the name the "aws" module
// publishes it under ("aws-s3"), matching the original implementation's
// naming (spec's original_source aws.py: backup_backends["aws-s3"]).
func objstoreCtor(param map[string]any) (core.Backend, error) {
	return objstore.Ctor(param)
}

func unknownModuleError(name string) error {
	return fmt.Errorf("%w: unknown module %q", palhmerr.ErrInvalidConfig, name)
}

// Module is one compiled-in extension: a name plus the backend/MUA
// constructors it contributes, keyed the same way the builtin registries
// are (spec §6: "modules... each may contribute backup_backends and
// muas namespaces").
type Module struct {
	Name     string
	Backends map[string]core.BackendCtor
	MUAs     map[string]core.MUACtor
}

// All is the compile-time list of every extension module this binary was
// built with. Selecting one by name in config's "modules" list merges its
// contributions into the run's registries (spec §6, §9).
var All = map[string]Module{
	"aws": {
		Name: "aws",
		Backends: map[string]core.BackendCtor{
			"aws-s3": objstoreCtor,
		},
		MUAs: map[string]core.MUACtor{
			"aws-sns": mua.AwsSnsCtor,
		},
	},
}

// Names lists every compiled-in module name, for the "palhm mods" command
// (spec §6).
func Names() []string {
	names := make([]string, 0, len(All))
	for name := range All {
		names = append(names, name)
	}
	return names
}

// Apply merges module's contributions into backends/muas, failing on any
// namespace collision (spec §4.1's "module and backend namespaces...
// must not collide with built-ins or with each other").
func Apply(name string, backends *backend.Registry, muas *mua.Registry) error {
	mod, ok := All[name]
	if !ok {
		return unknownModuleError(name)
	}
	if err := core.RaiseIfConflict("backend", backends.Ctors(), mod.Backends); err != nil {
		return err
	}
	if err := core.RaiseIfConflict("mua", muas.Ctors(), mod.MUAs); err != nil {
		return err
	}
	for bname, ctor := range mod.Backends {
		if err := backends.Register(bname, ctor); err != nil {
			return err
		}
	}
	for mname, ctor := range mod.MUAs {
		if err := muas.Register(mname, ctor); err != nil {
			return err
		}
	}
	return nil
}
