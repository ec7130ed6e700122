// Package palhmerr holds the sentinel errors that make up PALHM's error
// taxonomy (see spec §7). Every fatal condition the core raises wraps one
// of these with fmt.Errorf("%w: ..."), so callers can classify failures
// with errors.Is without string-matching messages.
package palhmerr

import "errors"

var (
	// ErrInvalidConfig is raised by the config loader and constructors when
	// a document or fragment fails validation.
	ErrInvalidConfig = errors.New("invalid-config")

	// ErrIncludeCycle is raised when a config file re-includes itself,
	// directly or transitively.
	ErrIncludeCycle = errors.New("include-cycle")

	// ErrDuplicateID is raised when a config merge or task build discovers
	// a conflicting exec/task/object-group/object id.
	ErrDuplicateID = errors.New("duplicate-id")

	// ErrDepCycle is raised when the dependency resolver finds a circular
	// reference among object groups.
	ErrDepCycle = errors.New("dep-cycle")

	// ErrDepMalformed is raised by the engine loop when it is idle, with
	// no in-flight work and an empty ready queue, while unresolved
	// dependencies remain — a graph that can never terminate.
	ErrDepMalformed = errors.New("dep-malformed")

	// ErrBadExit is raised when an Exec's observed exit code fails its
	// configured predicate.
	ErrBadExit = errors.New("bad-exit")

	// ErrAPIFailure wraps an unexpected error surfaced by a backend's
	// remote storage provider.
	ErrAPIFailure = errors.New("api-failure")

	// ErrPreExistingTarget is raised by the object-store backend after
	// exhausting its collision-retry budget on open.
	ErrPreExistingTarget = errors.New("pre-existing-target")
)
