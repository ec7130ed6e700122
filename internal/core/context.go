// Package core holds the types every other PALHM package is built around:
// GlobalContext (the process-scoped registry), Exec (the declarative
// command stage), the exit-code predicate grammar, and the small set of
// interfaces (Backend, MUA, Task, BootReporter) that let backends, mail
// transports, tasks, and the boot-report collaborator be registered and
// swapped without the rest of the system knowing their concrete types.
package core

import (
	"context"
	"runtime"

	"go.uber.org/zap"
)

// Runnable is anything GlobalContext can execute as a step: an Exec, a
// Task, or a builtin (spec §3, §4.8).
type Runnable interface {
	Run(ctx *GlobalContext) error
}

// ValidObject is implemented by builtins whose configuration must be
// checked before the first run (spec §4.8's sigmask, which validates its
// action/signal table eagerly at construction).
type ValidObject interface {
	Validate() error
}

// Task is either a RoutineTask or a BackupTask (spec §3). It is addressable
// by id in GlobalContext.TaskMap and may be referenced by other tasks.
type Task interface {
	Runnable
}

// BackupObject is an ordered pipeline of Exec stages terminated by a
// backend-supplied sink, plus a logical destination path (spec §3).
// Instances are created once during config parsing and never mutated
// afterward except for BBCtx, which the engine sets immediately before
// submitting the object to the worker pool (spec §4.7).
type BackupObject struct {
	Path      string
	Pipeline  []Exec
	AllocSize *int64

	// BBCtx is the backend this object's run is scoped to. It is nil until
	// the engine submits the object for execution.
	BBCtx Backend
}

// BackupObjectGroup is a named bundle of BackupObjects with dependency
// edges to other groups, keyed by group id (spec §3).
type BackupObjectGroup struct {
	ID       string
	Depends  []string
	Objects  []*BackupObject
}

// Backend is the contract every storage backend implements (spec §4.3).
// A Backend instance is created once per BackupTask and scopes exactly one
// run: Open acquires the run's scope, Sink/Rotate/Rollback/Close drive the
// lifecycle state machine described in spec §4.3.
type Backend interface {
	// Open acquires the run scope. Idempotent only in the sense that it is
	// called exactly once per run by the engine.
	Open(ctx *GlobalContext) error
	// Sink returns the terminal pipeline stage for obj. May be called
	// concurrently by worker goroutines; implementations are responsible
	// for synchronizing any internal state they mutate here (spec §5).
	Sink(ctx *GlobalContext, obj *BackupObject) (Exec, error)
	// Rotate prunes older copies to satisfy configured quotas. Runs on
	// success.
	Rotate(ctx *GlobalContext) error
	// Rollback destroys this run's partial output. Runs in place of Rotate
	// on failure.
	Rollback(ctx *GlobalContext) error
	// Close releases handles and performs final cleanup. Runs exactly once,
	// after Rotate or Rollback.
	Close(ctx *GlobalContext) error
	String() string
}

// BackendCtor constructs a Backend from its config fragment
// ("backend-param" in spec §6).
type BackendCtor func(param map[string]any) (Backend, error)

// MUA is a mail-user-agent abstraction used only by the boot-report
// collaborator (spec GLOSSARY). It is out of the core's scope beyond this
// contract.
type MUA interface {
	Send(ctx *GlobalContext, recipients []string, subject string, body []string) error
	String() string
}

// MUACtor constructs an MUA from its config fragment ("mua-param").
type MUACtor func(param map[string]any) (MUA, error)

// BootReporter is the boot-report collaborator's contract (spec §6,
// "boot-report" external to the core).
type BootReporter interface {
	Send(ctx *GlobalContext) error
}

// defaultChildIOSize is the fixed child-I/O read chunk size recorded in
// GlobalContext.ChildIOSize. The boot-report probes read their output
// whole and do not consult it.
const defaultChildIOSize = 4096

// GlobalContext is the process-scoped registry built once per invocation
// from a merged config document (spec §3). It is immutable after
// construction; concurrent read-only access from worker goroutines is
// safe.
type GlobalContext struct {
	// NBWorkers is the resolved worker-pool size. See Unbounded.
	NBWorkers int
	// Unbounded is true when nb-workers was negative in config — the pool
	// imposes no bound at all (spec §5).
	Unbounded bool

	// VL is the verbosity level; higher means more verbose (spec §3).
	VL int

	Logger *zap.Logger

	ExecMap      map[string]Exec
	TaskMap      map[string]Task
	BackendCtors map[string]BackendCtor
	MUACtors     map[string]MUACtor
	Modules      map[string]struct{}

	// BootReport is nil when the config omits the "boot-report" key
	// (spec §3: "an optional boot-report configuration").
	BootReport BootReporter

	ChildIOSize int

	ctx context.Context
}

// NewGlobalContext builds a GlobalContext. baseCtx is used as the parent
// context.Context for all subprocesses the core launches, so that
// cancelling it (e.g. on SIGINT/SIGTERM, wired by cmd/palhm) propagates to
// every in-flight Exec.
func NewGlobalContext(baseCtx context.Context, logger *zap.Logger) *GlobalContext {
	return &GlobalContext{
		NBWorkers:    ResolveNBWorkers(0),
		VL:           0,
		Logger:       logger,
		ExecMap:      map[string]Exec{},
		TaskMap:      map[string]Task{},
		BackendCtors: map[string]BackendCtor{},
		MUACtors:     map[string]MUACtor{},
		Modules:      map[string]struct{}{},
		ChildIOSize:  defaultChildIOSize,
		ctx:          baseCtx,
	}
}

// ResolveNBWorkers applies spec §3/§5's nb-workers semantics: positive is
// exact, zero means "match logical CPUs", negative means unbounded (the
// caller is expected to also consult Unbounded; this helper returns the
// logical-CPU count for the zero case only).
func ResolveNBWorkers(n int) int {
	if n == 0 {
		return runtime.NumCPU()
	}
	return n
}

// TestVL reports whether a stage gated at verbosity x should be connected
// to the parent's stdio, given the context's current verbosity level.
func (c *GlobalContext) TestVL(x int) bool {
	return x <= c.VL
}

// TestWorkers reports whether n additional concurrent workers would still
// respect the pool bound (spec's test_workers). Always true when the pool
// is unbounded.
func (c *GlobalContext) TestWorkers(n int) bool {
	if c.Unbounded {
		return true
	}
	return n <= c.NBWorkers
}

// Context returns the context.Context subprocess launches should use as
// their parent, so cancellation (SIGINT/SIGTERM) propagates.
func (c *GlobalContext) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}
