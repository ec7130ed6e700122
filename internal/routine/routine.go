// Package routine implements RoutineTask (spec §4.8, §3): a task whose
// steps run strictly sequentially, each either an Exec, an indirect call
// to another configured task, or a builtin.
package routine

import (
	"fmt"

	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/palhmerr"
)

// StepKind identifies how a routine step resolves to something runnable
// (spec §6: "exec"|"exec-append"|"exec-inline"|"task"|"builtin").
type StepKind string

const (
	StepExec       StepKind = "exec"
	StepExecAppend StepKind = "exec-append"
	StepExecInline StepKind = "exec-inline"
	StepTask       StepKind = "task"
	StepBuiltin    StepKind = "builtin"
)

// Step is one resolved routine step. Exactly one of the payload fields is
// set, matching Kind.
type Step struct {
	Kind StepKind

	// Exec is used by StepExec/StepExecInline: the resolved Exec to run.
	Exec core.Exec

	// BaseExecID and AppendArgv/AppendEnv are used by StepExecAppend: the
	// id of the Exec to derive from, plus the extension to apply (spec
	// §4.2's Append derivation).
	BaseExecID string
	AppendArgv []string
	AppendEnv  map[string]string

	// TaskID is used by StepTask: the id of another configured task to
	// invoke (spec §4.8's composition via "task").
	TaskID string

	// Builtin is used by StepBuiltin: the builtin to run. It must satisfy
	// core.Runnable, and core.ValidObject if it needs eager validation.
	Builtin core.Runnable
}

// Task is a RoutineTask: its steps run strictly sequentially, stopping at
// the first failing step (spec §4.8, §7).
type Task struct {
	ID    string
	Steps []Step
}

// Run executes every step in order against ctx's ExecMap/TaskMap,
// stopping at the first failure.
func (t *Task) Run(ctx *core.GlobalContext) error {
	for i, step := range t.Steps {
		if err := runStep(ctx, step); err != nil {
			return fmt.Errorf("routine %q: step %d (%s): %w", t.ID, i, step.Kind, err)
		}
	}
	return nil
}

func runStep(ctx *core.GlobalContext, step Step) error {
	switch step.Kind {
	case StepExec, StepExecInline:
		return step.Exec.Run(ctx)

	case StepExecAppend:
		base, ok := ctx.ExecMap[step.BaseExecID]
		if !ok {
			return fmt.Errorf("%w: exec-append: unknown exec id %q", palhmerr.ErrInvalidConfig, step.BaseExecID)
		}
		return base.Append(step.AppendArgv, step.AppendEnv).Run(ctx)

	case StepTask:
		target, ok := ctx.TaskMap[step.TaskID]
		if !ok {
			return fmt.Errorf("%w: task step: unknown task id %q", palhmerr.ErrInvalidConfig, step.TaskID)
		}
		return target.Run(ctx)

	case StepBuiltin:
		if step.Builtin == nil {
			return fmt.Errorf("%w: builtin step has no implementation", palhmerr.ErrInvalidConfig)
		}
		return step.Builtin.Run(ctx)

	default:
		return fmt.Errorf("%w: unknown routine step kind %q", palhmerr.ErrInvalidConfig, step.Kind)
	}
}
