package routine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qqa112811/palhm/internal/core"
)

func newTestCtx() *core.GlobalContext {
	return core.NewGlobalContext(nil, nil)
}

func TestTask_Run_SequentialStopsAtFirstFailure(t *testing.T) {
	ctx := newTestCtx()
	after := &fakeBuiltin{}

	markerTask := &Task{
		ID: "t",
		Steps: []Step{
			{Kind: StepExecInline, Exec: core.NewExec([]string{"/bin/sh", "-c", "exit 0"}, nil)},
			{Kind: StepExecInline, Exec: core.NewExec([]string{"/bin/false"}, nil)},
			{Kind: StepBuiltin, Builtin: after},
		},
	}

	err := markerTask.Run(ctx)
	require.Error(t, err)
	assert.False(t, after.called, "no step after the failing one may run")
}

func TestTask_Run_ExecAppendResolvesFromExecMap(t *testing.T) {
	ctx := newTestCtx()
	ctx.ExecMap["base"] = core.NewExec([]string{"/bin/sh", "-c"}, nil)

	task := &Task{
		ID: "t",
		Steps: []Step{
			{Kind: StepExecAppend, BaseExecID: "base", AppendArgv: []string{"exit 0"}},
		},
	}
	require.NoError(t, task.Run(ctx))
}

func TestTask_Run_ExecAppendUnknownBase(t *testing.T) {
	ctx := newTestCtx()
	task := &Task{
		ID:    "t",
		Steps: []Step{{Kind: StepExecAppend, BaseExecID: "missing"}},
	}
	require.Error(t, task.Run(ctx))
}

// fakeTask is a minimal core.Task used to test StepTask composition.
type fakeTask struct {
	ran bool
	err error
}

func (f *fakeTask) Run(ctx *core.GlobalContext) error {
	f.ran = true
	return f.err
}

func TestTask_Run_TaskStepInvokesAnotherTask(t *testing.T) {
	ctx := newTestCtx()
	ft := &fakeTask{}
	ctx.TaskMap["other"] = ft

	task := &Task{ID: "t", Steps: []Step{{Kind: StepTask, TaskID: "other"}}}
	require.NoError(t, task.Run(ctx))
	assert.True(t, ft.ran)
}

func TestTask_Run_UnknownTaskStep(t *testing.T) {
	ctx := newTestCtx()
	task := &Task{ID: "t", Steps: []Step{{Kind: StepTask, TaskID: "missing"}}}
	require.Error(t, task.Run(ctx))
}

// fakeBuiltin lets the builtin step path be exercised without depending on
// internal/sigmask's OS-level signal mask primitives.
type fakeBuiltin struct{ called bool }

func (b *fakeBuiltin) Run(ctx *core.GlobalContext) error {
	b.called = true
	return nil
}

func TestTask_Run_BuiltinStep(t *testing.T) {
	ctx := newTestCtx()
	b := &fakeBuiltin{}
	task := &Task{ID: "t", Steps: []Step{{Kind: StepBuiltin, Builtin: b}}}
	require.NoError(t, task.Run(ctx))
	assert.True(t, b.called)
}
