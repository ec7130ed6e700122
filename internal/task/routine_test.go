package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/routine"
)

func TestBuildRoutineTask_ExecInline(t *testing.T) {
	ctx := core.NewGlobalContext(nil, nil)
	m := map[string]any{
		"routine": []any{
			map[string]any{"type": "exec-inline", "argv": []any{"/bin/true"}},
		},
	}
	rt, err := BuildRoutineTask(ctx, "r1", m)
	require.NoError(t, err)
	require.Len(t, rt.Steps, 1)
	assert.Equal(t, routine.StepExecInline, rt.Steps[0].Kind)
}

func TestBuildRoutineTask_TaskStepRequiresID(t *testing.T) {
	ctx := core.NewGlobalContext(nil, nil)
	m := map[string]any{
		"routine": []any{map[string]any{"type": "task"}},
	}
	_, err := BuildRoutineTask(ctx, "r1", m)
	require.Error(t, err)
}

func TestBuildRoutineTask_SigmaskBuiltin(t *testing.T) {
	ctx := core.NewGlobalContext(nil, nil)
	m := map[string]any{
		"routine": []any{
			map[string]any{
				"type": "builtin",
				"name": "sigmask",
				"actions": []any{
					map[string]any{"action": "block", "signals": []any{"SIGTERM"}},
				},
			},
		},
	}
	rt, err := BuildRoutineTask(ctx, "r1", m)
	require.NoError(t, err)
	require.Len(t, rt.Steps, 1)
	assert.Equal(t, routine.StepBuiltin, rt.Steps[0].Kind)
	assert.NotNil(t, rt.Steps[0].Builtin)
}

func TestBuildRoutineTask_UnknownBuiltin(t *testing.T) {
	ctx := core.NewGlobalContext(nil, nil)
	m := map[string]any{
		"routine": []any{map[string]any{"type": "builtin", "name": "nope"}},
	}
	_, err := BuildRoutineTask(ctx, "r1", m)
	require.Error(t, err)
}

func TestBuildRoutineTask_UnknownStepType(t *testing.T) {
	ctx := core.NewGlobalContext(nil, nil)
	m := map[string]any{
		"routine": []any{map[string]any{"type": "bogus"}},
	}
	_, err := BuildRoutineTask(ctx, "r1", m)
	require.Error(t, err)
}
