package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qqa112811/palhm/internal/core"
)

func TestResolveStage_Exec(t *testing.T) {
	ctx := core.NewGlobalContext(nil, nil)
	ctx.ExecMap["e1"] = core.NewExec([]string{"/bin/true"}, nil)

	e, err := resolveStage(ctx, map[string]any{"type": "exec", "id": "e1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/bin/true"}, e.Argv)
}

func TestResolveStage_ExecUnknownID(t *testing.T) {
	ctx := core.NewGlobalContext(nil, nil)
	_, err := resolveStage(ctx, map[string]any{"type": "exec", "id": "missing"})
	require.Error(t, err)
}

func TestResolveStage_ExecAppend(t *testing.T) {
	ctx := core.NewGlobalContext(nil, nil)
	ctx.ExecMap["e1"] = core.NewExec([]string{"/bin/cmd", "a"}, map[string]string{"X": "1"})

	e, err := resolveStage(ctx, map[string]any{
		"type": "exec-append",
		"id":   "e1",
		"argv": []any{"b"},
		"env":  map[string]any{"Y": "2"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/bin/cmd", "a", "b"}, e.Argv)
	assert.Equal(t, "1", e.Env["X"])
	assert.Equal(t, "2", e.Env["Y"])
}

func TestResolveStage_ExecInlineWithCustomEC(t *testing.T) {
	ctx := core.NewGlobalContext(nil, nil)
	e, err := resolveStage(ctx, map[string]any{
		"type": "exec-inline",
		"argv": []any{"/bin/cmd"},
		"ec":   "1-3",
	})
	require.NoError(t, err)
	assert.True(t, e.TestEC(2))
	assert.False(t, e.TestEC(0))
}

func TestResolveStage_VerbosityOverride(t *testing.T) {
	ctx := core.NewGlobalContext(nil, nil)
	e, err := resolveStage(ctx, map[string]any{
		"type":      "exec-inline",
		"argv":      []any{"/bin/cmd"},
		"vl-stdout": 3.0,
		"vl-stderr": 2.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, e.VLStdout)
	assert.Equal(t, 2, e.VLStderr)
}

func TestResolveStage_UnknownType(t *testing.T) {
	ctx := core.NewGlobalContext(nil, nil)
	_, err := resolveStage(ctx, map[string]any{"type": "bogus"})
	require.Error(t, err)
}
