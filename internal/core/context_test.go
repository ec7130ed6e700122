package core

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveNBWorkers(t *testing.T) {
	assert.Equal(t, runtime.NumCPU(), ResolveNBWorkers(0))
	assert.Equal(t, 4, ResolveNBWorkers(4))
}

func TestGlobalContext_TestVL(t *testing.T) {
	ctx := NewGlobalContext(contextBackground(), testLogger())
	ctx.VL = 1

	assert.True(t, ctx.TestVL(0), "a gate at 0 is always satisfied")
	assert.True(t, ctx.TestVL(1))
	assert.False(t, ctx.TestVL(2))
}

func TestGlobalContext_TestWorkers(t *testing.T) {
	ctx := NewGlobalContext(contextBackground(), testLogger())
	ctx.NBWorkers = 2

	assert.True(t, ctx.TestWorkers(2))
	assert.False(t, ctx.TestWorkers(3))

	ctx.Unbounded = true
	assert.True(t, ctx.TestWorkers(1000))
}

func TestGlobalContext_ContextDefaultsToBackground(t *testing.T) {
	ctx := &GlobalContext{}
	assert.NotNil(t, ctx.Context())
}
