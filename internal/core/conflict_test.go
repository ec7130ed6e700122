package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckConflict(t *testing.T) {
	a := map[string]int{"x": 1, "y": 2}
	b := map[string]int{"y": 3, "z": 4}
	assert.Equal(t, []string{"y"}, CheckConflict(a, b))
}

func TestCheckConflict_NoOverlap(t *testing.T) {
	a := map[string]int{"x": 1}
	b := map[string]int{"z": 4}
	assert.Empty(t, CheckConflict(a, b))
}

func TestRaiseIfConflict(t *testing.T) {
	a := map[string]int{"x": 1}
	b := map[string]int{"x": 2}
	err := RaiseIfConflict("backend", a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend conflict")
	assert.Contains(t, err.Error(), "x")
}
