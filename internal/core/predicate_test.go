package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExitPredicate(t *testing.T) {
	testCases := []struct {
		name    string
		spec    string
		accepts []int
		rejects []int
		wantErr bool
	}{
		{
			name:    "exact",
			spec:    "0",
			accepts: []int{0},
			rejects: []int{1, 255},
		},
		{
			name:    "inclusive range",
			spec:    "1-3",
			accepts: []int{1, 2, 3},
			rejects: []int{0, 4},
		},
		{
			name:    "less than",
			spec:    "<5",
			accepts: []int{0, 4},
			rejects: []int{5, 6},
		},
		{
			name:    "less-equal",
			spec:    "<=5",
			accepts: []int{0, 5},
			rejects: []int{6},
		},
		{
			name:    "greater than",
			spec:    ">5",
			accepts: []int{6, 255},
			rejects: []int{5, 0},
		},
		{
			name:    "greater-equal clamps to universe",
			spec:    ">=5",
			accepts: []int{5, 255},
			rejects: []int{4},
		},
		{
			name:    "empty inclusive range is rejected",
			spec:    "3 - 1",
			wantErr: true,
		},
		{
			name:    "negative bound via less-than is an empty range",
			spec:    "<0",
			wantErr: true,
		},
		{
			name:    "garbage is rejected",
			spec:    "banana",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := ParseExitPredicate(tc.spec)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, ec := range tc.accepts {
				assert.Truef(t, p.Test(ec), "expected %d to be accepted by %q", ec, tc.spec)
			}
			for _, ec := range tc.rejects {
				assert.Falsef(t, p.Test(ec), "expected %d to be rejected by %q", ec, tc.spec)
			}
		})
	}
}

// TestExitPredicate_Total verifies the predicate is well-defined across the
// entire exit-code universe (spec §8: "The exit-code predicate is total").
func TestExitPredicate_Total(t *testing.T) {
	p, err := ParseExitPredicate(">=5")
	require.NoError(t, err)
	for ec := 0; ec < 256; ec++ {
		_ = p.Test(ec) // must never panic
	}
}

func TestDefaultExitPredicate(t *testing.T) {
	p := DefaultExitPredicate()
	assert.True(t, p.Test(0))
	assert.False(t, p.Test(1))
}
