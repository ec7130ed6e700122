package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPlanRotation_WithinQuota covers spec §8: a run already within both
// quotas deletes nothing.
func TestPlanRotation_WithinQuota(t *testing.T) {
	usage := []Usage{{ID: "a", Bytes: 5}, {ID: "b", Bytes: 5}}
	got := PlanRotation(usage, Quota{MaxCopies: 5, MaxBytes: 100}, nil)
	assert.Empty(t, got)
}

// TestPlanRotation_CopyCount mirrors spec §8 scenario 2: three pre-existing
// copies of equal size plus the excluded current copy, nb-copy-limit=2, the
// two oldest are pruned.
func TestPlanRotation_CopyCount(t *testing.T) {
	usage := []Usage{
		{ID: "2020-01-03T00:00:00Z", Bytes: 10},
		{ID: "2020-01-01T00:00:00Z", Bytes: 10},
		{ID: "2020-01-02T00:00:00Z", Bytes: 10},
		{ID: "2020-01-04T00:00:00Z", Bytes: 10}, // the in-progress copy
	}
	excl := map[string]struct{}{"2020-01-04T00:00:00Z": {}}
	got := PlanRotation(usage, Quota{MaxCopies: 2, MaxBytes: 0}, excl)
	assert.Equal(t, []string{"2020-01-01T00:00:00Z", "2020-01-02T00:00:00Z"}, got)
}

func TestPlanRotation_ByteBudget(t *testing.T) {
	usage := []Usage{
		{ID: "a", Bytes: 10},
		{ID: "b", Bytes: 10},
		{ID: "c", Bytes: 10},
	}
	// total=30, budget=15: must evict oldest-first until <=15 remain.
	got := PlanRotation(usage, Quota{MaxCopies: 0, MaxBytes: 15}, nil)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestPlanRotation_ExcludesCurrentCopy(t *testing.T) {
	usage := []Usage{
		{ID: "a", Bytes: 10},
		{ID: "b", Bytes: 10},
		{ID: "c", Bytes: 10}, // the in-progress copy
	}
	excl := map[string]struct{}{"c": {}}
	got := PlanRotation(usage, Quota{MaxCopies: 1, MaxBytes: 0}, excl)
	assert.Equal(t, []string{"a", "b"}, got, "the excluded current copy must never be scheduled for deletion")
}

func TestPlanRotation_UnboundedQuotaNeverDeletes(t *testing.T) {
	usage := []Usage{{ID: "a", Bytes: 1 << 40}}
	got := PlanRotation(usage, Quota{MaxCopies: 0, MaxBytes: 0}, nil)
	assert.Empty(t, got)
}

func TestPlanRotation_BothConditionsMustHold(t *testing.T) {
	// Deleting "a" alone frees enough bytes but not enough copy slots;
	// deleting "a" and "b" satisfies both.
	usage := []Usage{
		{ID: "a", Bytes: 100},
		{ID: "b", Bytes: 1},
		{ID: "c", Bytes: 1},
		{ID: "d", Bytes: 1},
	}
	got := PlanRotation(usage, Quota{MaxCopies: 2, MaxBytes: 10}, nil)
	assert.Equal(t, []string{"a", "b"}, got)
}
