// Package backend holds the pieces shared by every storage backend: the
// retention/rotation algorithm (spec §4.3), a constructor registry keyed by
// backend name, and a NullBackend that discards everything sunk to it.
package backend

import "sort"

// Usage is one entry of a backend's _fs_usage_info: a copy identified by
// id, sized in bytes. Copy-ids are expected to sort lexicographically in
// chronological order (spec §4.3's "copy-id convention").
type Usage struct {
	ID    string
	Bytes int64
}

// Quota is a backend's _fs_quota_target: either field may be unset,
// meaning "no limit" on that axis (spec §4.3's (max_copies, max_bytes),
// either may be +∞).
type Quota struct {
	MaxCopies int64 // <= 0 means unbounded
	MaxBytes  int64 // <= 0 means unbounded
}

// unbounded reports whether n represents "no limit" for a quota axis.
func unbounded(n int64) bool { return n <= 0 }

// PlanRotation implements the shared rotation algorithm (spec §4.3): given
// the current usage (ascending by copy-id, i.e. oldest first), the quota,
// and the set of copy-ids that must never be pruned, it returns the
// ordered list of copy-ids to delete.
//
// Usage is expected pre-sorted ascending by ID; PlanRotation re-sorts
// defensively so callers cannot violate the oldest-first invariant by
// accident.
func PlanRotation(usage []Usage, q Quota, excl map[string]struct{}) []string {
	d := make([]Usage, len(usage))
	copy(d, usage)
	sort.Slice(d, func(i, j int) bool { return d[i].ID < d[j].ID })

	var total int64
	for _, u := range d {
		total += u.Bytes
	}

	withinBytes := unbounded(q.MaxBytes) || total <= q.MaxBytes
	withinCopies := unbounded(q.MaxCopies) || int64(len(d)) <= q.MaxCopies
	if withinBytes && withinCopies {
		return nil
	}

	var needBytes int64
	if !unbounded(q.MaxBytes) && total > q.MaxBytes {
		needBytes = total - q.MaxBytes
	}
	var needCopies int64
	if !unbounded(q.MaxCopies) && int64(len(d)) > q.MaxCopies {
		needCopies = int64(len(d)) - q.MaxCopies
	}

	var deleted []string
	var deletedBytes int64
	for _, u := range d {
		if deletedBytes >= needBytes && int64(len(deleted)) >= needCopies {
			break
		}
		if _, skip := excl[u.ID]; skip {
			continue
		}
		deleted = append(deleted, u.ID)
		deletedBytes += u.Bytes
	}

	return deleted
}
