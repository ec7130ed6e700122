package core

import (
	"fmt"
	"sort"

	"github.com/qqa112811/palhm/internal/palhmerr"
)

// CheckConflict returns the sorted set of keys present in both a and b. It
// backs the extension-module backend/MUA namespace checks (spec §4.1, §9);
// config-merge exec/task id conflicts are checked separately by
// palhmcfg.Merge.
func CheckConflict[T any](a, b map[string]T) []string {
	var common []string
	for k := range a {
		if _, ok := b[k]; ok {
			common = append(common, k)
		}
	}
	sort.Strings(common)
	return common
}

// RaiseIfConflict returns an ErrDuplicateID-wrapped error
// naming the conflicting keys, or nil if a and b share no keys.
func RaiseIfConflict[T any](what string, a, b map[string]T) error {
	if c := CheckConflict(a, b); len(c) > 0 {
		return fmt.Errorf("%w: %s conflict: %v", palhmerr.ErrDuplicateID, what, c)
	}
	return nil
}
