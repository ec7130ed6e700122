package palhmcfg

import (
	"fmt"
	"sort"

	"github.com/qqa112811/palhm/internal/palhmerr"
)

// Merge produces a ⊕ b per spec §4.1: scalars in b override a; the execs
// and tasks arrays are concatenated (an id duplicated across both sides is
// a fatal conflict); boot-report is merged field-wise with mail-to
// concatenated and a double "mua" declaration rejected.
func Merge(a, b map[string]any) (map[string]any, error) {
	aExecs := toSlice(a["execs"])
	bExecs := toSlice(b["execs"])
	if dup := dupIDs(aExecs, bExecs); len(dup) > 0 {
		return nil, fmt.Errorf("%w: duplicate exec id(s): %v", palhmerr.ErrDuplicateID, dup)
	}

	aTasks := toSlice(a["tasks"])
	bTasks := toSlice(b["tasks"])
	if dup := dupIDs(aTasks, bTasks); len(dup) > 0 {
		return nil, fmt.Errorf("%w: duplicate task id(s): %v", palhmerr.ErrDuplicateID, dup)
	}

	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if k == "execs" || k == "tasks" || k == "boot-report" {
			continue
		}
		out[k] = v
	}
	out["execs"] = concat(aExecs, bExecs)
	out["tasks"] = concat(aTasks, bTasks)

	merged, err := mergeBootReport(a["boot-report"], b["boot-report"])
	if err != nil {
		return nil, err
	}
	if merged != nil {
		out["boot-report"] = merged
	}

	return out, nil
}

func mergeBootReport(av, bv any) (map[string]any, error) {
	aBR, aHas := av.(map[string]any)
	bBR, bHas := bv.(map[string]any)

	switch {
	case aHas && bHas:
		_, aMua := aBR["mua"]
		_, bMua := bBR["mua"]
		if aMua && bMua {
			return nil, fmt.Errorf(`%w: overriding "mua" in "boot-report"`, palhmerr.ErrInvalidConfig)
		}

		merged := make(map[string]any, len(aBR)+len(bBR))
		for k, v := range aBR {
			merged[k] = v
		}
		for k, v := range bBR {
			if k == "mail-to" {
				continue
			}
			merged[k] = v
		}
		merged["mail-to"] = concat(toSlice(aBR["mail-to"]), toSlice(bBR["mail-to"]))
		return merged, nil
	case aHas:
		return aBR, nil
	case bHas:
		return bBR, nil
	default:
		return nil, nil
	}
}

func toSlice(v any) []any {
	if v == nil {
		return nil
	}
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}

func concat(a, b []any) []any {
	out := make([]any, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// dupIDs returns the sorted ids present in both a and b, where each element
// of a and b is expected to be a map[string]any with an "id" string field.
func dupIDs(a, b []any) []string {
	as := idSet(a)
	bs := idSet(b)

	var common []string
	for id := range as {
		if _, ok := bs[id]; ok {
			common = append(common, id)
		}
	}
	sort.Strings(common)
	return common
}

func idSet(items []any) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		id, ok := m["id"].(string)
		if !ok {
			continue
		}
		out[id] = struct{}{}
	}
	return out
}
