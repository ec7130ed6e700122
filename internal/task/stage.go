// Package task builds the two concrete Task kinds — BackupTask and
// RoutineTask — from a merged config document (spec §3, §6), wiring each
// to the backend/MUA registries and to internal/depresolv and
// internal/engine for BackupTask, or internal/routine and
// internal/sigmask for RoutineTask.
package task

import (
	"fmt"

	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/palhmerr"
)

// resolveStage builds an Exec from a pipeline/routine stage entry (spec
// §4.2): {type: "exec"|"exec-append"|"exec-inline", ...}, with an
// optional per-stage vl-stdout/vl-stderr override.
func resolveStage(ctx *core.GlobalContext, m map[string]any) (core.Exec, error) {
	typ, _ := m["type"].(string)

	var e core.Exec
	switch typ {
	case "exec":
		id, _ := m["id"].(string)
		base, ok := ctx.ExecMap[id]
		if !ok {
			return core.Exec{}, fmt.Errorf("%w: exec stage: unknown exec id %q", palhmerr.ErrInvalidConfig, id)
		}
		e = base

	case "exec-append":
		id, _ := m["id"].(string)
		base, ok := ctx.ExecMap[id]
		if !ok {
			return core.Exec{}, fmt.Errorf("%w: exec-append stage: unknown exec id %q", palhmerr.ErrInvalidConfig, id)
		}
		e = base.Append(toStringSlice(m["argv"]), toStringMap(m["env"]))

	case "exec-inline":
		e = core.NewExec(toStringSlice(m["argv"]), toStringMap(m["env"]))
		if ecSpec, ok := m["ec"].(string); ok {
			ec, err := core.ParseExitPredicate(ecSpec)
			if err != nil {
				return core.Exec{}, err
			}
			e.EC = ec
		}

	default:
		return core.Exec{}, fmt.Errorf("%w: unknown stage type %q", palhmerr.ErrInvalidConfig, typ)
	}

	if v, ok := m["vl-stdout"].(float64); ok {
		e.VLStdout = int(v)
	}
	if v, ok := m["vl-stderr"].(float64); ok {
		e.VLStderr = int(v)
	}

	return e, nil
}

func toStringSlice(v any) []string {
	s, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(s))
	for _, e := range s {
		if str, ok := e.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

func toStringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if str, ok := val.(string); ok {
			out[k] = str
		}
	}
	return out
}
