package palhmcfg

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/qqa112811/palhm/internal/backend"
	"github.com/qqa112811/palhm/internal/backend/localfs"
	"github.com/qqa112811/palhm/internal/bootreport"
	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/mods"
	"github.com/qqa112811/palhm/internal/mua"
	"github.com/qqa112811/palhm/internal/palhmerr"
	"github.com/qqa112811/palhm/internal/task"
)

// Build turns a merged config document into a ready-to-run GlobalContext
// (spec §3, §6): it registers execs, loads extension modules, builds
// every task, and wires the boot-report collaborator if configured.
func Build(baseCtx context.Context, logger *zap.Logger, doc map[string]any) (*core.GlobalContext, error) {
	ctx := core.NewGlobalContext(baseCtx, logger)

	if v, ok := doc["vl"].(float64); ok {
		ctx.VL = int(v)
	}
	if v, ok := doc["nb-workers"].(float64); ok {
		n := int(v)
		if n < 0 {
			ctx.Unbounded = true
		} else {
			ctx.NBWorkers = core.ResolveNBWorkers(n)
		}
	}

	if err := buildExecs(ctx, doc); err != nil {
		return nil, err
	}

	backends := backend.NewRegistry()
	if err := backends.Register("local-fs", localfs.Ctor); err != nil {
		return nil, err
	}
	muas := mua.NewRegistry()

	for _, raw := range toSlice(doc["modules"]) {
		name, _ := raw.(string)
		if err := mods.Apply(name, backends, muas); err != nil {
			return nil, err
		}
		ctx.Modules[name] = struct{}{}
	}
	ctx.BackendCtors = backends.Ctors()
	ctx.MUACtors = muas.Ctors()

	if err := buildTasks(ctx, doc, backends); err != nil {
		return nil, err
	}

	if brm, ok := doc["boot-report"].(map[string]any); ok {
		br, err := bootreport.Build(brm, muas)
		if err != nil {
			return nil, err
		}
		ctx.BootReport = br
	}

	return ctx, nil
}

func buildExecs(ctx *core.GlobalContext, doc map[string]any) error {
	for _, raw := range toSlice(doc["execs"]) {
		em, _ := raw.(map[string]any)
		id, _ := em["id"].(string)
		if id == "" {
			return fmt.Errorf(`%w: exec entry missing "id"`, palhmerr.ErrInvalidConfig)
		}
		if _, dup := ctx.ExecMap[id]; dup {
			return fmt.Errorf("%w: duplicate exec id %q", palhmerr.ErrDuplicateID, id)
		}

		argv := toStringSliceAny(em["argv"])
		if len(argv) == 0 {
			return fmt.Errorf("%w: exec %q: empty argv", palhmerr.ErrInvalidConfig, id)
		}
		e := core.NewExec(argv, toStringMapAny(em["env"]))

		if ecSpec, ok := em["ec"].(string); ok {
			ec, err := core.ParseExitPredicate(ecSpec)
			if err != nil {
				return fmt.Errorf("exec %q: %w", id, err)
			}
			e.EC = ec
		}
		if v, ok := em["vl-stdout"].(float64); ok {
			e.VLStdout = int(v)
		}
		if v, ok := em["vl-stderr"].(float64); ok {
			e.VLStderr = int(v)
		}

		ctx.ExecMap[id] = e
	}
	return nil
}

func buildTasks(ctx *core.GlobalContext, doc map[string]any, backends *backend.Registry) error {
	for _, raw := range toSlice(doc["tasks"]) {
		tm, _ := raw.(map[string]any)
		id, _ := tm["id"].(string)
		if id == "" {
			return fmt.Errorf(`%w: task entry missing "id"`, palhmerr.ErrInvalidConfig)
		}
		if _, dup := ctx.TaskMap[id]; dup {
			return fmt.Errorf("%w: duplicate task id %q", palhmerr.ErrDuplicateID, id)
		}

		typ, _ := tm["type"].(string)
		switch typ {
		case "backup":
			t, err := task.BuildBackupTask(ctx, id, backends, tm)
			if err != nil {
				return err
			}
			ctx.TaskMap[id] = t

		case "routine":
			t, err := task.BuildRoutineTask(ctx, id, tm)
			if err != nil {
				return err
			}
			ctx.TaskMap[id] = t

		default:
			return fmt.Errorf(`%w: task %q: unknown type %q (want "backup" or "routine")`, palhmerr.ErrInvalidConfig, id, typ)
		}
	}
	return nil
}

func toStringSliceAny(v any) []string {
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

func toStringMapAny(v any) map[string]string {
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
