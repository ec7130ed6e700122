package task

import (
	"fmt"

	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/palhmerr"
	"github.com/qqa112811/palhm/internal/routine"
	"github.com/qqa112811/palhm/internal/sigmask"
)

// BuildRoutineTask constructs a routine.Task from its config fragment
// (spec §4.8, §6): an ordered "routine" list of
// {type: "exec"|"exec-append"|"exec-inline"|"task"|"builtin", ...}.
func BuildRoutineTask(ctx *core.GlobalContext, id string, m map[string]any) (*routine.Task, error) {
	t := &routine.Task{ID: id}

	for i, raw := range toSlice(m["routine"]) {
		sm, _ := raw.(map[string]any)
		typ, _ := sm["type"].(string)

		var step routine.Step
		switch routine.StepKind(typ) {
		case routine.StepExec, routine.StepExecInline:
			e, err := resolveStage(ctx, sm)
			if err != nil {
				return nil, fmt.Errorf("routine %q: step %d: %w", id, i, err)
			}
			step = routine.Step{Kind: routine.StepKind(typ), Exec: e}

		case routine.StepExecAppend:
			baseID, _ := sm["id"].(string)
			step = routine.Step{
				Kind:       routine.StepExecAppend,
				BaseExecID: baseID,
				AppendArgv: toStringSlice(sm["argv"]),
				AppendEnv:  toStringMap(sm["env"]),
			}

		case routine.StepTask:
			taskID, _ := sm["id"].(string)
			if taskID == "" {
				return nil, fmt.Errorf(`%w: routine %q: step %d: task step missing "id"`, palhmerr.ErrInvalidConfig, id, i)
			}
			step = routine.Step{Kind: routine.StepTask, TaskID: taskID}

		case routine.StepBuiltin:
			b, err := buildBuiltin(sm)
			if err != nil {
				return nil, fmt.Errorf("routine %q: step %d: %w", id, i, err)
			}
			step = routine.Step{Kind: routine.StepBuiltin, Builtin: b}

		default:
			return nil, fmt.Errorf("%w: routine %q: step %d: unknown type %q", palhmerr.ErrInvalidConfig, id, i, typ)
		}

		t.Steps = append(t.Steps, step)
	}

	return t, nil
}

func buildBuiltin(sm map[string]any) (core.Runnable, error) {
	name, _ := sm["name"].(string)
	switch name {
	case "sigmask":
		var actions []sigmask.Action
		for _, raw := range toSlice(sm["actions"]) {
			am, _ := raw.(map[string]any)
			act, _ := am["action"].(string)
			actions = append(actions, sigmask.Action{
				Block:   act == "block",
				Signals: toStringSlice(am["signals"]),
			})
		}
		return sigmask.New(actions)

	default:
		return nil, fmt.Errorf("%w: unknown builtin %q", palhmerr.ErrInvalidConfig, name)
	}
}
