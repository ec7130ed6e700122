package task

import (
	"fmt"

	"github.com/qqa112811/palhm/internal/backend"
	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/depresolv"
	"github.com/qqa112811/palhm/internal/engine"
	"github.com/qqa112811/palhm/internal/palhmerr"
)

// defaultGroupID is the implicit object-group an object lands in when it
// declares no "group" field (spec §6: objects carry an optional group).
const defaultGroupID = "default"

// BackupTask is a config-driven BackupTask (spec §3): a backend plus a
// set of object groups with dependency edges, run by internal/engine
// against an internal/depresolv.DepResolv built fresh for each run.
type BackupTask struct {
	ID      string
	Backend core.Backend
	Groups  []*core.BackupObjectGroup
}

// Run builds a fresh DepResolv for this run and drives it via
// engine.RunTask (spec §4.6, §4.7). A fresh resolver per run means a
// BackupTask is safely re-runnable (e.g. invoked indirectly by a
// RoutineTask's "task" step).
func (t *BackupTask) Run(ctx *core.GlobalContext) error {
	r, err := depresolv.New(t.Groups)
	if err != nil {
		return err
	}
	return engine.RunTask(ctx, t.Backend, r)
}

// BuildBackupTask constructs a BackupTask from its config fragment (spec
// §6): backend/backend-param, object-groups, objects. Objects with no
// "group" field are placed in an implicit "default" group. Duplicate
// object paths and duplicate group ids are fatal.
func BuildBackupTask(ctx *core.GlobalContext, id string, backends *backend.Registry, m map[string]any) (*BackupTask, error) {
	backendName, _ := m["backend"].(string)
	if backendName == "" {
		return nil, fmt.Errorf(`%w: task %q: backup task requires "backend"`, palhmerr.ErrInvalidConfig, id)
	}
	param, _ := m["backend-param"].(map[string]any)

	bb, err := backends.Build(backendName, param)
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", id, err)
	}

	groupsByID := map[string]*core.BackupObjectGroup{}
	var order []string

	addGroup := func(gid string, depends []string) error {
		if _, exists := groupsByID[gid]; exists {
			return fmt.Errorf("%w: task %q: duplicate object-group id %q", palhmerr.ErrDuplicateID, id, gid)
		}
		groupsByID[gid] = &core.BackupObjectGroup{ID: gid, Depends: depends}
		order = append(order, gid)
		return nil
	}

	for _, raw := range toSlice(m["object-groups"]) {
		gm, _ := raw.(map[string]any)
		gid, _ := gm["id"].(string)
		if gid == "" {
			return nil, fmt.Errorf(`%w: task %q: object-group missing "id"`, palhmerr.ErrInvalidConfig, id)
		}
		if err := addGroup(gid, toStringSlice(gm["depends"])); err != nil {
			return nil, err
		}
	}
	if _, ok := groupsByID[defaultGroupID]; !ok {
		if err := addGroup(defaultGroupID, nil); err != nil {
			return nil, err
		}
	}

	seenPaths := map[string]struct{}{}
	for _, raw := range toSlice(m["objects"]) {
		om, _ := raw.(map[string]any)
		path, _ := om["path"].(string)
		if path == "" {
			return nil, fmt.Errorf(`%w: task %q: object missing "path"`, palhmerr.ErrInvalidConfig, id)
		}
		if _, dup := seenPaths[path]; dup {
			return nil, fmt.Errorf("%w: task %q: duplicate object path %q", palhmerr.ErrDuplicateID, id, path)
		}
		seenPaths[path] = struct{}{}

		gid, _ := om["group"].(string)
		if gid == "" {
			gid = defaultGroupID
		}
		g, ok := groupsByID[gid]
		if !ok {
			return nil, fmt.Errorf("%w: task %q: object %q references unknown group %q", palhmerr.ErrInvalidConfig, id, path, gid)
		}

		obj := &core.BackupObject{Path: path}
		for _, stageRaw := range toSlice(om["pipeline"]) {
			sm, _ := stageRaw.(map[string]any)
			e, err := resolveStage(ctx, sm)
			if err != nil {
				return nil, fmt.Errorf("task %q: object %q: %w", id, path, err)
			}
			obj.Pipeline = append(obj.Pipeline, e)
		}
		if v, ok := om["alloc-size"].(float64); ok {
			n := int64(v)
			obj.AllocSize = &n
		}

		g.Objects = append(g.Objects, obj)
	}

	groups := make([]*core.BackupObjectGroup, 0, len(order))
	for _, gid := range order {
		groups = append(groups, groupsByID[gid])
	}

	return &BackupTask{ID: id, Backend: bb, Groups: groups}, nil
}

func toSlice(v any) []any {
	s, _ := v.([]any)
	return s
}
