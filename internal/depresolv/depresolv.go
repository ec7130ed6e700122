// Package depresolv implements the dependency resolver described in spec
// §4.6: a DAG over BackupObjectGroups, reduced at construction time to a
// pair of object-level maps plus a ready queue, so the engine never has to
// reason about groups again once the resolver is built.
package depresolv

import (
	"fmt"
	"strings"

	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/palhmerr"
)

// DepResolv tracks, for a single BackupTask run, which objects are still
// waiting on prerequisites and which are ready to submit.
type DepResolv struct {
	// objDepMap maps an object to the set of prerequisite objects it is
	// still waiting on.
	objDepMap map[*core.BackupObject]map[*core.BackupObject]struct{}
	// depObjMap is the inverse index: prerequisite -> dependents to notify
	// when it completes.
	depObjMap map[*core.BackupObject][]*core.BackupObject
	// AvailQ holds objects with no outstanding prerequisites, in the order
	// they became available.
	AvailQ []*core.BackupObject
}

// New builds a DepResolv from a task's object groups (spec §4.6).
// Construction computes, for every member of a group with dependencies,
// the transitive closure of prerequisite objects via DFS over the group
// graph, detecting cycles with a recursion-path set.
func New(groups []*core.BackupObjectGroup) (*DepResolv, error) {
	byID := make(map[string]*core.BackupObjectGroup, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}

	r := &DepResolv{
		objDepMap: map[*core.BackupObject]map[*core.BackupObject]struct{}{},
		depObjMap: map[*core.BackupObject][]*core.BackupObject{},
	}

	closures := map[string]map[string]struct{}{}
	for _, g := range groups {
		if len(g.Depends) == 0 {
			continue
		}
		closure, err := closureOf(g.ID, byID, map[string]struct{}{}, closures)
		if err != nil {
			return nil, err
		}
		closures[g.ID] = closure
	}

	for _, g := range groups {
		closure := closures[g.ID]
		if len(closure) == 0 {
			r.AvailQ = append(r.AvailQ, g.Objects...)
			continue
		}

		var prereqObjs []*core.BackupObject
		for prereqGroupID := range closure {
			prereqObjs = append(prereqObjs, byID[prereqGroupID].Objects...)
		}

		for _, o := range g.Objects {
			deps := make(map[*core.BackupObject]struct{}, len(prereqObjs))
			for _, p := range prereqObjs {
				deps[p] = struct{}{}
				r.depObjMap[p] = append(r.depObjMap[p], o)
			}
			r.objDepMap[o] = deps
		}
	}

	return r, nil
}

// closureOf computes the transitive closure of groupID's prerequisite
// group ids via DFS, detecting cycles with recursionPath, and memoizing
// into closures.
func closureOf(groupID string, byID map[string]*core.BackupObjectGroup, recursionPath map[string]struct{}, closures map[string]map[string]struct{}) (map[string]struct{}, error) {
	if c, ok := closures[groupID]; ok {
		return c, nil
	}
	if _, onPath := recursionPath[groupID]; onPath {
		var chain []string
		for p := range recursionPath {
			chain = append(chain, p)
		}
		chain = append(chain, groupID)
		return nil, fmt.Errorf("%w: %s", palhmerr.ErrDepCycle, strings.Join(chain, "->"))
	}

	g, ok := byID[groupID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown object-group %q in depends", palhmerr.ErrInvalidConfig, groupID)
	}

	recursionPath[groupID] = struct{}{}
	defer delete(recursionPath, groupID)

	closure := map[string]struct{}{}
	for _, dep := range g.Depends {
		closure[dep] = struct{}{}
		sub, err := closureOf(dep, byID, recursionPath, closures)
		if err != nil {
			return nil, err
		}
		for id := range sub {
			closure[id] = struct{}{}
		}
	}

	closures[groupID] = closure
	return closure, nil
}

// MarkFulfilled records that obj completed, freeing any dependents whose
// last outstanding prerequisite was obj into AvailQ (spec §4.6).
func (r *DepResolv) MarkFulfilled(obj *core.BackupObject) {
	for _, d := range r.depObjMap[obj] {
		deps := r.objDepMap[d]
		delete(deps, obj)
		if len(deps) == 0 {
			delete(r.objDepMap, d)
			r.AvailQ = append(r.AvailQ, d)
		}
	}
	delete(r.depObjMap, obj)
}

// Done reports whether no object is left to schedule: AvailQ is empty and
// no object has outstanding prerequisites. Objects already drained but
// still running are not tracked here.
func (r *DepResolv) Done() bool {
	return len(r.AvailQ) == 0 && len(r.objDepMap) == 0
}

// Malformed reports the fatal condition from spec §4.6: the pool is idle,
// no work is in flight, AvailQ is empty, but objDepMap is non-empty — the
// graph can never make further progress.
func (r *DepResolv) Malformed(inFlight int) bool {
	return inFlight == 0 && len(r.AvailQ) == 0 && len(r.objDepMap) > 0
}

// Drain removes and returns every object currently in AvailQ.
func (r *DepResolv) Drain() []*core.BackupObject {
	out := r.AvailQ
	r.AvailQ = nil
	return out
}
