package backend

import "github.com/qqa112811/palhm/internal/core"

// NullBackend discards everything sunk to it. It exists so a routine-only
// task, or a BackupObjectGroup under test, can declare a backend without
// standing up real storage (spec §6's "null" backend).
type NullBackend struct{}

func (NullBackend) Open(*core.GlobalContext) error { return nil }

func (NullBackend) Sink(ctx *core.GlobalContext, obj *core.BackupObject) (core.Exec, error) {
	e := core.NewExec([]string{"dd", "of=/dev/null"}, nil)
	return e, nil
}

func (NullBackend) Rotate(*core.GlobalContext) error   { return nil }
func (NullBackend) Rollback(*core.GlobalContext) error { return nil }
func (NullBackend) Close(*core.GlobalContext) error    { return nil }
func (NullBackend) String() string                     { return "null" }
