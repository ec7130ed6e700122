// Package engine runs a single BackupObject's pipeline (spec §4.7) and
// drives the bounded worker-pool loop that schedules every object in a
// BackupTask against a depresolv.DepResolv (spec §4.7, §5).
package engine

import (
	"fmt"
	"os"
	"os/exec"
	"sort"

	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/palhmerr"
)

// RunPipeline launches obj's declared stages chained by OS pipes, with
// sink as the terminal stage, and waits for all of them (spec §4.7).
//
// stdin of the first stage is detached (never inherited). Each
// subsequent stage's stdin is connected to the previous stage's stdout,
// so only the terminal (sink) stage's stdout is available for verbosity
// gating against the parent's terminal — every other stage's stdout is
// committed to the pipe. stderr of every stage is independently gated.
func RunPipeline(ctx *core.GlobalContext, stages []core.Exec, sink core.Exec) error {
	all := append(append([]core.Exec(nil), stages...), sink)
	if len(all) == 0 {
		return fmt.Errorf("%w: pipeline has no stages", palhmerr.ErrInvalidConfig)
	}

	cmds := make([]*exec.Cmd, len(all))
	var pipeReadEnds []*os.File
	var pipeWriteEnds []*os.File
	var prevRead *os.File

	for i, e := range all {
		if len(e.Argv) == 0 {
			closeAll(pipeReadEnds)
			closeAll(pipeWriteEnds)
			return fmt.Errorf("%w: pipeline stage %d has empty argv", palhmerr.ErrInvalidConfig, i)
		}

		cmd := exec.CommandContext(ctx.Context(), e.Argv[0], e.Argv[1:]...)
		cmd.Env = environOf(e)
		cmd.Stdin = prevRead // nil for the first stage

		if ctx.TestVL(e.VLStderr) {
			cmd.Stderr = os.Stderr
		}

		if i == len(all)-1 {
			if ctx.TestVL(e.VLStdout) {
				cmd.Stdout = os.Stdout
			}
		} else {
			pr, pw := os.Pipe()
			cmd.Stdout = pw
			pipeReadEnds = append(pipeReadEnds, pr)
			pipeWriteEnds = append(pipeWriteEnds, pw)
			prevRead = pr
		}

		cmds[i] = cmd
	}

	for i, cmd := range cmds {
		if err := cmd.Start(); err != nil {
			closeAll(pipeReadEnds)
			closeAll(pipeWriteEnds)
			return fmt.Errorf("%w: %s: failed to start: %s", palhmerr.ErrInvalidConfig, all[i].String(), err)
		}
		// Close this process's copy of each pipe end as soon as the
		// owning stage has inherited it, so EOF propagates correctly
		// once the producer exits (spec §9).
		if i < len(pipeWriteEnds) {
			pipeWriteEnds[i].Close()
		}
		if i > 0 {
			pipeReadEnds[i-1].Close()
		}
	}

	var firstErr error
	for i, cmd := range cmds {
		err := cmd.Wait()
		ec := exitCodeOf(err)
		if err != nil && ec < 0 {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %s: %s", palhmerr.ErrInvalidConfig, all[i].String(), err)
			}
			continue
		}
		if perr := all[i].RaiseOOBEC(ec); perr != nil && firstErr == nil {
			firstErr = perr
		}
	}
	return firstErr
}

func closeAll(files []*os.File) {
	for _, f := range files {
		f.Close()
	}
}

func environOf(e core.Exec) []string {
	keys := make([]string, 0, len(e.Env))
	for k := range e.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+e.Env[k])
	}
	return out
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	for e := err; e != nil; {
		if ee, ok := e.(*exec.ExitError); ok {
			exitErr = ee
			break
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	if exitErr != nil {
		return exitErr.ExitCode()
	}
	return -1
}
