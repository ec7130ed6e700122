package core

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/qqa112811/palhm/internal/palhmerr"
)

// Default verbosity gates. A stage's stdout is connected to the parent only
// when the configured verbosity meets or exceeds vlStdout; same for stderr.
// stderr defaults to always-on so failures are visible without -v; stdout
// defaults to requiring one -v, matching the "quiet unless asked" posture
// spec §6 describes for -q/-v.
const (
	defaultVLStdout = 1
	defaultVLStderr = 0
)

// Exec is a declarative external-command stage (spec §3). Instances are
// immutable templates: Append returns a new Exec rather than mutating the
// receiver.
type Exec struct {
	Argv     []string
	Env      map[string]string
	EC       ExitPredicate
	VLStdout int
	VLStderr int
}

// NewExec builds an Exec with the package defaults applied for any zero
// value the caller did not set explicitly — used when resolving an
// exec-inline stage from config.
func NewExec(argv []string, env map[string]string) Exec {
	return Exec{
		Argv:     append([]string(nil), argv...),
		Env:      cloneEnv(env),
		EC:       DefaultExitPredicate(),
		VLStdout: defaultVLStdout,
		VLStderr: defaultVLStderr,
	}
}

func cloneEnv(env map[string]string) map[string]string {
	if env == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}

// Append returns a new Exec with argv extended and env overlaid (right
// wins), leaving the receiver untouched (spec §3: "append derivation
// returns a new Exec").
func (e Exec) Append(extraArgv []string, extraEnv map[string]string) Exec {
	argv := make([]string, 0, len(e.Argv)+len(extraArgv))
	argv = append(argv, e.Argv...)
	argv = append(argv, extraArgv...)

	env := cloneEnv(e.Env)
	for k, v := range extraEnv {
		env[k] = v
	}

	return Exec{
		Argv:     argv,
		Env:      env,
		EC:       e.EC,
		VLStdout: e.VLStdout,
		VLStderr: e.VLStderr,
	}
}

// TestEC reports whether ec satisfies the Exec's exit-code predicate.
func (e Exec) TestEC(ec int) bool {
	return e.EC.Test(ec)
}

// RaiseOOBEC is the single predicate-check chokepoint (spec §4.2),
// reused by both Exec.Run and the pipeline driver in internal/engine.
func (e Exec) RaiseOOBEC(ec int) error {
	if e.TestEC(ec) {
		return nil
	}
	return fmt.Errorf("%w: %s: observed exit code %d, allowed %s", palhmerr.ErrBadExit, e.String(), ec, e.EC.String())
}

// environ renders Env as a sorted KEY=VALUE slice for exec.Cmd.Env. Env is
// never inherited from the parent process unless the caller explicitly put
// parent variables in it (spec §3).
func (e Exec) environ() []string {
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

// Run launches the command, waits for it, and applies the exit-code
// predicate. stdout/stderr are gated by ctx's verbosity level against the
// Exec's own gates; stdin is detached (never inherited).
func (e Exec) Run(ctx *GlobalContext) error {
	if len(e.Argv) == 0 {
		return fmt.Errorf("%w: exec has empty argv", palhmerr.ErrInvalidConfig)
	}

	cmd := exec.CommandContext(ctx.Context(), e.Argv[0], e.Argv[1:]...)
	cmd.Env = e.environ()
	cmd.Stdin = nil

	if ctx.TestVL(e.VLStdout) {
		cmd.Stdout = os.Stdout
	}
	if ctx.TestVL(e.VLStderr) {
		cmd.Stderr = os.Stderr
	}

	err := cmd.Run()
	ec := exitCodeOf(err)
	if err != nil && ec < 0 {
		// The process never produced an exit code at all (failed to start).
		return fmt.Errorf("%w: %s: %s", palhmerr.ErrInvalidConfig, e.String(), err)
	}
	return e.RaiseOOBEC(ec)
}

// exitCodeOf extracts the process exit code from the error exec.Cmd.Run
// returns, or -1 if the process never ran to completion.
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func asExitError(err error, target **exec.ExitError) bool {
	for err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			*target = ee
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func (e Exec) String() string {
	var sb strings.Builder
	keys := make([]string, 0, len(e.Env))
	for k := range e.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(`="`)
		sb.WriteString(e.Env[k])
		sb.WriteString(`" `)
	}
	sb.WriteString(strings.Join(e.Argv, " "))
	return strings.TrimSpace(sb.String())
}
