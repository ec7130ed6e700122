// Package sigmask implements the "sigmask" routine builtin (spec §4.8): an
// ordered list of block/unblock actions over POSIX signal sets, applied to
// the calling thread's signal mask via golang.org/x/sys/unix.
package sigmask

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/palhmerr"
)

// Action is one step of a sigmask builtin invocation: block or unblock the
// given set of signals.
type Action struct {
	Block   bool // false means unblock
	Signals []string
}

// Builtin is the sigmask builtin's validated, ready-to-run form.
type Builtin struct {
	Actions []Action
}

// New parses the ordered action list from config. Validation happens
// eagerly, at construction, per core.ValidObject's contract — a routine
// with a malformed sigmask action fails before any step runs.
func New(actions []Action) (*Builtin, error) {
	b := &Builtin{Actions: actions}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks that every signal name/number in every action resolves.
func (b *Builtin) Validate() error {
	for _, a := range b.Actions {
		for _, name := range a.Signals {
			if _, err := resolveSignal(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// Run applies each action in order via unix.PthreadSigmask (spec §4.8).
// The GlobalContext is unused — the signal mask is process/thread state,
// not context-scoped — but Run's signature must match core.Runnable so
// sigmask builtins can be dispatched through the same Runnable interface
// as execs and tasks.
func (b *Builtin) Run(_ *core.GlobalContext) error {
	for _, a := range b.Actions {
		var set unix.Sigset_t
		for _, name := range a.Signals {
			sig, err := resolveSignal(name)
			if err != nil {
				return err
			}
			addSignal(&set, sig)
		}

		how := unix.SIG_UNBLOCK
		if a.Block {
			how = unix.SIG_BLOCK
		}
		if err := unix.PthreadSigmask(how, &set, nil); err != nil {
			return fmt.Errorf("%w: sigmask: %s", palhmerr.ErrInvalidConfig, err)
		}
	}
	return nil
}

// signalsByName covers the signals a maintenance routine plausibly needs
// to mask around a critical section (spec §4.8's examples: SIGTERM/TERM).
var signalsByName = map[string]syscall.Signal{
	"SIGHUP":  syscall.SIGHUP,
	"SIGINT":  syscall.SIGINT,
	"SIGQUIT": syscall.SIGQUIT,
	"SIGUSR1": syscall.SIGUSR1,
	"SIGUSR2": syscall.SIGUSR2,
	"SIGPIPE": syscall.SIGPIPE,
	"SIGALRM": syscall.SIGALRM,
	"SIGTERM": syscall.SIGTERM,
	"SIGCHLD": syscall.SIGCHLD,
	"SIGCONT": syscall.SIGCONT,
	"SIGTSTP": syscall.SIGTSTP,
	"SIGTTIN": syscall.SIGTTIN,
	"SIGTTOU": syscall.SIGTTOU,
}

// resolveSignal accepts numeric ("15") or symbolic ("SIGTERM", "TERM")
// signal names (spec §4.8).
func resolveSignal(name string) (syscall.Signal, error) {
	if n, err := strconv.Atoi(name); err == nil {
		return syscall.Signal(n), nil
	}

	canon := strings.ToUpper(name)
	if !strings.HasPrefix(canon, "SIG") {
		canon = "SIG" + canon
	}
	if sig, ok := signalsByName[canon]; ok {
		return sig, nil
	}
	return 0, fmt.Errorf("%w: sigmask: unknown signal %q", palhmerr.ErrInvalidConfig, name)
}

// addSignal sets sig's bit in set, the same way the C sigaddset macro
// does. unix.Sigset_t exposes no portable setter, so this indexes its
// Val bitmap directly (linux/amd64 layout: 16 uint64 words).
func addSignal(set *unix.Sigset_t, sig syscall.Signal) {
	word := (uint64(sig) - 1) / 64
	bit := (uint64(sig) - 1) % 64
	set.Val[word] |= 1 << bit
}
