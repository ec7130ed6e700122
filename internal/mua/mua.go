// Package mua implements the built-in mail-user-agent transports the
// boot-report collaborator sends through: "mailx", which shells out to the
// system mailx/mail binary, and "stdout", which writes the report to the
// process's own stdout for environments with no configured mail transport.
package mua

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/palhmerr"
)

// MailxConfig is the "mua-param" fragment for the "mailx" MUA.
type MailxConfig struct {
	Bin string // defaults to "mailx"
}

// Mailx sends mail via the system mailx/mail binary, one subject line and
// body per invocation, one invocation per run (spec GLOSSARY: MUA).
type Mailx struct {
	bin string
}

// MailxCtor builds a Mailx MUA from its config fragment.
func MailxCtor(param map[string]any) (core.MUA, error) {
	bin, _ := param["bin"].(string)
	if bin == "" {
		bin = "mailx"
	}
	return &Mailx{bin: bin}, nil
}

func (m *Mailx) Send(ctx *core.GlobalContext, recipients []string, subject string, body []string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("%w: mailx: no recipients", palhmerr.ErrInvalidConfig)
	}

	argv := append([]string{"-s", subject}, recipients...)
	cmd := exec.CommandContext(ctx.Context(), m.bin, argv...)
	cmd.Stdin = strings.NewReader(strings.Join(body, "\n"))
	if ctx.TestVL(1) {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: mailx: %s", palhmerr.ErrInvalidConfig, err)
	}
	return nil
}

func (m *Mailx) String() string { return fmt.Sprintf("mailx(%s)", m.bin) }

// Stdout writes the report straight to the process's own stdout, for a
// host with no configured mail transport (spec GLOSSARY).
type Stdout struct{}

// StdoutCtor builds the "stdout" MUA.
func StdoutCtor(map[string]any) (core.MUA, error) { return Stdout{}, nil }

func (Stdout) Send(ctx *core.GlobalContext, recipients []string, subject string, body []string) error {
	fmt.Fprintf(os.Stdout, "To: %s\nSubject: %s\n\n%s\n", strings.Join(recipients, ", "), subject, strings.Join(body, "\n"))
	return nil
}

func (Stdout) String() string { return "stdout" }
