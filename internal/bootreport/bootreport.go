// Package bootreport implements the boot-report collaborator (spec §6's
// "boot-report" key, out of core scope but restored here per
// SPEC_FULL.md's SUPPLEMENTED FEATURES): a small host-identity report —
// hostname, timezone, uptime, boot id, an optional systemd readiness wait
// — composed and handed to an MUA.
package bootreport

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/palhmerr"
)

// Config is the "boot-report" config fragment (spec §6).
type Config struct {
	MUAName    string
	MUAParam   map[string]any
	Recipients []string
	Subject    string

	// BootWait, when "systemd", runs `systemctl is-system-running --wait`
	// as a preamble before composing the report.
	BootWait string
	// Delay is a fixed pause before composing, in addition to BootWait.
	Delay time.Duration

	WithUptime bool
	WithBootID bool
}

// Report is the ready-to-send boot-report collaborator (implements
// core.BootReporter).
type Report struct {
	cfg Config
	mua core.MUA
}

// New builds a Report that sends through m. Build is the variant that
// resolves the MUA from a registry.
func New(cfg Config, m core.MUA) *Report {
	return &Report{cfg: cfg, mua: m}
}

// Send runs the boot-wait preamble and configured delay, composes the
// report body, and hands it to the configured MUA (spec's restored
// BootReport collaborator).
func (r *Report) Send(ctx *core.GlobalContext) error {
	if r.cfg.BootWait == "systemd" {
		if err := waitSystemd(ctx.Context()); err != nil {
			return err
		}
	}
	if r.cfg.Delay > 0 {
		select {
		case <-time.After(r.cfg.Delay):
		case <-ctx.Context().Done():
			return ctx.Context().Err()
		}
	}

	body, err := r.compose()
	if err != nil {
		return err
	}

	subject := r.cfg.Subject
	if subject == "" {
		subject = "palhm boot report"
	}
	return r.mua.Send(ctx, r.cfg.Recipients, subject, body)
}

// compose builds the report body as a small, deterministic key-sorted
// text block: no YAML library is wired for a handful of scalar fields
// (see DESIGN.md), so fields are rendered "key: value", one per line,
// sorted by key for reproducibility.
func (r *Report) compose() ([]string, error) {
	fields := map[string]string{}

	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("%w: boot-report: hostname: %s", palhmerr.ErrInvalidConfig, err)
	}
	fields["hostname"] = host

	zone, offset := time.Now().Zone()
	fields["timezone"] = fmt.Sprintf("%s (UTC%+03d:00)", zone, offset/3600)

	if r.cfg.WithUptime {
		if since, err := runUptime("--since"); err == nil {
			fields["uptime-since"] = since
		}
		if pretty, err := runUptime("-p"); err == nil {
			fields["uptime"] = pretty
		}
	}

	if r.cfg.WithBootID {
		if id, err := os.ReadFile("/proc/sys/kernel/random/boot_id"); err == nil {
			fields["boot-id"] = strings.TrimSpace(string(id))
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", k, fields[k]))
	}
	return lines, nil
}

func runUptime(flag string) (string, error) {
	var out bytes.Buffer
	cmd := exec.Command("uptime", flag)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

func waitSystemd(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "systemctl", "is-system-running", "--wait")
	// is-system-running's own exit code reflects degraded/maintenance
	// states that are not this preamble's concern; only a failure to run
	// the command at all is fatal.
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return nil
		}
		return fmt.Errorf("%w: boot-report: systemd wait: %s", palhmerr.ErrInvalidConfig, err)
	}
	return nil
}
