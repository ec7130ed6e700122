package bootreport

import (
	"fmt"
	"time"

	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/mua"
	"github.com/qqa112811/palhm/internal/palhmerr"
)

// Build constructs a Report from the "boot-report" config fragment (spec
// §6), resolving its MUA through muas.
func Build(m map[string]any, muas *mua.Registry) (*Report, error) {
	cfg := Config{WithUptime: true, WithBootID: true}

	cfg.MUAName, _ = m["mua"].(string)
	if cfg.MUAName == "" {
		return nil, fmt.Errorf(`%w: boot-report requires "mua"`, palhmerr.ErrInvalidConfig)
	}
	cfg.MUAParam, _ = m["mua-param"].(map[string]any)

	for _, raw := range toSlice(m["mail-to"]) {
		if s, ok := raw.(string); ok {
			cfg.Recipients = append(cfg.Recipients, s)
		}
	}
	cfg.Subject, _ = m["subject"].(string)
	cfg.BootWait, _ = m["boot-wait"].(string)

	if v, ok := m["delay"].(float64); ok {
		cfg.Delay = time.Duration(v) * time.Second
	}
	// Both probes default to enabled (mirroring the original
	// implementation's jobj.get("uptime", True)/get("boot-id", True));
	// an omitted key must not silently thin the report.
	if v, ok := m["with-uptime"].(bool); ok {
		cfg.WithUptime = v
	}
	if v, ok := m["with-boot-id"].(bool); ok {
		cfg.WithBootID = v
	}

	inst, err := muas.Build(cfg.MUAName, cfg.MUAParam)
	if err != nil {
		return nil, fmt.Errorf("boot-report: %w", err)
	}

	return New(cfg, inst), nil
}

func toSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

var _ core.BootReporter = (*Report)(nil)
