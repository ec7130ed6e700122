// Package localfs implements the local filesystem backend (spec §4.4): a
// plain directory tree, one subdirectory per run, written with dd and
// pruned by the shared rotation algorithm in internal/backend.
package localfs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qqa112811/palhm/internal/backend"
	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/palhmerr"
)

const (
	defaultDMode = 0o750
	defaultFMode = 0o640
)

// Config is the "backend-param" fragment for a local-fs backend (spec §6).
type Config struct {
	Root      string
	DMode     os.FileMode
	FMode     os.FileMode
	BlockSize string
	MaxCopies int64
	MaxBytes  int64
}

// parseLimit parses a "nb-copy-limit"/"root-size-limit" value: either a
// decimal string or the literal "Infinity", which maps to 0 (unbounded,
// per backend.Quota's convention).
func parseLimit(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	if s == "Infinity" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", palhmerr.ErrInvalidConfig, err)
	}
	return n, nil
}

// Backend is one open run's worth of state. A fresh instance is
// constructed per BackupTask by Ctor.
type Backend struct {
	cfg    Config
	prefix string

	mu       sync.Mutex
	sinkList []string // paths written this run, relative to cfg.Root/prefix
}

// Ctor builds a Backend from its config fragment, applying the
// documented defaults for dmode/fmode (spec §4.4).
func Ctor(param map[string]any) (core.Backend, error) {
	cfg := Config{DMode: defaultDMode, FMode: defaultFMode}

	root, _ := param["root"].(string)
	if root == "" {
		return nil, fmt.Errorf(`%w: local-fs backend requires "root"`, palhmerr.ErrInvalidConfig)
	}
	cfg.Root = root

	if v, ok := param["dmode"].(string); ok {
		m, err := strconv.ParseUint(v, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: dmode: %s", palhmerr.ErrInvalidConfig, err)
		}
		cfg.DMode = os.FileMode(m)
	}
	if v, ok := param["fmode"].(string); ok {
		m, err := strconv.ParseUint(v, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: fmode: %s", palhmerr.ErrInvalidConfig, err)
		}
		cfg.FMode = os.FileMode(m)
	}
	if v, ok := param["block-size"].(string); ok {
		cfg.BlockSize = v
	}

	nbCopyLimit, err := parseLimit(param["nb-copy-limit"])
	if err != nil {
		return nil, fmt.Errorf("nb-copy-limit: %w", err)
	}
	cfg.MaxCopies = nbCopyLimit

	rootSizeLimit, err := parseLimit(param["root-size-limit"])
	if err != nil {
		return nil, fmt.Errorf("root-size-limit: %w", err)
	}
	cfg.MaxBytes = rootSizeLimit

	return &Backend{cfg: cfg}, nil
}

// NewCopyID returns the default copy-id generator: the UTC ISO-8601
// timestamp at second granularity (spec §4.3), so lexical order equals
// chronological order.
func NewCopyID(now time.Time) string {
	return now.UTC().Format("2006-01-02T15:04:05Z")
}

func (b *Backend) Open(ctx *core.GlobalContext) error {
	b.prefix = NewCopyID(time.Now())
	dir := filepath.Join(b.cfg.Root, b.prefix)
	if err := os.MkdirAll(dir, b.cfg.DMode); err != nil {
		return fmt.Errorf("%w: local-fs open: %s", palhmerr.ErrInvalidConfig, err)
	}
	return nil
}

func (b *Backend) Sink(ctx *core.GlobalContext, obj *core.BackupObject) (core.Exec, error) {
	target := filepath.Join(b.cfg.Root, b.prefix, obj.Path)
	if err := os.MkdirAll(filepath.Dir(target), b.cfg.DMode); err != nil {
		return core.Exec{}, fmt.Errorf("%w: local-fs sink: %s", palhmerr.ErrInvalidConfig, err)
	}

	if obj.AllocSize != nil {
		// Best-effort preallocation; failures are ignored per spec §4.4.
		if f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY, b.cfg.FMode); err == nil {
			_ = f.Truncate(*obj.AllocSize)
			_ = f.Close()
		}
	}

	argv := []string{"dd", fmt.Sprintf("of=%s", target)}
	if b.cfg.BlockSize != "" {
		argv = append(argv, fmt.Sprintf("bs=%s", b.cfg.BlockSize))
	}
	e := core.NewExec(argv, nil)

	b.mu.Lock()
	b.sinkList = append(b.sinkList, obj.Path)
	b.mu.Unlock()

	return e, nil
}

func (b *Backend) Rotate(ctx *core.GlobalContext) error {
	b.mu.Lock()
	sunk := append([]string(nil), b.sinkList...)
	b.mu.Unlock()

	for _, p := range sunk {
		target := filepath.Join(b.cfg.Root, b.prefix, p)
		if err := os.Chmod(target, b.cfg.FMode); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: local-fs rotate chmod: %s", palhmerr.ErrInvalidConfig, err)
		}
	}

	usage, err := b.usageInfo()
	if err != nil {
		return err
	}
	excl := b.exclCopies()
	toDelete := backend.PlanRotation(usage, backend.Quota{MaxCopies: b.cfg.MaxCopies, MaxBytes: b.cfg.MaxBytes}, excl)
	return b.rmRecursive(toDelete)
}

func (b *Backend) Rollback(ctx *core.GlobalContext) error {
	dir := filepath.Join(b.cfg.Root, b.prefix)
	if err := os.RemoveAll(dir); err != nil {
		ctx.Logger.Warn("local-fs rollback failed to remove run directory", zap.Error(err))
	}
	return nil
}

func (b *Backend) Close(ctx *core.GlobalContext) error { return nil }

func (b *Backend) String() string { return fmt.Sprintf("local-fs(%s)", b.cfg.Root) }

// usageInfo is _fs_usage_info (spec §4.4): direct children of root that
// are real (non-symlink) directories, ascending by name, totaled by
// recursive walk over regular (non-symlink) files.
func (b *Backend) usageInfo() ([]backend.Usage, error) {
	entries, err := os.ReadDir(b.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: local-fs usage: %s", palhmerr.ErrInvalidConfig, err)
	}

	var ids []string
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 || !e.IsDir() {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)

	usage := make([]backend.Usage, 0, len(ids))
	for _, id := range ids {
		var total int64
		root := filepath.Join(b.cfg.Root, id)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			if info.Mode()&os.ModeSymlink != 0 || !info.Mode().IsRegular() {
				return nil
			}
			total += info.Size()
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: local-fs usage walk: %s", palhmerr.ErrInvalidConfig, err)
		}
		usage = append(usage, backend.Usage{ID: id, Bytes: total})
	}
	return usage, nil
}

func (b *Backend) exclCopies() map[string]struct{} {
	return map[string]struct{}{b.prefix: {}}
}

func (b *Backend) rmRecursive(ids []string) error {
	for _, id := range ids {
		if err := os.RemoveAll(filepath.Join(b.cfg.Root, id)); err != nil {
			return fmt.Errorf("%w: local-fs rotate rm: %s", palhmerr.ErrInvalidConfig, err)
		}
	}
	return nil
}
