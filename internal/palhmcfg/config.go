// Package palhmcfg implements PALHM's config composition pipeline (spec
// §4.1): multi-file include resolution with cycle detection, and the
// merge rules that combine documents. It works entirely in terms of
// map[string]any decoded from JSON (or JSON-with-comments, preprocessed by
// an external reformatter sub-process) — turning this map into a
// GlobalContext is Build's job (build.go), a separate concern.
package palhmcfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qqa112811/palhm/internal/palhmerr"
)

// DefaultConfigPath is the config path the CLI falls back to when -f is
// not given (spec §6).
const DefaultConfigPath = "/etc/palhm/palhm.jsonc"

// loader tracks the set of files already included anywhere in the current
// Load call, by resolved absolute path, so a file that is included twice —
// whether a true cycle or simply reachable from two branches — is
// rejected once (spec §4.1, §8: "load(p) with a self-including file fails
// with include-cycle").
type loader struct {
	includeSet map[string]struct{}
}

// Load reads path, recursively resolving and merging its "include" list,
// and returns the fully merged config document.
func Load(path string) (map[string]any, error) {
	l := &loader{includeSet: map[string]struct{}{}}
	return l.load(path)
}

func (l *loader) load(path string) (map[string]any, error) {
	rpath, err := realpath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", palhmerr.ErrInvalidConfig, path, err)
	}

	if _, seen := l.includeSet[rpath]; seen {
		return nil, fmt.Errorf("%w: %s", palhmerr.ErrIncludeCycle, rpath)
	}
	l.includeSet[rpath] = struct{}{}

	var jobj map[string]any
	if strings.EqualFold(filepath.Ext(rpath), ".jsonc") {
		jobj, err = loadJSONC(rpath)
	} else {
		jobj, err = loadPlainJSON(rpath)
	}
	if err != nil {
		return nil, err
	}

	// Resolve relative "include" entries against the including file's
	// directory, restoring the prior base directory on return (spec §4.1).
	saved, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", palhmerr.ErrInvalidConfig, err)
	}
	if err := os.Chdir(filepath.Dir(rpath)); err != nil {
		return nil, fmt.Errorf("%w: %s", palhmerr.ErrInvalidConfig, err)
	}
	defer os.Chdir(saved)

	for _, raw := range toSlice(jobj["include"]) {
		incPath, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf(`%w: "include" entries must be strings`, palhmerr.ErrInvalidConfig)
		}

		incConf, err := l.load(incPath)
		if err != nil {
			return nil, err
		}

		jobj, err = Merge(jobj, incConf)
		if err != nil {
			return nil, err
		}
	}

	return jobj, nil
}

func realpath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	// The file may not exist yet in tests that probe error paths; fall
	// back to the absolute (non-symlink-resolved) path so the cycle/miss
	// error below still names something useful.
	return abs, nil
}
