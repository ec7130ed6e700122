package palhmcfg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/qqa112811/palhm/internal/palhmerr"
)

// JSONCReformatter is the external JSON-with-comments preprocessor invoked
// as a sub-process for ".jsonc" documents (spec §4.1). It is resolved via
// PATH, not a hardcoded absolute path, so the same config tree works across
// distributions that install it under different prefixes.
var JSONCReformatter = "json_reformat"

// loadJSONC preprocesses path through JSONCReformatter and decodes the
// result as JSON.
func loadJSONC(path string) (map[string]any, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", palhmerr.ErrInvalidConfig, path, err)
	}
	defer in.Close()

	out, err := runReformatter(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", palhmerr.ErrInvalidConfig, path, err)
	}

	var jobj map[string]any
	if err := json.Unmarshal(out, &jobj); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", palhmerr.ErrInvalidConfig, path, err)
	}
	return jobj, nil
}

func loadPlainJSON(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", palhmerr.ErrInvalidConfig, path, err)
	}

	var jobj map[string]any
	if err := json.Unmarshal(raw, &jobj); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", palhmerr.ErrInvalidConfig, path, err)
	}
	return jobj, nil
}

func runReformatter(in *os.File) ([]byte, error) {
	cmd := exec.Command(JSONCReformatter)
	cmd.Stdin = in

	var buf bytes.Buffer
	cmd.Stdout = &buf

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %s", err, stderr.String())
	}
	return buf.Bytes(), nil
}
