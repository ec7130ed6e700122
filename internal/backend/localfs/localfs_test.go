package localfs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qqa112811/palhm/internal/core"
)

func newTestCtx() *core.GlobalContext {
	ctx := core.NewGlobalContext(nil, nil)
	ctx.Logger = noopLogger()
	return ctx
}

func TestCtor_RequiresRoot(t *testing.T) {
	_, err := Ctor(map[string]any{})
	require.Error(t, err)
}

func TestCtor_AppliesDefaults(t *testing.T) {
	b, err := Ctor(map[string]any{"root": t.TempDir()})
	require.NoError(t, err)
	lb := b.(*Backend)
	assert.Equal(t, os.FileMode(defaultDMode), lb.cfg.DMode)
	assert.Equal(t, os.FileMode(defaultFMode), lb.cfg.FMode)
}

func TestCtor_ParsesInfinityLimits(t *testing.T) {
	b, err := Ctor(map[string]any{
		"root":            t.TempDir(),
		"nb-copy-limit":   "Infinity",
		"root-size-limit": "Infinity",
	})
	require.NoError(t, err)
	lb := b.(*Backend)
	assert.Equal(t, int64(0), lb.cfg.MaxCopies)
	assert.Equal(t, int64(0), lb.cfg.MaxBytes)
}

// TestOpenSinkRotate mirrors spec §8 scenario 1 at the backend level: Open
// creates one fresh copy directory, Sink returns a dd stage writing into
// it, and Rotate leaves that directory in place.
func TestOpenSinkRotate(t *testing.T) {
	root := t.TempDir()
	ctx := newTestCtx()

	b, err := Ctor(map[string]any{"root": root})
	require.NoError(t, err)

	require.NoError(t, b.Open(ctx))

	obj := &core.BackupObject{Path: "a.txt"}
	sink, err := b.Sink(ctx, obj)
	require.NoError(t, err)
	assert.Equal(t, "dd", sink.Argv[0])
	assert.Contains(t, sink.Argv[1], "of=")

	require.NoError(t, b.Rotate(ctx))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// TestRotation_PrunesOldest mirrors spec §8 scenario 2: with nb-copy-limit=2
// and three pre-existing copies, the two lexically smallest are removed and
// the current run's copy plus the newest pre-existing copy remain.
func TestRotation_PrunesOldest(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{
		"2020-01-01T00:00:00Z",
		"2020-01-02T00:00:00Z",
		"2020-01-03T00:00:00Z",
	} {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), make([]byte, 10), 0o640))
	}

	ctx := newTestCtx()
	b, err := Ctor(map[string]any{"root": root, "nb-copy-limit": "2"})
	require.NoError(t, err)
	require.NoError(t, b.Open(ctx))

	obj := &core.BackupObject{Path: "a.txt"}
	_, err = b.Sink(ctx, obj)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, b.(*Backend).prefix, "a.txt"), []byte("x"), 0o640))

	require.NoError(t, b.Rotate(ctx))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.NotContains(t, names, "2020-01-01T00:00:00Z")
	assert.NotContains(t, names, "2020-01-02T00:00:00Z")
	assert.Contains(t, names, "2020-01-03T00:00:00Z")
	assert.Contains(t, names, b.(*Backend).prefix)
}

// TestRollback_RemovesPartialCopy mirrors spec §8 scenario 3: rollback
// leaves no trace of the failed run's copy while prior copies survive.
func TestRollback_RemovesPartialCopy(t *testing.T) {
	root := t.TempDir()
	priorDir := filepath.Join(root, "2020-01-01T00:00:00Z")
	require.NoError(t, os.MkdirAll(priorDir, 0o750))

	ctx := newTestCtx()
	b, err := Ctor(map[string]any{"root": root})
	require.NoError(t, err)
	require.NoError(t, b.Open(ctx))

	prefix := b.(*Backend).prefix
	require.NoError(t, b.Rollback(ctx))

	_, err = os.Stat(filepath.Join(root, prefix))
	assert.True(t, os.IsNotExist(err), "the new copy directory must not exist after rollback")

	_, err = os.Stat(priorDir)
	assert.NoError(t, err, "prior copies must be untouched by rollback")
}

func TestNewCopyID_IsLexicallyChronological(t *testing.T) {
	earlier := NewCopyID(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	later := NewCopyID(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.Less(t, earlier, later)
}
