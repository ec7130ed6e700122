package objstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qqa112811/palhm/internal/core"
)

func TestParseLimit_Infinity(t *testing.T) {
	n, err := parseLimit("Infinity")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestParseLimit_Decimal(t *testing.T) {
	n, err := parseLimit("5")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestParseLimit_NonString(t *testing.T) {
	n, err := parseLimit(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestParseLimit_Malformed(t *testing.T) {
	_, err := parseLimit("not-a-number")
	require.Error(t, err)
}

func TestCtor_RequiresBucket(t *testing.T) {
	_, err := Ctor(map[string]any{})
	require.Error(t, err)
}

func TestRootKey_WithAndWithoutRoot(t *testing.T) {
	b := &Backend{cfg: Config{Root: "backups"}}
	assert.Equal(t, "backups/2024-01-01", b.rootKey("2024-01-01"))

	bare := &Backend{cfg: Config{}}
	assert.Equal(t, "2024-01-01", bare.rootKey("2024-01-01"))
}

func TestBackend_String(t *testing.T) {
	b := &Backend{cfg: Config{Bucket: "my-bucket", Root: "backups"}}
	assert.Equal(t, "object-store(my-bucket/backups)", b.String())
}

func TestSink_BuildsExpectedArgv(t *testing.T) {
	b := &Backend{cfg: Config{Bucket: "my-bucket", Root: "backups", SCSink: "STANDARD_IA", Profile: "prod"}}
	b.prefix = "2024-01-01"

	size := int64(1024)
	e, err := b.Sink(nil, &core.BackupObject{Path: "etc.tar", AllocSize: &size})
	require.NoError(t, err)
	assert.Contains(t, e.Argv, "s3://my-bucket/backups/2024-01-01/etc.tar")
	assert.Contains(t, e.Argv, "--storage-class")
	assert.Contains(t, e.Argv, "STANDARD_IA")
	assert.Contains(t, e.Argv, "--expected-size=1024")
	assert.Contains(t, e.Argv, "--profile")
	assert.Len(t, b.sinkKeys, 1)
}
