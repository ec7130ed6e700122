package mua

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qqa112811/palhm/internal/core"
)

func TestStdout_Send(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	m := Stdout{}
	ctx := core.NewGlobalContext(nil, nil)
	require.NoError(t, m.Send(ctx, []string{"a@x.com"}, "subject", []string{"line1", "line2"}))

	w.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	out := buf.String()

	assert.Contains(t, out, "a@x.com")
	assert.Contains(t, out, "subject")
	assert.Contains(t, out, "line1")
	assert.Contains(t, out, "line2")
}

func TestMailx_RequiresRecipients(t *testing.T) {
	m := &Mailx{bin: "true"}
	ctx := core.NewGlobalContext(nil, nil)
	err := m.Send(ctx, nil, "subject", []string{"body"})
	require.Error(t, err)
}

func TestMailxCtor_DefaultsBin(t *testing.T) {
	m, err := MailxCtor(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "mailx(mailx)", m.String())
}

func TestRegistry_BuiltinsPresent(t *testing.T) {
	r := NewRegistry()
	_, err := r.Build("stdout", nil)
	require.NoError(t, err)
	_, err = r.Build("mailx", nil)
	require.NoError(t, err)
	_, err = r.Build("unknown", nil)
	require.Error(t, err)
}
