package bootreport

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qqa112811/palhm/internal/core"
)

// fakeMUA records what it was asked to send, for assertions.
type fakeMUA struct {
	recipients []string
	subject    string
	body       []string
}

func (f *fakeMUA) Send(ctx *core.GlobalContext, recipients []string, subject string, body []string) error {
	f.recipients = recipients
	f.subject = subject
	f.body = body
	return nil
}

func (f *fakeMUA) String() string { return "fake" }

func TestReport_Send_ComposesHostnameAndTimezone(t *testing.T) {
	f := &fakeMUA{}
	r := New(Config{Recipients: []string{"a@x.com"}, Subject: "sub"}, f)

	ctx := core.NewGlobalContext(nil, nil)
	require.NoError(t, r.Send(ctx))

	assert.Equal(t, []string{"a@x.com"}, f.recipients)
	assert.Equal(t, "sub", f.subject)

	joined := ""
	for _, l := range f.body {
		joined += l + "\n"
	}
	assert.Contains(t, joined, "hostname:")
	assert.Contains(t, joined, "timezone:")
}

func TestReport_Send_DefaultSubject(t *testing.T) {
	f := &fakeMUA{}
	r := New(Config{Recipients: []string{"a@x.com"}}, f)

	ctx := core.NewGlobalContext(nil, nil)
	require.NoError(t, r.Send(ctx))
	assert.Equal(t, "palhm boot report", f.subject)
}

func TestCompose_FieldsAreSorted(t *testing.T) {
	r := &Report{cfg: Config{WithUptime: false, WithBootID: false}}
	lines, err := r.compose()
	require.NoError(t, err)

	var keys []string
	for _, l := range lines {
		keys = append(keys, strings.SplitN(l, ":", 2)[0])
	}
	assert.True(t, len(keys) >= 2, "hostname and timezone are always present")
	assert.True(t, sort.StringsAreSorted(keys), "fields must be sorted by key")
}
