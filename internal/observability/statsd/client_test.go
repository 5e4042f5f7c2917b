package statsd

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		metric string
		value  string
		kind   string
		global map[string]string
		local  map[string]string
		want   string
		ok     bool
	}{
		{
			name:   "prefixed counter with tags",
			prefix: "ahava",
			metric: "auth.login",
			value:  "1",
			kind:   "c",
			global: map[string]string{"env": "prod", " service ": " api "},
			local:  map[string]string{"result": " success ", "": "ignored", "env": "stage"},
			want:   "ahava.auth.login:1|c|#env:stage,result:success,service:api",
			ok:     true,
		},
		{
			name:   "no prefix no tags",
			metric: "session_reaper.duration",
			value:  "12.5",
			kind:   "ms",
			want:   "session_reaper.duration:12.5|ms",
			ok:     true,
		},
		{
			name:   "reserved characters replaced",
			prefix: "ahava",
			metric: " rate/limit:check ",
			value:  "3",
			kind:   "g",
			want:   "ahava.rate_limit_check:3|g",
			ok:     true,
		},
		{
			name:   "empty name dropped",
			prefix: "ahava",
			metric: " .. ",
			value:  "1",
			kind:   "c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := formatLine(tt.prefix, tt.metric, tt.value, tt.kind, tt.global, tt.local)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizePrefix(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]string{
		"  ahava.api  ": "ahava.api",
		"..foo..":       "foo",
		".":             "",
		"":              "",
	} {
		assert.Equal(t, want, sanitizePrefix(input), "input %q", input)
	}
}

func TestCloneTagsReturnsCopy(t *testing.T) {
	t.Parallel()

	original := map[string]string{"tier": "strict", "": "ignored"}
	cloned := cloneTags(original)
	cloned["tier"] = "relaxed"

	assert.Equal(t, "strict", original["tier"])
	assert.NotContains(t, cloned, "")
}

func TestClientWritesDatagrams(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	client, err := NewClient(context.Background(), Config{
		Address:    pc.LocalAddr().String(),
		Prefix:     "ahava",
		GlobalTags: map[string]string{"env": "test"},
	})
	require.NoError(t, err)

	client.Count("auth.login", 1, map[string]string{"result": "success"})
	client.Timing("session_reaper.duration", 1500*time.Microsecond, nil)

	buf := make([]byte, 512)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))

	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "ahava.auth.login:1|c|#env:test,result:success", string(buf[:n]))

	n, _, err = pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "ahava.session_reaper.duration:1.5|ms|#env:test", string(buf[:n]))

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	client.Count("after.close", 1, nil)
}

func TestNewClientRequiresAddress(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(), Config{Address: "   "})
	require.Error(t, err)

	_, err = NewClient(context.Background(), Config{Address: "bad address"})
	require.ErrorContains(t, err, "statsd dial")
}

func TestNilClientIsSafe(t *testing.T) {
	t.Parallel()

	var c *Client
	c.Count("x", 1, nil)
	assert.NoError(t, c.Close())
	Discard{}.Gauge("x", 1, nil)
}
