package main

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnikonov63/chair22/internal/logging"
	"github.com/vnikonov63/chair22/internal/session"
	"github.com/vnikonov63/chair22/internal/testutil/evalserver"
)

// execute runs the root command with a clean environment and returns stdout
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"API_BASE", "STATE_DIR", "LOG_LEVEL", "REQUEST_TIMEOUT", "MAX_INFLIGHT", "DEBUG", "CHAIR22_CONFIG"} {
		t.Setenv(k, "")
	}
	evalConcurrent = false
	sessionReset = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func newServer(t *testing.T) *evalserver.Server {
	t.Helper()
	srv := evalserver.New(logging.Discard())
	t.Cleanup(srv.Close)
	return srv
}

func TestEvalTranscript(t *testing.T) {
	srv := newServer(t)
	srv.SetEvalReply("2+2", evalserver.Reply{JSON: map[string]string{"result": "4"}})
	srv.SetEvalReply("fail", evalserver.Reply{Status: http.StatusInternalServerError, Raw: "boom"})
	dir := t.TempDir()

	out, err := execute(t, "", "eval", "--api", srv.URL, "--state-dir", dir, "2+2", "fail")
	require.NoError(t, err)

	assert.Equal(t, "In [1]: 2+2\nOut[1]: 4\n\nIn [2]: fail\nOut[2]: Server error: 500 boom\n\n", out)
	assert.Equal(t, 1, srv.ReplCalls())
	assert.Equal(t, []string{"2+2", "fail"}, srv.Texts())
}

func TestEvalReusesPersistedSession(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()

	_, err := execute(t, "", "eval", "--api", srv.URL, "--state-dir", dir, "1")
	require.NoError(t, err)
	out, err := execute(t, "", "eval", "--api", srv.URL, "--state-dir", dir, "2")
	require.NoError(t, err)

	assert.Equal(t, 1, srv.ReplCalls(), "second run should restore the stored id")
	assert.Contains(t, out, "Out[1]: 2")
}

func TestEvalConcurrent(t *testing.T) {
	srv := newServer(t)

	out, err := execute(t, "", "eval", "--concurrent", "--max-inflight", "2", "--api", srv.URL, "--state-dir", t.TempDir(), "a", "b", "c")
	require.NoError(t, err)

	assert.Equal(t, "In [1]: a\nOut[1]: a\n\nIn [2]: b\nOut[2]: b\n\nIn [3]: c\nOut[3]: c\n\n", out)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, srv.Texts())
}

func TestEvalReadsStdin(t *testing.T) {
	srv := newServer(t)

	out, err := execute(t, "x\n\n  y  \n", "eval", "--api", srv.URL, "--state-dir", t.TempDir())
	require.NoError(t, err)

	assert.Contains(t, out, "In [1]: x\n")
	assert.Contains(t, out, "In [2]: y\n")
}

func TestEvalWithoutExpressions(t *testing.T) {
	srv := newServer(t)

	_, err := execute(t, "", "eval", "--api", srv.URL, "--state-dir", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, 0, srv.ReplCalls())
}

func TestEvalSessionUnavailable(t *testing.T) {
	srv := newServer(t)
	srv.SetReplReply(evalserver.Reply{Status: http.StatusServiceUnavailable, Raw: "down"})

	out, err := execute(t, "", "eval", "--api", srv.URL, "--state-dir", t.TempDir(), "1+1")
	require.ErrorIs(t, err, session.ErrUnavailable)
	assert.Empty(t, out)
	assert.Equal(t, 0, srv.EvalCalls())
}

func TestEvalRejectsInvalidConfig(t *testing.T) {
	_, err := execute(t, "", "eval", "--api", "not a url", "--state-dir", t.TempDir(), "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation")
}

func TestSessionCommand(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()

	out, err := execute(t, "", "session", "--api", srv.URL, "--state-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "session: resolved\nrepl: 1\n")

	out, err = execute(t, "", "session", "--api", srv.URL, "--state-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "repl: 1\n")
	assert.Equal(t, 1, srv.ReplCalls())

	out, err = execute(t, "", "session", "--reset", "--api", srv.URL, "--state-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "repl: 2\n")
	assert.Equal(t, 2, srv.ReplCalls())
}

func TestReadExpressions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"blank lines skipped", "\n  \n1+1\n\n", []string{"1+1"}},
		{"trimmed", "  a \n\tb\n", []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readExpressions(strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
