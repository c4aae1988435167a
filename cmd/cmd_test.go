package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honganh1206/stargazer/app/lifecycle"
	"github.com/honganh1206/stargazer/config"
	"github.com/honganh1206/stargazer/server"
)

// cliHarness runs the CLI against a fresh dev backend with credentials kept
// in a temp dir.
type cliHarness struct {
	t *testing.T
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()

	dir := t.TempDir()
	srv, err := server.New(config.ServerConfig{
		DSN:       filepath.Join(dir, "server.db"),
		UploadDir: filepath.Join(dir, "uploads"),
		JWTSecret: "cli-test",
		TokenTTL:  time.Hour,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})

	t.Setenv("STARGAZER_BASE_URL", ts.URL)
	t.Setenv("STARGAZER_SOCKET_URL", "")
	t.Setenv("STARGAZER_CREDENTIALS", filepath.Join(dir, "credentials.db"))

	return &cliHarness{t: t}
}

func (h *cliHarness) run(args ...string) (string, error) {
	h.t.Helper()

	var out bytes.Buffer
	root := NewCLI()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--env", filepath.Join(h.t.TempDir(), "missing.env")}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	h := newCLIHarness(t)
	out, err := h.run("version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestSchemaCommand(t *testing.T) {
	h := newCLIHarness(t)
	out, err := h.run("schema")
	require.NoError(t, err)
	assert.Contains(t, out, "# preview event")
	assert.Contains(t, out, `"teamId"`)
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")

	_, err = h.run("login")
	assert.Error(t, err)

	out, err = h.run("login", "--provider", "github", "--code", "vega")
	require.NoError(t, err)
	assert.Contains(t, out, "github:vega")

	out, err = h.run("whoami")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "github:vega"))

	_, err = h.run("logout")
	require.NoError(t, err)

	out, err = h.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
}

func TestGroupAndChatFlow(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run("login", "--code", "vega")
	require.NoError(t, err)

	out, err := h.run("group", "create", "--title", "Summer Triangle", "--location", "Ridge", "--meet-at", "2026-08-12 21:00", "--capacity", "4")
	require.NoError(t, err)
	require.Contains(t, out, "Created group Summer Triangle")
	id := strings.TrimSuffix(strings.TrimSpace(out[strings.LastIndex(out, "(")+1:]), ")")

	out, err = h.run("groups", "--search", "triangle")
	require.NoError(t, err)
	assert.Contains(t, out, "Summer Triangle")
	assert.Contains(t, out, "1 of 1 groups")

	out, err = h.run("group", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Summer Triangle")
	assert.Contains(t, out, "1/4")

	_, err = h.run("group", "update", id, "--location", "Lakeside")
	require.NoError(t, err)
	out, err = h.run("group", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Lakeside")
	assert.Contains(t, out, "Summer Triangle")

	_, err = h.run("chat", "send", id, "bring", "red", "lights")
	require.NoError(t, err)

	out, err = h.run("chat", "history", id)
	require.NoError(t, err)
	assert.Contains(t, out, "kakao:vega: bring red lights")

	out, err = h.run("previews")
	require.NoError(t, err)
	assert.Contains(t, out, "bring red lights")

	_, err = h.run("bookmark", "add", id)
	require.NoError(t, err)
	out, err = h.run("bookmarks")
	require.NoError(t, err)
	assert.Contains(t, out, "Summer Triangle")

	_, err = h.run("group", "delete", id)
	require.NoError(t, err)

	_, err = h.run("group", "show", id)
	assert.Error(t, err)
}

func TestUploadCommand(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run("login", "--code", "vega")
	require.NoError(t, err)

	img := filepath.Join(t.TempDir(), "moon.png")
	require.NoError(t, os.WriteFile(img, []byte("\x89PNG\r\n\x1a\nfake"), 0644))

	out, err := h.run("upload", img)
	require.NoError(t, err)
	assert.Contains(t, out, "/storage/")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), ".png"))
}

func TestLocalURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:11436", localURL(&net.TCPAddr{IP: net.IPv6unspecified, Port: 11436}))
	assert.Equal(t, "http://127.0.0.1:11436", localURL(&net.TCPAddr{IP: net.IPv4zero, Port: 11436}))
	assert.Equal(t, "http://10.0.0.5:80", localURL(&net.TCPAddr{IP: net.ParseIP("10.0.0.5"), Port: 80}))
}

func TestServeReadinessProbe(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	hs := &http.Server{Handler: mux}
	go hs.Serve(ln)
	defer hs.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, lifecycle.WaitReady(ctx, localURL(ln.Addr())))
}
