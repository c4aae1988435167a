package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honganh1206/stargazer/config"
	"github.com/honganh1206/stargazer/preview"
	"github.com/honganh1206/stargazer/realtime"
	"github.com/honganh1206/stargazer/server/data"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.ServerConfig{
		DSN:       filepath.Join(dir, "server.db"),
		UploadDir: filepath.Join(dir, "uploads"),
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
	}

	srv, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.broker.Close()
		ts.Close()
		srv.Close()
	})
	return srv, ts
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func tokenFor(t *testing.T, srv *Server, userID string) string {
	t.Helper()
	token, err := srv.IssueToken(userID)
	require.NoError(t, err)
	return token
}

func TestOAuthLogin(t *testing.T) {
	srv, ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/oauth/kakao", "", map[string]string{"code": "abc"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	login := decodeBody[loginResponse](t, resp)
	assert.Equal(t, "Bearer", login.TokenType)

	userID, err := srv.tokens.Verify(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "kakao:abc", userID)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/oauth/kakao", "", map[string]string{"code": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRequireAuth(t *testing.T) {
	srv, ts := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/chat/previews", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/chat/previews", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired := newTokenIssuer("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _, err := expired.Issue("alice")
	require.NoError(t, err)
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/chat/previews", stale, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/chat/previews", tokenFor(t, srv, "alice"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGroupLifecycle(t *testing.T) {
	srv, ts := newTestServer(t)
	alice := tokenFor(t, srv, "alice")
	bob := tokenFor(t, srv, "bob")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/groups", alice, data.TeamInput{Title: "Perseids", Capacity: 3})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	team := decodeBody[data.Team](t, resp)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/groups?keyword=perse", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decodeBody[data.TeamPage](t, resp)
	require.Len(t, page.Teams, 1)
	assert.Equal(t, team.ID, page.Teams[0].ID)

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/groups/"+team.ID, bob, data.TeamInput{Title: "mine"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/groups/"+team.ID+"/join", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, decodeBody[data.Team](t, resp).MemberCount)

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/bookmarks/"+team.ID, bob, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/bookmarks", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]data.Team](t, resp), 1)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/groups/"+team.ID+"/join", bob, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/groups/"+team.ID, alice, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/groups/"+team.ID, alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChatEndpoints(t *testing.T) {
	srv, ts := newTestServer(t)
	alice := tokenFor(t, srv, "alice")
	bob := tokenFor(t, srv, "bob")

	team, err := srv.models.Teams.Create("alice", data.TeamInput{Title: "Perseids"})
	require.NoError(t, err)
	_, err = srv.models.Teams.Join(team.ID, "bob")
	require.NoError(t, err)

	for _, content := range []string{"one", "two", "three"} {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/chat/"+team.ID+"/messages", alice, sendMessageRequest{Content: content})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/chat/previews", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	previews := decodeBody[[]preview.Preview](t, resp)
	require.Len(t, previews, 1)
	assert.Equal(t, 3, previews[0].UnreadCount)
	assert.Equal(t, "three", previews[0].RecentMessage)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/chat/"+team.ID+"/messages?size=2", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decodeBody[data.MessagePage](t, resp)
	require.Len(t, page.Messages, 2)
	assert.True(t, page.HasNext)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/chat/"+team.ID+"/messages?before=abc", bob, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/chat/"+team.ID+"/read", bob, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/chat/previews", bob, nil)
	assert.Zero(t, decodeBody[[]preview.Preview](t, resp)[0].UnreadCount)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/chat/"+team.ID+"/messages", tokenFor(t, srv, "mallory"), sendMessageRequest{Content: "hi"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPresignedUpload(t *testing.T) {
	srv, ts := newTestServer(t)
	alice := tokenFor(t, srv, "alice")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/uploads/presign", alice, presignRequest{FileName: "sky.txt", ContentType: "text/plain"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/uploads/presign", alice, presignRequest{FileName: "sky.png", ContentType: "image/png"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	slot := decodeBody[presignResponse](t, resp)
	assert.True(t, strings.HasPrefix(slot.FileURL, ts.URL+"/storage/"))

	put := func(url string, contentType string) int {
		req, err := http.NewRequest(http.MethodPut, url, strings.NewReader("png-bytes"))
		require.NoError(t, err)
		req.Header.Set("Content-Type", contentType)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusForbidden, put(slot.FileURL+"?sig=wrong", "image/png"))
	// A rejected content type leaves the slot usable
	assert.Equal(t, http.StatusBadRequest, put(slot.UploadURL, "image/jpeg"))
	assert.Equal(t, http.StatusOK, put(slot.UploadURL, "image/png"))
	// Slots are single use
	assert.Equal(t, http.StatusForbidden, put(slot.UploadURL, "image/png"))

	got, err := http.Get(slot.FileURL)
	require.NoError(t, err)
	defer got.Body.Close()
	body, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, got.StatusCode)
	assert.Equal(t, "png-bytes", string(body))
}

func socketURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func waitSubscribed(t *testing.T, srv *Server, userID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return srv.broker.subscribed(userID)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBrokerPushesPreviewEvents(t *testing.T) {
	srv, ts := newTestServer(t)
	alice := tokenFor(t, srv, "alice")

	team, err := srv.models.Teams.Create("alice", data.TeamInput{Title: "Perseids"})
	require.NoError(t, err)
	_, err = srv.models.Teams.Join(team.ID, "bob")
	require.NoError(t, err)

	dialer := &realtime.Dialer{URL: socketURL(ts), DisconnectTimeout: time.Second}
	sess, err := dialer.Dial(context.Background(), tokenFor(t, srv, "bob"))
	require.NoError(t, err)
	defer sess.Close()
	require.NotEmpty(t, sess.ID())

	events := make(chan preview.Event, 4)
	require.NoError(t, sess.Subscribe(realtime.PreviewDestination(sess.ID()), func(body []byte) {
		var ev preview.Event
		if err := json.Unmarshal(body, &ev); err == nil {
			events <- ev
		}
	}))
	waitSubscribed(t, srv, "bob")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/chat/"+team.ID+"/messages", alice, sendMessageRequest{Content: "look up"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	select {
	case ev := <-events:
		assert.Equal(t, preview.Event{TeamID: team.ID, UnreadCount: 1, RecentMessage: "look up"}, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("no preview event delivered")
	}

	assert.NoError(t, sess.Close())
}

func TestBrokerRejectsBadCredentials(t *testing.T) {
	_, ts := newTestServer(t)

	dialer := &realtime.Dialer{URL: socketURL(ts)}
	_, err := dialer.Dial(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, realtime.ErrUnauthorized)

	_, err = dialer.Dial(context.Background(), "")
	assert.Error(t, err)
}

func TestBrokerRejectsForeignDestination(t *testing.T) {
	srv, ts := newTestServer(t)

	dialer := &realtime.Dialer{URL: socketURL(ts), DisconnectTimeout: time.Second}
	sess, err := dialer.Dial(context.Background(), tokenFor(t, srv, "bob"))
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.Subscribe(realtime.PreviewDestination("someone-else"), func([]byte) {}))

	select {
	case <-sess.Done():
		assert.Error(t, sess.Err())
	case <-time.After(2 * time.Second):
		t.Fatal("session was not terminated")
	}
}

func TestBrokerCloseEndsOpenSessions(t *testing.T) {
	srv, ts := newTestServer(t)

	dialer := &realtime.Dialer{URL: socketURL(ts), DisconnectTimeout: time.Second}
	sess, err := dialer.Dial(context.Background(), tokenFor(t, srv, "bob"))
	require.NoError(t, err)
	defer sess.Close()
	require.NoError(t, sess.Subscribe(realtime.PreviewDestination(sess.ID()), func([]byte) {}))

	// No wait: a session is closable as soon as CONNECTED has been sent
	srv.broker.Close()

	select {
	case <-sess.Done():
		assert.Error(t, sess.Err())
	case <-time.After(3 * time.Second):
		t.Fatal("session outlived the broker")
	}

	_, err = dialer.Dial(context.Background(), tokenFor(t, srv, "bob"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, realtime.ErrUnauthorized)
}
