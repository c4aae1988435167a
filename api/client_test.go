package api

import (
	"context"
	"errors"
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
	"github.com/honganh1206/stargazer/credential"
	"github.com/honganh1206/stargazer/server"
	"github.com/honganh1206/stargazer/server/data"
)

type staticToken string

func (s staticToken) BearerToken() (string, error) {
	if s == "" {
		return "", credential.ErrUnauthenticated
	}
	return string(s), nil
}

func newTestBackend(t *testing.T) (*server.Server, *httptest.Server) {
	t.Helper()

	dir := t.TempDir()
	srv, err := server.New(config.ServerConfig{
		DSN:       filepath.Join(dir, "server.db"),
		UploadDir: filepath.Join(dir, "uploads"),
		JWTSecret: "api-test",
		TokenTTL:  time.Hour,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return srv, ts
}

func newUserClient(t *testing.T, srv *server.Server, ts *httptest.Server, userID string) *Client {
	t.Helper()
	token, err := srv.IssueToken(userID)
	require.NoError(t, err)
	return NewClient(ts.URL, staticToken(token))
}

func TestLoginThenAuthenticatedCall(t *testing.T) {
	_, ts := newTestBackend(t)

	store, err := credential.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	client := NewClient(ts.URL, store)

	// No token yet
	_, err = client.ListPreviews(context.Background())
	assert.ErrorIs(t, err, credential.ErrUnauthenticated)

	result, err := client.Login(context.Background(), "github", "octocat")
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)

	require.NoError(t, store.SetToken(result.AccessToken))
	subject, err := credential.Subject(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "github:octocat", subject)

	previews, err := client.ListPreviews(context.Background())
	require.NoError(t, err)
	assert.Empty(t, previews)
}

func TestUnauthorizedMapsToCredentialError(t *testing.T) {
	_, ts := newTestBackend(t)

	client := NewClient(ts.URL, staticToken("forged"))
	_, err := client.ListPreviews(context.Background())

	assert.ErrorIs(t, err, credential.ErrUnauthenticated)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Equal(t, "Invalid token", httpErr.Message)
}

func TestGroupsAndBookmarks(t *testing.T) {
	srv, ts := newTestBackend(t)
	ctx := context.Background()
	alice := newUserClient(t, srv, ts, "alice")
	bob := newUserClient(t, srv, ts, "bob")

	team, err := alice.CreateGroup(ctx, data.TeamInput{Title: "Orion", Location: "Lake", Capacity: 2})
	require.NoError(t, err)

	_, err = alice.CreateGroup(ctx, data.TeamInput{Title: "Andromeda"})
	require.NoError(t, err)

	page, err := bob.ListGroups(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = bob.SearchGroups(ctx, "lake", 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Teams, 1)
	assert.Equal(t, team.ID, page.Teams[0].ID)

	_, err = bob.UpdateGroup(ctx, team.ID, data.TeamInput{Title: "taken"})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := alice.UpdateGroup(ctx, team.ID, data.TeamInput{Title: "Orion rising", Capacity: 2})
	require.NoError(t, err)
	assert.Equal(t, "Orion rising", updated.Title)

	joined, err := bob.JoinGroup(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, joined.MemberCount)

	_, err = newUserClient(t, srv, ts, "carol").JoinGroup(ctx, team.ID)
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, bob.AddBookmark(ctx, team.ID))
	bookmarks, err := bob.ListBookmarks(ctx)
	require.NoError(t, err)
	require.Len(t, bookmarks, 1)
	assert.True(t, bookmarks[0].Bookmarked)

	require.NoError(t, bob.RemoveBookmark(ctx, team.ID))
	bookmarks, err = bob.ListBookmarks(ctx)
	require.NoError(t, err)
	assert.Empty(t, bookmarks)

	require.NoError(t, bob.LeaveGroup(ctx, team.ID))
	require.NoError(t, alice.DeleteGroup(ctx, team.ID))

	_, err = alice.GetGroup(ctx, team.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChatHistoryAndPreviews(t *testing.T) {
	srv, ts := newTestBackend(t)
	ctx := context.Background()
	alice := newUserClient(t, srv, ts, "alice")
	bob := newUserClient(t, srv, ts, "bob")

	team, err := alice.CreateGroup(ctx, data.TeamInput{Title: "Orion"})
	require.NoError(t, err)
	_, err = bob.JoinGroup(ctx, team.ID)
	require.NoError(t, err)

	for _, content := range []string{"a", "b", "c", "d", "e"} {
		_, err := alice.SendMessage(ctx, team.ID, content)
		require.NoError(t, err)
	}

	var seen []string
	var before int64
	for {
		page, err := bob.ChatHistory(ctx, team.ID, before, 2)
		require.NoError(t, err)
		for _, m := range page.Messages {
			seen = append(seen, m.Content)
		}
		if !page.HasNext {
			break
		}
		before = page.NextCursor
	}
	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, seen)

	previews, err := bob.ListPreviews(ctx)
	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Equal(t, 5, previews[0].UnreadCount)
	assert.Equal(t, "e", previews[0].RecentMessage)

	require.NoError(t, bob.MarkRead(ctx, team.ID))
	previews, err = bob.ListPreviews(ctx)
	require.NoError(t, err)
	assert.Zero(t, previews[0].UnreadCount)

	_, err = newUserClient(t, srv, ts, "mallory").SendMessage(ctx, team.ID, "spam")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUploadImage(t *testing.T) {
	var sawBearer bool
	srv, _ := newTestBackend(t)
	handler := srv.Handler()

	// Front the backend so the storage PUT can be inspected
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/storage/") && r.Header.Get("Authorization") != "" {
			sawBearer = true
		}
		handler.ServeHTTP(w, r)
	}))
	defer proxy.Close()

	client := newUserClient(t, srv, proxy, "alice")
	fileURL, err := client.UploadImage(context.Background(), "nebula.png", "image/png", strings.NewReader("pixels"))
	require.NoError(t, err)
	assert.False(t, sawBearer)
	assert.True(t, strings.HasPrefix(fileURL, proxy.URL+"/storage/"))

	resp, err := http.Get(fileURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(body))

	_, err = client.UploadImage(context.Background(), "notes.txt", "text/plain", strings.NewReader("x"))
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
}

func TestWithTimeoutKeepsCallerClient(t *testing.T) {
	shared := &http.Client{}

	for _, opts := range [][]Option{
		{WithTimeout(3 * time.Second), WithHTTPClient(shared)},
		{WithHTTPClient(shared), WithTimeout(3 * time.Second)},
	} {
		c := NewClient("http://example.test", staticToken("t"), opts...)
		assert.Equal(t, 3*time.Second, c.httpClient.Timeout)
	}
	assert.Zero(t, shared.Timeout)

	c := NewClient("http://example.test", staticToken("t"), WithHTTPClient(shared))
	assert.Same(t, shared, c.httpClient)
}
