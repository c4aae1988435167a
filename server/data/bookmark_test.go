package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookmarkModel(t *testing.T) {
	m := createTestModels(t)
	perseids := createTestTeam(t, m, "alice", "Perseids", 0)
	eclipse := createTestTeam(t, m, "alice", "Eclipse", 0)

	require.NoError(t, m.Bookmarks.Add("bob", perseids.ID))
	require.NoError(t, m.Bookmarks.Add("bob", perseids.ID))
	require.NoError(t, m.Bookmarks.Add("bob", eclipse.ID))

	teams, err := m.Bookmarks.List("bob")
	require.NoError(t, err)
	require.Len(t, teams, 2)
	for _, team := range teams {
		assert.True(t, team.Bookmarked)
	}

	got, err := m.Teams.Get(perseids.ID, "bob")
	require.NoError(t, err)
	assert.True(t, got.Bookmarked)

	got, err = m.Teams.Get(perseids.ID, "alice")
	require.NoError(t, err)
	assert.False(t, got.Bookmarked)

	require.NoError(t, m.Bookmarks.Remove("bob", perseids.ID))
	require.NoError(t, m.Bookmarks.Remove("bob", perseids.ID))

	teams, err = m.Bookmarks.List("bob")
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, eclipse.ID, teams[0].ID)

	assert.ErrorIs(t, m.Bookmarks.Add("bob", "missing"), ErrTeamNotFound)
}
