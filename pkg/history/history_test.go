package history_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/subsearch/internal/models"
	"github.com/xhad/subsearch/pkg/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.Open(filepath.Join(t.TempDir(), "data", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessions(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	alice, created, err := s.GetOrCreateSession(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, created)
	_, err = uuid.Parse(alice.ID)
	assert.NoError(t, err)

	again, created, err := s.GetOrCreateSession(ctx, " alice ")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, alice.ID, again.ID)

	_, _, err = s.GetOrCreateSession(ctx, "bob")
	require.NoError(t, err)

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "alice", sessions[0].Name)
	assert.Equal(t, "bob", sessions[1].Name)

	_, _, err = s.GetOrCreateSession(ctx, "")
	assert.ErrorIs(t, err, history.ErrEmptyName)
}

func TestSaveAndLoadTurns(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Save(ctx, models.ChatTurn{
			SessionID: "s1",
			Query:     fmt.Sprintf("q%d", i),
			Response:  fmt.Sprintf("r%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.Save(ctx, models.ChatTurn{SessionID: "s2", Query: "other"}))

	all, err := s.Load(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "q0", all[0].Query)
	assert.Equal(t, "r3", all[3].Response)
	assert.True(t, all[1].CreatedAt.Equal(base.Add(time.Minute)))

	recent, err := s.Load(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "q2", recent[0].Query)
	assert.Equal(t, "q3", recent[1].Query)

	none, err := s.Load(ctx, "missing", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}
