package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSessionIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()

	s1, err := s.CreateSession(ctx, "sess-1", "user-1", "Ada", now)
	require.NoError(t, err)
	s2, err := s.CreateSession(ctx, "sess-1", "user-1", "Ada", now)
	require.NoError(t, err)
	assert.Equal(t, s1.ID, s2.ID)
}

func TestLoadSessionMissingReturnsErrNotFound(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	_, err := s.LoadSession(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaveSessionStampsUpdatedAt(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	sess, err := s.CreateSession(ctx, "sess-1", "user-1", "Ada", time.Now())
	require.NoError(t, err)

	sess.ActiveWorkflow = "booking"
	saved, err := s.SaveSession(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "booking", saved.ActiveWorkflow)
	assert.False(t, saved.UpdatedAt.IsZero())

	loaded, err := s.LoadSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "booking", loaded.ActiveWorkflow)
}

func TestDeleteSessionReportsExisted(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	_, err := s.CreateSession(ctx, "sess-1", "user-1", "Ada", time.Now())
	require.NoError(t, err)

	existed, err := s.DeleteSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.DeleteSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestCleanupRemovesStaleSessions(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)
	_, err := s.CreateSession(ctx, "stale", "user-1", "Ada", old)
	require.NoError(t, err)

	// SaveSession always stamps UpdatedAt to now, so reach into the
	// store directly to simulate a session untouched since "old".
	s.mu.Lock()
	stale := s.sessions["stale"]
	stale.UpdatedAt = old
	s.sessions["stale"] = stale
	s.mu.Unlock()

	_, err = s.CreateSession(ctx, "fresh", "user-1", "Ada", time.Now())
	require.NoError(t, err)

	removed, err := s.Cleanup(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.LoadSession(ctx, "stale")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.LoadSession(ctx, "fresh")
	assert.NoError(t, err)
}

func TestCountReflectsActiveSessions(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = s.CreateSession(ctx, "sess-1", "user-1", "Ada", time.Now())
	require.NoError(t, err)
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecentWorkflowsIsMRUDeduplicatedAndCapped(t *testing.T) {
	t.Parallel()

	var gc GlobalContext
	for i := 0; i < 12; i++ {
		gc.AddRecentWorkflow("workflow-0")
	}
	gc.AddRecentWorkflow("workflow-1")
	gc.AddRecentWorkflow("workflow-2")
	gc.AddRecentWorkflow("workflow-0")

	require.LessOrEqual(t, len(gc.RecentWorkflows), 10)
	assert.Equal(t, "workflow-0", gc.RecentWorkflows[0])
	seen := map[string]int{}
	for _, id := range gc.RecentWorkflows {
		seen[id]++
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "workflow %s should appear once", id)
	}
}
