package console

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_OpenGetClose(t *testing.T) {
	m := NewManager(newDeps(t, defaultStore()))

	s, done := m.Open(context.Background())
	<-done
	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Close(s.ID()))
	_, err = m.Get(s.ID())
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.ErrorIs(t, m.Close(s.ID()), ErrSessionNotFound)
	assert.False(t, s.State().Open)
}

func TestManager_SweepClosesIdleSessions(t *testing.T) {
	now := fixedNow
	deps := newDeps(t, defaultStore())
	deps.Now = func() time.Time { return now }
	m := NewManager(deps)

	idle, done := m.Open(context.Background())
	<-done
	now = now.Add(20 * time.Minute)
	active, done := m.Open(context.Background())
	<-done

	assert.Equal(t, 1, m.Sweep(15*time.Minute))
	_, err := m.Get(idle.ID())
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Get(active.ID())
	require.NoError(t, err)
}
