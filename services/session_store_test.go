package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleanup-game-system/models"
)

func TestCreateSessionCodes(t *testing.T) {
	st := NewSessionStore()

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		view := st.Create("host")
		assert.Len(t, view.ID, 6)
		assert.False(t, seen[view.ID], "codes must be unique among live sessions")
		seen[view.ID] = true
		assert.Equal(t, models.PhaseLobby, view.Phase)
		assert.Empty(t, view.Users)
	}
	assert.Len(t, st.List(), 50)
}

func TestCreatedEmptySessionPersists(t *testing.T) {
	st := NewSessionStore()
	view := st.Create("host")

	// A leave for a participant that never joined must not tear down the
	// fresh lobby.
	st.Leave(view.ID, "ghost")
	_, ok := st.Get(view.ID)
	assert.True(t, ok)
}

func TestJoinMergesExistingParticipant(t *testing.T) {
	st := NewSessionStore()
	view := st.Create("host")

	_, err := st.Join(view.ID, "u1", "Alice", "tok-1", "drive")
	require.NoError(t, err)

	ready := true
	_, err = st.SetStatus(view.ID, "u1", models.StatusPatch{Ready: &ready})
	require.NoError(t, err)

	// Rejoin with a new name and token: identity merges, status survives.
	got, err := st.Join(view.ID, "u1", "Alicia", "tok-2", "")
	require.NoError(t, err)
	require.Len(t, got.Users, 1)
	assert.Equal(t, "Alicia", got.Users[0].DisplayName)
	assert.Equal(t, "tok-2", got.Users[0].AccessToken)
	assert.Equal(t, "drive", got.Users[0].Provider, "empty provider keeps the previous one")
	assert.True(t, got.Users[0].Status.Ready)
}

func TestJoinUnknownSession(t *testing.T) {
	st := NewSessionStore()
	_, err := st.Join("NOPE42", "u1", "Alice", "", "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLeaveRemovesEmptySession(t *testing.T) {
	st := NewSessionStore()
	view := st.Create("host")

	_, err := st.Join(view.ID, "u1", "Alice", "", "")
	require.NoError(t, err)
	_, err = st.Join(view.ID, "u2", "Bob", "", "")
	require.NoError(t, err)

	assert.False(t, st.Leave(view.ID, "u1"))
	_, ok := st.Get(view.ID)
	assert.True(t, ok)

	assert.True(t, st.Leave(view.ID, "u2"))
	_, ok = st.Get(view.ID)
	assert.False(t, ok, "last leave removes the session")

	// Idempotent afterwards.
	assert.False(t, st.Leave(view.ID, "u2"))
}

func TestPhaseOnlyMovesForward(t *testing.T) {
	st := NewSessionStore()
	view := st.Create("host")

	got, err := st.Begin(view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseStarted, got.Phase)

	_, err = st.Begin(view.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "starting twice is a caller error")

	final, ok := st.End(view.ID)
	require.True(t, ok)
	assert.Equal(t, models.PhaseEnded, final.Phase)
	require.NotNil(t, final.EndedAt)

	// Ended sessions are gone from the live store.
	_, ok = st.Get(view.ID)
	assert.False(t, ok)
	_, err = st.Begin(view.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestEndUnknownSessionIsNoop(t *testing.T) {
	st := NewSessionStore()
	_, ok := st.End("NOPE42")
	assert.False(t, ok)
}

func TestJoinAllowedAfterStart(t *testing.T) {
	st := NewSessionStore()
	view := st.Create("host")
	_, err := st.Join(view.ID, "u1", "Alice", "", "")
	require.NoError(t, err)
	_, err = st.Begin(view.ID)
	require.NoError(t, err)

	// Reconnects keep working mid-game.
	got, err := st.Join(view.ID, "u2", "Bob", "", "")
	require.NoError(t, err)
	assert.Len(t, got.Users, 2)
}

func TestSetStatusMergesFieldByField(t *testing.T) {
	st := NewSessionStore()
	view := st.Create("host")
	_, err := st.Join(view.ID, "u1", "Alice", "", "")
	require.NoError(t, err)

	mode := "quick"
	pct := 40
	_, err = st.SetStatus(view.ID, "u1", models.StatusPatch{SelectionMode: &mode, LoadPercent: &pct})
	require.NoError(t, err)

	count := 120
	ready := true
	got, err := st.SetStatus(view.ID, "u1", models.StatusPatch{FileCount: &count, Ready: &ready})
	require.NoError(t, err)

	status := got.Users[0].Status
	assert.Equal(t, "quick", status.SelectionMode, "earlier fields survive later patches")
	assert.Equal(t, 40, status.LoadPercent)
	assert.Equal(t, 120, status.FileCount)
	assert.True(t, status.Ready)

	_, err = st.SetStatus(view.ID, "ghost", models.StatusPatch{Ready: &ready})
	assert.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestAllReady(t *testing.T) {
	st := NewSessionStore()
	view := st.Create("host")

	assert.False(t, st.AllReady(view.ID), "empty session is never all-ready")

	_, err := st.Join(view.ID, "u1", "Alice", "", "")
	require.NoError(t, err)
	_, err = st.Join(view.ID, "u2", "Bob", "", "")
	require.NoError(t, err)

	ready := true
	_, err = st.SetStatus(view.ID, "u1", models.StatusPatch{Ready: &ready})
	require.NoError(t, err)
	assert.False(t, st.AllReady(view.ID))

	_, err = st.SetStatus(view.ID, "u2", models.StatusPatch{Ready: &ready})
	require.NoError(t, err)
	assert.True(t, st.AllReady(view.ID))
}

func TestListSummaries(t *testing.T) {
	st := NewSessionStore()
	a := st.Create("host")
	b := st.Create("host")
	_, err := st.Join(a.ID, "u1", "Alice", "", "")
	require.NoError(t, err)

	list := st.List()
	require.Len(t, list, 2)
	counts := map[string]int{}
	for _, s := range list {
		counts[s.ID] = s.Users
	}
	assert.Equal(t, 1, counts[a.ID])
	assert.Equal(t, 0, counts[b.ID])
}

func TestViewIsACopy(t *testing.T) {
	st := NewSessionStore()
	view := st.Create("host")
	_, err := st.Join(view.ID, "u1", "Alice", "", "")
	require.NoError(t, err)

	got, _ := st.Get(view.ID)
	got.Users[0].DisplayName = "Mallory"

	fresh, _ := st.Get(view.ID)
	assert.Equal(t, "Alice", fresh.Users[0].DisplayName)
}
