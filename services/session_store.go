package services

import (
	"crypto/rand"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"cleanup-game-system/models"
)

// SessionStore owns every live session and is the only writer of phase and
// participant membership. All state is process-memory; nothing survives a
// restart.
//
// Locking: the registry map is guarded by an RWMutex, each session by its
// own mutex. Unrelated sessions never contend with each other.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	mu sync.Mutex
	s  *models.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*sessionEntry)}
}

// Create allocates a session with a fresh unique code in the lobby phase.
// A created-but-empty session stays registered until the host ends it or
// the first join arrives.
func (st *SessionStore) Create(hostRef string) models.SessionView {
	st.mu.Lock()
	defer st.mu.Unlock()

	var code string
	for {
		code = generateCode()
		if _, taken := st.sessions[code]; !taken {
			break
		}
	}

	now := time.Now()
	s := &models.Session{
		ID:           code,
		HostRef:      hostRef,
		Phase:        models.PhaseLobby,
		CreatedAt:    now,
		LastActiveAt: now,
		Participants: make(map[string]*models.Participant),
	}
	st.sessions[code] = &sessionEntry{s: s}
	return viewOf(s)
}

// Begin moves a session from lobby to started. Calling it on an already
// started or ended session is a caller error (ErrInvalidTransition); the
// phase never regresses.
func (st *SessionStore) Begin(sessionID string) (models.SessionView, error) {
	e, ok := st.entry(sessionID)
	if !ok {
		return models.SessionView{}, ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.s.Phase != models.PhaseLobby {
		return models.SessionView{}, ErrInvalidTransition
	}
	e.s.Phase = models.PhaseStarted
	e.s.LastActiveAt = time.Now()
	return viewOf(e.s), nil
}

// Join adds a participant or merges into an existing record with the same
// id: display name, token and provider are overwritten, everything else is
// preserved. Joins are allowed in any phase so reconnects keep working
// after the game has started.
func (st *SessionStore) Join(sessionID, userID, displayName, accessToken, provider string) (models.SessionView, error) {
	e, ok := st.entry(sessionID)
	if !ok {
		return models.SessionView{}, ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	if p, exists := e.s.Participants[userID]; exists {
		p.DisplayName = displayName
		p.AccessToken = accessToken
		if provider != "" {
			p.Provider = provider
		}
	} else {
		e.s.Participants[userID] = &models.Participant{
			ID:          userID,
			DisplayName: displayName,
			AccessToken: accessToken,
			Provider:    provider,
			JoinedAt:    now,
		}
	}
	e.s.LastActiveAt = now
	return viewOf(e.s), nil
}

// Leave removes a participant; removing the last one removes the session
// itself. Idempotent: absent sessions or participants are a no-op, and an
// absent participant never tears down a still-empty lobby.
func (st *SessionStore) Leave(sessionID, userID string) (removedSession bool) {
	e, ok := st.entry(sessionID)
	if !ok {
		return false
	}
	e.mu.Lock()
	if _, exists := e.s.Participants[userID]; !exists {
		e.mu.Unlock()
		return false
	}
	delete(e.s.Participants, userID)
	empty := len(e.s.Participants) == 0
	e.mu.Unlock()

	if empty {
		st.mu.Lock()
		delete(st.sessions, sessionID)
		st.mu.Unlock()
	}
	return empty
}

// End stamps the session ended and drops it from the live store. Returns
// the final view; idempotent no-op for unknown sessions.
func (st *SessionStore) End(sessionID string) (models.SessionView, bool) {
	st.mu.Lock()
	e, ok := st.sessions[sessionID]
	if ok {
		delete(st.sessions, sessionID)
	}
	st.mu.Unlock()
	if !ok {
		return models.SessionView{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	e.s.EndedAt = &now
	e.s.Phase = models.PhaseEnded
	return viewOf(e.s), true
}

// SetStatus merges the supplied status fields into the participant record,
// field by field.
func (st *SessionStore) SetStatus(sessionID, userID string, patch models.StatusPatch) (models.SessionView, error) {
	e, ok := st.entry(sessionID)
	if !ok {
		return models.SessionView{}, ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	p, exists := e.s.Participants[userID]
	if !exists {
		return models.SessionView{}, ErrParticipantNotFound
	}
	if patch.SelectionMode != nil {
		p.Status.SelectionMode = *patch.SelectionMode
	}
	if patch.LoadPercent != nil {
		p.Status.LoadPercent = *patch.LoadPercent
	}
	if patch.FileCount != nil {
		p.Status.FileCount = *patch.FileCount
	}
	if patch.Ready != nil {
		p.Status.Ready = *patch.Ready
	}
	e.s.LastActiveAt = time.Now()
	return viewOf(e.s), nil
}

// Get returns a copied view of the session.
func (st *SessionStore) Get(sessionID string) (models.SessionView, bool) {
	e, ok := st.entry(sessionID)
	if !ok {
		return models.SessionView{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return viewOf(e.s), true
}

// List returns {id, player count} for every live session.
func (st *SessionStore) List() []models.SessionSummary {
	st.mu.RLock()
	entries := make([]*sessionEntry, 0, len(st.sessions))
	for _, e := range st.sessions {
		entries = append(entries, e)
	}
	st.mu.RUnlock()

	out := make([]models.SessionSummary, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, models.SessionSummary{ID: e.s.ID, Users: len(e.s.Participants)})
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllReady reports whether every participant has flagged ready. False for
// empty sessions.
func (st *SessionStore) AllReady(sessionID string) bool {
	e, ok := st.entry(sessionID)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return allReady(e.s)
}

// Touch refreshes the idle timestamp (called on scored actions).
func (st *SessionStore) Touch(sessionID string) {
	e, ok := st.entry(sessionID)
	if !ok {
		return
	}
	e.mu.Lock()
	e.s.LastActiveAt = time.Now()
	e.mu.Unlock()
}

// IdleSince returns the ids of sessions without activity since the cutoff.
// Used by the sweeper.
func (st *SessionStore) IdleSince(cutoff time.Time) []string {
	st.mu.RLock()
	entries := make([]*sessionEntry, 0, len(st.sessions))
	for _, e := range st.sessions {
		entries = append(entries, e)
	}
	st.mu.RUnlock()

	var ids []string
	for _, e := range entries {
		e.mu.Lock()
		if e.s.LastActiveAt.Before(cutoff) {
			ids = append(ids, e.s.ID)
		}
		e.mu.Unlock()
	}
	return ids
}

func (st *SessionStore) entry(sessionID string) (*sessionEntry, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	e, ok := st.sessions[sessionID]
	return e, ok
}

func allReady(s *models.Session) bool {
	if len(s.Participants) == 0 {
		return false
	}
	for _, p := range s.Participants {
		if !p.Status.Ready {
			return false
		}
	}
	return true
}

// viewOf deep-copies the session into a read-only view. Participants are
// sorted by join time so presence lists are stable across broadcasts.
func viewOf(s *models.Session) models.SessionView {
	users := make([]models.Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		users = append(users, *p)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].JoinedAt.Equal(users[j].JoinedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].JoinedAt.Before(users[j].JoinedAt)
	})
	return models.SessionView{
		ID:        s.ID,
		Phase:     s.Phase,
		CreatedAt: s.CreatedAt,
		EndedAt:   s.EndedAt,
		Users:     users,
		AllReady:  allReady(s),
	}
}

// generateCode returns a 6-char hex code, short enough to read off a
// screen.
func generateCode() string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// fall back to a timestamp-derived code rather than panicking.
		return strings.ToUpper(hex.EncodeToString([]byte(time.Now().Format("150405")))[:6])
	}
	return strings.ToUpper(hex.EncodeToString(b))
}
