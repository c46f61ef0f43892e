package models

import (
	"time"
)

// Phase is the session lifecycle state. It only moves forward:
// lobby -> started -> ended.
type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhaseStarted Phase = "started"
	PhaseEnded   Phase = "ended"
)

// Participant is one player inside a session. Identity is stable across
// reconnects: re-joining with the same id merges into the existing record.
type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	AccessToken string    `json:"-"` // delegated provider token, never serialized
	Provider    string    `json:"provider,omitempty"`
	JoinedAt    time.Time `json:"joinedAt"`

	Status ParticipantStatus `json:"status"`
}

// ParticipantStatus carries the lobby readiness fields reported by the
// client while it scans the player's drive.
type ParticipantStatus struct {
	SelectionMode string `json:"selectionMode,omitempty"`
	LoadPercent   int    `json:"loadPercent"`
	FileCount     int    `json:"fileCount"`
	Ready         bool   `json:"ready"`
}

// StatusPatch is a partial update to ParticipantStatus. Only non-nil
// fields are applied, field by field.
type StatusPatch struct {
	SelectionMode *string `json:"selectionMode"`
	LoadPercent   *int    `json:"loadPercent"`
	FileCount     *int    `json:"fileCount"`
	Ready         *bool   `json:"ready"`
}

// Session is one live game instance, identified by a short shareable code.
type Session struct {
	ID           string     `json:"id"`
	HostRef      string     `json:"-"`
	Phase        Phase      `json:"phase"`
	CreatedAt    time.Time  `json:"createdAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
	LastActiveAt time.Time  `json:"-"`

	Participants map[string]*Participant `json:"-"`
}

// SessionView is a copied, read-only projection of a Session handed out by
// the store. Mutating a view never touches store state.
type SessionView struct {
	ID        string        `json:"id"`
	Phase     Phase         `json:"phase"`
	CreatedAt time.Time     `json:"createdAt"`
	EndedAt   *time.Time    `json:"endedAt,omitempty"`
	Users     []Participant `json:"users"`
	AllReady  bool          `json:"allReady"`
}

// User returns the participant with the given id from the view, if present.
func (v SessionView) User(id string) (Participant, bool) {
	for _, u := range v.Users {
		if u.ID == id {
			return u, true
		}
	}
	return Participant{}, false
}

// SessionSummary is the list() row: code plus player count.
type SessionSummary struct {
	ID    string `json:"id"`
	Users int    `json:"users"`
}

// Presence is the room-wide participant/readiness/phase payload.
type Presence struct {
	SessionID string          `json:"sessionId"`
	Phase     Phase           `json:"phase"`
	AllReady  bool            `json:"allReady"`
	Users     []PresenceEntry `json:"users"`
}

// PresenceEntry is one participant row inside a Presence payload.
type PresenceEntry struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"displayName"`
	Status      ParticipantStatus `json:"status"`
}
