package models

import (
	"time"
)

// ParticipantStats holds the cumulative per-player counters for one
// session. Owned exclusively by the stats engine; the engine copies the
// display name in by value and never reaches into session store state.
type ParticipantStats struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`

	Items       int64  `json:"items"`
	Bytes       int64  `json:"bytes"`
	LargestName string `json:"largestName,omitempty"`
	LargestSize int64  `json:"largestSize"`

	LastAt  time.Time   `json:"-"`
	Streak  int         `json:"streak"`
	Actions []time.Time `json:"-"` // trailing window, entries older than 60s are evicted

	// Fire-once milestone flags, keyed by threshold value.
	HitBytes map[int64]bool `json:"-"`
	HitItems map[int64]bool `json:"-"`
}

// LeaderRow is one leaderboard line of a snapshot.
type LeaderRow struct {
	UserID      string  `json:"userId"`
	DisplayName string  `json:"displayName"`
	Items       int64   `json:"items"`
	Bytes       int64   `json:"bytes"`
	LargestName string  `json:"largestName,omitempty"`
	LargestSize int64   `json:"largestSize"`
	Streak      int     `json:"streak"`
	RatePerMin  int     `json:"ratePerMin"` // actions in the trailing 60s
	CO2Kg       float64 `json:"co2kg"`
}

// StatsSnapshot is the derived, never-stored leaderboard plus session
// totals, recomputed on demand.
type StatsSnapshot struct {
	SessionID   string      `json:"sessionId"`
	Leaderboard []LeaderRow `json:"leaderboard"` // sorted by bytes desc
	TotalBytes  int64       `json:"totalBytes"`
	TotalItems  int64       `json:"totalItems"`
	TotalCO2Kg  float64     `json:"totalCo2kg"`
}

// Event type families produced by a scored action.
const (
	EventTick           = "tick"
	EventFirstBlood     = "first-blood"
	EventStreak         = "streak"
	EventChonk          = "chonk"
	EventMilestoneBytes = "milestone-bytes"
	EventMilestoneItems = "milestone-items"
)

// EventBigFile is the kind label carried by chonk-family callouts on the
// wire; the family name stays EventChonk.
const EventBigFile = "bigfile"

// Event is a transient, fire-and-forget notification about a notable
// per-action occurrence. Kind carries the specific label (e.g. "streak:5"),
// Type the family. Events are never persisted or replayed.
type Event struct {
	Kind        string         `json:"kind"`
	Type        string         `json:"type"`
	UserID      string         `json:"userId"`
	DisplayName string         `json:"displayName"`
	Payload     map[string]any `json:"payload,omitempty"`
}
