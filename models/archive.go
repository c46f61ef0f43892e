package models

import (
	"time"
)

// SessionArchive is the flattened record of a finished session, written to
// Postgres by the archive worker. The live game never reads these back;
// the in-memory store stays the single authority for running sessions.
type SessionArchive struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid"`
	Code         string    `json:"code" gorm:"index;not null"`
	Slug         string    `json:"slug" gorm:"index"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	DurationSecs int64     `json:"duration_secs"`
	Players      int       `json:"players"`
	TotalBytes   int64     `json:"total_bytes"`
	TotalItems   int64     `json:"total_items"`
	TotalCO2Kg   float64   `json:"total_co2_kg"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`

	Standings []FinalStanding `json:"standings,omitempty" gorm:"foreignKey:ArchiveID"`
}

// FinalStanding is one leaderboard row of an archived session.
type FinalStanding struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid"`
	ArchiveID   string `json:"archive_id" gorm:"not null;index"`
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id" gorm:"index"`
	DisplayName string `json:"display_name"`
	Bytes       int64  `json:"bytes"`
	Items       int64  `json:"items"`
	LargestName string `json:"largest_name"`
	LargestSize int64  `json:"largest_size"`
}
