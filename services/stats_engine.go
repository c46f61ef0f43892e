package services

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"cleanup-game-system/models"
)

const (
	streakWindow = 8 * time.Second
	rateWindow   = 60 * time.Second

	// Oversized-file callout. Binary megabytes, unlike the decimal byte
	// milestones below; the asymmetry matches the original scoring.
	chonkThreshold = 50 * 1024 * 1024

	megabyte   = 1_000_000
	co2KgPerGB = 0.2 // playful assumption: 0.2 kg CO2 per GB of long-term storage
)

var (
	byteMilestonesMB = []int64{100, 500, 1000, 5000}
	itemMilestones   = []int64{10, 25, 50, 100, 200}
	streakMilestones = map[int]bool{3: true, 5: true, 8: true, 10: true}
)

// StatsEngine owns the per-session, per-participant counters and derives
// snapshots plus one-shot events from them. It is the only writer of the
// cumulative counters; sessions are fully independent buckets.
type StatsEngine struct {
	clock clockwork.Clock

	mu        sync.RWMutex
	bySession map[string]*sessionStats
}

type sessionStats struct {
	mu    sync.Mutex
	byID  map[string]*models.ParticipantStats
	order []string // insertion order, keeps snapshot tie-breaks deterministic
}

func NewStatsEngine() *StatsEngine {
	return NewStatsEngineWithClock(clockwork.NewRealClock())
}

func NewStatsEngineWithClock(clock clockwork.Clock) *StatsEngine {
	return &StatsEngine{
		clock:     clock,
		bySession: make(map[string]*sessionStats),
	}
}

// ApplyDeletion records one scored delete and returns the events it
// produced, tick first. The display name is passed by value, resolved by
// the caller from the session store.
//
// The call either applies fully or not at all: the size is validated
// before any counter moves.
func (en *StatsEngine) ApplyDeletion(sessionID, userID, displayName, itemName string, size int64) ([]models.Event, error) {
	if size < 0 {
		return nil, ErrInvalidSize
	}

	bucket := en.bucket(sessionID)
	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	s := bucket.participant(userID, displayName)
	now := en.clock.Now()

	s.Items++
	s.Bytes += size

	// Strictly-greater replacement: ties keep the earlier item. The first
	// action always records, even for a zero-byte file.
	if size > s.LargestSize || s.Items == 1 {
		s.LargestSize = size
		s.LargestName = itemName
	}

	if !s.LastAt.IsZero() && now.Sub(s.LastAt) <= streakWindow {
		s.Streak++
	} else {
		s.Streak = 1
	}
	s.LastAt = now

	s.Actions = append(s.Actions, now)
	s.Actions = trimWindow(s.Actions, now.Add(-rateWindow))

	events := []models.Event{{
		Kind:        models.EventTick,
		Type:        models.EventTick,
		UserID:      userID,
		DisplayName: s.DisplayName,
		Payload:     map[string]any{"itemName": itemName, "size": size},
	}}

	if s.Items == 1 {
		events = append(events, models.Event{
			Kind:        models.EventFirstBlood,
			Type:        models.EventFirstBlood,
			UserID:      userID,
			DisplayName: s.DisplayName,
			Payload:     map[string]any{"itemName": itemName, "size": size},
		})
	}

	if streakMilestones[s.Streak] {
		events = append(events, models.Event{
			Kind:        fmt.Sprintf("streak:%d", s.Streak),
			Type:        models.EventStreak,
			UserID:      userID,
			DisplayName: s.DisplayName,
			Payload:     map[string]any{"streak": s.Streak},
		})
	}

	if size >= chonkThreshold {
		events = append(events, models.Event{
			Kind:        models.EventBigFile,
			Type:        models.EventChonk,
			UserID:      userID,
			DisplayName: s.DisplayName,
			Payload:     map[string]any{"itemName": itemName, "size": size},
		})
	}

	for _, mb := range byteMilestonesMB {
		if s.Bytes >= mb*megabyte && !s.HitBytes[mb] {
			s.HitBytes[mb] = true
			events = append(events, models.Event{
				Kind:        fmt.Sprintf("milestone:%dMB", mb),
				Type:        models.EventMilestoneBytes,
				UserID:      userID,
				DisplayName: s.DisplayName,
				Payload:     map[string]any{"totalMB": int64(math.Round(float64(s.Bytes) / megabyte))},
			})
		}
	}

	for _, n := range itemMilestones {
		if s.Items >= n && !s.HitItems[n] {
			s.HitItems[n] = true
			events = append(events, models.Event{
				Kind:        fmt.Sprintf("milestone:items:%d", n),
				Type:        models.EventMilestoneItems,
				UserID:      userID,
				DisplayName: s.DisplayName,
				Payload:     map[string]any{"totalItems": s.Items},
			})
		}
	}

	return events, nil
}

// Snapshot computes the leaderboard and totals for a session. Rows are
// sorted by cumulative bytes descending; equal byte counts keep their
// first-action order.
func (en *StatsEngine) Snapshot(sessionID string) models.StatsSnapshot {
	snap := models.StatsSnapshot{SessionID: sessionID, Leaderboard: []models.LeaderRow{}}

	en.mu.RLock()
	bucket, ok := en.bySession[sessionID]
	en.mu.RUnlock()
	if !ok {
		return snap
	}

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	now := en.clock.Now()
	for _, userID := range bucket.order {
		s := bucket.byID[userID]
		gb := float64(s.Bytes) / 1_000_000_000
		snap.TotalBytes += s.Bytes
		snap.TotalItems += s.Items
		snap.Leaderboard = append(snap.Leaderboard, models.LeaderRow{
			UserID:      s.UserID,
			DisplayName: s.DisplayName,
			Items:       s.Items,
			Bytes:       s.Bytes,
			LargestName: s.LargestName,
			LargestSize: s.LargestSize,
			Streak:      s.Streak,
			RatePerMin:  countSince(s.Actions, now.Add(-rateWindow)),
			CO2Kg:       gb * co2KgPerGB,
		})
	}

	sort.SliceStable(snap.Leaderboard, func(i, j int) bool {
		return snap.Leaderboard[i].Bytes > snap.Leaderboard[j].Bytes
	})
	snap.TotalCO2Kg = float64(snap.TotalBytes) / 1_000_000_000 * co2KgPerGB
	return snap
}

// Reset discards all stats for a session.
func (en *StatsEngine) Reset(sessionID string) {
	en.mu.Lock()
	delete(en.bySession, sessionID)
	en.mu.Unlock()
}

func (en *StatsEngine) bucket(sessionID string) *sessionStats {
	en.mu.Lock()
	defer en.mu.Unlock()
	b, ok := en.bySession[sessionID]
	if !ok {
		b = &sessionStats{byID: make(map[string]*models.ParticipantStats)}
		en.bySession[sessionID] = b
	}
	return b
}

// participant lazily creates the stats record; a fresh display name from
// the caller reconciles renames. Caller holds the bucket lock.
func (b *sessionStats) participant(userID, displayName string) *models.ParticipantStats {
	s, ok := b.byID[userID]
	if !ok {
		s = &models.ParticipantStats{
			UserID:      userID,
			DisplayName: displayName,
			HitBytes:    make(map[int64]bool),
			HitItems:    make(map[int64]bool),
		}
		b.byID[userID] = s
		b.order = append(b.order, userID)
	} else if displayName != "" && s.DisplayName != displayName {
		s.DisplayName = displayName
	}
	return s
}

// trimWindow drops timestamps older than the cutoff, keeping the slice
// bounded. Entries are appended in order, so one scan from the front is
// enough.
func trimWindow(actions []time.Time, cutoff time.Time) []time.Time {
	keep := 0
	for keep < len(actions) && actions[keep].Before(cutoff) {
		keep++
	}
	if keep == 0 {
		return actions
	}
	return append(actions[:0], actions[keep:]...)
}

func countSince(actions []time.Time, cutoff time.Time) int {
	n := 0
	for _, t := range actions {
		if !t.Before(cutoff) {
			n++
		}
	}
	return n
}
