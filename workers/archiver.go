package workers

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"cleanup-game-system/models"
)

// ArchiveWorker drains finished sessions into Postgres in the background,
// so ending a game never waits on the database. The live game never reads
// these rows back.
type ArchiveWorker struct {
	DB    *gorm.DB
	queue chan models.SessionArchive
}

func NewArchiveWorker(db *gorm.DB) *ArchiveWorker {
	return &ArchiveWorker{
		DB:    db,
		queue: make(chan models.SessionArchive, 64),
	}
}

// Enqueue flattens the final view + snapshot into archive rows and hands
// them to the worker. Non-blocking: when the queue is full the record is
// dropped with a log line rather than stalling the coordinator.
func (w *ArchiveWorker) Enqueue(final models.SessionView, snap models.StatsSnapshot) {
	rec := buildArchive(final, snap)
	select {
	case w.queue <- rec:
	default:
		log.Printf("[Archiver] queue full, dropping archive for session %s", final.ID)
	}
}

// Start runs the drain loop until the context is cancelled.
func (w *ArchiveWorker) Start(ctx context.Context) {
	log.Println("Starting Session Archive Worker...")
	for {
		select {
		case rec := <-w.queue:
			if err := w.persist(ctx, rec); err != nil {
				log.Printf("[Archiver] Failed to archive session %s: %v", rec.Code, err)
			} else {
				log.Printf("✅ Archived session %s (%d players, %d items)", rec.Code, rec.Players, rec.TotalItems)
			}
		case <-ctx.Done():
			log.Println("Session Archive Worker stopped")
			return
		}
	}
}

func (w *ArchiveWorker) persist(ctx context.Context, rec models.SessionArchive) error {
	if err := w.DB.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to insert session archive: %w", err)
	}
	return nil
}

func buildArchive(final models.SessionView, snap models.StatsSnapshot) models.SessionArchive {
	endedAt := final.CreatedAt
	if final.EndedAt != nil {
		endedAt = *final.EndedAt
	}

	rec := models.SessionArchive{
		ID:           uuid.NewString(),
		Code:         final.ID,
		Slug:         slug.Make(fmt.Sprintf("%s %s", final.ID, endedAt.Format("2006-01-02"))),
		StartedAt:    final.CreatedAt,
		EndedAt:      endedAt,
		DurationSecs: int64(endedAt.Sub(final.CreatedAt).Seconds()),
		Players:      len(final.Users),
		TotalBytes:   snap.TotalBytes,
		TotalItems:   snap.TotalItems,
		TotalCO2Kg:   snap.TotalCO2Kg,
	}
	for i, row := range snap.Leaderboard {
		rec.Standings = append(rec.Standings, models.FinalStanding{
			ID:          uuid.NewString(),
			ArchiveID:   rec.ID,
			Rank:        i + 1,
			UserID:      row.UserID,
			DisplayName: row.DisplayName,
			Bytes:       row.Bytes,
			Items:       row.Items,
			LargestName: row.LargestName,
			LargestSize: row.LargestSize,
		})
	}
	return rec
}
