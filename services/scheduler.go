// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartSweepScheduler ends sessions nobody has touched within ttl, going
// through the broadcaster so rooms still get a proper session:ended and
// the stats/archive path runs.
func StartSweepScheduler(hub *Broadcaster, store *SessionStore, ttl time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			cutoff := time.Now().Add(-ttl)
			for _, id := range store.IdleSince(cutoff) {
				log.Printf("[Sweeper] Ending idle session %s (no activity for %s)", id, ttl)
				hub.OnSessionEnd(id)
			}
		}),
	)
}
