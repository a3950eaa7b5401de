// workers/janitor.go
package workers

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	"crc-submission-proxy/middleware"
	"crc-submission-proxy/services"

	"github.com/go-co-op/gocron/v2"
)

// Janitor runs the background housekeeping jobs: sweeping expired rate-limit
// windows out of the in-memory store and posting a daily digest of the pending
// review queue.
type Janitor struct {
	sched    gocron.Scheduler
	limiter  *middleware.MemoryStore // nil when the Redis store is in use
	store    *services.StoreClient
	notifier *services.Notifier
}

func NewJanitor(limiter *middleware.MemoryStore, store *services.StoreClient, notifier *services.Notifier) *Janitor {
	return &Janitor{limiter: limiter, store: store, notifier: notifier}
}

func (j *Janitor) Start() {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("⚠️ [JANITOR] scheduler init failed: %v", err)
		return
	}
	j.sched = sched

	if j.limiter != nil {
		_, _ = sched.NewJob(
			gocron.DurationJob(1*time.Minute),
			gocron.NewTask(func() {
				if removed := j.limiter.Sweep(); removed > 0 {
					log.Printf("🧹 [JANITOR] swept %d expired rate-limit windows", removed)
				}
			}),
		)
	}

	_, _ = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(j.sendPendingDigest),
	)

	sched.Start()
}

func (j *Janitor) Stop() {
	if j.sched != nil {
		_ = j.sched.Shutdown()
	}
}

// sendPendingDigest posts how much is waiting for review in each queue.
func (j *Janitor) sendPendingDigest() {
	runs := j.pendingCount("pending_runs")
	games := j.pendingCount("pending_games")
	profiles := j.pendingCount("pending_profiles")
	if runs+games+profiles == 0 {
		return
	}

	j.notifier.Dispatch("runs", services.Embed{
		Title: "📋 Pending Review Queue",
		Color: services.ColorNeutral,
		Fields: []services.EmbedField{
			{Name: "Runs", Value: strconv.Itoa(runs), Inline: true},
			{Name: "Games", Value: strconv.Itoa(games), Inline: true},
			{Name: "Profiles", Value: strconv.Itoa(profiles), Inline: true},
		},
	})
}

func (j *Janitor) pendingCount(table string) int {
	result := j.store.Select(table, map[string]string{"status": "eq.pending"}, "id")
	if !result.OK {
		return 0
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(result.Data, &rows); err != nil {
		return 0
	}
	return len(rows)
}
