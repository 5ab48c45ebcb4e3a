// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartArchiveScheduler runs the completions archive every day at 03:00 UTC.
// Without configured storage it only logs and returns a nil scheduler.
func StartArchiveScheduler(archiver *CompletionArchiver) (gocron.Scheduler, error) {
	if !archiver.Enabled() {
		log.Println("⚠️ [ARCHIVE] R2 not configured, daily completions archive disabled")
		return nil, nil
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if _, err := archiver.Archive(ctx); err != nil {
				log.Printf("[Scheduler] completions archive failed: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
