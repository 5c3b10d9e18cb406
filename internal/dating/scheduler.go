package dating

import (
	"context"
	"log"
	"time"
)

type Scheduler struct {
	service       Service
	sweepInterval time.Duration
	refreshHour   int
}

func NewScheduler(service Service, sweepInterval time.Duration, refreshHour int) *Scheduler {
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	return &Scheduler{service: service, sweepInterval: sweepInterval, refreshHour: refreshHour}
}

func (s *Scheduler) Start(ctx context.Context) {
	// Ghosting detection over active matches
	go s.runEvery(ctx, s.sweepInterval, "ghosting sweep", s.service.SweepGhosting)

	// Compatibility refresh once a day
	go s.runDaily(ctx, s.refreshHour, 0, "compatibility refresh", s.service.RefreshCompatibility)
}

func (s *Scheduler) runDaily(ctx context.Context, hour, minute int, name string, task func(context.Context) error) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if now.After(next) {
			next = next.Add(24 * time.Hour)
		}

		timer := time.NewTimer(next.Sub(now))

		select {
		case <-timer.C:
			if err := task(ctx); err != nil {
				log.Printf("Scheduled %s failed: %v", name, err)
			}
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) runEvery(ctx context.Context, interval time.Duration, name string, task func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := task(ctx); err != nil {
				log.Printf("Scheduled %s failed: %v", name, err)
			}
		case <-ctx.Done():
			return
		}
	}
}
