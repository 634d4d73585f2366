package recommendation

import (
	"context"
	"log"
	"time"
)

// Scheduler triggers the nightly batch inside this process. External cron
// can hit POST /batch instead; the engine's single-flight guard keeps the
// two from interleaving.
type Scheduler struct {
	engine *Engine
	hour   int
	minute int
}

func NewScheduler(engine *Engine, hour, minute int) *Scheduler {
	return &Scheduler{engine: engine, hour: hour, minute: minute}
}

func (s *Scheduler) Start(ctx context.Context) {
	go s.runDaily(ctx)
}

func (s *Scheduler) runDaily(ctx context.Context) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
		if now.After(next) {
			next = next.Add(24 * time.Hour)
		}

		timer := time.NewTimer(next.Sub(now))

		select {
		case <-timer.C:
			if _, err := s.engine.RunBatchCompute(ctx, nil); err != nil {
				log.Printf("Nightly reco batch failed: %v", err)
			}
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
