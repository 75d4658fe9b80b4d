package export

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/shrimpsizemoose/trekker/logger"
)

type Scheduler struct {
	scheduler *gocron.Scheduler
}

// NewScheduler runs exporter.ExportUpcoming on the cron expression.
func NewScheduler(exporter *Exporter, cron string, loc *time.Location) (*Scheduler, error) {
	scheduler := gocron.NewScheduler(loc)
	scheduler.SingletonModeAll()

	_, err := scheduler.Cron(cron).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := exporter.ExportUpcoming(ctx); err != nil {
			logger.Error.Printf("Export failed: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule export: %w", err)
	}

	return &Scheduler{scheduler: scheduler}, nil
}

func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
