package export

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/labsync/internal/metrics"
	"github.com/shrimpsizemoose/labsync/internal/models"
	"github.com/shrimpsizemoose/labsync/internal/store"
)

// Sink receives the full reservation table of one day. Implementations
// replace whatever they held for that day.
type Sink interface {
	Name() string
	WriteDay(ctx context.Context, day string, rows []models.Reservation) error
}

type Exporter struct {
	store     store.LabStore
	sinks     []Sink
	daysAhead int
	loc       *time.Location
	now       func() time.Time
}

func NewExporter(store store.LabStore, sinks []Sink, daysAhead int, loc *time.Location) *Exporter {
	return &Exporter{
		store:     store,
		sinks:     sinks,
		daysAhead: daysAhead,
		loc:       loc,
		now:       time.Now,
	}
}

func (e *Exporter) ExportDay(ctx context.Context, day string) error {
	rows, err := e.store.ListReservations(models.ReservationFilter{Day: day})
	if err != nil {
		return fmt.Errorf("failed to list reservations for %s: %w", day, err)
	}

	var failed []string
	for _, sink := range e.sinks {
		if err := sink.WriteDay(ctx, day, rows); err != nil {
			logger.Error.Printf("Export of %s to %s failed: %v", day, sink.Name(), err)
			metrics.ExportRunsTotal.WithLabelValues(sink.Name(), "error").Inc()
			failed = append(failed, sink.Name())
			continue
		}
		metrics.ExportRunsTotal.WithLabelValues(sink.Name(), "ok").Inc()
	}

	if len(failed) > 0 {
		return fmt.Errorf("export of %s failed for sinks %v", day, failed)
	}
	return nil
}

// Days lists today, the next daysAhead days and every later day that
// already has reservations.
func (e *Exporter) Days() ([]string, error) {
	today := e.now().In(e.loc)
	set := make(map[string]bool)
	for i := 0; i <= e.daysAhead; i++ {
		set[today.AddDate(0, 0, i).Format(models.DateLayout)] = true
	}

	booked, err := e.store.ListReservationDays(today.Format(models.DateLayout))
	if err != nil {
		return nil, err
	}
	for _, day := range booked {
		set[day] = true
	}

	days := make([]string, 0, len(set))
	for day := range set {
		days = append(days, day)
	}
	sort.Strings(days)
	return days, nil
}

func (e *Exporter) ExportUpcoming(ctx context.Context) error {
	days, err := e.Days()
	if err != nil {
		return err
	}

	var lastErr error
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.ExportDay(ctx, day); err != nil {
			lastErr = err
		}
	}
	logger.Info.Printf("Exported %d days to %d sinks", len(days), len(e.sinks))
	return lastErr
}
