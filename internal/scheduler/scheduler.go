// Package scheduler triggers bulk submission sweeps: a recurring one at
// midnight over yesterday's short-stay tickets, and on-demand ones for
// operators.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/parklinehq/parkline/internal/domain/submit"
	"github.com/parklinehq/parkline/internal/domain/ticket"
	"github.com/parklinehq/parkline/internal/repository"
)

var sweeps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "parkline_sweeps_total",
	Help: "The total number of submission sweeps by trigger",
}, []string{"trigger"})

// maxStay is the short-stay cutoff: only sessions under one hour are
// auto-submitted by sweeps.
const maxStay = time.Hour

// Submitter drives a single ticket submission.
type Submitter interface {
	Submit(ctx context.Context, id int64) (*submit.Result, error)
}

// Scheduler runs the midnight sweep and exposes on-demand triggers.
type Scheduler struct {
	tickets   repository.TicketRepository
	submitter Submitter
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a scheduler.
func New(tickets repository.TicketRepository, submitter Submitter, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		tickets:   tickets,
		submitter: submitter,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock overrides the wall clock, for tests.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Run sleeps until each midnight boundary and sweeps yesterday's short-stay
// tickets. The next boundary is recomputed from the current time every lap,
// so timer inaccuracies never accumulate.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("midnight sweep scheduler started")
	for {
		next := nextMidnight(s.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		ids, err := s.sweepYesterday(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.logger.Error("midnight sweep failed", "error", err)
			continue
		}
		sweeps.WithLabelValues("midnight").Inc()
		s.logger.Info("midnight sweep complete", "submitted", len(ids))
	}
}

// SweepNow submits every open short-stay ticket regardless of date and
// returns the submitted ids.
func (s *Scheduler) SweepNow(ctx context.Context) ([]int64, error) {
	all, err := s.tickets.List(ctx, repository.ListTicketsOptions{
		Order: repository.OrderEntryAsc,
	})
	if err != nil {
		return nil, err
	}

	sweeps.WithLabelValues("on_demand").Inc()
	return s.submitAll(ctx, filterShortStay(all, nil)), nil
}

// SubmitAsync schedules a single submission without blocking the caller.
func (s *Scheduler) SubmitAsync(id int64) {
	go func() {
		// The triggering request's lifetime must not cancel the submission.
		if _, err := s.submitter.Submit(context.Background(), id); err != nil {
			s.logger.Warn("async submission failed", "ticket_id", id, "error", err)
		}
	}()
}

func (s *Scheduler) sweepYesterday(ctx context.Context) ([]int64, error) {
	all, err := s.tickets.List(ctx, repository.ListTicketsOptions{
		Order: repository.OrderEntryAsc,
	})
	if err != nil {
		return nil, err
	}

	yesterday := startOfDay(s.now()).AddDate(0, 0, -1)
	return s.submitAll(ctx, filterShortStay(all, &yesterday)), nil
}

// submitAll submits candidates sequentially. Individual failures are logged
// and skipped; the ticket stays open for a later sweep.
func (s *Scheduler) submitAll(ctx context.Context, candidates []ticket.Ticket) []int64 {
	var submitted []int64
	for _, t := range candidates {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.submitter.Submit(ctx, t.ID); err != nil {
			s.logger.Warn("sweep submission failed", "ticket_id", t.ID, "error", err)
			continue
		}
		submitted = append(submitted, t.ID)
	}
	return submitted
}

// filterShortStay keeps tickets with a recorded exit and a stay in
// [0, maxStay). A non-nil day additionally requires the entry date to fall
// on that calendar day.
func filterShortStay(all []ticket.Ticket, day *time.Time) []ticket.Ticket {
	var out []ticket.Ticket
	for _, t := range all {
		if t.Status == ticket.StatusSubmitting {
			continue
		}
		if t.ExitTime == nil {
			continue
		}
		stay := t.ExitTime.Sub(t.EntryTime)
		if stay < 0 || stay >= maxStay {
			continue
		}
		if day != nil && !startOfDay(t.EntryTime.In(day.Location())).Equal(*day) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func nextMidnight(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1)
}
