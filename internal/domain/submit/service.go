// Package submit drives a ticket through the external billing protocol and
// into the archived collection.
//
// The state machine per ticket is open → submitting → archived, with
// cancelled reachable directly from open. Park-in succeeding is the point of
// no return: once a trip id is granted the ticket is archived even when
// park-out misbehaves.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/parklinehq/parkline/internal/billing"
	"github.com/parklinehq/parkline/internal/domain/ticket"
	"github.com/parklinehq/parkline/internal/media"
	"github.com/parklinehq/parkline/internal/repository"
)

var submissions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "parkline_submissions_total",
	Help: "The total number of submission attempts by outcome",
}, []string{"outcome"})

// BillingClient is the external billing collaborator.
type BillingClient interface {
	ParkIn(ctx context.Context, req billing.ParkInRequest) (billing.Response, error)
	ParkOut(ctx context.Context, req billing.ParkOutRequest) (billing.Response, error)
}

// Result reports a completed submission. ParkOutFailure carries the reason
// when park-out misbehaved; the ticket is archived regardless.
type Result struct {
	TicketID       int64            `json:"ticket_id"`
	TripID         string           `json:"trip_id"`
	ParkIn         billing.Response `json:"park_in"`
	ParkOut        billing.Response `json:"park_out,omitempty"`
	ParkOutFailure string           `json:"park_out_failure,omitempty"`
}

// Service is the submission orchestrator.
type Service struct {
	tickets repository.TicketRepository
	media   media.Store
	billing BillingClient
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a submission service.
func NewService(tickets repository.TicketRepository, mediaStore media.Store, billingClient BillingClient, logger *slog.Logger) *Service {
	return &Service{
		tickets: tickets,
		media:   mediaStore,
		billing: billingClient,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock overrides the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Submit drives one ticket through park-in, the local checkpoint, park-out
// and archival. Any failure before the checkpoint leaves the ticket open for
// a future sweep. A ticket that already holds a trip id from an earlier run
// resumes at park-out instead of repeating park-in.
func (s *Service) Submit(ctx context.Context, id int64) (*Result, error) {
	t, err := s.tickets.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("loading ticket %d: %w", id, err)
	}

	// Claim before touching media or the network so concurrent submitters
	// cannot both reach park-in.
	key := uuid.NewString()
	if err := s.tickets.Claim(ctx, id, key); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrAlreadySubmitting
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrTicketNotFound
		default:
			return nil, fmt.Errorf("claiming ticket %d: %w", id, err)
		}
	}

	if t.TripID != nil {
		// Park-in already succeeded on a previous run and only the archive
		// move is outstanding. Repeating park-in would double-bill, so the
		// trip id is never reassigned.
		tripID := *t.TripID
		t.Status = ticket.StatusSubmitted
		t.SubmissionKey = &key
		submissions.WithLabelValues("resumed").Inc()
		s.logger.Info("resuming partially submitted ticket",
			"ticket_id", id, "trip_id", tripID)
		return s.finish(ctx, t, tripID, nil)
	}

	images, err := s.loadImages(ctx, t)
	if err != nil {
		s.release(ctx, id)
		submissions.WithLabelValues("media_failure").Inc()
		return nil, fmt.Errorf("reading ticket %d media: %w", id, err)
	}

	parkIn, err := s.billing.ParkIn(ctx, billing.ParkInRequest{
		ParkinTime:  t.EntryTime,
		PlateCode:   t.Code,
		PlateNumber: t.Number,
		Emirates:    t.City,
		SpotNumber:  t.SpotNumber,
		PoleID:      t.AccessPointID,
		Images:      images,
	})
	if err != nil {
		s.release(ctx, id)
		submissions.WithLabelValues("park_in_failure").Inc()
		return nil, fmt.Errorf("park-in for ticket %d: %w", id, err)
	}

	tripID, ok := parkIn.TripID()
	if !ok {
		s.release(ctx, id)
		submissions.WithLabelValues("no_trip_id").Inc()
		reason, _ := parkIn.SoftError()
		s.logger.Warn("park-in granted no trip id",
			"ticket_id", id, "reason", reason)
		return nil, fmt.Errorf("%w (ticket %d)", ErrNoTripID, id)
	}

	// Checkpoint: the confirmed park-in must survive a park-out failure.
	if err := s.tickets.SetSubmitted(ctx, id, tripID); err != nil {
		// Park-in already succeeded, so releasing the claim would invite a
		// duplicate park-in. Leave the claim held for operator inspection.
		submissions.WithLabelValues("checkpoint_failure").Inc()
		s.logger.Error("failed to checkpoint trip id after park-in",
			"ticket_id", id, "trip_id", tripID, "error", err)
		return nil, fmt.Errorf("recording trip id for ticket %d: %w", id, err)
	}
	t.Status = ticket.StatusSubmitted
	t.TripID = &tripID
	t.SubmissionKey = &key
	return s.finish(ctx, t, tripID, parkIn)
}

// finish runs the post-checkpoint tail of the protocol: park-out, then the
// archive move. Park-out misbehaving never blocks archival.
func (s *Service) finish(ctx context.Context, t *ticket.Ticket, tripID string, parkIn billing.Response) (*Result, error) {
	exitTime := s.now()
	if t.ExitTime != nil {
		exitTime = *t.ExitTime
	}
	result := &Result{TicketID: t.ID, TripID: tripID, ParkIn: parkIn}

	parkOut, err := s.billing.ParkOut(ctx, billing.ParkOutRequest{
		ParkoutTime: exitTime,
		SpotNumber:  t.SpotNumber,
		PoleID:      t.AccessPointID,
		TripID:      tripID,
	})
	switch {
	case err != nil:
		result.ParkOutFailure = err.Error()
	default:
		result.ParkOut = parkOut
		if reason, soft := parkOut.SoftError(); soft {
			result.ParkOutFailure = reason
		}
	}
	if result.ParkOutFailure != "" {
		s.logger.Warn("park-out failed, archiving anyway",
			"ticket_id", t.ID, "trip_id", tripID, "reason", result.ParkOutFailure)
	}

	if err := s.tickets.MoveToArchive(ctx, t); err != nil {
		submissions.WithLabelValues("archive_failure").Inc()
		// Restore the submitted status so a later sweep can claim the ticket
		// again and retry the archive without repeating park-in.
		if rerr := s.tickets.SetSubmitted(ctx, t.ID, tripID); rerr != nil {
			s.logger.Error("failed to restore submitted status after archive failure",
				"ticket_id", t.ID, "trip_id", tripID, "error", rerr)
		}
		return nil, fmt.Errorf("archiving ticket %d: %w", t.ID, err)
	}

	submissions.WithLabelValues("archived").Inc()
	s.logger.Info("ticket submitted and archived",
		"ticket_id", t.ID, "trip_id", tripID)
	return result, nil
}

// Cancel moves an open ticket straight to the cancelled collection.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	t, err := s.tickets.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTicketNotFound
		}
		return fmt.Errorf("loading ticket %d: %w", id, err)
	}

	if err := s.tickets.MoveToCancelled(ctx, t); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTicketNotFound
		}
		return fmt.Errorf("cancelling ticket %d: %w", id, err)
	}

	s.logger.Info("ticket cancelled", "ticket_id", id)
	return nil
}

// loadImages reads the stored photos and encodes them for transmission.
func (s *Service) loadImages(ctx context.Context, t *ticket.Ticket) ([]string, error) {
	var images []string
	for _, ref := range []string{t.CarPicPath, t.EntryPicPath} {
		if ref == "" {
			continue
		}
		encoded, err := s.media.ReadEncoded(ctx, ref)
		if err != nil {
			return nil, err
		}
		images = append(images, encoded)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("ticket %d has no stored photos", t.ID)
	}
	return images, nil
}

func (s *Service) release(ctx context.Context, id int64) {
	if err := s.tickets.ReleaseClaim(ctx, id); err != nil {
		s.logger.Error("failed to release submission claim",
			"ticket_id", id, "error", err)
	}
}
