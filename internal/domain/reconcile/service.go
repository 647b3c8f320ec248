// Package reconcile decides whether an incoming sighting belongs to an
// already-open ticket or starts a new one, and merges duplicate open tickets
// produced by noisy upstream events.
//
// Upstream sensors emit a create event on both entry and exit, and the exit
// event carries no reference to the original ticket. Continuity is
// reconstructed from spot and plate identity instead of trusting any
// upstream correlation id.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/parklinehq/parkline/internal/domain/plate"
	"github.com/parklinehq/parkline/internal/domain/ticket"
	"github.com/parklinehq/parkline/internal/media"
	"github.com/parklinehq/parkline/internal/repository"
)

var (
	ticketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkline_tickets_created_total",
		Help: "The total number of tickets created from sightings",
	})
	ticketsUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkline_tickets_updated_total",
		Help: "The total number of sightings folded into existing tickets",
	})
	groupsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkline_duplicate_groups_merged_total",
		Help: "The total number of duplicate ticket groups merged",
	})
)

// Sighting is an incoming entry/exit event from an access-point sensor.
type Sighting struct {
	Token         string
	AccessPointID int
	SpotNumber    int
	Code          string
	Number        string
	City          string
	Status        ticket.Status
	EntryTime     *time.Time
	ExitTime      *time.Time
	CarPicBase64  string
	EntryPicURL   string
	ExitVideoURL  string
}

// Result reports how a sighting was resolved.
type Result struct {
	TicketID int64
	Created  bool
}

// Service is the reconciliation engine.
type Service struct {
	tickets repository.TicketRepository
	media   media.Store
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a reconciliation service.
func NewService(tickets repository.TicketRepository, mediaStore media.Store, logger *slog.Logger) *Service {
	return &Service{
		tickets: tickets,
		media:   mediaStore,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock overrides the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Reconcile resolves a sighting against the open collection: an exit-time
// update on a matched ticket, or a new ticket.
func (s *Service) Reconcile(ctx context.Context, sg Sighting) (*Result, error) {
	if sg.ExitTime != nil && sg.EntryTime != nil && sg.ExitTime.Before(*sg.EntryTime) {
		return nil, fmt.Errorf("%w: exit time before entry time", ErrInvalidSighting)
	}

	dayEnd := endOfDay(s.referenceTime(sg))

	// Same-day exact match: same spot, same plate number, entered today.
	// The match only counts when it is also the most recent occupant of the
	// spot, otherwise a newer vehicle has taken it since.
	exact, err := s.tickets.Find(ctx, repository.ListTicketsOptions{
		Filter: repository.TicketFilter{
			SpotNumber:    &sg.SpotNumber,
			AccessPointID: &sg.AccessPointID,
			Number:        &sg.Number,
			EntryBefore:   &dayEnd,
		},
		Order: repository.OrderEntryDesc,
	})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("querying exact match: %w", err)
	}
	if exact != nil {
		occupant, err := s.tickets.Find(ctx, repository.ListTicketsOptions{
			Filter: repository.TicketFilter{
				SpotNumber:    &sg.SpotNumber,
				AccessPointID: &sg.AccessPointID,
				EntryBefore:   &dayEnd,
			},
			Order: repository.OrderEntryDesc,
		})
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("querying spot occupant: %w", err)
		}
		if occupant != nil && occupant.ID == exact.ID {
			return s.updateExit(ctx, exact, sg)
		}
	}

	// Fuzzy same-spot match: the most recent occupant regardless of date,
	// matched on plate similarity. Covers re-triggered sensors misreading a
	// character or two.
	prior, err := s.tickets.Find(ctx, repository.ListTicketsOptions{
		Filter: repository.TicketFilter{
			SpotNumber:    &sg.SpotNumber,
			AccessPointID: &sg.AccessPointID,
		},
		Order: repository.OrderIDDesc,
	})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("querying prior occupant: %w", err)
	}
	if prior != nil {
		score := plate.Similarity(sg.Code+sg.Number, prior.Code+prior.Number)
		if score >= plate.MatchThreshold {
			s.logger.Debug("fuzzy plate match",
				"ticket_id", prior.ID, "score", score,
				"new_plate", sg.Number, "prior_plate", prior.Number)
			return s.updateExit(ctx, prior, sg)
		}
	}

	return s.create(ctx, sg)
}

// updateExit folds the sighting into an existing ticket as an exit-time
// update. The matched ticket's own entry time bounds the exit, not just the
// sighting's (the exit event usually carries no entry time at all).
func (s *Service) updateExit(ctx context.Context, t *ticket.Ticket, sg Sighting) (*Result, error) {
	if sg.ExitTime != nil && sg.ExitTime.Before(t.EntryTime) {
		return nil, fmt.Errorf("%w: exit time before ticket %d entry time", ErrInvalidSighting, t.ID)
	}

	exitVideoPath := ""
	if sg.ExitVideoURL != "" {
		path, err := s.media.SaveExitVideo(ctx, sg.ExitVideoURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMedia, err)
		}
		exitVideoPath = path
	}

	if err := s.tickets.UpdateExit(ctx, t.ID, sg.ExitTime, exitVideoPath); err != nil {
		return nil, fmt.Errorf("updating ticket %d exit: %w", t.ID, err)
	}

	ticketsUpdated.Inc()
	s.logger.Info("sighting folded into open ticket",
		"ticket_id", t.ID, "spot", t.SpotNumber, "access_point", t.AccessPointID)
	return &Result{TicketID: t.ID}, nil
}

// create persists the sighting media and opens a new ticket.
func (s *Service) create(ctx context.Context, sg Sighting) (*Result, error) {
	carPicPath, err := s.media.SaveCarPhoto(ctx, sg.CarPicBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMedia, err)
	}

	entryPicPath := ""
	if sg.EntryPicURL != "" {
		entryPicPath, err = s.media.SaveEntryPhoto(ctx, sg.EntryPicURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMedia, err)
		}
	}

	exitVideoPath := ""
	if sg.ExitVideoURL != "" {
		exitVideoPath, err = s.media.SaveExitVideo(ctx, sg.ExitVideoURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMedia, err)
		}
	}

	entry := s.now()
	if sg.EntryTime != nil {
		entry = *sg.EntryTime
	}
	status := sg.Status
	if status == "" {
		status = ticket.StatusOpen
	}

	t := &ticket.Ticket{
		Token:         sg.Token,
		AccessPointID: sg.AccessPointID,
		SpotNumber:    sg.SpotNumber,
		Code:          sg.Code,
		Number:        sg.Number,
		City:          sg.City,
		Status:        status,
		EntryTime:     entry,
		ExitTime:      sg.ExitTime,
		EntryPicPath:  entryPicPath,
		CarPicPath:    carPicPath,
		ExitVideoPath: exitVideoPath,
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("creating ticket: %w", err)
	}

	ticketsCreated.Inc()
	s.logger.Info("ticket created",
		"ticket_id", t.ID, "spot", t.SpotNumber,
		"access_point", t.AccessPointID, "plate", t.Number)
	return &Result{TicketID: t.ID, Created: true}, nil
}

// MergeDuplicates collapses groups of open tickets sharing plate, spot and
// entry day into their earliest member and returns the number of merged
// groups. Re-running with no new duplicates merges zero groups.
func (s *Service) MergeDuplicates(ctx context.Context) (int, error) {
	all, err := s.tickets.List(ctx, repository.ListTicketsOptions{
		Order: repository.OrderEntryAsc,
	})
	if err != nil {
		return 0, fmt.Errorf("loading open tickets: %w", err)
	}

	groups := make(map[ticket.DuplicateKey][]ticket.Ticket)
	var order []ticket.DuplicateKey
	for _, t := range all {
		// A ticket mid-submission is off limits to the sweep.
		if t.Status == ticket.StatusSubmitting {
			continue
		}
		key := ticket.GroupKey(&t)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], t)
	}

	merged := 0
	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}

		// Entry-ascending load order makes the first member the survivor.
		survivor := group[0]
		var maxExit *time.Time
		for _, t := range group {
			if t.ExitTime == nil {
				continue
			}
			if maxExit == nil || t.ExitTime.After(*maxExit) {
				v := *t.ExitTime
				maxExit = &v
			}
		}

		if maxExit != nil && (survivor.ExitTime == nil || maxExit.After(*survivor.ExitTime)) {
			if err := s.tickets.UpdateExit(ctx, survivor.ID, maxExit, ""); err != nil {
				return merged, fmt.Errorf("updating survivor %d: %w", survivor.ID, err)
			}
		}

		for _, dup := range group[1:] {
			if err := s.tickets.MoveToCancelled(ctx, &dup); err != nil {
				return merged, fmt.Errorf("cancelling duplicate %d: %w", dup.ID, err)
			}
		}

		merged++
		groupsMerged.Inc()
		s.logger.Info("duplicate group merged",
			"survivor_id", survivor.ID, "duplicates", len(group)-1,
			"plate", key.Number, "spot", key.SpotNumber, "day", key.EntryDate)
	}
	return merged, nil
}

// referenceTime picks the sighting's reference instant: entry, exit, or now.
func (s *Service) referenceTime(sg Sighting) time.Time {
	switch {
	case sg.EntryTime != nil:
		return *sg.EntryTime
	case sg.ExitTime != nil:
		return *sg.ExitTime
	default:
		return s.now()
	}
}

func endOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}
