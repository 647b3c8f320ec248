// Package repository defines the record-store surface the domain services
// depend on. Implementations live in internal/sqlite.
package repository

import (
	"context"
	"time"

	"github.com/parklinehq/parkline/internal/domain/ticket"
)

// Order selects the result ordering for ticket queries.
type Order string

const (
	OrderEntryDesc Order = "entry_desc"
	OrderEntryAsc  Order = "entry_asc"
	OrderIDDesc    Order = "id_desc"
)

// TicketFilter narrows a ticket query. Nil fields are ignored.
type TicketFilter struct {
	SpotNumber    *int
	AccessPointID *int
	Number        *string
	Status        *ticket.Status
	EntryBefore   *time.Time
}

// ListTicketsOptions carries filtering, ordering and paging for queries
// against the open collection.
type ListTicketsOptions struct {
	Filter TicketFilter
	Order  Order
	Limit  int
	Offset int
}

// TicketRepository manages the open ticket collection and the moves into the
// terminal collections.
type TicketRepository interface {
	Create(ctx context.Context, t *ticket.Ticket) error
	Get(ctx context.Context, id int64) (*ticket.Ticket, error)
	Update(ctx context.Context, t *ticket.Ticket) error

	// UpdateExit sets the exit time (when non-nil) and the exit video
	// reference (when non-empty) on an open ticket.
	UpdateExit(ctx context.Context, id int64, exitTime *time.Time, exitVideoPath string) error

	// Find returns the first ticket matching opts, or ErrNotFound.
	Find(ctx context.Context, opts ListTicketsOptions) (*ticket.Ticket, error)
	List(ctx context.Context, opts ListTicketsOptions) ([]ticket.Ticket, error)

	// Claim transitions an open or submitted ticket to submitting, recording
	// the submission key. Exactly one concurrent caller wins; losers get
	// ErrConflict, a missing ticket ErrNotFound.
	Claim(ctx context.Context, id int64, submissionKey string) error

	// ReleaseClaim returns a submitting ticket to open so a later sweep
	// retries it.
	ReleaseClaim(ctx context.Context, id int64) error

	// SetSubmitted records the trip id and the submitted status in a single
	// write. The trip id is assigned exactly once.
	SetSubmitted(ctx context.Context, id int64, tripID string) error

	// MoveToArchive copies t into the archived collection and removes it
	// from the open collection as one atomic operation.
	MoveToArchive(ctx context.Context, t *ticket.Ticket) error

	// MoveToCancelled copies t into the cancelled collection (status forced
	// to cancelled) and removes it from the open collection atomically.
	MoveToCancelled(ctx context.Context, t *ticket.Ticket) error
}

// ArchiveRepository reads the archived collection.
type ArchiveRepository interface {
	List(ctx context.Context, limit, offset int) ([]ticket.ArchivedTicket, error)
}

// CancelRepository reads the cancelled collection.
type CancelRepository interface {
	List(ctx context.Context, limit, offset int) ([]ticket.CancelledTicket, error)
}
