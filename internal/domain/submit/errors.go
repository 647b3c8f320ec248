package submit

import "errors"

var (
	// ErrTicketNotFound indicates the ticket is not in the open collection,
	// e.g. it was already submitted or cancelled by a concurrent caller.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrAlreadySubmitting indicates a concurrent caller holds the
	// submission claim on this ticket.
	ErrAlreadySubmitting = errors.New("ticket is already being submitted")

	// ErrNoTripID indicates park-in completed without granting a trip
	// identifier; the submission is failed and the ticket stays open.
	ErrNoTripID = errors.New("park-in returned no trip id")
)
