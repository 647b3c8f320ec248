package reconcile

import "errors"

var (
	// ErrInvalidSighting indicates a sighting missing required fields or
	// carrying inconsistent timestamps.
	ErrInvalidSighting = errors.New("invalid sighting")

	// ErrInvalidMedia indicates a photo payload that could not be decoded or
	// stored; the ticket is not created.
	ErrInvalidMedia = errors.New("invalid sighting media")
)
