// Package ticket defines the parking ticket records and their lifecycle
// statuses. A ticket lives in exactly one of the open, archived or cancelled
// collections at any moment.
package ticket

import "time"

// Status is the lifecycle status of a ticket.
type Status string

const (
	StatusOpen       Status = "open"
	StatusSubmitting Status = "submitting"
	StatusSubmitted  Status = "submitted"
	StatusCancelled  Status = "cancelled"
)

// Ticket is the working record for a single parking session.
type Ticket struct {
	ID            int64      `json:"id"`
	Token         string     `json:"token"`
	AccessPointID int        `json:"access_point_id"`
	SpotNumber    int        `json:"spot_number"`
	Code          string     `json:"code"`
	Number        string     `json:"number"`
	City          string     `json:"city"`
	Status        Status     `json:"status"`
	EntryTime     time.Time  `json:"entry_time"`
	ExitTime      *time.Time `json:"exit_time,omitempty"`
	EntryPicPath  string     `json:"entry_pic_path,omitempty"`
	CarPicPath    string     `json:"car_pic_path,omitempty"`
	ExitVideoPath string     `json:"exit_video_path,omitempty"`
	TripID        *string    `json:"trip_id,omitempty"`
	SubmissionKey *string    `json:"submission_key,omitempty"`
}

// ArchivedTicket is the terminal copy of a ticket that completed submission.
type ArchivedTicket struct {
	ID            int64      `json:"id"`
	TicketID      int64      `json:"ticket_id"`
	Token         string     `json:"token"`
	AccessPointID int        `json:"access_point_id"`
	SpotNumber    int        `json:"spot_number"`
	Code          string     `json:"code"`
	Number        string     `json:"number"`
	City          string     `json:"city"`
	Status        Status     `json:"status"`
	EntryTime     time.Time  `json:"entry_time"`
	ExitTime      *time.Time `json:"exit_time,omitempty"`
	EntryPicPath  string     `json:"entry_pic_path,omitempty"`
	CarPicPath    string     `json:"car_pic_path,omitempty"`
	ExitVideoPath string     `json:"exit_video_path,omitempty"`
	TripID        *string    `json:"trip_id,omitempty"`
	ArchivedAt    time.Time  `json:"archived_at"`
}

// CancelledTicket is the terminal copy of a ticket that was cancelled or
// merged away as a duplicate.
type CancelledTicket struct {
	ID            int64      `json:"id"`
	TicketID      int64      `json:"ticket_id"`
	Token         string     `json:"token"`
	AccessPointID int        `json:"access_point_id"`
	SpotNumber    int        `json:"spot_number"`
	Code          string     `json:"code"`
	Number        string     `json:"number"`
	City          string     `json:"city"`
	Status        Status     `json:"status"`
	EntryTime     time.Time  `json:"entry_time"`
	ExitTime      *time.Time `json:"exit_time,omitempty"`
	EntryPicPath  string     `json:"entry_pic_path,omitempty"`
	CarPicPath    string     `json:"car_pic_path,omitempty"`
	ExitVideoPath string     `json:"exit_video_path,omitempty"`
	TripID        *string    `json:"trip_id,omitempty"`
	CancelledAt   time.Time  `json:"cancelled_at"`
}

// Archived builds the terminal archive copy of t.
func Archived(t *Ticket, now time.Time) *ArchivedTicket {
	return &ArchivedTicket{
		TicketID:      t.ID,
		Token:         t.Token,
		AccessPointID: t.AccessPointID,
		SpotNumber:    t.SpotNumber,
		Code:          t.Code,
		Number:        t.Number,
		City:          t.City,
		Status:        t.Status,
		EntryTime:     t.EntryTime,
		ExitTime:      t.ExitTime,
		EntryPicPath:  t.EntryPicPath,
		CarPicPath:    t.CarPicPath,
		ExitVideoPath: t.ExitVideoPath,
		TripID:        t.TripID,
		ArchivedAt:    now,
	}
}

// Cancelled builds the terminal cancelled copy of t. The copy's status is
// always forced to StatusCancelled regardless of the ticket's current one.
func Cancelled(t *Ticket, now time.Time) *CancelledTicket {
	return &CancelledTicket{
		TicketID:      t.ID,
		Token:         t.Token,
		AccessPointID: t.AccessPointID,
		SpotNumber:    t.SpotNumber,
		Code:          t.Code,
		Number:        t.Number,
		City:          t.City,
		Status:        StatusCancelled,
		EntryTime:     t.EntryTime,
		ExitTime:      t.ExitTime,
		EntryPicPath:  t.EntryPicPath,
		CarPicPath:    t.CarPicPath,
		ExitVideoPath: t.ExitVideoPath,
		TripID:        t.TripID,
		CancelledAt:   now,
	}
}

// DuplicateKey identifies a duplicate group: open tickets created for the
// same vehicle, spot and calendar day by repeated upstream events.
type DuplicateKey struct {
	Number        string
	Code          string
	City          string
	SpotNumber    int
	AccessPointID int
	EntryDate     string // YYYY-MM-DD
}

// GroupKey derives the duplicate-group key for t.
func GroupKey(t *Ticket) DuplicateKey {
	return DuplicateKey{
		Number:        t.Number,
		Code:          t.Code,
		City:          t.City,
		SpotNumber:    t.SpotNumber,
		AccessPointID: t.AccessPointID,
		EntryDate:     t.EntryTime.Format("2006-01-02"),
	}
}
