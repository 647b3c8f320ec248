package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parklinehq/parkline/internal/domain/ticket"
	"github.com/parklinehq/parkline/internal/repository"
)

const ticketColumns = `
	id, token, access_point_id, spot_number, code, number, city, status,
	entry_time, exit_time, entry_pic_path, car_pic_path, exit_video_path,
	trip_id, submission_key
`

// TicketRepository implements repository.TicketRepository for SQLite.
type TicketRepository struct {
	db *DB
}

// NewTicketRepository creates a new TicketRepository.
func NewTicketRepository(db *DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create inserts a new open ticket and assigns its id.
func (r *TicketRepository) Create(ctx context.Context, t *ticket.Ticket) error {
	query := `
		INSERT INTO tickets (
			token, access_point_id, spot_number, code, number, city, status,
			entry_time, exit_time, entry_pic_path, car_pic_path,
			exit_video_path, trip_id, submission_key
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		t.Token,
		t.AccessPointID,
		t.SpotNumber,
		t.Code,
		t.Number,
		t.City,
		t.Status,
		t.EntryTime,
		nullTime(t.ExitTime),
		t.EntryPicPath,
		t.CarPicPath,
		t.ExitVideoPath,
		t.TripID,
		t.SubmissionKey,
	)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get ticket id: %w", err)
	}
	t.ID = id
	return nil
}

// Get retrieves an open ticket by id.
func (r *TicketRepository) Get(ctx context.Context, id int64) (*ticket.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`
	return scanTicket(r.db.QueryRowContext(ctx, query, id))
}

// Update persists every mutable field of an open ticket.
func (r *TicketRepository) Update(ctx context.Context, t *ticket.Ticket) error {
	query := `
		UPDATE tickets
		SET token = ?, access_point_id = ?, spot_number = ?, code = ?,
		    number = ?, city = ?, status = ?, entry_time = ?, exit_time = ?,
		    entry_pic_path = ?, car_pic_path = ?, exit_video_path = ?,
		    trip_id = ?, submission_key = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		t.Token,
		t.AccessPointID,
		t.SpotNumber,
		t.Code,
		t.Number,
		t.City,
		t.Status,
		t.EntryTime,
		nullTime(t.ExitTime),
		t.EntryPicPath,
		t.CarPicPath,
		t.ExitVideoPath,
		t.TripID,
		t.SubmissionKey,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	return requireRow(result)
}

// UpdateExit sets exit time and exit video reference on an open ticket.
func (r *TicketRepository) UpdateExit(ctx context.Context, id int64, exitTime *time.Time, exitVideoPath string) error {
	sets := []string{}
	args := []any{}
	if exitTime != nil {
		sets = append(sets, "exit_time = ?")
		args = append(args, *exitTime)
	}
	if exitVideoPath != "" {
		sets = append(sets, "exit_video_path = ?")
		args = append(args, exitVideoPath)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	query := "UPDATE tickets SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update ticket exit: %w", err)
	}
	return requireRow(result)
}

// Find returns the first ticket matching opts.
func (r *TicketRepository) Find(ctx context.Context, opts repository.ListTicketsOptions) (*ticket.Ticket, error) {
	opts.Limit = 1
	opts.Offset = 0
	list, err := r.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, repository.ErrNotFound
	}
	return &list[0], nil
}

// List returns open tickets matching opts.
func (r *TicketRepository) List(ctx context.Context, opts repository.ListTicketsOptions) ([]ticket.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets`

	conditions := []string{}
	args := []any{}
	f := opts.Filter
	if f.SpotNumber != nil {
		conditions = append(conditions, "spot_number = ?")
		args = append(args, *f.SpotNumber)
	}
	if f.AccessPointID != nil {
		conditions = append(conditions, "access_point_id = ?")
		args = append(args, *f.AccessPointID)
	}
	if f.Number != nil {
		conditions = append(conditions, "number = ?")
		args = append(args, *f.Number)
	}
	if f.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *f.Status)
	}
	if f.EntryBefore != nil {
		conditions = append(conditions, "entry_time < ?")
		args = append(args, *f.EntryBefore)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	switch opts.Order {
	case repository.OrderEntryDesc:
		query += " ORDER BY entry_time DESC, id DESC"
	case repository.OrderEntryAsc:
		query += " ORDER BY entry_time ASC, id ASC"
	case repository.OrderIDDesc:
		query += " ORDER BY id DESC"
	default:
		query += " ORDER BY id ASC"
	}

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []ticket.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}
	return tickets, nil
}

// Claim conditionally transitions a claimable ticket to submitting. Open
// tickets and submitted tickets stranded by a failed archive move are
// claimable; the WHERE clause makes exactly one concurrent caller win.
func (r *TicketRepository) Claim(ctx context.Context, id int64, submissionKey string) error {
	query := `
		UPDATE tickets
		SET status = ?, submission_key = ?
		WHERE id = ? AND status IN (?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		ticket.StatusSubmitting, submissionKey, id,
		ticket.StatusOpen, ticket.StatusSubmitted)
	if err != nil {
		return fmt.Errorf("failed to claim ticket: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		checkQuery := `SELECT EXISTS(SELECT 1 FROM tickets WHERE id = ?)`
		if err := r.db.QueryRowContext(ctx, checkQuery, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check ticket existence: %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return nil
}

// ReleaseClaim returns a submitting ticket to open.
func (r *TicketRepository) ReleaseClaim(ctx context.Context, id int64) error {
	query := `UPDATE tickets SET status = ?, submission_key = NULL WHERE id = ? AND status = ?`
	result, err := r.db.ExecContext(ctx, query, ticket.StatusOpen, id, ticket.StatusSubmitting)
	if err != nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}
	return requireRow(result)
}

// SetSubmitted records the trip id and submitted status in one write.
func (r *TicketRepository) SetSubmitted(ctx context.Context, id int64, tripID string) error {
	query := `UPDATE tickets SET status = ?, trip_id = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, ticket.StatusSubmitted, tripID, id)
	if err != nil {
		return fmt.Errorf("failed to mark ticket submitted: %w", err)
	}
	return requireRow(result)
}

// MoveToArchive copies t into archived_tickets and deletes it from tickets
// inside a single transaction, so the ticket is never in both collections.
func (r *TicketRepository) MoveToArchive(ctx context.Context, t *ticket.Ticket) error {
	copy := ticket.Archived(t, time.Now().UTC())
	return r.move(ctx, t.ID, `
		INSERT INTO archived_tickets (
			ticket_id, token, access_point_id, spot_number, code, number,
			city, status, entry_time, exit_time, entry_pic_path,
			car_pic_path, exit_video_path, trip_id, archived_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		copy.TicketID, copy.Token, copy.AccessPointID, copy.SpotNumber,
		copy.Code, copy.Number, copy.City, copy.Status, copy.EntryTime,
		nullTime(copy.ExitTime), copy.EntryPicPath, copy.CarPicPath,
		copy.ExitVideoPath, copy.TripID, copy.ArchivedAt,
	)
}

// MoveToCancelled copies t into cancelled_tickets (status forced to
// cancelled) and deletes it from tickets inside a single transaction.
func (r *TicketRepository) MoveToCancelled(ctx context.Context, t *ticket.Ticket) error {
	copy := ticket.Cancelled(t, time.Now().UTC())
	return r.move(ctx, t.ID, `
		INSERT INTO cancelled_tickets (
			ticket_id, token, access_point_id, spot_number, code, number,
			city, status, entry_time, exit_time, entry_pic_path,
			car_pic_path, exit_video_path, trip_id, cancelled_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		copy.TicketID, copy.Token, copy.AccessPointID, copy.SpotNumber,
		copy.Code, copy.Number, copy.City, copy.Status, copy.EntryTime,
		nullTime(copy.ExitTime), copy.EntryPicPath, copy.CarPicPath,
		copy.ExitVideoPath, copy.TripID, copy.CancelledAt,
	)
}

func (r *TicketRepository) move(ctx context.Context, id int64, insertQuery string, insertArgs ...any) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin move: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
		return fmt.Errorf("failed to insert terminal copy: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete open ticket: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit move: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*ticket.Ticket, error) {
	var t ticket.Ticket
	var exitTime sql.NullTime
	var tripID, submissionKey sql.NullString

	err := row.Scan(
		&t.ID,
		&t.Token,
		&t.AccessPointID,
		&t.SpotNumber,
		&t.Code,
		&t.Number,
		&t.City,
		&t.Status,
		&t.EntryTime,
		&exitTime,
		&t.EntryPicPath,
		&t.CarPicPath,
		&t.ExitVideoPath,
		&tripID,
		&submissionKey,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ticket: %w", err)
	}

	if exitTime.Valid {
		v := exitTime.Time
		t.ExitTime = &v
	}
	if tripID.Valid {
		v := tripID.String
		t.TripID = &v
	}
	if submissionKey.Valid {
		v := submissionKey.String
		t.SubmissionKey = &v
	}
	return &t, nil
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
