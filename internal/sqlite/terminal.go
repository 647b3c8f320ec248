package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/parklinehq/parkline/internal/domain/ticket"
)

// ArchiveRepository implements repository.ArchiveRepository for SQLite.
type ArchiveRepository struct {
	db *DB
}

// NewArchiveRepository creates a new ArchiveRepository.
func NewArchiveRepository(db *DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// List returns archived tickets, most recent first.
func (r *ArchiveRepository) List(ctx context.Context, limit, offset int) ([]ticket.ArchivedTicket, error) {
	query := `
		SELECT
			id, ticket_id, token, access_point_id, spot_number, code, number,
			city, status, entry_time, exit_time, entry_pic_path,
			car_pic_path, exit_video_path, trip_id, archived_at
		FROM archived_tickets
		ORDER BY id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived tickets: %w", err)
	}
	defer rows.Close()

	var list []ticket.ArchivedTicket
	for rows.Next() {
		var a ticket.ArchivedTicket
		var exitTime sql.NullTime
		var tripID sql.NullString
		err := rows.Scan(
			&a.ID, &a.TicketID, &a.Token, &a.AccessPointID, &a.SpotNumber,
			&a.Code, &a.Number, &a.City, &a.Status, &a.EntryTime, &exitTime,
			&a.EntryPicPath, &a.CarPicPath, &a.ExitVideoPath, &tripID,
			&a.ArchivedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archived ticket: %w", err)
		}
		if exitTime.Valid {
			v := exitTime.Time
			a.ExitTime = &v
		}
		if tripID.Valid {
			v := tripID.String
			a.TripID = &v
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate archived tickets: %w", err)
	}
	return list, nil
}

// CancelRepository implements repository.CancelRepository for SQLite.
type CancelRepository struct {
	db *DB
}

// NewCancelRepository creates a new CancelRepository.
func NewCancelRepository(db *DB) *CancelRepository {
	return &CancelRepository{db: db}
}

// List returns cancelled tickets, most recent first.
func (r *CancelRepository) List(ctx context.Context, limit, offset int) ([]ticket.CancelledTicket, error) {
	query := `
		SELECT
			id, ticket_id, token, access_point_id, spot_number, code, number,
			city, status, entry_time, exit_time, entry_pic_path,
			car_pic_path, exit_video_path, trip_id, cancelled_at
		FROM cancelled_tickets
		ORDER BY id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cancelled tickets: %w", err)
	}
	defer rows.Close()

	var list []ticket.CancelledTicket
	for rows.Next() {
		var c ticket.CancelledTicket
		var exitTime sql.NullTime
		var tripID sql.NullString
		err := rows.Scan(
			&c.ID, &c.TicketID, &c.Token, &c.AccessPointID, &c.SpotNumber,
			&c.Code, &c.Number, &c.City, &c.Status, &c.EntryTime, &exitTime,
			&c.EntryPicPath, &c.CarPicPath, &c.ExitVideoPath, &tripID,
			&c.CancelledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cancelled ticket: %w", err)
		}
		if exitTime.Valid {
			v := exitTime.Time
			c.ExitTime = &v
		}
		if tripID.Valid {
			v := tripID.String
			c.TripID = &v
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cancelled tickets: %w", err)
	}
	return list, nil
}
