package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parklinehq/parkline/internal/domain/ticket"
	"github.com/parklinehq/parkline/internal/repository"
)

func newTicket(entry time.Time) *ticket.Ticket {
	return &ticket.Ticket{
		Token:         "tok-1",
		AccessPointID: 7,
		SpotNumber:    12,
		Code:          "A",
		Number:        "12345",
		City:          "DXB",
		Status:        ticket.StatusOpen,
		EntryTime:     entry,
		CarPicPath:    "car/a.jpg",
		EntryPicPath:  "entry/a.jpg",
	}
}

func TestTicketRepository_CreateGet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewTicketRepository(db)

	entry := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	tk := newTicket(entry)
	require.NoError(t, repo.Create(ctx, tk))
	require.NotZero(t, tk.ID)

	loaded, err := repo.Get(ctx, tk.ID)
	require.NoError(t, err)
	require.Equal(t, tk.Number, loaded.Number)
	require.Equal(t, ticket.StatusOpen, loaded.Status)
	require.True(t, entry.Equal(loaded.EntryTime))
	require.Nil(t, loaded.ExitTime)
	require.Nil(t, loaded.TripID)
}

func TestTicketRepository_GetMissing(t *testing.T) {
	db := NewTestDB(t)
	repo := NewTicketRepository(db)

	_, err := repo.Get(context.Background(), 999)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTicketRepository_UpdateExit(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewTicketRepository(db)

	entry := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	tk := newTicket(entry)
	require.NoError(t, repo.Create(ctx, tk))

	exit := entry.Add(25 * time.Minute)
	require.NoError(t, repo.UpdateExit(ctx, tk.ID, &exit, "exit/v.mp4"))

	loaded, err := repo.Get(ctx, tk.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.ExitTime)
	require.True(t, exit.Equal(*loaded.ExitTime))
	require.Equal(t, "exit/v.mp4", loaded.ExitVideoPath)

	// Nil exit time and empty path leave the record untouched.
	require.NoError(t, repo.UpdateExit(ctx, tk.ID, nil, ""))
	loaded, err = repo.Get(ctx, tk.ID)
	require.NoError(t, err)
	require.True(t, exit.Equal(*loaded.ExitTime))
}

func TestTicketRepository_FindOrdering(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewTicketRepository(db)

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	first := newTicket(base)
	second := newTicket(base.Add(2 * time.Hour))
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	spot, ap := 12, 7
	found, err := repo.Find(ctx, repository.ListTicketsOptions{
		Filter: repository.TicketFilter{SpotNumber: &spot, AccessPointID: &ap},
		Order:  repository.OrderEntryDesc,
	})
	require.NoError(t, err)
	require.Equal(t, second.ID, found.ID)

	found, err = repo.Find(ctx, repository.ListTicketsOptions{
		Filter: repository.TicketFilter{SpotNumber: &spot, AccessPointID: &ap},
		Order:  repository.OrderEntryAsc,
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, found.ID)
}

func TestTicketRepository_FindEntryBefore(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewTicketRepository(db)

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	tk := newTicket(base)
	require.NoError(t, repo.Create(ctx, tk))

	bound := base.Add(-time.Hour)
	_, err := repo.Find(ctx, repository.ListTicketsOptions{
		Filter: repository.TicketFilter{EntryBefore: &bound},
	})
	require.ErrorIs(t, err, repository.ErrNotFound)

	bound = base.Add(time.Hour)
	found, err := repo.Find(ctx, repository.ListTicketsOptions{
		Filter: repository.TicketFilter{EntryBefore: &bound},
	})
	require.NoError(t, err)
	require.Equal(t, tk.ID, found.ID)
}

func TestTicketRepository_ClaimExactlyOnce(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewTicketRepository(db)

	tk := newTicket(time.Now().UTC())
	require.NoError(t, repo.Create(ctx, tk))

	require.NoError(t, repo.Claim(ctx, tk.ID, "key-1"))
	require.ErrorIs(t, repo.Claim(ctx, tk.ID, "key-2"), repository.ErrConflict)
	require.ErrorIs(t, repo.Claim(ctx, 999, "key-3"), repository.ErrNotFound)

	loaded, err := repo.Get(ctx, tk.ID)
	require.NoError(t, err)
	require.Equal(t, ticket.StatusSubmitting, loaded.Status)
	require.NotNil(t, loaded.SubmissionKey)
	require.Equal(t, "key-1", *loaded.SubmissionKey)

	require.NoError(t, repo.ReleaseClaim(ctx, tk.ID))
	loaded, err = repo.Get(ctx, tk.ID)
	require.NoError(t, err)
	require.Equal(t, ticket.StatusOpen, loaded.Status)
	require.Nil(t, loaded.SubmissionKey)

	// Claimable again after release.
	require.NoError(t, repo.Claim(ctx, tk.ID, "key-4"))
}

func TestTicketRepository_ClaimSubmittedTicket(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewTicketRepository(db)

	// A submitted ticket left behind by a failed archive move is claimable
	// again so the submission can resume.
	tk := newTicket(time.Now().UTC())
	require.NoError(t, repo.Create(ctx, tk))
	require.NoError(t, repo.SetSubmitted(ctx, tk.ID, "trip-9"))

	require.NoError(t, repo.Claim(ctx, tk.ID, "key-1"))
	require.ErrorIs(t, repo.Claim(ctx, tk.ID, "key-2"), repository.ErrConflict)

	// The trip id survives the reclaim.
	loaded, err := repo.Get(ctx, tk.ID)
	require.NoError(t, err)
	require.Equal(t, ticket.StatusSubmitting, loaded.Status)
	require.NotNil(t, loaded.TripID)
	require.Equal(t, "trip-9", *loaded.TripID)
}

func TestTicketRepository_ListStatusFilter(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewTicketRepository(db)

	open := newTicket(time.Now().UTC())
	require.NoError(t, repo.Create(ctx, open))
	claimed := newTicket(time.Now().UTC())
	require.NoError(t, repo.Create(ctx, claimed))
	require.NoError(t, repo.Claim(ctx, claimed.ID, "key-1"))

	status := ticket.StatusSubmitting
	list, err := repo.List(ctx, repository.ListTicketsOptions{
		Filter: repository.TicketFilter{Status: &status},
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, claimed.ID, list[0].ID)
}

func TestTicketRepository_SetSubmitted(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewTicketRepository(db)

	tk := newTicket(time.Now().UTC())
	require.NoError(t, repo.Create(ctx, tk))
	require.NoError(t, repo.SetSubmitted(ctx, tk.ID, "trip-42"))

	loaded, err := repo.Get(ctx, tk.ID)
	require.NoError(t, err)
	require.Equal(t, ticket.StatusSubmitted, loaded.Status)
	require.NotNil(t, loaded.TripID)
	require.Equal(t, "trip-42", *loaded.TripID)
}

func TestTicketRepository_MoveToArchive(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewTicketRepository(db)
	archive := NewArchiveRepository(db)

	tk := newTicket(time.Now().UTC())
	require.NoError(t, repo.Create(ctx, tk))
	require.NoError(t, repo.SetSubmitted(ctx, tk.ID, "trip-1"))

	loaded, err := repo.Get(ctx, tk.ID)
	require.NoError(t, err)
	require.NoError(t, repo.MoveToArchive(ctx, loaded))

	_, err = repo.Get(ctx, tk.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	archived, err := archive.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	require.Equal(t, tk.ID, archived[0].TicketID)
	require.Equal(t, ticket.StatusSubmitted, archived[0].Status)
	require.NotNil(t, archived[0].TripID)
	require.Equal(t, "trip-1", *archived[0].TripID)
}

func TestTicketRepository_MoveToCancelled(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewTicketRepository(db)
	cancelled := NewCancelRepository(db)

	tk := newTicket(time.Now().UTC())
	require.NoError(t, repo.Create(ctx, tk))

	loaded, err := repo.Get(ctx, tk.ID)
	require.NoError(t, err)
	require.NoError(t, repo.MoveToCancelled(ctx, loaded))

	_, err = repo.Get(ctx, tk.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	list, err := cancelled.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, ticket.StatusCancelled, list[0].Status)
}

func TestTicketRepository_MoveMissing(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewTicketRepository(db)
	archive := NewArchiveRepository(db)

	ghost := newTicket(time.Now().UTC())
	ghost.ID = 999
	require.ErrorIs(t, repo.MoveToArchive(ctx, ghost), repository.ErrNotFound)

	// The rolled-back transaction must not leave a terminal copy behind.
	archived, err := archive.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Empty(t, archived)
}
