// Package mocks provides testify mocks for the repository interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/parklinehq/parkline/internal/domain/ticket"
	"github.com/parklinehq/parkline/internal/repository"
)

// TicketRepository is a mock for repository.TicketRepository.
type TicketRepository struct {
	mock.Mock
}

func (m *TicketRepository) Create(ctx context.Context, t *ticket.Ticket) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *TicketRepository) Get(ctx context.Context, id int64) (*ticket.Ticket, error) {
	args := m.Called(ctx, id)
	if t, ok := args.Get(0).(*ticket.Ticket); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TicketRepository) Update(ctx context.Context, t *ticket.Ticket) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *TicketRepository) UpdateExit(ctx context.Context, id int64, exitTime *time.Time, exitVideoPath string) error {
	args := m.Called(ctx, id, exitTime, exitVideoPath)
	return args.Error(0)
}

func (m *TicketRepository) Find(ctx context.Context, opts repository.ListTicketsOptions) (*ticket.Ticket, error) {
	args := m.Called(ctx, opts)
	if t, ok := args.Get(0).(*ticket.Ticket); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TicketRepository) List(ctx context.Context, opts repository.ListTicketsOptions) ([]ticket.Ticket, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]ticket.Ticket); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TicketRepository) Claim(ctx context.Context, id int64, submissionKey string) error {
	args := m.Called(ctx, id, submissionKey)
	return args.Error(0)
}

func (m *TicketRepository) ReleaseClaim(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *TicketRepository) SetSubmitted(ctx context.Context, id int64, tripID string) error {
	args := m.Called(ctx, id, tripID)
	return args.Error(0)
}

func (m *TicketRepository) MoveToArchive(ctx context.Context, t *ticket.Ticket) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *TicketRepository) MoveToCancelled(ctx context.Context, t *ticket.Ticket) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

// ArchiveRepository is a mock for repository.ArchiveRepository.
type ArchiveRepository struct {
	mock.Mock
}

func (m *ArchiveRepository) List(ctx context.Context, limit, offset int) ([]ticket.ArchivedTicket, error) {
	args := m.Called(ctx, limit, offset)
	if list, ok := args.Get(0).([]ticket.ArchivedTicket); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// CancelRepository is a mock for repository.CancelRepository.
type CancelRepository struct {
	mock.Mock
}

func (m *CancelRepository) List(ctx context.Context, limit, offset int) ([]ticket.CancelledTicket, error) {
	args := m.Called(ctx, limit, offset)
	if list, ok := args.Get(0).([]ticket.CancelledTicket); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}
