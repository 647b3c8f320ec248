// Package transport wires the HTTP surface for sighting ingestion and
// ticket lifecycle operations.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parklinehq/parkline/internal/domain/reconcile"
	"github.com/parklinehq/parkline/internal/domain/submit"
	"github.com/parklinehq/parkline/internal/domain/ticket"
	"github.com/parklinehq/parkline/internal/repository"
)

// Reconciler resolves sightings and merges duplicates.
type Reconciler interface {
	Reconcile(ctx context.Context, sg reconcile.Sighting) (*reconcile.Result, error)
	MergeDuplicates(ctx context.Context) (int, error)
}

// Canceller cancels open tickets.
type Canceller interface {
	Cancel(ctx context.Context, id int64) error
}

// Sweeper triggers submissions on demand.
type Sweeper interface {
	SweepNow(ctx context.Context) ([]int64, error)
	SubmitAsync(id int64)
}

// Server wires HTTP handlers.
type Server struct {
	reconciler Reconciler
	canceller  Canceller
	sweeper    Sweeper
	tickets    repository.TicketRepository
	archive    repository.ArchiveRepository
	cancelled  repository.CancelRepository
	logger     *slog.Logger
}

// NewServer creates the HTTP router with middleware.
func NewServer(
	reconciler Reconciler,
	canceller Canceller,
	sweeper Sweeper,
	tickets repository.TicketRepository,
	archive repository.ArchiveRepository,
	cancelled repository.CancelRepository,
	authToken string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()
	srv := &Server{
		reconciler: reconciler,
		canceller:  canceller,
		sweeper:    sweeper,
		tickets:    tickets,
		archive:    archive,
		cancelled:  cancelled,
		logger:     logger,
	}

	r.Get("/health", srv.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authToken))
		r.Post("/tickets", srv.handleCreateTicket)
		r.Get("/tickets", srv.handleListTickets)
		r.Get("/tickets/archived", srv.handleListArchived)
		r.Get("/tickets/cancelled", srv.handleListCancelled)
		r.Post("/tickets/sweep", srv.handleSweep)
		r.Post("/tickets/merge", srv.handleMerge)
		r.Post("/tickets/{id}/submit", srv.handleSubmit)
		r.Post("/tickets/{id}/cancel", srv.handleCancel)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// sightingRequest is the inbound sensor event payload.
type sightingRequest struct {
	Token         string `json:"token"`
	AccessPointID int    `json:"access_point_id"`
	SpotNumber    int    `json:"spot_number"`
	Number        string `json:"number"`
	Code          string `json:"code"`
	City          string `json:"city"`
	Status        string `json:"status"`
	EntryTime     string `json:"entry_time"`
	ExitTime      string `json:"exit_time"`
	EntryPicURL   string `json:"entry_pic_url"`
	CarPicBase64  string `json:"car_pic_base64"`
	ExitVideoURL  string `json:"exit_video_url"`
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req sightingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entryTime, err := parseTime(req.EntryTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry_time")
		return
	}
	exitTime, err := parseTime(req.ExitTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid exit_time")
		return
	}

	result, err := s.reconciler.Reconcile(r.Context(), reconcile.Sighting{
		Token:         req.Token,
		AccessPointID: req.AccessPointID,
		SpotNumber:    req.SpotNumber,
		Code:          req.Code,
		Number:        req.Number,
		City:          req.City,
		Status:        ticket.Status(req.Status),
		EntryTime:     entryTime,
		ExitTime:      exitTime,
		CarPicBase64:  req.CarPicBase64,
		EntryPicURL:   req.EntryPicURL,
		ExitVideoURL:  req.ExitVideoURL,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	message := "Sighting matched existing ticket"
	if result.Created {
		status = http.StatusCreated
		message = "Ticket created successfully"
	}
	writeJSON(w, status, map[string]any{
		"id":      result.TicketID,
		"created": result.Created,
		"message": message,
	})
}

// handleListTickets lists the open collection. A status query param narrows
// the result; ?status=submitting surfaces tickets stuck holding a claim.
func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	opts := repository.ListTicketsOptions{Order: repository.OrderEntryDesc}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := ticket.Status(raw)
		switch status {
		case ticket.StatusOpen, ticket.StatusSubmitting, ticket.StatusSubmitted:
			opts.Filter.Status = &status
		default:
			writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
	}

	list, err := s.tickets.List(r.Context(), opts)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": list})
}

func (s *Server) handleListArchived(w http.ResponseWriter, r *http.Request) {
	list, err := s.archive.List(r.Context(), 100, 0)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": list})
}

func (s *Server) handleListCancelled(w http.ResponseWriter, r *http.Request) {
	list, err := s.cancelled.List(r.Context(), 100, 0)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": list})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sweeper.SweepNow(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"submitted": ids})
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	merged, err := s.reconciler.MergeDuplicates(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups_merged": merged})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := ticketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}

	// Existence check up front; the submission itself runs detached.
	if _, err := s.tickets.Get(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.sweeper.SubmitAsync(id)
	writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "scheduled": true})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := ticketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}

	if err := s.canceller.Cancel(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "cancelled": true})
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, submit.ErrTicketNotFound), errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "ticket not found")
	case errors.Is(err, submit.ErrAlreadySubmitting):
		writeError(w, http.StatusConflict, "ticket is already being submitted")
	case errors.Is(err, reconcile.ErrInvalidSighting), errors.Is(err, reconcile.ErrInvalidMedia),
		errors.Is(err, repository.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func ticketID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// parseTime accepts RFC3339 or the cameras' "2006-01-02 15:04:05" format.
func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
