package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"mailroom/internal/model"
	"mailroom/internal/service"
)

// EmailService is the slice of the submission service the HTTP layer needs.
type EmailService interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*model.EmailRequest, error)
	GetEmail(ctx context.Context, id uuid.UUID) (*model.EmailRequest, []model.DeliveryAttempt, error)
	PriorID(ctx context.Context, key string) (uuid.UUID, bool)
}

type Handler struct {
	svc         EmailService
	health      http.HandlerFunc
	defaultFrom string
}

func NewHandler(svc EmailService, health http.HandlerFunc, defaultFrom string) *Handler {
	return &Handler{
		svc:         svc,
		health:      health,
		defaultFrom: defaultFrom,
	}
}

type submitPayload struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type attemptResponse struct {
	AttemptNumber int     `json:"attemptNumber"`
	Success       bool    `json:"success"`
	Error         *string `json:"error,omitempty"`
	TimestampUTC  string  `json:"timestampUtc"`
}

type emailResponse struct {
	ID        string            `json:"id"`
	From      string            `json:"from"`
	To        string            `json:"to"`
	Subject   string            `json:"subject"`
	Status    string            `json:"status"`
	CreatedAt string            `json:"createdAtUtc"`
	SentAt    *string           `json:"sentAtUtc,omitempty"`
	Attempts  []attemptResponse `json:"attempts"`
}

func (h *Handler) SubmitEmail(w http.ResponseWriter, r *http.Request) {
	var payload submitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload")
		return
	}

	if payload.From == "" {
		payload.From = h.defaultFrom
	}

	rec, err := h.svc.Submit(r.Context(), service.SubmitRequest{
		From:           payload.From,
		To:             payload.To,
		Subject:        payload.Subject,
		Body:           payload.Body,
		IdempotencyKey: payload.IdempotencyKey,
	})

	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, submitResponse{
			ID:     rec.ID.String(),
			Status: string(rec.Status),
		})

	case errors.Is(err, service.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, service.ErrDuplicateRequest):
		// Best effort: point the caller at the record admitted earlier.
		body := map[string]any{"error": "duplicate idempotency key"}
		if id, ok := h.svc.PriorID(r.Context(), payload.IdempotencyKey); ok {
			body["id"] = id.String()
		}
		writeJSON(w, http.StatusConflict, body)

	case errors.Is(err, service.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "dependency unavailable")

	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) GetEmail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed id")
		return
	}

	rec, attempts, err := h.svc.GetEmail(r.Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown id")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := emailResponse{
		ID:        rec.ID.String(),
		From:      rec.From,
		To:        rec.To,
		Subject:   rec.Subject,
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
		Attempts:  make([]attemptResponse, 0, len(attempts)),
	}
	if rec.SentAt != nil {
		s := rec.SentAt.UTC().Format(time.RFC3339)
		resp.SentAt = &s
	}
	for _, a := range attempts {
		resp.Attempts = append(resp.Attempts, attemptResponse{
			AttemptNumber: a.AttemptNumber,
			Success:       a.Success,
			Error:         a.Error,
			TimestampUTC:  a.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.health(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
