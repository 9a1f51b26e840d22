// Package handler is the thin HTTP layer over the workflow engine. It
// delegates to the service without embedding business logic so transport
// concerns remain isolated.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ipm/internal/platform/middleware"
	"ipm/internal/proposal/models"
	dErrors "ipm/pkg/domainerrors"
)

// Service defines the workflow operations the transport needs.
type Service interface {
	Create(ctx context.Context, req models.CreateProposalRequest) (*models.Proposal, error)
	Submit(ctx context.Context, id int64, chain []string) (*models.Proposal, error)
	Approve(ctx context.Context, id int64, approver, comments string) (*models.Proposal, error)
	Reject(ctx context.Context, id int64, approver, comments string) (*models.Proposal, error)
	Get(ctx context.Context, id int64) (*models.Proposal, error)
	List(ctx context.Context, status *models.Status, page, size int) ([]*models.Proposal, int, error)
}

//go:generate mockgen -source=handler.go -destination=mocks/service_mock.go -package=mocks Service

// Handler handles proposal endpoints.
type Handler struct {
	service       Service
	logger        *slog.Logger
	jwtSigningKey string
}

// New creates a proposal Handler.
func New(service Service, logger *slog.Logger, jwtSigningKey string) *Handler {
	return &Handler{service: service, logger: logger, jwtSigningKey: jwtSigningKey}
}

// Register mounts the proposal routes with their middleware chain.
func (h *Handler) Register(r chi.Router) {
	pr := chi.NewRouter()
	pr.Use(middleware.RequestID)
	pr.Use(middleware.Recovery(h.logger))
	pr.Use(middleware.Logger(h.logger))
	pr.Use(middleware.ContentTypeJSON)
	pr.Use(middleware.RequireAuth(h.jwtSigningKey, h.logger))

	pr.Post("/", h.handleCreate)
	pr.Get("/", h.handleList)
	pr.Get("/{id}", h.handleGet)
	pr.Post("/{id}/submit", h.handleSubmit)
	pr.Post("/{id}/approve", h.handleApprove)
	pr.Post("/{id}/reject", h.handleReject)

	r.Mount("/proposals", pr)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	p, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.logFailure(r, "create proposal", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.proposalID(w, r)
	if !ok {
		return
	}

	var req models.SubmitRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	p, err := h.service.Submit(r.Context(), id, req.Chain)
	if err != nil {
		h.logFailure(r, "submit proposal", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.handleDecision(w, r, h.service.Approve)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.handleDecision(w, r, h.service.Reject)
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request,
	decide func(ctx context.Context, id int64, approver, comments string) (*models.Proposal, error)) {

	id, ok := h.proposalID(w, r)
	if !ok {
		return
	}

	var req models.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	p, err := decide(r.Context(), id, req.Approver, req.Comments)
	if err != nil {
		h.logFailure(r, "decide on proposal", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.proposalID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var status *models.Status
	if s := r.URL.Query().Get("status"); s != "" {
		st := models.Status(s)
		status = &st
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = 20
	}

	items, total, err := h.service.List(r.Context(), status, page, size)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []*models.Proposal{}
	}
	writeJSON(w, http.StatusOK, models.ListResponse{Items: items, Total: total, Page: page, Size: size})
}

func (h *Handler) proposalID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid proposal id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) logFailure(r *http.Request, op string, err error) {
	h.logger.WarnContext(r.Context(), op+" failed",
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err.Error(),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError centralizes domain error translation to HTTP responses so every
// handler returns the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(code),
		"message": err.Error(),
	})
}
