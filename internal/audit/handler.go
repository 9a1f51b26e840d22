package audit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ipm/internal/platform/middleware"
)

// Handler serves the paged audit read API.
type Handler struct {
	recorder *Recorder
	logger   *slog.Logger
}

// NewHandler creates the audit HTTP handler.
func NewHandler(recorder *Recorder, logger *slog.Logger) *Handler {
	return &Handler{recorder: recorder, logger: logger}
}

// Register mounts the audit routes.
func (h *Handler) Register(r chi.Router) {
	ar := chi.NewRouter()
	ar.Use(middleware.RequestID)
	ar.Use(middleware.Recovery(h.logger))
	ar.Use(middleware.Logger(h.logger))
	ar.Get("/", h.handleList)
	r.Mount("/audit", ar)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var proposalID *int64
	if s := r.URL.Query().Get("proposalId"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			http.Error(w, "invalid proposalId", http.StatusBadRequest)
			return
		}
		proposalID = &id
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	result, err := h.recorder.List(r.Context(), proposalID, page, size)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit list failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}
