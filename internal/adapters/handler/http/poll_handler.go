package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
	"github.com/vncsmyrnk/pollvoter/internal/core/ports"
)

type PollHandler struct {
	service ports.PollQueryService
	logger  *slog.Logger
}

func NewPollHandler(service ports.PollQueryService, logger *slog.Logger) *PollHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PollHandler{
		service: service,
		logger:  logger,
	}
}

func (h *PollHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	listing, err := h.service.ListPolls(r.Context())
	if err != nil {
		h.logger.Error("listing polls", "error", err)
		http.Error(w, "failed to load polls", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing poll id", http.StatusBadRequest)
		return
	}

	poll, err := h.service.GetPoll(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPollNotFound) {
			http.Error(w, "poll not found", http.StatusNotFound)
			return
		}
		h.logger.Error("getting poll", "poll_id", id, "error", err)
		http.Error(w, "failed to load poll", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, poll)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("encoding response", "error", err)
	}
}
