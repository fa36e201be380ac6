package http

import (
	"net/http"

	"github.com/vncsmyrnk/pollvoter/internal/core/ports"
)

type SummaryHandler struct {
	reader ports.SummaryReader
}

func NewSummaryHandler(reader ports.SummaryReader) *SummaryHandler {
	return &SummaryHandler{reader: reader}
}

// LastSummary responds 404 until the first cycle has finished.
func (h *SummaryHandler) LastSummary(w http.ResponseWriter, r *http.Request) {
	summary := h.reader.LastSummary()
	if summary == nil {
		http.Error(w, "no cycle has finished yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
