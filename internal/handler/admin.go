package handler

import "net/http"

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	s, err := h.Dashboard.Statistics(r.Context())
	respond(w, r, s, err)
}

func (h *Handler) revenue(w http.ResponseWriter, r *http.Request) {
	rev, err := h.Dashboard.Revenue(r.Context())
	respond(w, r, rev, err)
}

func (h *Handler) queueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.Jobs.Status())
}
