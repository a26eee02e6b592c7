package httpadapter

import (
	"net/http"
	"time"

	"signage-ads/internal/core/port"
	"signage-ads/internal/validation"
)

// handleStats returns the caller's play counts. from and to are RFC 3339
// timestamps; both are optional.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	q := r.URL.Query()
	req := port.StatsReq{UserID: p.UserID, CampaignID: q.Get("campaignId")}
	for name, dst := range map[string]*time.Time{"from": &req.From, "to": &req.To} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, r, validation.Errorf("%s must be an RFC 3339 timestamp", name))
			return
		}
		*dst = t
	}

	resp, err := h.stats.GetStats(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
