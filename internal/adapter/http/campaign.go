package httpadapter

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
)

// feedItem is one playable campaign as the kiosk sees it. The owner's
// subscription stays on the server.
type feedItem struct {
	domain.Campaign
	MaxRunCycleLimit int `json:"maxRunCycleLimit"`
}

// handleDriverFeed returns every campaign playable right now. Kiosks
// apply the geofence themselves as the vehicle moves.
func (h *Handler) handleDriverFeed(w http.ResponseWriter, r *http.Request) {
	cands, err := h.campaigns.DriverFeed(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]feedItem, 0, len(cands))
	for _, c := range cands {
		items = append(items, feedItem{Campaign: c.Campaign, MaxRunCycleLimit: c.MaxRunCycleLimit})
	}
	writeJSON(w, http.StatusOK, items)
}

// handleRecordCycle counts one completed playback. Conflicts mean the
// campaign or its plan is done and the kiosk should drop it.
func (h *Handler) handleRecordCycle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, r, pathError("id"))
		return
	}
	var req port.CycleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.CampaignID = id
	res, err := h.ledger.RecordCycle(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	list, err := h.campaigns.List(r.Context(), p.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	var in port.CampaignInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.campaigns.Create(r.Context(), p.UserID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleEditCampaign(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	var in port.CampaignInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.campaigns.Edit(r.Context(), p.UserID, chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleReviewQueue lists campaigns by ?status=a,b; pending by default.
func (h *Handler) handleReviewQueue(w http.ResponseWriter, r *http.Request) {
	var statuses []domain.CampaignStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, domain.CampaignStatus(s))
			}
		}
	}
	list, err := h.campaigns.ListByStatus(r.Context(), statuses...)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.campaigns.Reject(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
