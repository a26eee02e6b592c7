package httpadapter

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
)

type syncResponse struct {
	User    *domain.User `json:"user"`
	Created bool         `json:"created"`
}

// handleSyncAccount mirrors the token identity into the account table.
// Clients call it once after sign-in.
func (h *Handler) handleSyncAccount(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	u, created, err := h.accounts.Sync(r.Context(), domain.User{
		ID:    p.UserID,
		Email: p.Email,
		Name:  p.Name,
		Role:  p.AccountRole(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, syncResponse{User: u, Created: created})
}

func (h *Handler) handleListLocations(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	list, err := h.locations.List(r.Context(), p.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	var in port.LocationInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	l, err := h.locations.Create(r.Context(), p.UserID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	list, err := h.inbox.List(r.Context(), p.UserID, p.AccountRole())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	if err := h.inbox.MarkRead(r.Context(), p.UserID, p.AccountRole(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePayment takes a payment the billing bridge has already verified.
func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	var in port.PaymentInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.subscriptions.PaymentSucceeded(r.Context(), in); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var in port.PlanInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	plan, err := h.subscriptions.CreatePlan(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

type giftRequest struct {
	SubscriptionID string `json:"subscriptionId"`
}

func (h *Handler) handleGift(w http.ResponseWriter, r *http.Request) {
	var req giftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.subscriptions.Gift(r.Context(), chi.URLParam(r, "id"), req.SubscriptionID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.subscriptions.Reactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
