package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"signage-ads/internal/core/port"
)

// WebSocketServer upgrades a request and joins the connection to rooms.
type WebSocketServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, rooms ...string)
}

// Instrumentation wraps requests with metrics and exposes the scrape
// endpoint.
type Instrumentation interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// Deps are the use cases and infrastructure the routes call into. Hub and
// Metrics are optional.
type Deps struct {
	Campaigns     port.CampaignUseCase
	Ledger        port.LedgerUseCase
	Subscriptions port.SubscriptionUseCase
	Locations     port.LocationUseCase
	Inbox         port.InboxUseCase
	Accounts      port.AccountUseCase
	Stats         port.StatsUseCase
	Verifier      *Verifier
	Hub           WebSocketServer
	Metrics       Instrumentation
}

// Handler is the inbound HTTP adapter. Routes are registered on a
// chi.Router; every handler decodes, calls one use case and maps the
// result or error to JSON.
type Handler struct {
	campaigns     port.CampaignUseCase
	ledger        port.LedgerUseCase
	subscriptions port.SubscriptionUseCase
	locations     port.LocationUseCase
	inbox         port.InboxUseCase
	accounts      port.AccountUseCase
	stats         port.StatsUseCase
	verifier      *Verifier
	hub           WebSocketServer
	logger        *slog.Logger
	router        chi.Router
}

// NewHandler creates a handler with all routes configured.
func NewHandler(deps Deps, logger *slog.Logger) *Handler {
	h := &Handler{
		campaigns:     deps.Campaigns,
		ledger:        deps.Ledger,
		subscriptions: deps.Subscriptions,
		locations:     deps.Locations,
		inbox:         deps.Inbox,
		accounts:      deps.Accounts,
		stats:         deps.Stats,
		verifier:      deps.Verifier,
		hub:           deps.Hub,
		logger:        logger.With(slog.String("component", "http")),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Get("/health", h.handleHealth)
	if h.hub != nil {
		r.With(h.Authenticate).Get("/ws", h.handleWebSocket)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.Authenticate)

		r.Post("/me", h.handleSyncAccount)

		r.With(h.RequireRole(RoleDriver, string(adminRole))).Get("/driver/campaigns", h.handleDriverFeed)
		r.With(h.RequireRole(RoleDriver)).Post("/campaigns/{id}/cycles", h.handleRecordCycle)

		r.Get("/campaigns", h.handleListCampaigns)
		r.Post("/campaigns", h.handleCreateCampaign)
		r.Put("/campaigns/{id}", h.handleEditCampaign)

		r.Get("/locations", h.handleListLocations)
		r.Post("/locations", h.handleCreateLocation)

		r.Get("/stats", h.handleStats)

		r.Get("/notifications", h.handleListNotifications)
		r.Post("/notifications/{id}/read", h.handleMarkRead)

		r.With(h.RequireRole(RoleBilling, string(adminRole))).Post("/billing/payments", h.handlePayment)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireRole(string(adminRole)))
			r.Get("/campaigns", h.handleReviewQueue)
			r.Post("/campaigns/{id}/approve", h.handleApprove)
			r.Post("/campaigns/{id}/reject", h.handleReject)
			r.Post("/subscriptions", h.handleCreatePlan)
			r.Post("/users/{id}/gift", h.handleGift)
			r.Post("/users/{id}/reactivate", h.handleReactivate)
		})
	})
	h.router = r
	return h
}

// Router returns the underlying http.Handler.
func (h *Handler) Router() http.Handler {
	return h.router
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebSocket joins the caller's own room and, for admins, the admin
// room. Rooms never come from the client.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	rooms := []string{port.UserRoom(p.UserID)}
	if p.AccountRole() == adminRole {
		rooms = append(rooms, port.AdminRoom)
	}
	h.hub.ServeWS(w, r, rooms...)
}
