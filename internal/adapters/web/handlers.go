package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"order-ledger/internal/app"
)

const (
	jsonBodyLimit   = 1 << 20   // 1 MB
	imageBodyLimit  = 20 << 20  // 20 MB
	backupBodyLimit = 512 << 20 // 512 MB
)

// Options configures NewHandler.
type Options struct {
	AllowedOrigins string
	JWTSecret      string
	Logger         *zap.Logger
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
	logger    *zap.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{svc: svc, jwtSecret: opts.JWTSecret, logger: logger}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(opts.AllowedOrigins))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	// ── Protected API routes ──────────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		// Binary uploads manage their own limits.
		r.With(RequestBodyLimit(imageBodyLimit)).Post("/api/images", h.apiUploadImage)
		r.With(RequestBodyLimit(backupBodyLimit)).Post("/api/backup/restore", h.apiRestoreBackup)
		r.With(RequestBodyLimit(backupBodyLimit)).Post("/api/import", h.apiImportOrders)

		r.Group(func(r chi.Router) {
			r.Use(RequestBodyLimit(jsonBodyLimit))

			r.Get("/api/auth/me", h.me)

			// ── Orders ────────────────────────────────────────────────────────
			r.Get("/api/orders", h.apiListOrders)
			r.Post("/api/orders", h.apiCreateOrder)
			r.Post("/api/orders/trash", h.apiTrashOrders)
			r.Post("/api/orders/delete", h.apiDeleteOrders)
			r.Get("/api/orders/{ref}", h.apiGetOrder)
			r.Put("/api/orders/{ref}", h.apiUpdateOrder)
			r.Post("/api/orders/{ref}/refund", h.apiRefundOrder)
			r.Post("/api/orders/{ref}/reactivate", h.apiReactivateOrder)
			r.Post("/api/orders/{ref}/shipment", h.apiSetShipment)
			r.Post("/api/orders/{ref}/payments", h.apiRecordPayment)
			r.Post("/api/orders/{ref}/rework", h.apiAddRework)
			r.Get("/api/orders/{ref}/items/{itemID}/factory-sheet", h.apiFactorySheet)
			r.Put("/api/orders/{ref}/items/{itemID}/factory-sheet", h.apiSetFactorySheet)
			r.Get("/api/totals", h.apiTotals)

			// ── Trash ─────────────────────────────────────────────────────────
			r.Get("/api/trash", h.apiListTrash)
			r.Post("/api/trash/restore", h.apiRestoreOrders)
			r.Post("/api/trash/purge", h.apiPurgeOrders)

			// ── Analytics ─────────────────────────────────────────────────────
			r.Get("/api/analytics", h.apiCurrentAnalytics)
			r.Post("/api/analytics", h.apiConfigureAnalytics)
			r.Get("/api/analytics/query", h.apiQueryAnalytics)

			// ── Reports & files ───────────────────────────────────────────────
			r.Get("/api/reports/shipments", h.apiShipmentReport)
			r.Get("/api/export/csv", h.apiExportCSV)
			r.Get("/api/images/{id}", h.apiGetImage)
			r.Get("/api/backup", h.apiWriteBackup)

			// ── Settings & schema ─────────────────────────────────────────────
			r.Get("/api/settings", h.apiGetSettings)
			r.Patch("/api/settings", h.apiUpdateSettings)
			r.Get("/api/schema/orders", h.apiOrderSchema)
		})
	})

	h.router = r
	return r
}

// health reports service status and the number of active orders.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
		Orders int    `json:"orders"`
	}
	list, err := h.svc.ListOrders(r.Context(), app.ListOrdersRequest{})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, response{Status: "ok", Orders: len(list.Orders)})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
