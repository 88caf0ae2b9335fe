package web

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"order-ledger/internal/app"
	"order-ledger/internal/core"
)

// ── Orders ────────────────────────────────────────────────────────────────────

// apiListOrders handles GET /api/orders?q=&filter=&customerType=&shipment=.
func (h *Handler) apiListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := app.ParsePaymentFilter(q.Get("filter"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	req := app.ListOrdersRequest{Search: q.Get("q"), Filter: filter}
	if v := q.Get("customerType"); v != "" {
		ct, err := core.ParseCustomerType(v)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		req.CustomerType = &ct
	}
	if v := q.Get("shipment"); v != "" {
		st, err := core.ParseShipmentStatus(v)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		req.Shipment = &st
	}

	result, err := h.svc.ListOrders(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateOrder handles POST /api/orders.
func (h *Handler) apiCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreateOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiGetOrder handles GET /api/orders/{ref}; ref is an id or order number.
func (h *Handler) apiGetOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetOrder(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiUpdateOrder handles PUT /api/orders/{ref}.
func (h *Handler) apiUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req app.UpdateOrderRequest
	if !decodeJSON(w, r, &req.CreateOrderRequest) {
		return
	}
	req.Ref = chi.URLParam(r, "ref")
	result, err := h.svc.UpdateOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiRefundOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RefundOrder(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiReactivateOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ReactivateOrder(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiSetShipment handles POST /api/orders/{ref}/shipment with {"status": "shipped"}.
func (h *Handler) apiSetShipment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	status, err := core.ParseShipmentStatus(req.Status)
	if err == nil && status == "" {
		writeError(w, r, "status is required", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	result, err := h.svc.SetShipment(r.Context(), chi.URLParam(r, "ref"), status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiRecordPayment handles POST /api/orders/{ref}/payments.
func (h *Handler) apiRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req app.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Ref = chi.URLParam(r, "ref")
	result, err := h.svc.RecordPayment(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiAddRework handles POST /api/orders/{ref}/rework.
func (h *Handler) apiAddRework(w http.ResponseWriter, r *http.Request) {
	var req app.ReworkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Ref = chi.URLParam(r, "ref")
	result, err := h.svc.AddRework(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func itemIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, r, "invalid item id", "BAD_REQUEST", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// apiFactorySheet handles GET /api/orders/{ref}/items/{itemID}/factory-sheet as plain text.
func (h *Handler) apiFactorySheet(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDParam(w, r)
	if !ok {
		return
	}
	text, err := h.svc.FactorySheet(r.Context(), chi.URLParam(r, "ref"), itemID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, text)
}

// apiSetFactorySheet handles PUT with {"text": "..."}; an empty text resets it.
func (h *Handler) apiSetFactorySheet(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.SetFactorySheet(r.Context(), chi.URLParam(r, "ref"), itemID, req.Text)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.svc.Totals(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, totals)
}

// ── Bulk & trash ──────────────────────────────────────────────────────────────

type refsRequest struct {
	Refs []string `json:"refs"`
}

type idsRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// apiTrashOrders handles POST /api/orders/trash with {"refs": [...]}.
func (h *Handler) apiTrashOrders(w http.ResponseWriter, r *http.Request) {
	var req refsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.TrashOrders(r.Context(), req.Refs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiDeleteOrders handles POST /api/orders/delete; this skips the trash.
func (h *Handler) apiDeleteOrders(w http.ResponseWriter, r *http.Request) {
	var req refsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.DeleteOrders(r.Context(), req.Refs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiListTrash(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListTrash(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiRestoreOrders(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.RestoreOrders(r.Context(), req.IDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiPurgeOrders(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.PurgeOrders(r.Context(), req.IDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiImportOrders handles POST /api/import with an order document as the body.
func (h *Handler) apiImportOrders(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ImportOrders(r.Context(), data)
	if err != nil {
		writeError(w, r, err.Error(), "IMPORT_FAILED", http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, result)
}
