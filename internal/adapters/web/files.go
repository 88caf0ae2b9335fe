package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"order-ledger/internal/app"
	"order-ledger/internal/backup"
	"order-ledger/internal/report"
)

// ── Reports ───────────────────────────────────────────────────────────────────

// apiShipmentReport handles GET /api/reports/shipments. With ?format=text the
// shareable plain text report is returned instead of JSON.
func (h *Handler) apiShipmentReport(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ShipmentReport(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, result.Text)
		return
	}
	writeJSON(w, result)
}

// apiExportCSV streams the order spreadsheet as an attachment.
func (h *Handler) apiExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.ExportCSV(r.Context(), &buf); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(report.ExportFileName(time.Now())))
	_, _ = w.Write(buf.Bytes())
}

// ── Images ────────────────────────────────────────────────────────────────────

// apiUploadImage stores the raw request body and returns its id.
func (h *Handler) apiUploadImage(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	if len(data) == 0 {
		writeError(w, r, "empty image body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	id, err := h.svc.SaveImage(r.Context(), data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) apiGetImage(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.LoadImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=86400")
	_, _ = w.Write(data)
}

// ── Backup ────────────────────────────────────────────────────────────────────

// apiWriteBackup builds the archive in memory so a failure can still be
// reported as JSON before any bytes are sent.
func (h *Handler) apiWriteBackup(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	summary, err := h.svc.WriteBackup(r.Context(), &buf)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.logger.Info("backup written",
		zap.Int("orders", summary.Orders),
		zap.Int("images", summary.Images),
		zap.Int("missing_images", summary.MissingImages))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(backup.FileName(time.Now())))
	_, _ = w.Write(buf.Bytes())
}

// apiRestoreBackup accepts a backup archive as the raw request body.
func (h *Handler) apiRestoreBackup(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	result, err := h.svc.RestoreBackup(r.Context(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// ── Settings & schema ─────────────────────────────────────────────────────────

func (h *Handler) apiGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.GetSettings(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, settings)
}

func (h *Handler) apiUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req app.SettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	settings, err := h.svc.UpdateSettings(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, settings)
}

func (h *Handler) apiOrderSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	if err := json.NewEncoder(w).Encode(h.svc.OrderSchema()); err != nil {
		h.logger.Warn("failed to encode schema", zap.Error(err))
	}
}

// readBody reads the whole request body, answering 413 when RequestBodyLimit trips.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		writeError(w, r, "failed to read body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return nil, false
	}
	return data, true
}

func attachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}
