package web

import (
	"net/http"
	"net/url"
	"time"

	"order-ledger/internal/analytics"
	"order-ledger/internal/app"
	"order-ledger/internal/core"
)

// apiCurrentAnalytics handles GET /api/analytics: the session's current selection.
func (h *Handler) apiCurrentAnalytics(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.CurrentAnalytics(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiConfigureAnalytics handles POST /api/analytics with an AnalyticsRequest.
func (h *Handler) apiConfigureAnalytics(w http.ResponseWriter, r *http.Request) {
	var req app.AnalyticsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.ConfigureAnalytics(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiQueryAnalytics handles GET /api/analytics/query without touching the session.
// Parameters: granularity, anchor, from, to (RFC 3339 or YYYY-MM-DD),
// customerType, comparison, customer.
func (h *Handler) apiQueryAnalytics(w http.ResponseWriter, r *http.Request) {
	cfg, err := configFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err.Error(), "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}
	result, err := h.svc.ComputeAnalytics(r.Context(), cfg)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func configFromQuery(q url.Values) (analytics.Config, error) {
	var cfg analytics.Config
	var err error
	if v := q.Get("granularity"); v != "" {
		if cfg.Granularity, err = analytics.ParseGranularity(v); err != nil {
			return cfg, err
		}
	}
	if v := q.Get("comparison"); v != "" {
		if cfg.Comparison, err = analytics.ParseComparison(v); err != nil {
			return cfg, err
		}
	}
	if v := q.Get("anchor"); v != "" {
		if cfg.Anchor, err = parseTimeParam(v); err != nil {
			return cfg, err
		}
	}
	if from, to := q.Get("from"), q.Get("to"); from != "" && to != "" {
		f, err := parseTimeParam(from)
		if err != nil {
			return cfg, err
		}
		t, err := parseTimeParam(to)
		if err != nil {
			return cfg, err
		}
		cfg.Custom = &analytics.CustomRange{From: f, To: t}
	}
	if v := q.Get("customerType"); v != "" && v != "all" {
		ct, err := core.ParseCustomerType(v)
		if err != nil {
			return cfg, err
		}
		cfg.CustomerType = &ct
	}
	cfg.SelectedCustomer = q.Get("customer")
	return cfg, nil
}

func parseTimeParam(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", v, time.Local)
}
