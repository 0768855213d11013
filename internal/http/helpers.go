package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"budgetview/internal/core"
	"budgetview/internal/report"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// queryYear parses the optional year parameter. Zero means no year filter.
func queryYear(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("year"))
	if raw == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1900 || year > 9999 {
		return 0, fmt.Errorf("invalid year %q", raw)
	}
	return year, nil
}

// queryGranularity parses time_granularity, defaulting to Monthly.
func queryGranularity(r *http.Request) (core.Granularity, error) {
	raw := r.URL.Query().Get("time_granularity")
	if strings.TrimSpace(raw) == "" {
		return core.Monthly, nil
	}
	return core.ParseGranularity(raw)
}

// queryNumPeriods parses num_periods, defaulting to 12 and capping at 120.
func queryNumPeriods(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("num_periods"))
	if raw == "" {
		return 12, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid num_periods %q", raw)
	}
	if n > 120 {
		n = 120
	}
	return n, nil
}

// queryCategories splits a comma-separated category list. Entries may be a
// bare category or "Category:Subcategory". Empty entries are dropped.
func queryCategories(r *http.Request, param string) report.CategoryFilter {
	raw := r.URL.Query().Get(param)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	filter := make(report.CategoryFilter, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		filter = append(filter, p)
	}
	return filter
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid transaction id %q", raw)
	}
	return id, nil
}

// cacheKey identifies a report response by its full request path and query.
// The profile_id parameter is part of the query string and therefore of the
// key, which keeps the key stable for clients that always send it.
func cacheKey(r *http.Request) string {
	return r.URL.Path + "?" + r.URL.RawQuery
}
