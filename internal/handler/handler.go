// Package handler is the thin HTTP layer over the aggregation orchestrator.
// It parses and validates transport input, delegates, and renders JSON; no
// business logic lives here.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"venuehub/internal/aggregator"
	"venuehub/internal/provider"
	"venuehub/internal/venue"
	"venuehub/pkg/platform/httputil"
)

type Handler struct {
	agg    *aggregator.Orchestrator
	logger *slog.Logger
}

func New(agg *aggregator.Orchestrator, logger *slog.Logger) *Handler {
	return &Handler{agg: agg, logger: logger}
}

// Router builds the public route table. The metrics gatherer is passed in so
// tests can use an isolated registry.
func (h *Handler) Router(gatherer prometheus.Gatherer) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/venues/search", h.search)
	r.Get("/venues/near", h.near)
	r.Get("/venues/{id}", h.details)
	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := venue.SearchQuery{
		Term:   strings.TrimSpace(q.Get("q")),
		SortBy: venue.SortOrder(q.Get("sort")),
	}
	if cats := q.Get("categories"); cats != "" {
		query.Categories = strings.Split(cats, ",")
	}

	var err error
	if query.Limit, err = intParam(q.Get("limit"), 0); err != nil {
		httputil.WriteError(w, httputil.New(httputil.CodeBadRequest, "limit must be an integer"))
		return
	}
	if query.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		httputil.WriteError(w, httputil.New(httputil.CodeBadRequest, "offset must be an integer"))
		return
	}
	if query.RadiusM, err = intParam(q.Get("radius_m"), 0); err != nil {
		httputil.WriteError(w, httputil.New(httputil.CodeBadRequest, "radius_m must be an integer"))
		return
	}

	if latStr, lngStr := q.Get("lat"), q.Get("lng"); latStr != "" || lngStr != "" {
		lat, lng, err := parsePoint(latStr, lngStr)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		query.Lat, query.Lng, query.HasLoc = lat, lng, true
	}

	if query.Term == "" && !query.HasLoc && len(query.Categories) == 0 {
		httputil.WriteError(w, httputil.New(httputil.CodeBadRequest, "query needs q, lat/lng, or categories"))
		return
	}

	result, err := h.agg.SearchVenues(r.Context(), query)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "search failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) near(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, lng, err := parsePoint(q.Get("lat"), q.Get("lng"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	radiusKm := 1.0
	if v := q.Get("radius_km"); v != "" {
		radiusKm, err = strconv.ParseFloat(v, 64)
		if err != nil || radiusKm <= 0 {
			httputil.WriteError(w, httputil.New(httputil.CodeBadRequest, "radius_km must be a positive number"))
			return
		}
	}

	result, err := h.agg.VenuesNear(r.Context(), lat, lng, radiusKm)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "near query failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) details(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	v, err := h.agg.VenueDetails(r.Context(), id)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			httputil.WriteError(w, httputil.New(httputil.CodeNotFound, "no venue with that id"))
			return
		}
		h.logger.ErrorContext(r.Context(), "details failed", "venue", id, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	report := h.agg.Health(r.Context())

	status := http.StatusOK
	if report.Overall == aggregator.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, report)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func parsePoint(latStr, lngStr string) (float64, float64, error) {
	lat, latErr := strconv.ParseFloat(latStr, 64)
	lng, lngErr := strconv.ParseFloat(lngStr, 64)
	if latErr != nil || lngErr != nil {
		return 0, 0, httputil.New(httputil.CodeBadRequest, "lat and lng must both be numbers")
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, httputil.New(httputil.CodeBadRequest, "lat/lng out of range")
	}
	return lat, lng, nil
}
