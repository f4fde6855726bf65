package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"linkshrink/pkg/metrics"
	"linkshrink/pkg/middleware"
	"linkshrink/pkg/service"
	"linkshrink/pkg/storage"

	"github.com/go-chi/chi/v5"
)

// Handler adapts the link services to HTTP. The requester identity comes
// from the X-Remote-User header, set by the SSO proxy that fronts the API.
type Handler struct {
	links   *service.LinkService
	visits  *service.VisitRecorder
	stats   *service.AggregationEngine
	baseURL string
}

func NewHandler(links *service.LinkService, visits *service.VisitRecorder, stats *service.AggregationEngine, baseURL string) *Handler {
	return &Handler{
		links:   links,
		visits:  visits,
		stats:   stats,
		baseURL: baseURL,
	}
}

func requester(r *http.Request) string {
	return r.Header.Get("X-Remote-User")
}

type createLinkResponse struct {
	Key      string `json:"key"`
	ShortURL string `json:"short_url"`
}

func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req service.CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.LongURL == "" {
		http.Error(w, "long_url is required", http.StatusBadRequest)
		return
	}
	if req.OwnerID == nil {
		if user := requester(r); user != "" {
			req.OwnerID = &user
		}
	}

	key, err := h.links.Create(r.Context(), &req)
	if err != nil {
		metrics.LinksCreatedTotal.WithLabelValues("error").Inc()
		writeError(w, err)
		return
	}
	metrics.LinksCreatedTotal.WithLabelValues("ok").Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(createLinkResponse{
		Key:      key,
		ShortURL: h.baseURL + "/r/" + key,
	})
}

func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var userAgent, referer *string
	if ua := r.UserAgent(); ua != "" {
		userAgent = &ua
	}
	if ref := r.Referer(); ref != "" {
		referer = &ref
	}

	longURL, err := h.visits.Record(r.Context(), key, middleware.ClientIP(r), userAgent, referer)
	if err != nil {
		if service.IsNotFound(err) {
			metrics.RedirectsTotal.WithLabelValues("not_found").Inc()
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		metrics.RedirectsTotal.WithLabelValues("error").Inc()
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	metrics.RedirectsTotal.WithLabelValues("ok").Inc()
	metrics.VisitsRecordedTotal.Inc()

	http.Redirect(w, r, longURL, http.StatusFound)
}

func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.Lookup(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, link)
}

func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.LongURL == "" {
		http.Error(w, "long_url is required", http.StatusBadRequest)
		return
	}

	if err := h.links.Modify(r.Context(), chi.URLParam(r, "key"), requester(r), &req); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	res, err := h.links.Delete(r.Context(), chi.URLParam(r, "key"), requester(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) SearchLinks(w http.ResponseWriter, r *http.Request) {
	q := storage.SearchQuery{
		Query:   r.URL.Query().Get("q"),
		OwnerID: r.URL.Query().Get("owner"),
	}
	if s := r.URL.Query().Get("sort"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < int(storage.SortTimeDesc) || n > int(storage.SortPopDesc) {
			http.Error(w, "invalid sort order", http.StatusBadRequest)
			return
		}
		q.Sort = storage.SortOrder(n)
	}
	q.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	q.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))

	results, err := h.links.Search(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, results)
}

func (h *Handler) DeleteOwnerLinks(w http.ResponseWriter, r *http.Request) {
	res, err := h.links.DeleteByOwner(r.Context(), chi.URLParam(r, "owner"), requester(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) CountLinks(w http.ResponseWriter, r *http.Request) {
	n, err := h.links.Count(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]int64{"count": n})
}

func (h *Handler) MonthlyStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	stats, err := h.stats.MonthlyStats(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.ObserveAggregation("monthly", time.Since(start))
	writeJSON(w, stats)
}

func (h *Handler) DailyStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	stats, err := h.stats.DailyStats(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.ObserveAggregation("daily", time.Since(start))
	writeJSON(w, stats)
}

func (h *Handler) RefererStats(w http.ResponseWriter, r *http.Request) {
	rows, err := h.stats.RefererStats(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, rows)
}

func (h *Handler) UserAgentStats(w http.ResponseWriter, r *http.Request) {
	rows, err := h.stats.UserAgentStats(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, rows)
}

type visitsResponse struct {
	Visits []storage.VisitEvent `json:"visits"`
	Total  int64                `json:"total"`
}

func (h *Handler) Visits(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	ok, err := h.links.IsOwnerOrAdmin(r.Context(), key, requester(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		http.Error(w, "not authorized", http.StatusForbidden)
		return
	}

	events, total, err := h.visits.Visits(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, visitsResponse{Visits: events, Total: total})
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	fixed, err := h.visits.ReconcileVisitCounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]int64{"corrected": fixed})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrForbiddenDomain), errors.Is(err, service.ErrForbiddenName):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, service.ErrDuplicateKey):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrNotAuthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
