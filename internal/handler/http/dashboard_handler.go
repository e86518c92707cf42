package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vasiliy-maslov/winex/internal/dashboard"
	"github.com/vasiliy-maslov/winex/internal/order"
)

const (
	dateLayout             = "2006-01-02"
	defaultTopProductLimit = 10
	maxTopProductLimit     = 50
)

type RevenueResponse struct {
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Revenue string    `json:"revenue"`
}

type StatsResponse struct {
	Range        *dashboard.Range       `json:"range,omitempty"`
	StatusCounts dashboard.StatusCounts `json:"status_counts"`
	Total        int                    `json:"total"`
}

type DashboardHandler struct {
	svc dashboard.Service
	loc *time.Location
	now func() time.Time
}

// NewDashboardHandler parses calendar dates from query strings in loc.
func NewDashboardHandler(svc dashboard.Service, loc *time.Location) *DashboardHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardHandler{svc: svc, loc: loc, now: time.Now}
}

// RegisterStaffRoutes mounts the read-side endpoints under an already authenticated staff router.
func (h *DashboardHandler) RegisterStaffRoutes(router chi.Router) {
	router.Get("/orders", h.handleListOrders)

	router.Get("/dashboard", h.handleOverview)
	router.Get("/dashboard/stats", h.handleStats)
	router.Get("/dashboard/display", h.handleDisplay)
	router.Get("/dashboard/revenue", h.handleRevenue)
	router.Get("/dashboard/new-orders", h.handleNewOrders)

	router.Get("/reports/today", h.handleToday)
	router.Get("/reports/sales", h.handleSales)
	router.Get("/reports/top-products", h.handleTopProducts)
}

// parseRange reads an inclusive pair of calendar dates. Both empty means no range.
func (h *DashboardHandler) parseRange(r *http.Request, fromKey, toKey string) (*dashboard.Range, error) {
	q := r.URL.Query()
	fromRaw, toRaw := q.Get(fromKey), q.Get(toKey)
	if fromRaw == "" && toRaw == "" {
		return nil, nil
	}
	if fromRaw == "" || toRaw == "" {
		return nil, fmt.Errorf("%w: both %s and %s are required", dashboard.ErrInvalidFilter, fromKey, toKey)
	}

	from, err := time.ParseInLocation(dateLayout, fromRaw, h.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD", dashboard.ErrInvalidFilter, fromKey)
	}
	to, err := time.ParseInLocation(dateLayout, toRaw, h.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD", dashboard.ErrInvalidFilter, toKey)
	}

	rng := dashboard.Range{From: from, To: to.AddDate(0, 0, 1)}
	if !rng.Valid() {
		return nil, fmt.Errorf("%w: %s is after %s", dashboard.ErrInvalidFilter, fromKey, toKey)
	}
	return &rng, nil
}

func (h *DashboardHandler) today() dashboard.Range {
	now := h.now().In(h.loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
	return dashboard.Range{From: day, To: day.AddDate(0, 0, 1)}
}

func intQuery(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", dashboard.ErrInvalidFilter, key)
	}
	return n, nil
}

func (h *DashboardHandler) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.svc.Overview(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to load dashboard")
		return
	}
	respondWithJSON(w, http.StatusOK, overview)
}

func (h *DashboardHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	rng, err := h.parseRange(r, "from", "to")
	if err != nil {
		respondWithServiceError(w, err, "Failed to load stats")
		return
	}

	counts, err := h.svc.StatusCounts(r.Context(), rng)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load stats")
		return
	}
	respondWithJSON(w, http.StatusOK, StatsResponse{Range: rng, StatusCounts: counts, Total: counts.Total()})
}

func (h *DashboardHandler) handleDisplay(w http.ResponseWriter, r *http.Request) {
	display, err := h.svc.LiveDisplay(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to load live display")
		return
	}
	respondWithJSON(w, http.StatusOK, display)
}

func (h *DashboardHandler) handleRevenue(w http.ResponseWriter, r *http.Request) {
	rng, err := h.parseRange(r, "from", "to")
	if err != nil {
		respondWithServiceError(w, err, "Failed to load revenue")
		return
	}
	if rng == nil {
		today := h.today()
		rng = &today
	}

	revenue, err := h.svc.Revenue(r.Context(), *rng)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load revenue")
		return
	}
	respondWithJSON(w, http.StatusOK, RevenueResponse{From: rng.From, To: rng.To, Revenue: revenue.StringFixed(2)})
}

// handleNewOrders backs the counter's polling badge. since is RFC 3339 and optional.
func (h *DashboardHandler) handleNewOrders(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		since = parsed
	}

	result, err := h.svc.NewOrderCount(r.Context(), since)
	if err != nil {
		respondWithServiceError(w, err, "Failed to count new orders")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *DashboardHandler) handleToday(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.TodayReport(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to build today's report")
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

func (h *DashboardHandler) handleSales(w http.ResponseWriter, r *http.Request) {
	rng, err := h.parseRange(r, "start_date", "end_date")
	if err != nil {
		respondWithServiceError(w, err, "Failed to build sales report")
		return
	}

	report, err := h.svc.SalesReport(r.Context(), rng)
	if err != nil {
		respondWithServiceError(w, err, "Failed to build sales report")
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

func (h *DashboardHandler) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", defaultTopProductLimit)
	if err != nil {
		respondWithServiceError(w, err, "Failed to rank products")
		return
	}
	if limit > maxTopProductLimit {
		limit = maxTopProductLimit
	}

	products, err := h.svc.TopProducts(r.Context(), limit)
	if err != nil {
		respondWithServiceError(w, err, "Failed to rank products")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *DashboardHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	rng, err := h.parseRange(r, "from", "to")
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}
	page, err := intQuery(r, "page", 1)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}
	limit, err := intQuery(r, "limit", dashboard.DefaultPageLimit)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}

	result, err := h.svc.ListOrders(r.Context(), dashboard.OrderFilter{
		Status: order.OrderStatus(q.Get("status")),
		Type:   order.OrderType(q.Get("order_type")),
		Preset: dashboard.DatePreset(q.Get("date")),
		Range:  rng,
		Search: q.Get("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
