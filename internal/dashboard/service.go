package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/winex/internal/catalog"
	"github.com/vasiliy-maslov/winex/internal/order"
)

const (
	defaultDisplayLimit = 20
	defaultSalesDays    = 30
	overviewTopProducts = 5
	overviewRecent      = 5
)

type Service interface {
	StatusCounts(ctx context.Context, r *Range) (StatusCounts, error)
	Revenue(ctx context.Context, r Range) (decimal.Decimal, error)
	TopProducts(ctx context.Context, n int) ([]TopProduct, error)
	LiveDisplay(ctx context.Context) (*LiveDisplay, error)
	SalesReport(ctx context.Context, r *Range) (*SalesReport, error)
	TodayReport(ctx context.Context) (*TodayReport, error)
	ListOrders(ctx context.Context, f OrderFilter) (*OrderPage, error)
	Overview(ctx context.Context) (*Overview, error)
	// NewOrderCount counts pending orders placed since the given moment; a zero since means
	// the last NewOrdersWindow.
	NewOrderCount(ctx context.Context, since time.Time) (*NewOrders, error)
}

// InventorySource is the slice of the catalog the overview needs.
type InventorySource interface {
	InventoryStats(ctx context.Context) (catalog.InventoryStats, error)
}

type service struct {
	repo      Repository
	inventory InventorySource

	displayLimit int
	now          func() time.Time
	loc          *time.Location
}

type Option func(*service)

func WithDisplayLimit(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.displayLimit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithLocation sets the time zone in which "today" and date presets are evaluated.
func WithLocation(loc *time.Location) Option {
	return func(s *service) { s.loc = loc }
}

func NewService(repo Repository, inventory InventorySource, opts ...Option) Service {
	s := &service{
		repo:         repo,
		inventory:    inventory,
		displayLimit: defaultDisplayLimit,
		now:          time.Now,
		loc:          time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) today() time.Time {
	now := s.now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
}

func (s *service) StatusCounts(ctx context.Context, r *Range) (StatusCounts, error) {
	if r != nil && !r.Valid() {
		return nil, fmt.Errorf("%w: range start must be before its end", ErrInvalidFilter)
	}
	counts, err := s.repo.StatusCounts(ctx, r)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to count orders by status")
		return nil, fmt.Errorf("service: failed to count orders by status: %w", err)
	}
	return counts, nil
}

func (s *service) Revenue(ctx context.Context, r Range) (decimal.Decimal, error) {
	if !r.Valid() {
		return decimal.Zero, fmt.Errorf("%w: range start must be before its end", ErrInvalidFilter)
	}
	total, err := s.repo.Revenue(ctx, r)
	if err != nil {
		log.Error().Err(err).Time("from", r.From).Time("to", r.To).Msg("service: failed to sum revenue")
		return decimal.Zero, fmt.Errorf("service: failed to sum revenue: %w", err)
	}
	return total, nil
}

func (s *service) TopProducts(ctx context.Context, n int) ([]TopProduct, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidFilter)
	}
	products, err := s.repo.TopProducts(ctx, n)
	if err != nil {
		log.Error().Err(err).Int("limit", n).Msg("service: failed to rank products")
		return nil, fmt.Errorf("service: failed to rank products: %w", err)
	}
	return products, nil
}

// SortForDisplay orders active orders by hand-over proximity, oldest first within a status.
func SortForDisplay(orders []DisplayOrder) {
	sort.SliceStable(orders, func(i, j int) bool {
		pi, pj := order.DisplayPriority(orders[i].Status), order.DisplayPriority(orders[j].Status)
		if pi != pj {
			return pi < pj
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}

func (s *service) LiveDisplay(ctx context.Context) (*LiveDisplay, error) {
	orders, err := s.repo.ActiveOrders(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to load live display")
		return nil, fmt.Errorf("service: failed to load live display: %w", err)
	}

	d := &LiveDisplay{GeneratedAt: s.now()}
	for _, o := range orders {
		switch o.Status {
		case order.StatusReady:
			d.ReadyCount++
		case order.StatusPreparing:
			d.PreparingCount++
		case order.StatusPending:
			d.PendingCount++
		}
	}

	SortForDisplay(orders)
	if len(orders) > s.displayLimit {
		orders = orders[:s.displayLimit]
	}
	for i := range orders {
		orders[i].Number = order.OrderNumber(orders[i].ID)
	}
	d.Orders = orders
	return d, nil
}

func (s *service) SalesReport(ctx context.Context, r *Range) (*SalesReport, error) {
	rng := Range{From: s.today().AddDate(0, 0, -defaultSalesDays+1), To: s.today().AddDate(0, 0, 1)}
	if r != nil {
		if !r.Valid() {
			return nil, fmt.Errorf("%w: range start must be before its end", ErrInvalidFilter)
		}
		rng = *r
	}

	days, err := s.repo.DailySales(ctx, rng)
	if err != nil {
		log.Error().Err(err).Time("from", rng.From).Time("to", rng.To).Msg("service: failed to build sales report")
		return nil, fmt.Errorf("service: failed to build sales report: %w", err)
	}

	report := &SalesReport{Range: rng, Days: days, TotalRevenue: decimal.Zero}
	for _, d := range days {
		report.TotalRevenue = report.TotalRevenue.Add(d.Revenue)
		report.TotalOrders += d.Orders
	}
	return report, nil
}

func (s *service) TodayReport(ctx context.Context) (*TodayReport, error) {
	day := s.today()
	rng := Range{From: day, To: day.AddDate(0, 0, 1)}

	counts, err := s.repo.StatusCounts(ctx, &rng)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to count today's orders")
		return nil, fmt.Errorf("service: failed to build today's report: %w", err)
	}
	revenue, err := s.repo.Revenue(ctx, rng)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to sum today's revenue")
		return nil, fmt.Errorf("service: failed to build today's report: %w", err)
	}

	report := &TodayReport{
		Date:              day,
		Orders:            counts.Total(),
		Revenue:           revenue,
		AverageOrderValue: decimal.Zero,
		ByStatus:          counts,
	}
	if report.Orders > 0 {
		report.AverageOrderValue = revenue.Div(decimal.NewFromInt(int64(report.Orders))).Round(2)
	}
	return report, nil
}

// resolve turns a user-supplied filter into absolute dates and clamped paging.
func (s *service) resolve(f OrderFilter) (OrderQuery, int, error) {
	q := OrderQuery{Status: f.Status, Type: f.Type}

	if f.Status != "" {
		if _, err := order.ParseStatus(string(f.Status)); err != nil {
			return OrderQuery{}, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, f.Status)
		}
	}
	if f.Type != "" {
		if _, err := order.ParseType(string(f.Type)); err != nil {
			return OrderQuery{}, 0, fmt.Errorf("%w: unknown order type %q", ErrInvalidFilter, f.Type)
		}
	}

	today := s.today()
	switch f.Preset {
	case "":
		if f.Range != nil {
			if !f.Range.Valid() {
				return OrderQuery{}, 0, fmt.Errorf("%w: range start must be before its end", ErrInvalidFilter)
			}
			q.Range = f.Range
		}
	case PresetToday:
		q.Range = &Range{From: today, To: today.AddDate(0, 0, 1)}
	case PresetYesterday:
		q.Range = &Range{From: today.AddDate(0, 0, -1), To: today}
	case PresetWeek:
		q.Range = &Range{From: today.AddDate(0, 0, -7), To: today.AddDate(0, 0, 1)}
	case PresetMonth:
		q.Range = &Range{From: today.AddDate(0, 0, -30), To: today.AddDate(0, 0, 1)}
	default:
		return OrderQuery{}, 0, fmt.Errorf("%w: unknown date preset %q", ErrInvalidFilter, f.Preset)
	}

	search := strings.TrimSpace(f.Search)
	search = strings.TrimPrefix(search, "#")
	if upper := strings.ToUpper(search); strings.HasPrefix(upper, "ORD-") {
		search = search[len("ORD-"):]
	}
	q.Search = search

	page := f.Page
	switch {
	case page < 1:
		page = 1
	case page > MaxPage:
		page = MaxPage
	}
	limit := f.Limit
	switch {
	case limit <= 0:
		limit = DefaultPageLimit
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}
	q.Limit = limit
	q.Offset = (page - 1) * limit
	return q, page, nil
}

func (s *service) ListOrders(ctx context.Context, f OrderFilter) (*OrderPage, error) {
	q, page, err := s.resolve(f)
	if err != nil {
		return nil, err
	}

	rows, total, err := s.repo.ListOrders(ctx, q)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	numberRows(rows)

	return &OrderPage{
		Orders: rows,
		Total:  total,
		Page:   page,
		Limit:  q.Limit,
		Pages:  (total + q.Limit - 1) / q.Limit,
	}, nil
}

func numberRows(rows []OrderRow) {
	for i := range rows {
		rows[i].Number = order.OrderNumber(rows[i].ID)
	}
}

func (s *service) Overview(ctx context.Context) (*Overview, error) {
	counts, err := s.StatusCounts(ctx, nil)
	if err != nil {
		return nil, err
	}

	today := s.today()
	week, err := s.Revenue(ctx, Range{From: today.AddDate(0, 0, -6), To: today.AddDate(0, 0, 1)})
	if err != nil {
		return nil, err
	}

	top, err := s.TopProducts(ctx, overviewTopProducts)
	if err != nil {
		return nil, err
	}

	inventory, err := s.inventory.InventoryStats(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to read inventory stats")
		return nil, fmt.Errorf("service: failed to read inventory stats: %w", err)
	}

	recent, err := s.repo.RecentOrders(ctx, overviewRecent)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to load recent orders")
		return nil, fmt.Errorf("service: failed to load recent orders: %w", err)
	}
	numberRows(recent)

	return &Overview{
		StatusCounts: counts,
		TotalOrders:  counts.Total(),
		WeekRevenue:  week,
		TopProducts:  top,
		Inventory:    inventory,
		RecentOrders: recent,
	}, nil
}

func (s *service) NewOrderCount(ctx context.Context, since time.Time) (*NewOrders, error) {
	now := s.now()
	if since.IsZero() {
		since = now.Add(-NewOrdersWindow)
	}
	if since.After(now) {
		return nil, fmt.Errorf("%w: since is in the future", ErrInvalidFilter)
	}

	n, err := s.repo.NewOrderCount(ctx, since)
	if err != nil {
		log.Error().Err(err).Time("since", since).Msg("service: failed to count new orders")
		return nil, fmt.Errorf("service: failed to count new orders: %w", err)
	}
	return &NewOrders{Count: n, Since: since}, nil
}
