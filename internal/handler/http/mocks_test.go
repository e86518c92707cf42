package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vasiliy-maslov/winex/internal/cart"
	"github.com/vasiliy-maslov/winex/internal/catalog"
	"github.com/vasiliy-maslov/winex/internal/dashboard"
	winexHttp "github.com/vasiliy-maslov/winex/internal/handler/http"
	"github.com/vasiliy-maslov/winex/internal/order"
)

type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) summary(args mock.Arguments) (*cart.Summary, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Summary), args.Error(1)
}

func (m *MockCartService) View(ctx context.Context, owner cart.Owner) (*cart.Summary, error) {
	return m.summary(m.Called(ctx, owner))
}

func (m *MockCartService) AddItem(ctx context.Context, owner cart.Owner, ref catalog.Ref) (*cart.Summary, error) {
	return m.summary(m.Called(ctx, owner, ref))
}

func (m *MockCartService) IncreaseItem(ctx context.Context, owner cart.Owner, itemID uuid.UUID) (*cart.Summary, error) {
	return m.summary(m.Called(ctx, owner, itemID))
}

func (m *MockCartService) DecreaseItem(ctx context.Context, owner cart.Owner, itemID uuid.UUID) (*cart.Summary, error) {
	return m.summary(m.Called(ctx, owner, itemID))
}

func (m *MockCartService) RemoveItem(ctx context.Context, owner cart.Owner, itemID uuid.UUID) (*cart.Summary, error) {
	return m.summary(m.Called(ctx, owner, itemID))
}

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) Get(ctx context.Context, ref catalog.Ref) (catalog.Variant, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(catalog.Variant), args.Error(1)
}

func (m *MockCatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) GetCombo(ctx context.Context, id uuid.UUID) (*catalog.Combo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Combo), args.Error(1)
}

func (m *MockCatalogService) GetOffer(ctx context.Context, id uuid.UUID) (*catalog.Offer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Offer), args.Error(1)
}

func (m *MockCatalogService) Shop(ctx context.Context) (*catalog.Shop, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Shop), args.Error(1)
}

func (m *MockCatalogService) InventoryStats(ctx context.Context) (catalog.InventoryStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(catalog.InventoryStats), args.Error(1)
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) order(args mock.Arguments) (*order.Order, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) Checkout(ctx context.Context, in order.CheckoutInput) (*order.Order, error) {
	return m.order(m.Called(ctx, in))
}

func (m *MockOrderService) CreateCounterOrder(ctx context.Context, in order.CounterOrderInput) (*order.Order, error) {
	return m.order(m.Called(ctx, in))
}

func (m *MockOrderService) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return m.order(m.Called(ctx, id))
}

func (m *MockOrderService) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]order.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, id uuid.UUID, to order.OrderStatus) (*order.Order, error) {
	return m.order(m.Called(ctx, id, to))
}

func (m *MockOrderService) AnnotateDeliveryAddress(ctx context.Context, id uuid.UUID, address string) error {
	return m.Called(ctx, id, address).Error(0)
}

func (m *MockOrderService) Timeline(ctx context.Context, id uuid.UUID) (order.Timeline, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(order.Timeline), args.Error(1)
}

func (m *MockOrderService) TrackByToken(ctx context.Context, token string) (order.Timeline, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(order.Timeline), args.Error(1)
}

func (m *MockOrderService) Receipt(ctx context.Context, id uuid.UUID) (*order.Receipt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Receipt), args.Error(1)
}

type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) StatusCounts(ctx context.Context, r *dashboard.Range) (dashboard.StatusCounts, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(dashboard.StatusCounts), args.Error(1)
}

func (m *MockDashboardService) Revenue(ctx context.Context, r dashboard.Range) (decimal.Decimal, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockDashboardService) TopProducts(ctx context.Context, n int) ([]dashboard.TopProduct, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dashboard.TopProduct), args.Error(1)
}

func (m *MockDashboardService) LiveDisplay(ctx context.Context) (*dashboard.LiveDisplay, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dashboard.LiveDisplay), args.Error(1)
}

func (m *MockDashboardService) SalesReport(ctx context.Context, r *dashboard.Range) (*dashboard.SalesReport, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dashboard.SalesReport), args.Error(1)
}

func (m *MockDashboardService) TodayReport(ctx context.Context) (*dashboard.TodayReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dashboard.TodayReport), args.Error(1)
}

func (m *MockDashboardService) ListOrders(ctx context.Context, f dashboard.OrderFilter) (*dashboard.OrderPage, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dashboard.OrderPage), args.Error(1)
}

func (m *MockDashboardService) Overview(ctx context.Context) (*dashboard.Overview, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dashboard.Overview), args.Error(1)
}

func (m *MockDashboardService) NewOrderCount(ctx context.Context, since time.Time) (*dashboard.NewOrders, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dashboard.NewOrders), args.Error(1)
}

const staffToken = "counter-secret"

type testServer struct {
	router    chi.Router
	carts     *MockCartService
	catalog   *MockCatalogService
	orders    *MockOrderService
	dashboard *MockDashboardService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(staffToken), bcrypt.MinCost)
	require.NoError(t, err)

	s := &testServer{
		carts:     new(MockCartService),
		catalog:   new(MockCatalogService),
		orders:    new(MockOrderService),
		dashboard: new(MockDashboardService),
	}
	s.router = winexHttp.NewRouter(winexHttp.RouterConfig{
		Cart:           winexHttp.NewCartHandler(s.carts, s.catalog),
		Orders:         winexHttp.NewOrderHandler(s.orders),
		Dashboard:      winexHttp.NewDashboardHandler(s.dashboard, time.UTC),
		StaffTokenHash: string(hash),
	})
	return s
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) assertExpectations(t *testing.T) {
	t.Helper()
	s.carts.AssertExpectations(t)
	s.catalog.AssertExpectations(t)
	s.orders.AssertExpectations(t)
	s.dashboard.AssertExpectations(t)
}

func withSession(req *http.Request, key string) *http.Request {
	req.AddCookie(&http.Cookie{Name: winexHttp.SessionCookie, Value: key})
	return req
}

func asStaff(req *http.Request) *http.Request {
	req.Header.Set(winexHttp.StaffTokenHeader, staffToken)
	return req
}
