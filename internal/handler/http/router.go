package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Cart      *CartHandler
	Orders    *OrderHandler
	Dashboard *DashboardHandler
	// StaffTokenHash is the bcrypt hash of the shared staff token.
	StaffTokenHash string
}

func NewRouter(cfg RouterConfig) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(RequestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	router.Group(func(public chi.Router) {
		public.Use(Identify)
		cfg.Cart.RegisterRoutes(public)
		cfg.Orders.RegisterRoutes(public)
	})

	router.Route("/staff", func(staff chi.Router) {
		staff.Use(RequireStaff(cfg.StaffTokenHash))
		cfg.Orders.RegisterStaffRoutes(staff)
		cfg.Dashboard.RegisterStaffRoutes(staff)
	})

	return router
}
