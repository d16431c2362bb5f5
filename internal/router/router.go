package router

import (
	"fmt"
	"net/http"

	"github.com/dinein-pos/api/internal/config"
	"github.com/dinein-pos/api/internal/database"
	"github.com/dinein-pos/api/internal/enum"
	"github.com/dinein-pos/api/internal/handler"
	"github.com/dinein-pos/api/internal/invoice"
	mw "github.com/dinein-pos/api/internal/middleware"
	"github.com/dinein-pos/api/internal/notify"
	"github.com/dinein-pos/api/internal/service"
	"github.com/dinein-pos/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// New creates a Chi router with all application routes wired up.
// notifier receives every order, bill and payment event; the hub is only
// used to serve websocket subscriptions.
func New(cfg *config.Config, pool service.DB, hub *ws.Hub, notifier notify.Notifier, logger *zap.Logger) (chi.Router, error) {
	defaultRate, err := decimal.NewFromString(cfg.DefaultTaxRate)
	if err != nil {
		return nil, fmt.Errorf("parse DEFAULT_TAX_RATE: %w", err)
	}
	invoices, err := invoice.NewNumberer(cfg.MachineID)
	if err != nil {
		return nil, fmt.Errorf("create invoice numberer: %w", err)
	}

	// Services
	occupancy := service.NewOccupancyResolver(logger)
	orderService := service.NewOrderService(
		pool,
		func(db database.DBTX) service.OrderStore { return database.New(db) },
		occupancy,
		notifier,
		logger,
	).WithMaxRetries(cfg.BillingMaxRetries)
	billingService := service.NewBillingService(
		pool,
		func(db database.DBTX) service.BillingStore { return database.New(db) },
		service.NewTaxCalculator(cfg.RestaurantState, cfg.RestaurantGSTIN, defaultRate),
		invoices,
		service.NewInventoryLedger(logger),
		occupancy,
		notifier,
		logger,
	).WithMaxRetries(cfg.BillingMaxRetries)
	paymentService := service.NewPaymentService(
		pool,
		func(db database.DBTX) service.PaymentStore { return database.New(db) },
		notifier,
		logger,
	)

	httpLogger := logger.Named("http")

	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Customer self-order (table QR code, no login)
	customerHandler := handler.NewCustomerHandler(orderService, billingService, httpLogger)
	r.Route("/customer", func(r chi.Router) {
		customerHandler.RegisterRoutes(r)
		r.Get("/tables/{tableID}/ws", func(w http.ResponseWriter, r *http.Request) {
			ws.ServeTable(hub, w, r)
		})
	})

	// Staff WebSocket (handles auth internally via query param)
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeStaff(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Orders are open to all floor and kitchen staff.
		handler.NewOrderHandler(orderService, httpLogger).RegisterRoutes(r)

		// Billing and payments
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.StaffRoleCashier, enum.StaffRoleManager))
			handler.NewBillHandler(billingService, httpLogger).RegisterRoutes(r)
			handler.NewPaymentHandler(paymentService, httpLogger).RegisterRoutes(r)
		})
	})

	logger.Info("router initialized")
	return r, nil
}
