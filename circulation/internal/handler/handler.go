package handler

import (
	"net/http"

	"github.com/Astemirdum/library-circulation/pkg/auth"
	"github.com/Astemirdum/library-circulation/pkg/idempotency"
	mw "github.com/Astemirdum/library-circulation/pkg/middleware"
	"github.com/Astemirdum/library-circulation/pkg/validate"
	_ "github.com/Astemirdum/library-circulation/swagger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
)

type Services struct {
	Transactions TransactionService
	Fines        FineService
	Reservations ReservationService
	Catalog      CatalogService
	Stats        StatsService
}

type Handler struct {
	transactions TransactionService
	fines        FineService
	reservations ReservationService
	catalog      CatalogService
	stats        StatsService

	authSecret  []byte
	idempotency idempotency.Store
	log         *zap.Logger
}

type Option func(*Handler)

func WithAuthSecret(secret []byte) Option {
	return func(h *Handler) { h.authSecret = secret }
}

func WithIdempotency(store idempotency.Store) Option {
	return func(h *Handler) { h.idempotency = store }
}

func New(svc Services, log *zap.Logger, opts ...Option) *Handler {
	h := &Handler{
		transactions: svc.Transactions,
		fines:        svc.Fines,
		reservations: svc.Reservations,
		catalog:      svc.Catalog,
		stats:        svc.Stats,
		log:          log.Named("handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPost},
		AllowCredentials: true,
	}))
	e.Validator = validate.NewCustomValidator()

	base := e.Group("", mw.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)
	base.GET("/swagger/*", echoSwagger.WrapHandler)

	apiMW := []echo.MiddlewareFunc{
		middleware.RequestLoggerWithConfig(mw.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
		mw.NewRateLimiter(apiRPS),
		mw.JwtAuthentication(h.authSecret),
	}
	if h.idempotency != nil {
		apiMW = append(apiMW, idempotency.Middleware(h.idempotency, h.log))
	}
	api := e.Group("/api", apiMW...)

	librarian := mw.RequireRole(auth.RoleLibrarian)
	admin := mw.RequireRole(auth.RoleAdmin)

	api.POST("/transactions/borrow", h.BorrowBook)
	api.POST("/transactions/return", h.ReturnBook)
	api.POST("/transactions/renew", h.RenewBook)
	api.GET("/transactions/overdue", h.ListOverdue)
	api.GET("/transactions/active", h.ListActive)
	api.GET("/transactions/member/:id", h.ListMemberTransactions)
	api.GET("/transactions/book/:id", h.ListBookTransactions)
	api.GET("/transactions/:id", h.GetTransaction)

	api.POST("/fines", h.IssueFine, librarian)
	api.POST("/fines/pay", h.PayFine)
	api.POST("/fines/waive", h.WaiveFine, librarian)
	api.GET("/fines/member/:id", h.ListMemberFines)
	api.GET("/fines/:id", h.GetFine)

	api.POST("/reservations", h.CreateReservation)
	api.POST("/reservations/cancel", h.CancelReservation)
	api.POST("/reservations/fulfill/:id", h.FulfillReservation)
	api.POST("/reservations/expire", h.ExpireReservations, librarian)
	api.GET("/reservations/book/:id", h.ListBookQueue)

	api.POST("/books", h.CreateBook, librarian)
	api.GET("/books", h.ListBooks)
	api.GET("/books/:id", h.GetBook)
	api.POST("/members", h.CreateMember, librarian)
	api.GET("/members/:id", h.GetMember)

	api.GET("/stats", h.GetStats, admin)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func paramID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// bind decodes and validates req, answering 400 on either failure.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
