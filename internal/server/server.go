package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"gmart-backend/internal/domain"
	"gmart-backend/internal/infrastructure/paypal"
	"gmart-backend/internal/metrics"
	"gmart-backend/internal/usecase"
)

type OrderAPI interface {
	Create(ctx context.Context, items []usecase.CartItem, customerEmail string) (*domain.Order, error)
	Capture(ctx context.Context, externalOrderID string) (paypal.CaptureResult, error)
	GetInvoice(ctx context.Context, orderID string) ([]byte, error)
	ListOrders(ctx context.Context, page, pageSize int) ([]domain.Order, int)
}

type AuthAPI interface {
	Register(ctx context.Context, name, email, password string) (string, *domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	SendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (string, *domain.User, error)
	Verify(token string) (usecase.Claims, error)
}

type CatalogAPI interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, name, description string, price int64) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
}

type Options struct {
	Orders  OrderAPI
	Auth    AuthAPI
	Catalog CatalogAPI
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// CORSOrigins empty allows any origin.
	CORSOrigins []string
	// TrustedProxies empty makes the socket peer the client IP.
	TrustedProxies []string
	// AuthRate and AuthBurst bound /auth calls per client IP.
	AuthRate  rate.Limit
	AuthBurst int
}

type Server struct {
	orders  OrderAPI
	auth    AuthAPI
	catalog CatalogAPI
	log     *zap.Logger
	metrics *metrics.Metrics
	engine  *gin.Engine
}

func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.AuthRate == 0 {
		opts.AuthRate = rate.Every(time.Minute / 20)
	}
	if opts.AuthBurst == 0 {
		opts.AuthBurst = 10
	}
	s := &Server{
		orders:  opts.Orders,
		auth:    opts.Auth,
		catalog: opts.Catalog,
		log:     log,
		metrics: opts.Metrics,
		engine:  gin.New(),
	}
	if err := s.engine.SetTrustedProxies(opts.TrustedProxies); err != nil {
		log.Error("invalid trusted proxies; trusting none", zap.Strings("proxies", opts.TrustedProxies), zap.Error(err))
		_ = s.engine.SetTrustedProxies(nil)
	}
	s.engine.Use(
		requestID(log),
		tracing(),
		requestLogger(log),
		s.recovery(),
		observe(opts.Metrics),
		cors.New(corsConfig(opts.CORSOrigins)),
	)
	s.routes(newRateLimiter(opts.AuthRate, opts.AuthBurst, limiterTTL))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes(limiter *rateLimiter) {
	r := s.engine
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	auth := r.Group("/auth", limiter.middleware())
	auth.POST("/register", s.handleRegister)
	auth.POST("/login", s.handleLogin)
	auth.POST("/send-otp", s.handleSendOTP)
	auth.POST("/verify-otp", s.handleVerifyOTP)

	r.GET("/products", s.handleListProducts)
	r.GET("/products/:id", s.handleGetProduct)
	admin := r.Group("", s.requireAuth(), requireAdmin())
	admin.POST("/products", s.handleCreateProduct)
	admin.DELETE("/products/:id", s.handleDeleteProduct)
	admin.GET("/orders", s.handleListOrders)

	r.POST("/orders", s.handleCreateOrder)
	r.POST("/orders/:id/capture", s.handleCaptureOrder)
	r.GET("/orders/:id/invoice", s.handleGetInvoice)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", headerRequestID},
		ExposeHeaders: []string{headerRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (s *Server) err(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}

// fail maps a usecase or gateway error onto a status and JSON body.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		pnf   usecase.ErrProductNotFound
		br    usecase.ErrBadRequest
		unath usecase.ErrUnauthorized
		forb  usecase.ErrForbidden
		nf    usecase.ErrNotFound
		conf  usecase.ErrConflict
		te    *paypal.TimeoutError
		ge    *paypal.GatewayError
	)
	switch {
	case errors.As(err, &pnf):
		s.err(c, http.StatusBadRequest, "ProductNotFound", err.Error())
	case errors.As(err, &br):
		s.err(c, http.StatusBadRequest, "BadRequest", err.Error())
	case errors.As(err, &unath):
		s.err(c, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.As(err, &forb):
		s.err(c, http.StatusForbidden, "Forbidden", err.Error())
	case errors.As(err, &nf):
		s.err(c, http.StatusNotFound, "NotFound", err.Error())
	case errors.As(err, &conf):
		s.err(c, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &te):
		s.err(c, http.StatusGatewayTimeout, "Timeout", err.Error())
	case errors.As(err, &ge):
		s.err(c, http.StatusInternalServerError, "GatewayError", err.Error())
	default:
		logFor(c, s.log).Error("request failed", zap.Error(err))
		s.err(c, http.StatusInternalServerError, "ServerError", "internal error")
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		logFor(c, s.log).Error("panic in handler", zap.Any("panic", rec))
		s.err(c, http.StatusInternalServerError, "ServerError", "internal error")
	})
}
