package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gmart-backend/internal/config"
	"gmart-backend/internal/env"
	"gmart-backend/internal/infrastructure/asset"
	"gmart-backend/internal/infrastructure/invoice"
	"gmart-backend/internal/infrastructure/mailer"
	"gmart-backend/internal/infrastructure/otp"
	"gmart-backend/internal/infrastructure/paypal"
	"gmart-backend/internal/infrastructure/repo"
	"gmart-backend/internal/logging"
	"gmart-backend/internal/metrics"
	"gmart-backend/internal/server"
	"gmart-backend/internal/usecase"
)

func main() {
	if err := env.Load(".env", ".env.local"); err != nil {
		fmt.Fprintln(os.Stderr, "load env files:", err)
	}
	envDefaults := config.EnvDefaults()

	envName := flag.String("env", envDefaults.Env, "")
	port := flag.Int("port", envDefaults.Port, "")
	logJSON := flag.Bool("log-json", envDefaults.LogJSON, "")
	store := flag.String("store", envDefaults.StoreDriver, "memory | postgres | mongo")
	databaseURL := flag.String("database-url", envDefaults.DatabaseURL, "")
	mongoURI := flag.String("mongo-uri", envDefaults.MongoURI, "")
	redisAddr := flag.String("redis-addr", envDefaults.RedisAddr, "")
	jwtSecret := flag.String("jwt-secret", envDefaults.JWTSecret, "")
	paypalEnv := flag.String("paypal-env", envDefaults.PayPalEnv, "sandbox | live")
	invoiceDir := flag.String("invoice-dir", envDefaults.InvoiceDir, "")
	invoiceBucket := flag.String("invoice-bucket", envDefaults.InvoiceBucket, "")

	flag.Parse()

	cfg := envDefaults
	cfg.Env = *envName
	cfg.Port = *port
	cfg.LogJSON = *logJSON
	cfg.StoreDriver = *store
	cfg.DatabaseURL = *databaseURL
	cfg.MongoURI = *mongoURI
	cfg.RedisAddr = *redisAddr
	cfg.JWTSecret = *jwtSecret
	cfg.PayPalEnv = *paypalEnv
	cfg.InvoiceDir = *invoiceDir
	cfg.InvoiceBucket = *invoiceBucket

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type stores struct {
	products usecase.ProductRepo
	orders   usecase.OrderRepo
	users    usecase.UserRepo
	close    func(context.Context) error
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pg, err := repo.NewPostgresRepo(cfg.DatabaseURL)
		if err != nil {
			return stores{}, fmt.Errorf("open postgres: %w", err)
		}
		return stores{pg, pg, pg, func(context.Context) error { return pg.Close() }}, nil
	case config.StoreMongo:
		mg, err := repo.NewMongoRepo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return stores{}, fmt.Errorf("open mongo: %w", err)
		}
		return stores{mg, mg, mg, mg.Close}, nil
	default:
		return stores{
			products: repo.NewMemoryProductRepo(),
			orders:   repo.NewMemoryOrderRepo(),
			users:    repo.NewMemoryUserRepo(),
			close:    func(context.Context) error { return nil },
		}, nil
	}
}

func openInvoiceStore(ctx context.Context, cfg config.Config) (usecase.InvoiceStore, error) {
	if cfg.InvoiceBucket == "" {
		return asset.NewFSWriter(cfg.InvoiceDir, cfg.InvoicePublicURL), nil
	}
	client, err := asset.NewS3Client(ctx, cfg.InvoiceS3Endpoint)
	if err != nil {
		return nil, err
	}
	return asset.NewS3Writer(client, cfg.InvoiceBucket, cfg.InvoicePrefix, cfg.InvoicePublicURL), nil
}

func run(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log, err := logging.New("gmart-backend", cfg.Env, cfg.LogJSON)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	st, err := openStores(startCtx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.close(context.Background()) }()

	invoices, err := openInvoiceStore(startCtx, cfg)
	if err != nil {
		return err
	}

	m := metrics.New("gmart")
	gateway, err := paypal.NewClient(paypal.Config{
		ClientID: cfg.PayPalClientID,
		Secret:   cfg.PayPalSecret,
		Env:      cfg.PayPalEnv,
		BaseURL:  cfg.PayPalBaseURL,
		Timeout:  cfg.PayPalTimeout,
		Observe: func(op string, d time.Duration) {
			m.ObserveGateway(op, float64(d.Milliseconds()))
		},
	})
	if err != nil {
		return err
	}

	var otpStore usecase.OTPStore = otp.NewMemoryStore()
	if cfg.RedisAddr != "" {
		rdb, err := otp.NewRedisClient(startCtx, cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() { _ = rdb.Close() }()
		otpStore = otp.NewRedisStore(rdb)
	}

	auth := &usecase.AuthService{
		Users:     st.users,
		OTP:       otpStore,
		JWTSecret: cfg.JWTSecret,
		OTPTTL:    cfg.OTPTTL,
		Logger:    log,
	}
	emailHook := &usecase.EmailHook{Store: invoices, Logger: log}
	if cfg.SMTPHost != "" {
		mail := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
		auth.Mailer = mail
		emailHook.Sender = mail
	} else {
		log.Warn("smtp not configured; invoices and codes will not be mailed")
	}

	if cfg.AdminEmail != "" {
		if err := auth.EnsureAdmin(startCtx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	orders := &usecase.OrderService{
		Products: st.products,
		Orders:   st.orders,
		Gateway:  gateway,
		Invoices: invoices,
		Hooks: []usecase.PostCaptureHook{
			&usecase.InvoiceHook{Renderer: invoice.NewRenderer(), Store: invoices},
			emailHook,
		},
		Currency: cfg.Currency,
		Logger:   log,
		Metrics:  m,
	}

	srv := server.New(server.Options{
		Orders:         orders,
		Auth:           auth,
		Catalog:        &usecase.CatalogService{Products: st.products},
		Logger:         log,
		Metrics:        m,
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: cfg.TrustedProxies,
	})
	httpSrv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.Int("port", cfg.Port), zap.String("store", cfg.StoreDriver), zap.String("paypal_env", cfg.PayPalEnv))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return httpSrv.Shutdown(shutdownCtx)
}
