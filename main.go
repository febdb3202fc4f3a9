package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"xrgi-portal/internal/account"
	"xrgi-portal/internal/audit"
	"xrgi-portal/internal/auth"
	"xrgi-portal/internal/ecpower"
	"xrgi-portal/internal/eventing"
	facilityapp "xrgi-portal/internal/facility/application"
	facilityhttp "xrgi-portal/internal/facility/interfaces/http"
	"xrgi-portal/internal/observability/metrics"
	registrationapp "xrgi-portal/internal/registration/application"
	"xrgi-portal/internal/registration/application/events"
	registration "xrgi-portal/internal/registration/domain"
	memoryrepo "xrgi-portal/internal/registration/infrastructure/memory"
	postgresrepo "xrgi-portal/internal/registration/infrastructure/postgres"
	registrationhttp "xrgi-portal/internal/registration/interfaces/http"
	statsapp "xrgi-portal/internal/stats/application"
	statshttp "xrgi-portal/internal/stats/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
	}

	metrics.Init(db, logger)
	var auditLogger audit.Logger
	if db != nil {
		auditLogger = audit.NewRepository(db)
	}

	upstream, err := ecpower.NewClient(cfg.ECPowerBaseURL,
		ecpower.Credentials{Email: cfg.ECPowerEmail, Password: cfg.ECPowerPassword},
		ecpower.WithTokenTTL(cfg.ECPowerTokenTTL),
		ecpower.WithHTTPTimeout(cfg.ECPowerTimeout),
	)
	if err != nil {
		logger.Fatalf("ecpower client error: %v", err)
	}

	bus := eventing.NewInMemoryBus()
	bus.Subscribe(eventing.EventTypeOf[events.FacilityRegistered](), func(ctx context.Context, event any) error {
		evt, ok := event.(events.FacilityRegistered)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		logger.Printf("facility registered: session=%s facility=%s xrgi=%s updated=%t", evt.SessionID, evt.FacilityID, evt.XRGIID, evt.Updated)
		return nil
	})

	var sessionRepo registration.SessionRepository
	if db != nil {
		sessionRepo = postgresrepo.NewSessionRepository(db)
	} else {
		logger.Printf("no DATABASE_URL, using in-memory session store")
		sessionRepo = memoryrepo.NewSessionRepository()
	}

	registrationCfg, err := registrationapp.LoadConfig()
	if err != nil {
		logger.Fatalf("registration config error: %v", err)
	}
	wizardService, err := registrationapp.NewWizardService(sessionRepo, upstream, bus, registrationCfg, logger)
	if err != nil {
		logger.Fatalf("wizard service error: %v", err)
	}
	registrationHandler, err := registrationhttp.NewHandler(wizardService, auditLogger)
	if err != nil {
		logger.Fatalf("registration handler error: %v", err)
	}

	facilityService, err := facilityapp.NewService(upstream, logger)
	if err != nil {
		logger.Fatalf("facility service error: %v", err)
	}
	facilityHandler, err := facilityhttp.NewHandler(facilityService)
	if err != nil {
		logger.Fatalf("facility handler error: %v", err)
	}

	statsService, err := statsapp.NewService(upstream, logger)
	if err != nil {
		logger.Fatalf("stats service error: %v", err)
	}
	statsHandler, err := statshttp.NewHandler(statsService)
	if err != nil {
		logger.Fatalf("stats handler error: %v", err)
	}

	accountService, err := account.NewService(upstream, logger)
	if err != nil {
		logger.Fatalf("account service error: %v", err)
	}
	accountHandler, err := account.NewHandler(accountService)
	if err != nil {
		logger.Fatalf("account handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/registrations", registrationHandler)
	mux.Handle("/api/v1/registrations/", registrationHandler)
	mux.Handle("/api/v1/facilities", facilityHandler)
	mux.Handle("/api/v1/facilities/", facilityHandler)
	mux.Handle("/api/v1/reports/", statsHandler)
	mux.Handle("/api/v1/account/", accountHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL     string
	HTTPAddr        string
	ECPowerBaseURL  string
	ECPowerEmail    string
	ECPowerPassword string
	ECPowerTokenTTL time.Duration
	ECPowerTimeout  time.Duration
	JWTSecret       string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:     getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		ECPowerBaseURL:  getenvDefault("EC_POWER_BASE_URL", ""),
		ECPowerEmail:    getenvDefault("EC_POWER_EMAIL", ""),
		ECPowerPassword: getenvDefault("EC_POWER_PASSWORD", ""),
		ECPowerTokenTTL: getenvDuration("EC_POWER_TOKEN_TTL", time.Hour),
		ECPowerTimeout:  getenvDuration("EC_POWER_HTTP_TIMEOUT", 30*time.Second),
		JWTSecret:       getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.ECPowerBaseURL == "" {
		log.Fatal("EC_POWER_BASE_URL is required")
	}
	if cfg.ECPowerEmail == "" || cfg.ECPowerPassword == "" {
		log.Fatal("EC_POWER_EMAIL and EC_POWER_PASSWORD are required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
