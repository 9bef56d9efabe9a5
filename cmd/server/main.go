package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ruralpay/payauth/docs"
	"github.com/ruralpay/payauth/internal/aml"
	"github.com/ruralpay/payauth/internal/audit"
	"github.com/ruralpay/payauth/internal/config"
	"github.com/ruralpay/payauth/internal/cooloff"
	"github.com/ruralpay/payauth/internal/cop"
	"github.com/ruralpay/payauth/internal/database"
	"github.com/ruralpay/payauth/internal/fraud"
	"github.com/ruralpay/payauth/internal/handlers"
	"github.com/ruralpay/payauth/internal/hsm"
	"github.com/ruralpay/payauth/internal/limits"
	mW "github.com/ruralpay/payauth/internal/middleware"
	"github.com/ruralpay/payauth/internal/modulus"
	"github.com/ruralpay/payauth/internal/pipeline"
	"github.com/ruralpay/payauth/internal/rails"
	"github.com/ruralpay/payauth/internal/repository"
	"github.com/ruralpay/payauth/internal/services"
	"github.com/ruralpay/payauth/internal/stepup"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Payment Authorization API
// @version 1.0
// @description Outbound payment authorization and risk pipeline
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func loadConfig() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("pin.max_failures", "PIN_MAX_FAILURES")
	viper.BindEnv("pin.lockout", "PIN_LOCKOUT")
	viper.BindEnv("stepup.expose_code", "STEPUP_EXPOSE_CODE")
	viper.BindEnv("cop.base_url", "COP_BASE_URL")
	viper.BindEnv("cop.timeout", "COP_TIMEOUT")
	viper.BindEnv("server.port", "PORT")

	viper.SetDefault("argon2.time", hsm.DefaultParams.Time)
	viper.SetDefault("argon2.memory", hsm.DefaultParams.Memory)
	viper.SetDefault("argon2.threads", hsm.DefaultParams.Threads)
	viper.SetDefault("argon2.key_length", hsm.DefaultParams.KeyLen)
	viper.SetDefault("pin.max_failures", 5)
	viper.SetDefault("pin.lockout", 30*time.Minute)
	viper.SetDefault("stepup.expose_code", false)
	viper.SetDefault("cop.timeout", 3*time.Second)
	viper.SetDefault("server.port", "8080")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}
}

func main() {
	loadConfig()

	docs.SwaggerInfo.Title = "Payment Authorization API"
	docs.SwaggerInfo.Description = "Outbound payment authorization and risk pipeline"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	ctx := context.Background()
	risk := config.LoadRiskConfig()

	db := database.InitDatabase(ctx)
	defer db.Close()

	redisClient := database.InitRedis(ctx)
	if redisClient == nil {
		log.Fatal("Redis is required for payment outcomes and step-up challenges")
	}
	defer redisClient.Close()

	accounts := repository.NewAccountRepository(db)
	payees := repository.NewPayeeRepository(db)
	history := repository.NewHistoryRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	auditLogger := audit.NewLogger(auditRepo)

	vault := hsm.NewPINVault(hsm.Params{
		Time:    viper.GetUint32("argon2.time"),
		Memory:  viper.GetUint32("argon2.memory"),
		Threads: uint8(viper.GetUint("argon2.threads")),
		KeyLen:  viper.GetUint32("argon2.key_length"),
	})
	pins := hsm.NewPINAuthenticator(accounts, vault, redisClient,
		viper.GetInt("pin.max_failures"), viper.GetDuration("pin.lockout"))

	var remote cop.Directory
	if baseURL := viper.GetString("cop.base_url"); baseURL != "" {
		remote = cop.NewHTTPDirectory(baseURL, viper.GetDuration("cop.timeout"))
	}
	matcher := cop.NewMatcher(cop.NewCompositeDirectory(accounts, remote, risk.Rails.BankSortCodePrefixes))

	checksum, err := modulus.NewValidator()
	if err != nil {
		log.Fatalf("Failed to load modulus weight table: %v", err)
	}
	monitor, err := aml.NewMonitor(risk.AML, history, time.Now)
	if err != nil {
		log.Fatalf("Failed to load AML watchlist: %v", err)
	}

	gate := stepup.NewGate(risk.StepUp, stepup.NewRedisStore(redisClient), vault, time.Now)
	settlement := services.NewISO20022Service(redisClient, risk.Pipeline.BankBIC)

	orchestrator := pipeline.New(pipeline.Dependencies{
		PIN:        pins,
		Accounts:   accounts,
		KYC:        accounts,
		Payees:     payees,
		Ledger:     repository.NewDoubleLedger(db, risk.Rails.FeeAccount),
		Schedules:  repository.NewScheduleRepository(db),
		Audit:      auditLogger,
		Compliance: auditRepo,
		Outcomes:   repository.NewOutcomeStore(redisClient, risk.Pipeline.OutcomeTTL),
		Blocks:     auditRepo,
		Cache:      repository.NewCacheInvalidator(redisClient),
		Settlement: settlement,
		Checksum:   checksum,
		CoP:        matcher,
		Fraud:      fraud.NewEngine(risk.Fraud, history, time.Now),
		AML:        monitor,
		Limits:     limits.NewEnforcer(risk.Limits, history, time.Now),
		CoolingOff: cooloff.NewEnforcer(risk.Cooling),
		StepUp:     gate,
		Challenges: gate,
		Rails:      rails.NewSelector(risk.Rails),
		Now:        time.Now,
	}, risk.Pipeline)

	paymentService := services.NewPaymentService(orchestrator)
	stepUpService := services.NewStepUpService(gate, auditLogger, viper.GetBool("stepup.expose_code"))
	payeeService := services.NewPayeeService(payees, auditLogger)
	bankService := services.NewBankService()
	qrHandler := handlers.NewQRHandler(payees)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if err := db.PingContext(r.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/banks", bankService.GetAllBanks)

		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/payments/transfer", paymentService.AuthorizeTransfer)
			r.Post("/payments/payee", paymentService.AuthorizePayment)
			r.Post("/payments/scheduled", paymentService.AuthorizeScheduled)
			r.Post("/payments/preview/recipient", paymentService.PreviewRecipient)
			r.Get("/payments/preview/rail", paymentService.PreviewRail)

			r.Post("/stepup/challenges", stepUpService.IssueChallenge)
			r.Post("/stepup/challenges/{challengeId}/verify", stepUpService.VerifyChallenge)

			r.Patch("/payees/{payeeId}", payeeService.UpdatePayee)
			r.Get("/payees/{payeeId}/qr", qrHandler.PayeeQR)
		})
	})

	port := viper.GetString("server.port")

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
