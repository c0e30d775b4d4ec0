package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/fkhayef/kasmoni/docs"
	"github.com/fkhayef/kasmoni/internal/auth"
	"github.com/fkhayef/kasmoni/internal/config"
	"github.com/fkhayef/kasmoni/internal/database"
	"github.com/fkhayef/kasmoni/internal/group"
	"github.com/fkhayef/kasmoni/internal/member"
	"github.com/fkhayef/kasmoni/internal/notification"
	"github.com/fkhayef/kasmoni/internal/payment"
	"github.com/fkhayef/kasmoni/internal/paymentlog"
	"github.com/fkhayef/kasmoni/internal/paymentrequest"
	"github.com/fkhayef/kasmoni/internal/status"
	mw "github.com/fkhayef/kasmoni/pkg/middleware"
)

// @title                       Kasmoni API
// @version                     1.0
// @description                 Administration of rotating savings groups: members, slots, payments and payouts.
// @host                        localhost:8080
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		log.Fatalf("Invalid token configuration: %v", err)
	}

	// Initialize database connection
	db, err := database.NewPostgresConnection(cfg.DatabaseURL, cfg.MaxOpenConns, cfg.MaxIdleConns)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Connected to database successfully")

	if cfg.RunMigrations {
		if err := database.Migrate(context.Background(), db); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
	}

	tx := database.NewTxManager(db)

	// Member feature
	memberRepo := member.NewRepository(db)
	memberService := member.NewService(memberRepo, tx)
	memberHandler := member.NewHandler(memberService)

	// Group feature
	groupRepo := group.NewRepository(db)
	groupService := group.NewService(groupRepo, tx)
	groupHandler := group.NewHandler(groupService)

	// Status derivation
	statusRepo := status.NewRepository(db, groupRepo)
	statusEngine := status.NewEngine(statusRepo, cfg.Location)
	statusHandler := status.NewHandler(statusEngine)

	// Audit log
	logRepo := paymentlog.NewRepository(db)
	logService := paymentlog.NewService(logRepo)
	logHandler := paymentlog.NewHandler(logService)

	// Notification feature
	notificationRepo := notification.NewRepository(db)
	notificationService := notification.NewService(notificationRepo)
	notificationHandler := notification.NewHandler(notificationService)

	// Payment lifecycle
	paymentRepo := payment.NewRepository(db)
	paymentService := payment.NewService(paymentRepo, tx, logService, notificationService, cfg.NotifyTimeout)
	paymentHandler := payment.NewHandler(paymentService)

	// Payment requests
	requestRepo := paymentrequest.NewRepository(db)
	requestService := paymentrequest.NewService(requestRepo, tx, paymentRepo, paymentService)
	requestHandler := paymentrequest.NewHandler(requestService)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Authenticate(tokens))

		// Mount feature routers
		r.Mount("/members", memberHandler.Routes())
		r.Mount("/groups", groupHandler.Routes(statusHandler.RegisterGroupRoutes))
		r.Mount("/status", statusHandler.Routes())
		r.Mount("/dashboard", statusHandler.DashboardRoutes())
		r.Mount("/payments", paymentHandler.Routes())
		r.Mount("/trashbox", paymentHandler.TrashRoutes())
		r.Mount("/archive", paymentHandler.ArchiveRoutes())
		r.Mount("/payment-logs", logHandler.Routes())
		r.Mount("/payment-requests", requestHandler.Routes())
		r.Mount("/notifications", notificationHandler.Routes())
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[ERROR] graceful shutdown failed: %v", err)
	}
}
