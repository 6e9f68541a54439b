package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"

	"meterbackend/config"
	"meterbackend/db"
	"meterbackend/handlers"
	"meterbackend/middleware"
	"meterbackend/notifier"
	"meterbackend/services/budget"
	"meterbackend/services/pricing"
	"meterbackend/services/projects"
	"meterbackend/services/txmanager"
	"meterbackend/services/usage"
	"meterbackend/services/users"
)

func main() {
	if err := run(); err != nil {
		log.Printf("❌ Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	// Initialize error alert middleware
	alertMiddleware := middleware.NewErrorAlertMiddleware(middleware.SlackAlertConfig{
		WebhookURL:  cfg.SlackConfig.AlertWebhookURL,
		Environment: cfg.Environment,
		AppName:     "meterbackend",
	})

	// Load the embedded pricing table once at startup
	pricingTable, err := pricing.LoadDefaultTable()
	if err != nil {
		return err
	}
	calculator := pricing.NewCalculator(pricingTable)

	// Initialize database connection
	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	// Initialize repositories with shared connection
	orgsRepo := db.NewPostgresOrganizationsRepository(dbConn, cfg.DatabaseSchema)
	usersRepo := db.NewPostgresUsersRepository(dbConn, cfg.DatabaseSchema)
	projectsRepo := db.NewPostgresProjectsRepository(dbConn, cfg.DatabaseSchema)
	usageEventsRepo := db.NewPostgresUsageEventsRepository(dbConn, cfg.DatabaseSchema)
	budgetsRepo := db.NewPostgresProjectBudgetsRepository(dbConn, cfg.DatabaseSchema)

	// Initialize transaction manager
	txManager := txmanager.NewTransactionManager(dbConn)

	usersService := users.NewUsersService(usersRepo, orgsRepo, txManager)
	projectsService := projects.NewProjectsService(projectsRepo)
	usageService := usage.NewUsageService(usageEventsRepo, calculator)

	emailSender := notifier.NewWebhookEmailSender(cfg.EmailConfig.WebhookURL)
	budgetNotifier := notifier.NewBudgetNotifier(
		emailSender,
		cfg.EmailConfig.FromAddress,
		cfg.EmailConfig.DefaultRecipient,
	)
	budgetService := budget.NewBudgetService(
		budgetsRepo,
		usageService,
		projectsService,
		budgetNotifier,
		cfg.BudgetPeriod,
	)

	meteringHandler := handlers.NewMeteringAPIHandler(usageService, budgetService, projectsService)
	meteringHTTPHandler := handlers.NewMeteringHTTPHandler(meteringHandler)
	authMiddleware := middleware.NewClerkAuthMiddleware(usersService, cfg.ClerkConfig.SecretKey)

	// Create a new router; all metering endpoints live under /api
	router := mux.NewRouter()
	apiRouter := router.PathPrefix("/api").Subrouter()
	meteringHTTPHandler.SetupEndpoints(apiRouter, authMiddleware)

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			log.Printf("❌ Failed to write health check response: %v", err)
		}
	}).Methods("GET")

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Schedule the periodic batch budget check
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.BudgetCheckSchedule, func() {
		_ = alertMiddleware.WrapBackgroundTask("CheckAllBudgets", func() error {
			_, err := budgetService.CheckAllBudgets(context.Background(), false)
			return err
		})()
	})
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()
	log.Printf("✅ Budget check scheduled: %s", cfg.BudgetCheckSchedule)

	// Setup CORS middleware
	allowedOrigins := strings.Split(cfg.CORSAllowedOrigins, ",")
	for i, origin := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(origin)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Setup and handle graceful shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           alertMiddleware.HTTPMiddleware(c.Handler(router)),
		ReadHeaderTimeout: 30 * time.Second,
	}

	return handleGracefulShutdown(server)
}

func handleGracefulShutdown(server *http.Server) error {
	// Channel to listen for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		log.Printf("✅ Listening on http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-stop
	log.Printf("🛑 Shutdown signal received, cleaning up...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown server gracefully
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Server shutdown error: %v", err)
		return err
	}

	log.Printf("✅ Server stopped gracefully")
	return nil
}
