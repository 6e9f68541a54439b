package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"meterbackend/config"
	"meterbackend/db"
	"meterbackend/notifier"
	"meterbackend/services/budget"
	"meterbackend/services/pricing"
	"meterbackend/services/projects"
	"meterbackend/services/usage"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "evaluate budgets without sending alerts or stamping cooldowns")
	projectID := flag.String("project", "", "check a single project instead of all budgeted projects")
	flag.Parse()

	log.Printf("🔄 Starting budget check process (dry_run=%t)...", *dryRun)

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Create database connection
	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer dbConn.Close()

	// Initialize services
	pricingTable, err := pricing.LoadDefaultTable()
	if err != nil {
		log.Fatalf("❌ Failed to load pricing table: %v", err)
	}

	projectsRepo := db.NewPostgresProjectsRepository(dbConn, cfg.DatabaseSchema)
	usageEventsRepo := db.NewPostgresUsageEventsRepository(dbConn, cfg.DatabaseSchema)
	budgetsRepo := db.NewPostgresProjectBudgetsRepository(dbConn, cfg.DatabaseSchema)

	projectsService := projects.NewProjectsService(projectsRepo)
	usageService := usage.NewUsageService(usageEventsRepo, pricing.NewCalculator(pricingTable))

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

	ctx := context.Background()

	if *projectID != "" {
		result, err := budgetService.CheckAndAlert(ctx, *projectID, *dryRun)
		if err != nil {
			log.Fatalf("❌ Budget check failed for project %s: %v", *projectID, err)
		}
		log.Printf("✅ Project %s: state=%s percent_used=%s alert_sent=%t suppressed=%t",
			result.ProjectID, result.State, result.PercentUsed.StringFixed(1),
			result.AlertSent, result.SuppressedByCooldown)
		return
	}

	outcomes, err := budgetService.CheckAllBudgets(ctx, *dryRun)
	if err != nil {
		log.Fatalf("❌ Batch budget check failed: %v", err)
	}

	alertCount := 0
	suppressedCount := 0
	errorCount := 0
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			log.Printf("❌ Project %s: %v", outcome.ProjectID, outcome.Err)
			errorCount++
			continue
		}
		if outcome.Result.AlertSent {
			alertCount++
		}
		if outcome.Result.SuppressedByCooldown {
			suppressedCount++
		}
		log.Printf("📊 Project %s: state=%s percent_used=%s alert_sent=%t suppressed=%t",
			outcome.ProjectID, outcome.Result.State, outcome.Result.PercentUsed.StringFixed(1),
			outcome.Result.AlertSent, outcome.Result.SuppressedByCooldown)
	}

	log.Printf("✅ Checked %d projects: %d alerts sent, %d suppressed, %d errors",
		len(outcomes), alertCount, suppressedCount, errorCount)
	if errorCount > 0 {
		os.Exit(1)
	}
}
