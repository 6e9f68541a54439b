package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"meterbackend/models"
)

type EmailConfig struct {
	WebhookURL       string
	FromAddress      string
	DefaultRecipient string
}

// IsConfigured returns true if all required email configuration is present
func (c EmailConfig) IsConfigured() bool {
	return c.WebhookURL != "" &&
		c.FromAddress != ""
	// Note: DefaultRecipient is optional
}

type SlackConfig struct {
	AlertWebhookURL string
}

// IsConfigured returns true if all required Slack configuration is present
func (c SlackConfig) IsConfigured() bool {
	return c.AlertWebhookURL != ""
}

type ClerkConfig struct {
	SecretKey string
}

// IsConfigured returns true if all required Clerk configuration is present
func (c ClerkConfig) IsConfigured() bool {
	return c.SecretKey != ""
}

type AppConfig struct {
	// Core configuration (always required)
	DatabaseURL        string
	DatabaseSchema     string
	Port               string // Optional with default "8080"
	CORSAllowedOrigins string // Optional with default "*"
	Environment        string
	UseStrictConfig    bool // If true, error when any integration is not fully configured

	// Budget engine configuration
	BudgetPeriod        models.BudgetPeriod // Optional with default "calendar-month"
	BudgetCheckSchedule string              // Optional with default "@every 1h"

	// Integration configurations (grouped)
	EmailConfig EmailConfig
	SlackConfig SlackConfig
	ClerkConfig ClerkConfig
}

func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("⚠️ Could not load .env file, continuing with system env vars")
	}

	// Core required configuration
	databaseURL, err := getEnvRequired("DB_URL")
	if err != nil {
		return nil, err
	}

	databaseSchema, err := getEnvRequired("DB_SCHEMA")
	if err != nil {
		return nil, err
	}

	budgetPeriod := models.BudgetPeriod(getEnvWithDefault("BUDGET_PERIOD", string(models.BudgetPeriodCalendarMonth)))
	if !budgetPeriod.IsValid() {
		return nil, fmt.Errorf("BUDGET_PERIOD must be %q or %q, got %q",
			models.BudgetPeriodCalendarMonth, models.BudgetPeriodAllTime, budgetPeriod)
	}

	config := &AppConfig{
		// Core configuration
		DatabaseURL:        databaseURL,
		DatabaseSchema:     databaseSchema,
		Port:               getEnvWithDefault("PORT", "8080"),
		CORSAllowedOrigins: getEnvWithDefault("CORS_ALLOWED_ORIGINS", "*"),
		Environment:        getEnvWithDefault("ENVIRONMENT", "dev"),
		UseStrictConfig:    getEnvWithDefault("USE_STRICT_CONFIG", "true") == "true",

		// Budget engine configuration
		BudgetPeriod:        budgetPeriod,
		BudgetCheckSchedule: getEnvWithDefault("BUDGET_CHECK_SCHEDULE", "@every 1h"),

		// Email configuration (optional)
		EmailConfig: EmailConfig{
			WebhookURL:       os.Getenv("EMAIL_WEBHOOK_URL"),
			FromAddress:      os.Getenv("EMAIL_FROM_ADDRESS"),
			DefaultRecipient: os.Getenv("EMAIL_DEFAULT_RECIPIENT"),
		},

		// Slack configuration (optional)
		SlackConfig: SlackConfig{
			AlertWebhookURL: os.Getenv("SLACK_ALERT_WEBHOOK_URL"),
		},

		// Clerk configuration (optional)
		ClerkConfig: ClerkConfig{
			SecretKey: os.Getenv("CLERK_SECRET_KEY"),
		},
	}

	// Log which integrations are configured
	if config.EmailConfig.IsConfigured() {
		log.Printf("✅ Email delivery configured")
	} else {
		log.Printf("⚠️ Email delivery not configured - budget alert emails will be disabled")
		if config.UseStrictConfig {
			return nil, fmt.Errorf("email delivery is not fully configured (USE_STRICT_CONFIG=true)")
		}
	}

	if config.SlackConfig.IsConfigured() {
		log.Printf("✅ Slack error alerting configured")
	} else {
		log.Printf("⚠️ Slack error alerting not configured - operational alerts will be disabled")
		if config.UseStrictConfig {
			return nil, fmt.Errorf("slack error alerting is not fully configured (USE_STRICT_CONFIG=true)")
		}
	}

	if config.ClerkConfig.IsConfigured() {
		log.Printf("✅ Clerk authentication configured")
	} else {
		log.Printf("⚠️ Clerk authentication not configured - API authentication will be disabled")
		if config.UseStrictConfig {
			return nil, fmt.Errorf("clerk authentication is not fully configured (USE_STRICT_CONFIG=true)")
		}
	}

	return config, nil
}

func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set", key)
	}
	return value, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
