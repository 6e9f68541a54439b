package testutils

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"meterbackend/appctx"
	"meterbackend/config"
	"meterbackend/core"
	"meterbackend/db"
	"meterbackend/models"
)

// LoadTestConfig loads configuration for tests from environment variables
func LoadTestConfig() (*config.AppConfig, error) {
	// Try to load environment variables from various possible locations
	_ = godotenv.Load("../.env.test") // From services/ directory
	_ = godotenv.Load(".env.test")    // From root directory
	_ = godotenv.Load()               // Default .env file

	databaseURL := os.Getenv("DB_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DB_URL is not set")
	}

	databaseSchema := os.Getenv("DB_SCHEMA")
	if databaseSchema == "" {
		return nil, fmt.Errorf("DB_SCHEMA is not set")
	}

	return &config.AppConfig{
		DatabaseURL:    databaseURL,
		DatabaseSchema: databaseSchema,
		BudgetPeriod:   models.BudgetPeriodAllTime,
	}, nil
}

// CreateTestContext creates a context with the given user set for testing
func CreateTestContext(user *models.User) context.Context {
	ctx := context.Background()
	return appctx.SetUser(ctx, user)
}

// CreateTestOrganization creates an organization with a unique ID
func CreateTestOrganization(t *testing.T, orgsRepo *db.PostgresOrganizationsRepository) *models.Organization {
	org := &models.Organization{}
	err := orgsRepo.CreateOrganization(context.Background(), org)
	require.NoError(t, err, "Failed to create test organization")
	return org
}

// CreateTestUser creates a test user with a unique auth provider ID to
// avoid constraint violations
func CreateTestUser(t *testing.T, usersRepo *db.PostgresUsersRepository, orgID models.OrgID) *models.User {
	user := &models.User{
		ID:             core.NewID("u"),
		AuthProvider:   "test",
		AuthProviderID: uuid.New().String(),
		Email:          fmt.Sprintf("test-%s@example.com", uuid.New().String()),
		OrgID:          orgID,
	}
	err := usersRepo.CreateUser(context.Background(), user)
	require.NoError(t, err, "Failed to create test user")
	return user
}

// CreateTestProject creates a project owned by the given organization
func CreateTestProject(t *testing.T, projectsRepo *db.PostgresProjectsRepository, orgID models.OrgID) *models.Project {
	project := &models.Project{
		ID:    core.NewID("p"),
		OrgID: orgID,
		Name:  "test-project-" + uuid.New().String(),
	}
	err := projectsRepo.CreateProject(context.Background(), project)
	require.NoError(t, err, "Failed to create test project")
	return project
}

// CreateTestUsageEvent persists a usage event with sensible defaults
func CreateTestUsageEvent(
	t *testing.T,
	usageEventsRepo *db.PostgresUsageEventsRepository,
	projectID string,
	costUSD string,
) *models.UsageEvent {
	event := &models.UsageEvent{
		ID:               core.NewID("ue"),
		ProjectID:        projectID,
		Provider:         "openai",
		Model:            "gpt-4",
		InputTokens:      1500,
		OutputTokens:     500,
		TotalTokens:      2000,
		CostUSD:          decimal.RequireFromString(costUSD),
		RequestTimestamp: time.Now().UTC(),
	}
	err := usageEventsRepo.CreateUsageEvent(context.Background(), event)
	require.NoError(t, err, "Failed to create test usage event")
	return event
}
