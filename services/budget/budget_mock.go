package budget

import (
	"context"
	"time"

	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"meterbackend/models"
)

// MockBudgetService is a mock implementation of the BudgetService interface
type MockBudgetService struct {
	mock.Mock
}

func (m *MockBudgetService) GetBudget(ctx context.Context, projectID string) (mo.Option[*models.ProjectBudget], error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(mo.Option[*models.ProjectBudget]), args.Error(1)
}

func (m *MockBudgetService) ConfigureBudget(
	ctx context.Context,
	params models.ConfigureBudgetParams,
) (*models.ProjectBudget, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProjectBudget), args.Error(1)
}

func (m *MockBudgetService) CheckBudget(ctx context.Context, projectID string) (*models.BudgetStatus, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BudgetStatus), args.Error(1)
}

func (m *MockBudgetService) CheckAndAlert(
	ctx context.Context,
	projectID string,
	dryRun bool,
) (*models.AlertResult, error) {
	args := m.Called(ctx, projectID, dryRun)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AlertResult), args.Error(1)
}

func (m *MockBudgetService) CheckAllBudgets(ctx context.Context, dryRun bool) ([]*models.ProjectAlertOutcome, error) {
	args := m.Called(ctx, dryRun)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ProjectAlertOutcome), args.Error(1)
}

// MockProjectBudgetsRepository is a mock implementation of the ProjectBudgetsRepository interface
type MockProjectBudgetsRepository struct {
	mock.Mock
}

func (m *MockProjectBudgetsRepository) GetProjectBudget(
	ctx context.Context,
	projectID string,
) (*models.ProjectBudget, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProjectBudget), args.Error(1)
}

func (m *MockProjectBudgetsRepository) UpsertProjectBudget(
	ctx context.Context,
	projectID string,
	thresholdUSD decimal.NullDecimal,
	alertThresholdPercent int,
	alertEmail *string,
) (*models.ProjectBudget, error) {
	args := m.Called(ctx, projectID, thresholdUSD, alertThresholdPercent, alertEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProjectBudget), args.Error(1)
}

func (m *MockProjectBudgetsRepository) ClaimBudgetAlert(
	ctx context.Context,
	projectID string,
	cooldown time.Duration,
) (bool, error) {
	args := m.Called(ctx, projectID, cooldown)
	return args.Bool(0), args.Error(1)
}

func (m *MockProjectBudgetsRepository) SetLastBudgetAlertSent(
	ctx context.Context,
	projectID string,
	sentAt *time.Time,
) error {
	args := m.Called(ctx, projectID, sentAt)
	return args.Error(0)
}

func (m *MockProjectBudgetsRepository) ListBudgetedProjectIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockNotificationDispatcher is a mock implementation of the NotificationDispatcher interface
type MockNotificationDispatcher struct {
	mock.Mock
}

func (m *MockNotificationDispatcher) SendBudgetAlert(ctx context.Context, alert models.BudgetAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}
