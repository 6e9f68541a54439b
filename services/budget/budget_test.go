package budget

import (
	"context"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"meterbackend/core"
	"meterbackend/models"
	"meterbackend/services/projects"
	"meterbackend/services/usage"
)

type testFixture struct {
	service    *BudgetService
	repo       *MockProjectBudgetsRepository
	usage      *usage.MockUsageService
	projects   *projects.MockProjectsService
	dispatcher *MockNotificationDispatcher
}

func newFixture(period models.BudgetPeriod) *testFixture {
	repo := &MockProjectBudgetsRepository{}
	usageService := &usage.MockUsageService{}
	projectsService := &projects.MockProjectsService{}
	dispatcher := &MockNotificationDispatcher{}

	return &testFixture{
		service:    NewBudgetService(repo, usageService, projectsService, dispatcher, period),
		repo:       repo,
		usage:      usageService,
		projects:   projectsService,
		dispatcher: dispatcher,
	}
}

func budgetFixture(projectID string, thresholdUSD string, alertPercent int, lastSent *time.Time) *models.ProjectBudget {
	return &models.ProjectBudget{
		ProjectID:                   projectID,
		BudgetThresholdUSD:          decimal.NewNullDecimal(decimal.RequireFromString(thresholdUSD)),
		BudgetAlertThresholdPercent: alertPercent,
		LastBudgetAlertSent:         lastSent,
	}
}

func (f *testFixture) expectProjectLookup(projectID string) {
	f.projects.On("GetProjectByID", mock.Anything, projectID).
		Return(mo.Some(&models.Project{ID: projectID, Name: "Test Project"}), nil).Maybe()
}

func TestCheckBudget_NoBudgetConfigured(t *testing.T) {
	f := newFixture(models.BudgetPeriodAllTime)
	projectID := core.NewID("p")
	f.repo.On("GetProjectBudget", mock.Anything, projectID).Return(nil, nil)

	status, err := f.service.CheckBudget(context.Background(), projectID)
	require.NoError(t, err)
	assert.Equal(t, models.BudgetStateNoBudget, status.State)
	assert.False(t, status.ShouldAlert)

	f.usage.AssertNotCalled(t, "ProjectCost", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckBudget_NullThresholdDisablesTracking(t *testing.T) {
	f := newFixture(models.BudgetPeriodAllTime)
	projectID := core.NewID("p")
	f.repo.On("GetProjectBudget", mock.Anything, projectID).Return(&models.ProjectBudget{
		ProjectID:                   projectID,
		BudgetAlertThresholdPercent: 80,
	}, nil)

	status, err := f.service.CheckBudget(context.Background(), projectID)
	require.NoError(t, err)
	assert.Equal(t, models.BudgetStateNoBudget, status.State)
	assert.False(t, status.ShouldAlert)
}

func TestCheckBudget_ThresholdBoundaryIsInclusive(t *testing.T) {
	testCases := []struct {
		name        string
		currentCost string
		shouldAlert bool
		state       models.BudgetState
	}{
		{"one unit below threshold", "79", false, models.BudgetStateUnderThreshold},
		{"exactly at threshold", "80", true, models.BudgetStateOverThreshold},
		{"above threshold", "85", true, models.BudgetStateOverThreshold},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(models.BudgetPeriodAllTime)
			projectID := core.NewID("p")

			f.repo.On("GetProjectBudget", mock.Anything, projectID).
				Return(budgetFixture(projectID, "100", 80, nil), nil)
			f.usage.On("ProjectCost", mock.Anything, projectID, mock.Anything).
				Return(decimal.RequireFromString(tc.currentCost), nil)

			status, err := f.service.CheckBudget(context.Background(), projectID)
			require.NoError(t, err)
			assert.Equal(t, tc.shouldAlert, status.ShouldAlert)
			assert.Equal(t, tc.state, status.State)
			assert.True(t, status.PercentUsed.Equal(decimal.RequireFromString(tc.currentCost)),
				"with a $100 budget percent equals cost, got %s", status.PercentUsed)
		})
	}
}

func TestCheckBudget_AggregatorFailureFailsClosed(t *testing.T) {
	f := newFixture(models.BudgetPeriodAllTime)
	projectID := core.NewID("p")

	f.repo.On("GetProjectBudget", mock.Anything, projectID).
		Return(budgetFixture(projectID, "100", 80, nil), nil)
	f.usage.On("ProjectCost", mock.Anything, projectID, mock.Anything).
		Return(decimal.Zero, assert.AnError)

	_, err := f.service.CheckBudget(context.Background(), projectID)
	require.Error(t, err)
	f.dispatcher.AssertNotCalled(t, "SendBudgetAlert", mock.Anything, mock.Anything)
}

func TestCheckBudget_PeriodStart(t *testing.T) {
	t.Run("calendar month", func(t *testing.T) {
		f := newFixture(models.BudgetPeriodCalendarMonth)
		projectID := core.NewID("p")

		f.repo.On("GetProjectBudget", mock.Anything, projectID).
			Return(budgetFixture(projectID, "100", 80, nil), nil)
		f.usage.On("ProjectCost", mock.Anything, projectID, mock.MatchedBy(func(since time.Time) bool {
			now := time.Now().UTC()
			return since.Equal(time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC))
		})).Return(decimal.NewFromInt(10), nil)

		_, err := f.service.CheckBudget(context.Background(), projectID)
		require.NoError(t, err)
		f.usage.AssertExpectations(t)
	})

	t.Run("all time", func(t *testing.T) {
		f := newFixture(models.BudgetPeriodAllTime)
		projectID := core.NewID("p")

		f.repo.On("GetProjectBudget", mock.Anything, projectID).
			Return(budgetFixture(projectID, "100", 80, nil), nil)
		f.usage.On("ProjectCost", mock.Anything, projectID, mock.MatchedBy(func(since time.Time) bool {
			return since.IsZero()
		})).Return(decimal.NewFromInt(10), nil)

		_, err := f.service.CheckBudget(context.Background(), projectID)
		require.NoError(t, err)
		f.usage.AssertExpectations(t)
	})
}

func TestCheckAndAlert_UnderThresholdNoSideEffects(t *testing.T) {
	f := newFixture(models.BudgetPeriodAllTime)
	projectID := core.NewID("p")

	f.repo.On("GetProjectBudget", mock.Anything, projectID).
		Return(budgetFixture(projectID, "100", 80, nil), nil)
	f.usage.On("ProjectCost", mock.Anything, projectID, mock.Anything).
		Return(decimal.RequireFromString("79"), nil)

	result, err := f.service.CheckAndAlert(context.Background(), projectID, false)
	require.NoError(t, err)
	assert.False(t, result.ShouldAlert)
	assert.False(t, result.AlertSent)
	assert.False(t, result.SuppressedByCooldown)

	f.repo.AssertNotCalled(t, "ClaimBudgetAlert", mock.Anything, mock.Anything, mock.Anything)
	f.dispatcher.AssertNotCalled(t, "SendBudgetAlert", mock.Anything, mock.Anything)
}

func TestCheckAndAlert_DispatchesAndStampsCooldown(t *testing.T) {
	f := newFixture(models.BudgetPeriodAllTime)
	projectID := core.NewID("p")

	f.repo.On("GetProjectBudget", mock.Anything, projectID).
		Return(budgetFixture(projectID, "100", 80, nil), nil)
	f.usage.On("ProjectCost", mock.Anything, projectID, mock.Anything).
		Return(decimal.RequireFromString("80"), nil)
	f.repo.On("ClaimBudgetAlert", mock.Anything, projectID, AlertCooldown).Return(true, nil)
	f.expectProjectLookup(projectID)
	f.dispatcher.On("SendBudgetAlert", mock.Anything, mock.MatchedBy(func(alert models.BudgetAlert) bool {
		return alert.ProjectID == projectID && alert.CurrentCostUSD.Equal(decimal.NewFromInt(80))
	})).Return(nil)

	result, err := f.service.CheckAndAlert(context.Background(), projectID, false)
	require.NoError(t, err)
	assert.True(t, result.AlertSent)
	assert.False(t, result.SuppressedByCooldown)

	f.repo.AssertExpectations(t)
	f.dispatcher.AssertExpectations(t)
}

func TestCheckAndAlert_CooldownSuppressesSecondAlert(t *testing.T) {
	f := newFixture(models.BudgetPeriodAllTime)
	projectID := core.NewID("p")
	oneHourAgo := time.Now().Add(-1 * time.Hour)

	f.repo.On("GetProjectBudget", mock.Anything, projectID).
		Return(budgetFixture(projectID, "100", 80, &oneHourAgo), nil)
	f.usage.On("ProjectCost", mock.Anything, projectID, mock.Anything).
		Return(decimal.RequireFromString("85"), nil)

	result, err := f.service.CheckAndAlert(context.Background(), projectID, false)
	require.NoError(t, err)
	assert.True(t, result.ShouldAlert, "still over threshold")
	assert.False(t, result.AlertSent)
	assert.True(t, result.SuppressedByCooldown, "must be distinguishable from under-threshold")

	f.repo.AssertNotCalled(t, "ClaimBudgetAlert", mock.Anything, mock.Anything, mock.Anything)
	f.dispatcher.AssertNotCalled(t, "SendBudgetAlert", mock.Anything, mock.Anything)
}

func TestCheckAndAlert_DispatchesAgainAfterCooldownExpires(t *testing.T) {
	f := newFixture(models.BudgetPeriodAllTime)
	projectID := core.NewID("p")
	twentyFiveHoursAgo := time.Now().Add(-25 * time.Hour)

	f.repo.On("GetProjectBudget", mock.Anything, projectID).
		Return(budgetFixture(projectID, "100", 80, &twentyFiveHoursAgo), nil)
	f.usage.On("ProjectCost", mock.Anything, projectID, mock.Anything).
		Return(decimal.RequireFromString("85"), nil)
	f.repo.On("ClaimBudgetAlert", mock.Anything, projectID, AlertCooldown).Return(true, nil)
	f.expectProjectLookup(projectID)
	f.dispatcher.On("SendBudgetAlert", mock.Anything, mock.Anything).Return(nil)

	result, err := f.service.CheckAndAlert(context.Background(), projectID, false)
	require.NoError(t, err)
	assert.True(t, result.AlertSent)
	assert.False(t, result.SuppressedByCooldown)
}

func TestCheckAndAlert_ConcurrentClaimLossSuppresses(t *testing.T) {
	f := newFixture(models.BudgetPeriodAllTime)
	projectID := core.NewID("p")

	f.repo.On("GetProjectBudget", mock.Anything, projectID).
		Return(budgetFixture(projectID, "100", 80, nil), nil)
	f.usage.On("ProjectCost", mock.Anything, projectID, mock.Anything).
		Return(decimal.RequireFromString("90"), nil)
	f.repo.On("ClaimBudgetAlert", mock.Anything, projectID, AlertCooldown).Return(false, nil)

	result, err := f.service.CheckAndAlert(context.Background(), projectID, false)
	require.NoError(t, err)
	assert.False(t, result.AlertSent)
	assert.True(t, result.SuppressedByCooldown)

	f.dispatcher.AssertNotCalled(t, "SendBudgetAlert", mock.Anything, mock.Anything)
}

func TestCheckAndAlert_DispatchFailureRestoresCooldown(t *testing.T) {
	f := newFixture(models.BudgetPeriodAllTime)
	projectID := core.NewID("p")

	f.repo.On("GetProjectBudget", mock.Anything, projectID).
		Return(budgetFixture(projectID, "100", 80, nil), nil)
	f.usage.On("ProjectCost", mock.Anything, projectID, mock.Anything).
		Return(decimal.RequireFromString("90"), nil)
	f.repo.On("ClaimBudgetAlert", mock.Anything, projectID, AlertCooldown).Return(true, nil)
	f.expectProjectLookup(projectID)
	f.dispatcher.On("SendBudgetAlert", mock.Anything, mock.Anything).Return(assert.AnError)
	f.repo.On("SetLastBudgetAlertSent", mock.Anything, projectID, (*time.Time)(nil)).Return(nil)

	result, err := f.service.CheckAndAlert(context.Background(), projectID, false)
	require.Error(t, err)
	assert.False(t, result.AlertSent)

	// Cooldown stamp rolled back so the next check retries
	f.repo.AssertCalled(t, "SetLastBudgetAlertSent", mock.Anything, projectID, (*time.Time)(nil))
}

func TestCheckAndAlert_DryRunNeverMutatesOrDispatches(t *testing.T) {
	f := newFixture(models.BudgetPeriodAllTime)
	projectID := core.NewID("p")

	f.repo.On("GetProjectBudget", mock.Anything, projectID).
		Return(budgetFixture(projectID, "100", 80, nil), nil)
	f.usage.On("ProjectCost", mock.Anything, projectID, mock.Anything).
		Return(decimal.RequireFromString("500"), nil)

	// Any number of dry runs leaves no trace, however far over threshold
	for i := 0; i < 5; i++ {
		result, err := f.service.CheckAndAlert(context.Background(), projectID, true)
		require.NoError(t, err)
		assert.True(t, result.ShouldAlert)
		assert.False(t, result.AlertSent)
		assert.False(t, result.SuppressedByCooldown)
	}

	f.repo.AssertNotCalled(t, "ClaimBudgetAlert", mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "SetLastBudgetAlertSent", mock.Anything, mock.Anything, mock.Anything)
	f.dispatcher.AssertNotCalled(t, "SendBudgetAlert", mock.Anything, mock.Anything)
}

func TestCheckAndAlert_DryRunReportsCooldownSuppression(t *testing.T) {
	f := newFixture(models.BudgetPeriodAllTime)
	projectID := core.NewID("p")
	oneHourAgo := time.Now().Add(-1 * time.Hour)

	f.repo.On("GetProjectBudget", mock.Anything, projectID).
		Return(budgetFixture(projectID, "100", 80, &oneHourAgo), nil)
	f.usage.On("ProjectCost", mock.Anything, projectID, mock.Anything).
		Return(decimal.RequireFromString("90"), nil)

	result, err := f.service.CheckAndAlert(context.Background(), projectID, true)
	require.NoError(t, err)
	assert.True(t, result.ShouldAlert)
	assert.True(t, result.SuppressedByCooldown)
	assert.False(t, result.AlertSent)
}

func TestCheckAllBudgets_IsolatesPerProjectFailures(t *testing.T) {
	f := newFixture(models.BudgetPeriodAllTime)

	healthyID := core.NewID("p")
	failingID := core.NewID("p")
	quietID := core.NewID("p")

	f.repo.On("ListBudgetedProjectIDs", mock.Anything).
		Return([]string{healthyID, failingID, quietID}, nil)

	// healthy: over threshold, dispatch succeeds
	f.repo.On("GetProjectBudget", mock.Anything, healthyID).
		Return(budgetFixture(healthyID, "100", 80, nil), nil)
	f.usage.On("ProjectCost", mock.Anything, healthyID, mock.Anything).
		Return(decimal.RequireFromString("90"), nil)
	f.repo.On("ClaimBudgetAlert", mock.Anything, healthyID, AlertCooldown).Return(true, nil)
	f.expectProjectLookup(healthyID)

	// failing: aggregation errors out
	f.repo.On("GetProjectBudget", mock.Anything, failingID).
		Return(budgetFixture(failingID, "100", 80, nil), nil)
	f.usage.On("ProjectCost", mock.Anything, failingID, mock.Anything).
		Return(decimal.Zero, assert.AnError)

	// quiet: under threshold
	f.repo.On("GetProjectBudget", mock.Anything, quietID).
		Return(budgetFixture(quietID, "100", 80, nil), nil)
	f.usage.On("ProjectCost", mock.Anything, quietID, mock.Anything).
		Return(decimal.RequireFromString("10"), nil)

	f.dispatcher.On("SendBudgetAlert", mock.Anything, mock.MatchedBy(func(alert models.BudgetAlert) bool {
		return alert.ProjectID == healthyID
	})).Return(nil)

	outcomes, err := f.service.CheckAllBudgets(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	byProject := make(map[string]*models.ProjectAlertOutcome)
	for _, outcome := range outcomes {
		byProject[outcome.ProjectID] = outcome
	}

	assert.NoError(t, byProject[healthyID].Err)
	assert.True(t, byProject[healthyID].Result.AlertSent)

	assert.Error(t, byProject[failingID].Err, "failure captured, not propagated")

	assert.NoError(t, byProject[quietID].Err)
	assert.False(t, byProject[quietID].Result.AlertSent)
}

func TestConfigureBudget_Validation(t *testing.T) {
	f := newFixture(models.BudgetPeriodAllTime)
	projectID := core.NewID("p")

	zero := 0
	tooHigh := 101

	testCases := []struct {
		name   string
		params models.ConfigureBudgetParams
	}{
		{"empty project id", models.ConfigureBudgetParams{}},
		{"zero threshold", models.ConfigureBudgetParams{
			ProjectID:          projectID,
			BudgetThresholdUSD: decimal.NewNullDecimal(decimal.Zero),
		}},
		{"negative threshold", models.ConfigureBudgetParams{
			ProjectID:          projectID,
			BudgetThresholdUSD: decimal.NewNullDecimal(decimal.NewFromInt(-5)),
		}},
		{"percent below range", models.ConfigureBudgetParams{
			ProjectID:                   projectID,
			BudgetThresholdUSD:          decimal.NewNullDecimal(decimal.NewFromInt(100)),
			BudgetAlertThresholdPercent: &zero,
		}},
		{"percent above range", models.ConfigureBudgetParams{
			ProjectID:                   projectID,
			BudgetThresholdUSD:          decimal.NewNullDecimal(decimal.NewFromInt(100)),
			BudgetAlertThresholdPercent: &tooHigh,
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.ConfigureBudget(context.Background(), tc.params)
			require.Error(t, err)
			assert.True(t, core.IsValidationError(err))
		})
	}

	f.repo.AssertNotCalled(t, "UpsertProjectBudget",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfigureBudget_DefaultsAlertPercent(t *testing.T) {
	f := newFixture(models.BudgetPeriodAllTime)
	projectID := core.NewID("p")
	threshold := decimal.NewNullDecimal(decimal.NewFromInt(100))

	f.repo.On("UpsertProjectBudget", mock.Anything, projectID, threshold,
		models.DefaultBudgetAlertThresholdPercent, (*string)(nil)).
		Return(budgetFixture(projectID, "100", models.DefaultBudgetAlertThresholdPercent, nil), nil)

	budget, err := f.service.ConfigureBudget(context.Background(), models.ConfigureBudgetParams{
		ProjectID:          projectID,
		BudgetThresholdUSD: threshold,
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultBudgetAlertThresholdPercent, budget.BudgetAlertThresholdPercent)
	f.repo.AssertExpectations(t)
}

func TestConfigureBudget_NullThresholdDisables(t *testing.T) {
	f := newFixture(models.BudgetPeriodAllTime)
	projectID := core.NewID("p")
	disabled := decimal.NullDecimal{}

	f.repo.On("UpsertProjectBudget", mock.Anything, projectID, disabled,
		models.DefaultBudgetAlertThresholdPercent, (*string)(nil)).
		Return(&models.ProjectBudget{
			ProjectID:                   projectID,
			BudgetAlertThresholdPercent: models.DefaultBudgetAlertThresholdPercent,
		}, nil)

	budget, err := f.service.ConfigureBudget(context.Background(), models.ConfigureBudgetParams{
		ProjectID:          projectID,
		BudgetThresholdUSD: disabled,
	})
	require.NoError(t, err)
	assert.False(t, budget.HasBudget())
}
