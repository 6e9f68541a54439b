package budget

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"meterbackend/core"
	"meterbackend/metrics"
	"meterbackend/models"
	"meterbackend/services"
)

// AlertCooldown is the minimum gap between two alerts for one project
const AlertCooldown = 24 * time.Hour

// defaultBatchConcurrency bounds concurrent project checks so a batch
// pass cannot overwhelm the notification dispatcher.
const defaultBatchConcurrency = 5

var oneHundred = decimal.NewFromInt(100)

// ProjectBudgetsRepository is the persistence surface the engine needs
type ProjectBudgetsRepository interface {
	GetProjectBudget(ctx context.Context, projectID string) (*models.ProjectBudget, error)
	UpsertProjectBudget(
		ctx context.Context,
		projectID string,
		thresholdUSD decimal.NullDecimal,
		alertThresholdPercent int,
		alertEmail *string,
	) (*models.ProjectBudget, error)
	ClaimBudgetAlert(ctx context.Context, projectID string, cooldown time.Duration) (bool, error)
	SetLastBudgetAlertSent(ctx context.Context, projectID string, sentAt *time.Time) error
	ListBudgetedProjectIDs(ctx context.Context) ([]string, error)
}

type BudgetService struct {
	budgetsRepo      ProjectBudgetsRepository
	usageService     services.UsageService
	projectsService  services.ProjectsService
	dispatcher       services.NotificationDispatcher
	period           models.BudgetPeriod
	batchConcurrency int
}

func NewBudgetService(
	budgetsRepo ProjectBudgetsRepository,
	usageService services.UsageService,
	projectsService services.ProjectsService,
	dispatcher services.NotificationDispatcher,
	period models.BudgetPeriod,
) *BudgetService {
	return &BudgetService{
		budgetsRepo:      budgetsRepo,
		usageService:     usageService,
		projectsService:  projectsService,
		dispatcher:       dispatcher,
		period:           period,
		batchConcurrency: defaultBatchConcurrency,
	}
}

func (s *BudgetService) GetBudget(ctx context.Context, projectID string) (mo.Option[*models.ProjectBudget], error) {
	if projectID == "" {
		return mo.None[*models.ProjectBudget](), core.NewValidationError("project_id", "cannot be empty")
	}

	budget, err := s.budgetsRepo.GetProjectBudget(ctx, projectID)
	if err != nil {
		return mo.None[*models.ProjectBudget](), fmt.Errorf("failed to get project budget: %w", err)
	}
	if budget == nil {
		return mo.None[*models.ProjectBudget](), nil
	}

	return mo.Some(budget), nil
}

func (s *BudgetService) ConfigureBudget(
	ctx context.Context,
	params models.ConfigureBudgetParams,
) (*models.ProjectBudget, error) {
	log.Printf("📋 Starting to configure budget for project %s", params.ProjectID)

	if params.ProjectID == "" {
		return nil, core.NewValidationError("project_id", "cannot be empty")
	}
	if params.BudgetThresholdUSD.Valid && !params.BudgetThresholdUSD.Decimal.IsPositive() {
		return nil, core.NewValidationError("budget_threshold_usd", "must be greater than zero when set")
	}

	alertPercent := models.DefaultBudgetAlertThresholdPercent
	if params.BudgetAlertThresholdPercent != nil {
		alertPercent = *params.BudgetAlertThresholdPercent
	}
	if alertPercent < 1 || alertPercent > 100 {
		return nil, core.NewValidationError("budget_alert_threshold_percent", "must be between 1 and 100")
	}

	budget, err := s.budgetsRepo.UpsertProjectBudget(
		ctx,
		params.ProjectID,
		params.BudgetThresholdUSD,
		alertPercent,
		params.AlertEmail,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to configure budget: %w", err)
	}

	log.Printf("📋 Completed successfully - configured budget for project %s", params.ProjectID)
	return budget, nil
}

// CheckBudget is the pure budget decision: no side effects, safe to call
// any number of times. The aggregation window is the configured period.
func (s *BudgetService) CheckBudget(ctx context.Context, projectID string) (*models.BudgetStatus, error) {
	status, _, err := s.check(ctx, projectID)
	return status, err
}

func (s *BudgetService) check(ctx context.Context, projectID string) (*models.BudgetStatus, *models.ProjectBudget, error) {
	if projectID == "" {
		return nil, nil, core.NewValidationError("project_id", "cannot be empty")
	}

	budget, err := s.budgetsRepo.GetProjectBudget(ctx, projectID)
	if err != nil {
		metrics.BudgetChecksFailed.Inc()
		return nil, nil, fmt.Errorf("failed to load project budget: %w", err)
	}
	if budget == nil || !budget.HasBudget() {
		return &models.BudgetStatus{
			ProjectID: projectID,
			State:     models.BudgetStateNoBudget,
		}, budget, nil
	}

	currentCost, err := s.usageService.ProjectCost(ctx, projectID, s.periodStart(time.Now().UTC()))
	if err != nil {
		// Fail closed: no decision, no alert, error surfaced to caller
		metrics.BudgetChecksFailed.Inc()
		return nil, nil, fmt.Errorf("failed to compute current period cost: %w", err)
	}

	threshold := budget.BudgetThresholdUSD.Decimal
	percentUsed := decimal.Zero
	if threshold.IsPositive() {
		percentUsed = currentCost.Div(threshold).Mul(oneHundred)
	}

	// The alert threshold is inclusive
	shouldAlert := percentUsed.GreaterThanOrEqual(decimal.NewFromInt(int64(budget.BudgetAlertThresholdPercent)))

	state := models.BudgetStateUnderThreshold
	if shouldAlert {
		state = models.BudgetStateOverThreshold
	}

	return &models.BudgetStatus{
		ProjectID:      projectID,
		State:          state,
		CurrentCostUSD: currentCost,
		ThresholdUSD:   threshold,
		PercentUsed:    percentUsed,
		ShouldAlert:    shouldAlert,
	}, budget, nil
}

// CheckAndAlert runs the budget decision and, when it fires and the 24h
// cooldown allows, dispatches an alert. The cooldown claim is an atomic
// conditional update, so concurrent checks for the same project dispatch
// at most once. With dryRun set, steps after the decision are observed
// but nothing is dispatched or mutated.
func (s *BudgetService) CheckAndAlert(ctx context.Context, projectID string, dryRun bool) (*models.AlertResult, error) {
	log.Printf("📋 Starting budget check for project %s (dry_run=%t)", projectID, dryRun)

	status, budget, err := s.check(ctx, projectID)
	if err != nil {
		return nil, err
	}

	result := &models.AlertResult{BudgetStatus: *status}
	if !status.ShouldAlert {
		log.Printf("📋 Completed successfully - project %s under threshold (%s%% used)",
			projectID, status.PercentUsed.StringFixed(1))
		return result, nil
	}

	withinCooldown := budget.LastBudgetAlertSent != nil &&
		time.Since(*budget.LastBudgetAlertSent) < AlertCooldown

	if dryRun {
		result.SuppressedByCooldown = withinCooldown
		log.Printf("📋 Completed successfully - dry run for project %s: should_alert=true, suppressed=%t",
			projectID, withinCooldown)
		return result, nil
	}

	if withinCooldown {
		metrics.BudgetAlertsSuppressed.Inc()
		result.SuppressedByCooldown = true
		log.Printf("📋 Completed successfully - alert for project %s suppressed by cooldown", projectID)
		return result, nil
	}

	claimed, err := s.budgetsRepo.ClaimBudgetAlert(ctx, projectID, AlertCooldown)
	if err != nil {
		return nil, fmt.Errorf("failed to claim budget alert: %w", err)
	}
	if !claimed {
		// A concurrent check won the claim
		metrics.BudgetAlertsSuppressed.Inc()
		result.SuppressedByCooldown = true
		log.Printf("📋 Completed successfully - alert for project %s claimed by concurrent check", projectID)
		return result, nil
	}

	alert := s.buildAlert(ctx, status, budget)
	if err := s.dispatcher.SendBudgetAlert(ctx, alert); err != nil {
		log.Printf("❌ Failed to dispatch budget alert for project %s: %v", projectID, err)
		// Roll the cooldown stamp back so the next check retries instead
		// of silently waiting out the cooldown
		if restoreErr := s.budgetsRepo.SetLastBudgetAlertSent(ctx, projectID, budget.LastBudgetAlertSent); restoreErr != nil {
			log.Printf("❌ Failed to restore cooldown timestamp for project %s: %v", projectID, restoreErr)
		}
		return result, fmt.Errorf("failed to dispatch budget alert: %w", err)
	}

	metrics.BudgetAlertsSent.Inc()
	result.AlertSent = true
	log.Printf("📋 Completed successfully - budget alert sent for project %s (%s%% of $%s used)",
		projectID, status.PercentUsed.StringFixed(1), status.ThresholdUSD.String())
	return result, nil
}

// CheckAllBudgets runs CheckAndAlert for every budgeted project. Checks
// run concurrently up to the batch limit; one project's failure or
// suppression never blocks or fails the others.
func (s *BudgetService) CheckAllBudgets(ctx context.Context, dryRun bool) ([]*models.ProjectAlertOutcome, error) {
	log.Printf("📋 Starting batch budget check (dry_run=%t)", dryRun)

	projectIDs, err := s.budgetsRepo.ListBudgetedProjectIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgeted projects: %w", err)
	}

	outcomes := make([]*models.ProjectAlertOutcome, len(projectIDs))

	var g errgroup.Group
	g.SetLimit(s.batchConcurrency)
	for i, projectID := range projectIDs {
		g.Go(func() error {
			result, err := s.CheckAndAlert(ctx, projectID, dryRun)
			if err != nil {
				log.Printf("❌ Budget check failed for project %s: %v", projectID, err)
			}
			outcomes[i] = &models.ProjectAlertOutcome{
				ProjectID: projectID,
				Result:    result,
				Err:       err,
			}
			// Per-project isolation: never abort the batch
			return nil
		})
	}
	_ = g.Wait()

	log.Printf("📋 Completed successfully - checked %d project budgets", len(outcomes))
	return outcomes, nil
}

// periodStart returns the lower bound of the aggregation window compared
// against the budget. Zero time means no lower bound.
func (s *BudgetService) periodStart(now time.Time) time.Time {
	switch s.period {
	case models.BudgetPeriodCalendarMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}
	}
}

func (s *BudgetService) buildAlert(
	ctx context.Context,
	status *models.BudgetStatus,
	budget *models.ProjectBudget,
) models.BudgetAlert {
	alert := models.BudgetAlert{
		ProjectID:      status.ProjectID,
		ProjectName:    status.ProjectID,
		CurrentCostUSD: status.CurrentCostUSD,
		ThresholdUSD:   status.ThresholdUSD,
		PercentUsed:    status.PercentUsed,
	}
	if budget.AlertEmail != nil {
		alert.Recipient = *budget.AlertEmail
	}

	maybeProject, err := s.projectsService.GetProjectByID(ctx, status.ProjectID)
	if err != nil {
		log.Printf("⚠️ Could not resolve project name for alert: %v", err)
		return alert
	}
	if project, ok := maybeProject.Get(); ok {
		alert.ProjectName = project.Name
	}
	return alert
}
