package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	// necessary import to wire up the postgres driver
	_ "github.com/lib/pq"

	dbtx "meterbackend/db/tx"
	"meterbackend/models"
)

type PostgresProjectBudgetsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for project_budgets table
var projectBudgetsColumns = []string{
	"project_id",
	"budget_threshold_usd",
	"budget_alert_threshold_percent",
	"alert_email",
	"last_budget_alert_sent",
	"created_at",
	"updated_at",
}

func NewPostgresProjectBudgetsRepository(db *sqlx.DB, schema string) *PostgresProjectBudgetsRepository {
	return &PostgresProjectBudgetsRepository{db: db, schema: schema}
}

func (r *PostgresProjectBudgetsRepository) GetProjectBudget(
	ctx context.Context,
	projectID string,
) (*models.ProjectBudget, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	returningStr := strings.Join(projectBudgetsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.project_budgets
		WHERE project_id = $1`, returningStr, r.schema)

	budget := &models.ProjectBudget{}
	err := db.QueryRowxContext(ctx, query, projectID).StructScan(budget)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, nil // Budget not configured
		}
		return nil, fmt.Errorf("failed to get project budget: %w", err)
	}

	return budget, nil
}

func (r *PostgresProjectBudgetsRepository) UpsertProjectBudget(
	ctx context.Context,
	projectID string,
	thresholdUSD decimal.NullDecimal,
	alertThresholdPercent int,
	alertEmail *string,
) (*models.ProjectBudget, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	returningStr := strings.Join(projectBudgetsColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.project_budgets (
			project_id, budget_threshold_usd, budget_alert_threshold_percent, alert_email
		) VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id)
		DO UPDATE SET
			budget_threshold_usd = EXCLUDED.budget_threshold_usd,
			budget_alert_threshold_percent = EXCLUDED.budget_alert_threshold_percent,
			alert_email = EXCLUDED.alert_email,
			updated_at = NOW()
		RETURNING %s`, r.schema, returningStr)

	budget := &models.ProjectBudget{}
	err := db.QueryRowxContext(
		ctx,
		query,
		projectID, thresholdUSD, alertThresholdPercent, alertEmail,
	).StructScan(budget)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert project budget: %w", err)
	}

	return budget, nil
}

// ClaimBudgetAlert atomically stamps last_budget_alert_sent to now, but
// only when the stored value is NULL or older than the cooldown. Exactly
// one of any set of concurrent claims wins, which is what keeps two
// concurrent checks from both dispatching an alert.
func (r *PostgresProjectBudgetsRepository) ClaimBudgetAlert(
	ctx context.Context,
	projectID string,
	cooldown time.Duration,
) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	query := fmt.Sprintf(`
		UPDATE %s.project_budgets
		SET last_budget_alert_sent = NOW(),
			updated_at = NOW()
		WHERE project_id = $1
			AND (last_budget_alert_sent IS NULL
				OR last_budget_alert_sent < NOW() - make_interval(secs => $2))`,
		r.schema)

	result, err := db.ExecContext(ctx, query, projectID, cooldown.Seconds())
	if err != nil {
		return false, fmt.Errorf("failed to claim budget alert: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}

	return rows == 1, nil
}

// SetLastBudgetAlertSent overwrites the cooldown timestamp. Used to
// restore the previous value when a dispatch fails after a claim, so the
// alert condition is reconsidered on the next check instead of being
// silently dropped for the cooldown window.
func (r *PostgresProjectBudgetsRepository) SetLastBudgetAlertSent(
	ctx context.Context,
	projectID string,
	sentAt *time.Time,
) error {
	db := dbtx.GetTransactional(ctx, r.db)

	query := fmt.Sprintf(`
		UPDATE %s.project_budgets
		SET last_budget_alert_sent = $2,
			updated_at = NOW()
		WHERE project_id = $1`, r.schema)

	if _, err := db.ExecContext(ctx, query, projectID, sentAt); err != nil {
		return fmt.Errorf("failed to set last budget alert sent: %w", err)
	}

	return nil
}

// ListBudgetedProjectIDs returns the IDs of every project with budget
// tracking enabled, for batch checks.
func (r *PostgresProjectBudgetsRepository) ListBudgetedProjectIDs(
	ctx context.Context,
) ([]string, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	query := fmt.Sprintf(`
		SELECT project_id
		FROM %s.project_budgets
		WHERE budget_threshold_usd IS NOT NULL
		ORDER BY project_id`, r.schema)

	var projectIDs []string
	if err := db.SelectContext(ctx, &projectIDs, query); err != nil {
		return nil, fmt.Errorf("failed to list budgeted projects: %w", err)
	}

	return projectIDs, nil
}
