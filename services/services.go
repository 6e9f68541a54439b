package services

import (
	"context"
	"time"

	"github.com/samber/mo"
	"github.com/shopspring/decimal"

	"meterbackend/models"
)

// UsersService defines the interface for user-related operations
type UsersService interface {
	GetOrCreateUser(ctx context.Context, authProvider, authProviderID, email string) (*models.User, error)
}

// ProjectsService defines the interface for project-related operations
type ProjectsService interface {
	CreateProject(ctx context.Context, organizationID models.OrgID, name string) (*models.Project, error)
	GetProjectByID(ctx context.Context, id string) (mo.Option[*models.Project], error)
	GetProjectsByOrganizationID(ctx context.Context, organizationID models.OrgID) ([]*models.Project, error)
	// CanAccessProject reports whether the caller may operate on the
	// project. Operations the check denies must be refused.
	CanAccessProject(user *models.User, project *models.Project) bool
}

// UsageService defines the interface for usage recording and aggregation
type UsageService interface {
	Record(ctx context.Context, params models.RecordUsageParams) (*models.UsageEvent, error)
	Aggregate(ctx context.Context, filter models.UsageFilter, groupBy models.GroupBy) ([]*models.UsageAggregate, error)
	ListEvents(ctx context.Context, filter models.UsageFilter) ([]*models.UsageEvent, error)
	// ProjectCost returns the total cost for one project since the given
	// time (zero time means all history).
	ProjectCost(ctx context.Context, projectID string, since time.Time) (decimal.Decimal, error)
}

// BudgetService defines the interface for budget configuration and alerting
type BudgetService interface {
	GetBudget(ctx context.Context, projectID string) (mo.Option[*models.ProjectBudget], error)
	ConfigureBudget(ctx context.Context, params models.ConfigureBudgetParams) (*models.ProjectBudget, error)
	CheckBudget(ctx context.Context, projectID string) (*models.BudgetStatus, error)
	CheckAndAlert(ctx context.Context, projectID string, dryRun bool) (*models.AlertResult, error)
	CheckAllBudgets(ctx context.Context, dryRun bool) ([]*models.ProjectAlertOutcome, error)
}

// NotificationDispatcher is the boundary to the external email-sending
// capability. Delivery is best-effort; a returned error means the alert
// was not handed off.
type NotificationDispatcher interface {
	SendBudgetAlert(ctx context.Context, alert models.BudgetAlert) error
}

// TransactionManager coordinates multi-statement writes
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}
