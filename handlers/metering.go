package handlers

import (
	"context"
	"log"

	"github.com/samber/mo"

	"meterbackend/core"
	"meterbackend/models"
	"meterbackend/services"
)

// MeteringAPIHandler exposes the metering operations with project access
// control applied. Every project-scoped call resolves the project and
// refuses callers outside the owning organization; denied and missing
// projects are indistinguishable to the caller.
type MeteringAPIHandler struct {
	usageService    services.UsageService
	budgetService   services.BudgetService
	projectsService services.ProjectsService
}

func NewMeteringAPIHandler(
	usageService services.UsageService,
	budgetService services.BudgetService,
	projectsService services.ProjectsService,
) *MeteringAPIHandler {
	return &MeteringAPIHandler{
		usageService:    usageService,
		budgetService:   budgetService,
		projectsService: projectsService,
	}
}

// authorizeProject resolves the project and checks the caller may act on
// it. Missing and denied projects both come back as AuthorizationError.
func (h *MeteringAPIHandler) authorizeProject(
	ctx context.Context,
	user *models.User,
	projectID string,
) (*models.Project, error) {
	if projectID == "" {
		return nil, core.NewValidationError("project_id", "cannot be empty")
	}

	maybeProject, err := h.projectsService.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	project, ok := maybeProject.Get()
	if !ok {
		return nil, &core.AuthorizationError{ProjectID: projectID}
	}
	if !h.projectsService.CanAccessProject(user, project) {
		return nil, &core.AuthorizationError{ProjectID: projectID}
	}
	return project, nil
}

// RecordUsage records one usage event for a project the caller owns
func (h *MeteringAPIHandler) RecordUsage(
	ctx context.Context,
	user *models.User,
	params models.RecordUsageParams,
) (*models.UsageEvent, error) {
	log.Printf("📋 Recording usage for project %s by user %s", params.ProjectID, user.ID)
	if _, err := h.authorizeProject(ctx, user, params.ProjectID); err != nil {
		return nil, err
	}

	event, err := h.usageService.Record(ctx, params)
	if err != nil {
		log.Printf("❌ Failed to record usage: %v", err)
		return nil, err
	}

	log.Printf("✅ Usage event recorded: %s", event.ID)
	return event, nil
}

// ListUsage returns raw usage events for one project the caller owns
func (h *MeteringAPIHandler) ListUsage(
	ctx context.Context,
	user *models.User,
	filter models.UsageFilter,
) ([]*models.UsageEvent, error) {
	log.Printf("📋 Listing usage events for project %s", filter.ProjectID)
	if _, err := h.authorizeProject(ctx, user, filter.ProjectID); err != nil {
		return nil, err
	}

	events, err := h.usageService.ListEvents(ctx, filter)
	if err != nil {
		log.Printf("❌ Failed to list usage events: %v", err)
		return nil, err
	}

	log.Printf("✅ Retrieved %d usage events for project %s", len(events), filter.ProjectID)
	return events, nil
}

// AggregateUsage returns grouped usage totals for one project the caller owns
func (h *MeteringAPIHandler) AggregateUsage(
	ctx context.Context,
	user *models.User,
	filter models.UsageFilter,
	groupBy models.GroupBy,
) ([]*models.UsageAggregate, error) {
	log.Printf("📋 Aggregating usage for project %s grouped by %s", filter.ProjectID, groupBy)
	if _, err := h.authorizeProject(ctx, user, filter.ProjectID); err != nil {
		return nil, err
	}

	aggregates, err := h.usageService.Aggregate(ctx, filter, groupBy)
	if err != nil {
		log.Printf("❌ Failed to aggregate usage: %v", err)
		return nil, err
	}

	log.Printf("✅ Computed %d usage groups for project %s", len(aggregates), filter.ProjectID)
	return aggregates, nil
}

// ListProjects returns the projects of the caller's organization
func (h *MeteringAPIHandler) ListProjects(ctx context.Context, user *models.User) ([]*models.Project, error) {
	log.Printf("📋 Listing projects for organization %s", user.OrgID)
	projects, err := h.projectsService.GetProjectsByOrganizationID(ctx, user.OrgID)
	if err != nil {
		log.Printf("❌ Failed to list projects: %v", err)
		return nil, err
	}

	log.Printf("✅ Retrieved %d projects for organization %s", len(projects), user.OrgID)
	return projects, nil
}

// CreateProject creates a project inside the caller's organization
func (h *MeteringAPIHandler) CreateProject(
	ctx context.Context,
	user *models.User,
	name string,
) (*models.Project, error) {
	log.Printf("➕ Creating project %q for organization %s", name, user.OrgID)
	project, err := h.projectsService.CreateProject(ctx, user.OrgID, name)
	if err != nil {
		log.Printf("❌ Failed to create project: %v", err)
		return nil, err
	}

	log.Printf("✅ Project created successfully: %s", project.ID)
	return project, nil
}

// GetBudget returns a project's budget configuration together with a live
// evaluation against current spend
func (h *MeteringAPIHandler) GetBudget(
	ctx context.Context,
	user *models.User,
	projectID string,
) (mo.Option[*models.ProjectBudget], *models.BudgetStatus, error) {
	log.Printf("📋 Getting budget for project %s", projectID)
	if _, err := h.authorizeProject(ctx, user, projectID); err != nil {
		return mo.None[*models.ProjectBudget](), nil, err
	}

	maybeBudget, err := h.budgetService.GetBudget(ctx, projectID)
	if err != nil {
		log.Printf("❌ Failed to get budget: %v", err)
		return mo.None[*models.ProjectBudget](), nil, err
	}

	status, err := h.budgetService.CheckBudget(ctx, projectID)
	if err != nil {
		log.Printf("❌ Failed to evaluate budget status: %v", err)
		return mo.None[*models.ProjectBudget](), nil, err
	}

	return maybeBudget, status, nil
}

// ConfigureBudget sets or clears a project's budget configuration
func (h *MeteringAPIHandler) ConfigureBudget(
	ctx context.Context,
	user *models.User,
	params models.ConfigureBudgetParams,
) (*models.ProjectBudget, error) {
	log.Printf("📋 Configuring budget for project %s", params.ProjectID)
	if _, err := h.authorizeProject(ctx, user, params.ProjectID); err != nil {
		return nil, err
	}

	budget, err := h.budgetService.ConfigureBudget(ctx, params)
	if err != nil {
		log.Printf("❌ Failed to configure budget: %v", err)
		return nil, err
	}

	log.Printf("✅ Budget configured for project %s", params.ProjectID)
	return budget, nil
}

// CheckProjectBudget runs the alerting check for one project the caller owns
func (h *MeteringAPIHandler) CheckProjectBudget(
	ctx context.Context,
	user *models.User,
	projectID string,
	dryRun bool,
) (*models.AlertResult, error) {
	log.Printf("📋 Checking budget for project %s (dry_run=%t)", projectID, dryRun)
	if _, err := h.authorizeProject(ctx, user, projectID); err != nil {
		return nil, err
	}

	result, err := h.budgetService.CheckAndAlert(ctx, projectID, dryRun)
	if err != nil {
		log.Printf("❌ Budget check failed: %v", err)
		return nil, err
	}
	return result, nil
}

// CheckAllBudgets runs the batch alerting check over every budgeted project
func (h *MeteringAPIHandler) CheckAllBudgets(
	ctx context.Context,
	dryRun bool,
) ([]*models.ProjectAlertOutcome, error) {
	log.Printf("📋 Running batch budget check (dry_run=%t)", dryRun)
	outcomes, err := h.budgetService.CheckAllBudgets(ctx, dryRun)
	if err != nil {
		log.Printf("❌ Batch budget check failed: %v", err)
		return nil, err
	}

	log.Printf("✅ Batch budget check covered %d projects", len(outcomes))
	return outcomes, nil
}
