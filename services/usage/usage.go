package usage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"meterbackend/core"
	"meterbackend/metrics"
	"meterbackend/models"
	"meterbackend/services/pricing"
)

// UsageEventsRepository is the persistence surface the service needs
type UsageEventsRepository interface {
	CreateUsageEvent(ctx context.Context, event *models.UsageEvent) error
	ListUsageEvents(ctx context.Context, filter models.UsageFilter) ([]*models.UsageEvent, error)
	AggregateUsage(ctx context.Context, filter models.UsageFilter, groupBy models.GroupBy) ([]*models.UsageAggregate, error)
}

type UsageService struct {
	usageEventsRepo UsageEventsRepository
	calculator      *pricing.Calculator
}

func NewUsageService(repo UsageEventsRepository, calculator *pricing.Calculator) *UsageService {
	return &UsageService{
		usageEventsRepo: repo,
		calculator:      calculator,
	}
}

// Record validates an incoming usage record, resolves its cost, and
// persists it as a single atomic insert. Unknown pricing rejects the
// record outright; storing a zero cost would silently under-report.
func (s *UsageService) Record(ctx context.Context, params models.RecordUsageParams) (*models.UsageEvent, error) {
	log.Printf("📋 Starting to record usage for project %s: provider=%s, model=%s, input=%d, output=%d tokens",
		params.ProjectID, params.Provider, params.Model, params.InputTokens, params.OutputTokens)

	if err := validateRecordParams(params); err != nil {
		metrics.UsageRecordsRejected.WithLabelValues("validation_failed").Inc()
		return nil, err
	}

	costUSD, err := s.calculator.ComputeCost(params.Provider, params.Model, params.InputTokens, params.OutputTokens)
	if err != nil {
		if core.IsPricingNotFoundError(err) {
			metrics.UsageRecordsRejected.WithLabelValues("pricing_not_found").Inc()
			return nil, err
		}
		return nil, fmt.Errorf("failed to compute cost: %w", err)
	}

	requestTimestamp := time.Now().UTC()
	if params.RequestTimestamp != nil {
		requestTimestamp = params.RequestTimestamp.UTC()
	}

	event := &models.UsageEvent{
		ID:           core.NewID("ue"),
		ProjectID:    params.ProjectID,
		Provider:     params.Provider,
		Model:        params.Model,
		InputTokens:  params.InputTokens,
		OutputTokens: params.OutputTokens,
		// Always server-derived; caller-supplied totals are ignored
		TotalTokens:      params.InputTokens + params.OutputTokens,
		CostUSD:          costUSD,
		RequestTimestamp: requestTimestamp,
	}

	if err := s.usageEventsRepo.CreateUsageEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to persist usage event: %w", err)
	}

	metrics.UsageEventsRecorded.WithLabelValues(event.Provider).Inc()
	log.Printf("📋 Completed successfully - recorded usage event %s, cost: $%s", event.ID, event.CostUSD.String())
	return event, nil
}

// Aggregate returns grouped usage summaries for the filter. Read-only.
func (s *UsageService) Aggregate(
	ctx context.Context,
	filter models.UsageFilter,
	groupBy models.GroupBy,
) ([]*models.UsageAggregate, error) {
	log.Printf("📋 Starting to aggregate usage grouped by %s", groupBy)

	if !groupBy.IsValid() {
		return nil, core.NewValidationError("group_by", "must be one of: day, provider, model, project")
	}
	if err := validateDateRange(filter); err != nil {
		return nil, err
	}

	aggregates, err := s.usageEventsRepo.AggregateUsage(ctx, filter, groupBy)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}

	log.Printf("📋 Completed successfully - aggregated usage into %d groups", len(aggregates))
	return aggregates, nil
}

// ListEvents returns raw usage rows for the filter, newest first
func (s *UsageService) ListEvents(ctx context.Context, filter models.UsageFilter) ([]*models.UsageEvent, error) {
	log.Printf("📋 Starting to list usage events for project %q", filter.ProjectID)

	if err := validateDateRange(filter); err != nil {
		return nil, err
	}

	events, err := s.usageEventsRepo.ListUsageEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage events: %w", err)
	}

	log.Printf("📋 Completed successfully - retrieved %d usage events", len(events))
	return events, nil
}

// ProjectCost returns the total cost for one project since the given
// time. A zero time means the project's full history.
func (s *UsageService) ProjectCost(ctx context.Context, projectID string, since time.Time) (decimal.Decimal, error) {
	if projectID == "" {
		return decimal.Zero, core.NewValidationError("project_id", "cannot be empty")
	}

	filter := models.UsageFilter{ProjectID: projectID}
	if !since.IsZero() {
		filter.DateFrom = &since
	}

	aggregates, err := s.usageEventsRepo.AggregateUsage(ctx, filter, models.GroupByProject)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to aggregate project cost: %w", err)
	}

	if len(aggregates) == 0 {
		return decimal.Zero, nil
	}
	return aggregates[0].TotalCostUSD, nil
}

func validateRecordParams(params models.RecordUsageParams) error {
	if params.ProjectID == "" {
		return core.NewValidationError("project_id", "cannot be empty")
	}
	if !core.IsValidULID(params.ProjectID) {
		return core.NewValidationError("project_id", "is not a valid project identifier")
	}
	if params.Provider == "" {
		return core.NewValidationError("provider", "cannot be empty")
	}
	if params.Model == "" {
		return core.NewValidationError("model", "cannot be empty")
	}
	if params.InputTokens < 0 {
		return core.NewValidationError("input_tokens", "must be a non-negative integer")
	}
	if params.OutputTokens < 0 {
		return core.NewValidationError("output_tokens", "must be a non-negative integer")
	}
	return nil
}

func validateDateRange(filter models.UsageFilter) error {
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return core.NewValidationError("date_to", "must not be before date_from")
	}
	return nil
}
