package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	// necessary import to wire up the postgres driver
	_ "github.com/lib/pq"

	"meterbackend/core"
	dbtx "meterbackend/db/tx"
	"meterbackend/models"
)

// MaxQueryRows bounds every usage query. Callers needing more narrow the
// date range instead.
const MaxQueryRows = 1000

type PostgresUsageEventsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for usage_events table
var usageEventsColumns = []string{
	"id",
	"project_id",
	"provider",
	"model",
	"input_tokens",
	"output_tokens",
	"total_tokens",
	"cost_usd",
	"request_timestamp",
	"created_at",
}

func NewPostgresUsageEventsRepository(db *sqlx.DB, schema string) *PostgresUsageEventsRepository {
	return &PostgresUsageEventsRepository{db: db, schema: schema}
}

// CreateUsageEvent persists one usage event as a single atomic insert.
// Events are never updated after creation.
func (r *PostgresUsageEventsRepository) CreateUsageEvent(
	ctx context.Context,
	event *models.UsageEvent,
) error {
	db := dbtx.GetTransactional(ctx, r.db)

	if event.ID == "" {
		event.ID = core.NewID("ue")
	}

	insertColumns := []string{
		"id",
		"project_id",
		"provider",
		"model",
		"input_tokens",
		"output_tokens",
		"total_tokens",
		"cost_usd",
		"request_timestamp",
		"created_at",
	}
	columnsStr := strings.Join(insertColumns, ", ")
	returningStr := strings.Join(usageEventsColumns, ", ")

	query := fmt.Sprintf(`
		INSERT INTO %s.usage_events (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING %s`, r.schema, columnsStr, returningStr)

	err := db.QueryRowxContext(ctx, query,
		event.ID, event.ProjectID, event.Provider, event.Model,
		event.InputTokens, event.OutputTokens, event.TotalTokens,
		event.CostUSD, event.RequestTimestamp).StructScan(event)
	if err != nil {
		return fmt.Errorf("failed to create usage event: %w", err)
	}

	return nil
}

// ListUsageEvents returns raw usage rows matching the filter, newest
// first, capped at MaxQueryRows.
func (r *PostgresUsageEventsRepository) ListUsageEvents(
	ctx context.Context,
	filter models.UsageFilter,
) ([]*models.UsageEvent, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	whereClause, args := buildUsageFilterClause(filter)
	returningStr := strings.Join(usageEventsColumns, ", ")

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.usage_events
		%s
		ORDER BY request_timestamp DESC
		LIMIT %d`, returningStr, r.schema, whereClause, MaxQueryRows)

	var events []*models.UsageEvent
	err := db.SelectContext(ctx, &events, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage events: %w", err)
	}

	return events, nil
}

// AggregateUsage groups the filtered events by the requested key and sums
// cost, tokens, and row counts per group. Day groups come back in
// chronological order; all other groupings are ordered by descending
// total cost so the most expensive groups are first.
func (r *PostgresUsageEventsRepository) AggregateUsage(
	ctx context.Context,
	filter models.UsageFilter,
	groupBy models.GroupBy,
) ([]*models.UsageAggregate, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	var groupExpr, orderClause string
	switch groupBy {
	case models.GroupByDay:
		groupExpr = "to_char(date_trunc('day', request_timestamp AT TIME ZONE 'UTC'), 'YYYY-MM-DD')"
		orderClause = "group_key ASC"
	case models.GroupByProvider:
		groupExpr = "provider"
		orderClause = "total_cost_usd DESC"
	case models.GroupByModel:
		groupExpr = "model"
		orderClause = "total_cost_usd DESC"
	case models.GroupByProject:
		groupExpr = "project_id"
		orderClause = "total_cost_usd DESC"
	default:
		return nil, fmt.Errorf("unsupported group_by: %s", groupBy)
	}

	whereClause, args := buildUsageFilterClause(filter)

	query := fmt.Sprintf(`
		SELECT %s AS group_key,
			COALESCE(SUM(cost_usd), 0) AS total_cost_usd,
			COALESCE(SUM(total_tokens), 0) AS total_tokens,
			COUNT(*) AS request_count
		FROM %s.usage_events
		%s
		GROUP BY group_key
		ORDER BY %s
		LIMIT %d`, groupExpr, r.schema, whereClause, orderClause, MaxQueryRows)

	var aggregates []*models.UsageAggregate
	err := db.SelectContext(ctx, &aggregates, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}

	return aggregates, nil
}

// buildUsageFilterClause turns a UsageFilter into an ANDed WHERE clause.
// DateFrom is inclusive, DateTo exclusive.
func buildUsageFilterClause(filter models.UsageFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	addClause := func(format string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(format, len(args)))
	}

	if filter.ProjectID != "" {
		addClause("project_id = $%d", filter.ProjectID)
	}
	if filter.Provider != "" {
		addClause("provider = $%d", filter.Provider)
	}
	if filter.Model != "" {
		addClause("model = $%d", filter.Model)
	}
	if filter.DateFrom != nil {
		addClause("request_timestamp >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		addClause("request_timestamp < $%d", *filter.DateTo)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
