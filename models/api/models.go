package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// UsageEventModel represents a recorded usage event returned by the API.
// Decimal amounts serialize as JSON strings so clients keep exact values.
type UsageEventModel struct {
	ID               string          `json:"id"`
	ProjectID        string          `json:"project_id"`
	Provider         string          `json:"provider"`
	Model            string          `json:"model"`
	InputTokens      int             `json:"input_tokens"`
	OutputTokens     int             `json:"output_tokens"`
	TotalTokens      int             `json:"total_tokens"`
	CostUSD          decimal.Decimal `json:"cost_usd"`
	RequestTimestamp time.Time       `json:"request_timestamp"`
	CreatedAt        time.Time       `json:"created_at"`
}

// UsageAggregateModel represents one row of an aggregated usage report
type UsageAggregateModel struct {
	GroupKey     string          `json:"group_key"`
	TotalCostUSD decimal.Decimal `json:"total_cost_usd"`
	TotalTokens  int64           `json:"total_tokens"`
	RequestCount int64           `json:"request_count"`
}

// ProjectModel represents the project data returned by the API
type ProjectModel struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectBudgetModel represents the budget configuration returned by the API.
// A null threshold means budget tracking is disabled for the project.
type ProjectBudgetModel struct {
	ProjectID                   string           `json:"project_id"`
	BudgetThresholdUSD          *decimal.Decimal `json:"budget_threshold_usd"`
	BudgetAlertThresholdPercent int              `json:"budget_alert_threshold_percent"`
	AlertEmail                  *string          `json:"alert_email"`
	LastBudgetAlertSent         *time.Time       `json:"last_budget_alert_sent"`
	UpdatedAt                   time.Time        `json:"updated_at"`
}

// BudgetStatusModel represents a live budget evaluation returned by the API
type BudgetStatusModel struct {
	ProjectID      string          `json:"project_id"`
	State          string          `json:"state"`
	CurrentCostUSD decimal.Decimal `json:"current_cost_usd"`
	ThresholdUSD   decimal.Decimal `json:"threshold_usd"`
	PercentUsed    decimal.Decimal `json:"percent_used"`
	ShouldAlert    bool            `json:"should_alert"`
}

// AlertResultModel represents the outcome of one alerting check
type AlertResultModel struct {
	BudgetStatusModel
	AlertSent            bool `json:"alert_sent"`
	SuppressedByCooldown bool `json:"suppressed_by_cooldown"`
}

// ProjectAlertOutcomeModel represents one project's result in a batch check
type ProjectAlertOutcomeModel struct {
	ProjectID string            `json:"project_id"`
	Result    *AlertResultModel `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
}
