package models

import (
	"github.com/shopspring/decimal"
)

// BudgetState describes where a project sits relative to its budget
type BudgetState string

const (
	BudgetStateNoBudget       BudgetState = "no_budget"
	BudgetStateUnderThreshold BudgetState = "under_threshold"
	BudgetStateOverThreshold  BudgetState = "over_threshold"
)

// BudgetPeriod selects the aggregation window compared against a budget.
// The window is explicit configuration; the engine never guesses a reset
// cadence.
type BudgetPeriod string

const (
	// BudgetPeriodCalendarMonth aggregates cost since the start of the
	// current UTC calendar month.
	BudgetPeriodCalendarMonth BudgetPeriod = "calendar-month"
	// BudgetPeriodAllTime aggregates cost over the project's full history.
	BudgetPeriodAllTime BudgetPeriod = "all-time"
)

// IsValid reports whether the period is one of the supported values
func (p BudgetPeriod) IsValid() bool {
	return p == BudgetPeriodCalendarMonth || p == BudgetPeriodAllTime
}

// BudgetStatus is the pure budget decision for one project: no side
// effects, safe to compute any number of times.
type BudgetStatus struct {
	ProjectID      string          `json:"project_id"`
	State          BudgetState     `json:"state"`
	CurrentCostUSD decimal.Decimal `json:"current_cost_usd"`
	ThresholdUSD   decimal.Decimal `json:"threshold_usd"`
	PercentUsed    decimal.Decimal `json:"percent_used"`
	ShouldAlert    bool            `json:"should_alert"`
}

// AlertResult is the outcome of a check-and-alert pass for one project.
// SuppressedByCooldown distinguishes "over threshold but recently
// alerted" from "did not exceed threshold".
type AlertResult struct {
	BudgetStatus
	AlertSent            bool `json:"alert_sent"`
	SuppressedByCooldown bool `json:"suppressed_by_cooldown"`
}

// BudgetAlert is the payload handed to the notification dispatcher when
// an alert fires.
type BudgetAlert struct {
	ProjectID      string
	ProjectName    string
	Recipient      string
	CurrentCostUSD decimal.Decimal
	ThresholdUSD   decimal.Decimal
	PercentUsed    decimal.Decimal
}

// ProjectAlertOutcome is one entry of a batch budget check. Err carries a
// per-project failure without aborting the rest of the batch.
type ProjectAlertOutcome struct {
	ProjectID string       `json:"project_id"`
	Result    *AlertResult `json:"result,omitempty"`
	Err       error        `json:"-"`
}
