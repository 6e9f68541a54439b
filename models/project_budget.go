package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBudgetAlertThresholdPercent is the fraction of budget at which
// the first alert fires when a project does not configure one.
const DefaultBudgetAlertThresholdPercent = 80

// ProjectBudget is the budget configuration attached to a project. A null
// BudgetThresholdUSD disables budget tracking for the project.
// LastBudgetAlertSent is mutated only by the budget alert engine and
// enforces the 24-hour alert cooldown.
type ProjectBudget struct {
	ProjectID                   string              `db:"project_id"                     json:"project_id"`
	BudgetThresholdUSD          decimal.NullDecimal `db:"budget_threshold_usd"           json:"budget_threshold_usd"`
	BudgetAlertThresholdPercent int                 `db:"budget_alert_threshold_percent" json:"budget_alert_threshold_percent"`
	AlertEmail                  *string             `db:"alert_email"                    json:"alert_email,omitempty"`
	LastBudgetAlertSent         *time.Time          `db:"last_budget_alert_sent"         json:"last_budget_alert_sent,omitempty"`
	CreatedAt                   time.Time           `db:"created_at"                     json:"created_at"`
	UpdatedAt                   time.Time           `db:"updated_at"                     json:"updated_at"`
}

// HasBudget reports whether budget tracking is enabled for the project
func (pb *ProjectBudget) HasBudget() bool {
	return pb.BudgetThresholdUSD.Valid
}
