package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordUsageParams is the input for recording one usage event.
// RequestTimestamp is optional and defaults to the time of recording.
// Total tokens are always derived server-side, never accepted from the
// caller.
type RecordUsageParams struct {
	ProjectID        string
	Provider         string
	Model            string
	InputTokens      int
	OutputTokens     int
	RequestTimestamp *time.Time
}

// ConfigureBudgetParams is the input for updating a project's budget
// configuration. An invalid (unset) threshold disables budget tracking; a
// nil alert threshold keeps the default.
type ConfigureBudgetParams struct {
	ProjectID                   string
	BudgetThresholdUSD          decimal.NullDecimal
	BudgetAlertThresholdPercent *int
	AlertEmail                  *string
}
