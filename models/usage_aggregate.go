package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GroupBy selects the grouping key for usage aggregation
type GroupBy string

const (
	GroupByDay      GroupBy = "day"
	GroupByProvider GroupBy = "provider"
	GroupByModel    GroupBy = "model"
	GroupByProject  GroupBy = "project"
)

// IsValid reports whether the grouping key is one of the supported values
func (g GroupBy) IsValid() bool {
	switch g {
	case GroupByDay, GroupByProvider, GroupByModel, GroupByProject:
		return true
	}
	return false
}

// UsageFilter narrows usage queries. All set fields are ANDed; a zero
// field means no restriction on that dimension. DateFrom is inclusive,
// DateTo is exclusive.
type UsageFilter struct {
	ProjectID string
	Provider  string
	Model     string
	DateFrom  *time.Time
	DateTo    *time.Time
}

// UsageAggregate is a computed, never persisted view of usage events for
// one grouping key. For day grouping the key is formatted YYYY-MM-DD.
type UsageAggregate struct {
	GroupKey     string          `db:"group_key"      json:"group_key"`
	TotalCostUSD decimal.Decimal `db:"total_cost_usd" json:"total_cost_usd"`
	TotalTokens  int64           `db:"total_tokens"   json:"total_tokens"`
	RequestCount int64           `db:"request_count"  json:"request_count"`
}
