package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UsageEvent is one recorded call to an external API. Events are written
// exactly once and never updated; CostUSD is derived from the pricing
// table at record time and can be recomputed from the token counts.
type UsageEvent struct {
	ID               string          `db:"id"                json:"id"`
	ProjectID        string          `db:"project_id"        json:"project_id"`
	Provider         string          `db:"provider"          json:"provider"`
	Model            string          `db:"model"             json:"model"`
	InputTokens      int             `db:"input_tokens"      json:"input_tokens"`
	OutputTokens     int             `db:"output_tokens"     json:"output_tokens"`
	TotalTokens      int             `db:"total_tokens"      json:"total_tokens"`
	CostUSD          decimal.Decimal `db:"cost_usd"          json:"cost_usd"`
	RequestTimestamp time.Time       `db:"request_timestamp" json:"request_timestamp"`
	CreatedAt        time.Time       `db:"created_at"        json:"created_at"`
}
