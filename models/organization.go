package models

import (
	"time"
)

// OrgID identifies an organization
type OrgID string

type Organization struct {
	ID        OrgID     `db:"id"         json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
