package models

import (
	"time"
)

// Project is the entity usage events and budgets hang off. Only the
// pieces the metering core needs live here; the rest of the project
// record is owned by the portal.
type Project struct {
	ID        string    `db:"id"              json:"id"`
	OrgID     OrgID     `db:"organization_id" json:"organization_id"`
	Name      string    `db:"name"            json:"name"`
	CreatedAt time.Time `db:"created_at"      json:"created_at"`
	UpdatedAt time.Time `db:"updated_at"      json:"updated_at"`
}
