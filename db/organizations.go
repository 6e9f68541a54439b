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

type PostgresOrganizationsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for organizations table
var organizationsColumns = []string{
	"id",
	"created_at",
	"updated_at",
}

func NewPostgresOrganizationsRepository(db *sqlx.DB, schema string) *PostgresOrganizationsRepository {
	return &PostgresOrganizationsRepository{db: db, schema: schema}
}

func (r *PostgresOrganizationsRepository) CreateOrganization(
	ctx context.Context,
	org *models.Organization,
) error {
	db := dbtx.GetTransactional(ctx, r.db)

	if org.ID == "" {
		org.ID = models.OrgID(core.NewID("org"))
	}

	returningStr := strings.Join(organizationsColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.organizations (id, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		RETURNING %s`, r.schema, returningStr)

	err := db.QueryRowxContext(ctx, query, org.ID).StructScan(org)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	return nil
}

func (r *PostgresOrganizationsRepository) GetOrganizationByID(
	ctx context.Context,
	id models.OrgID,
) (*models.Organization, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	returningStr := strings.Join(organizationsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.organizations
		WHERE id = $1`, returningStr, r.schema)

	org := &models.Organization{}
	err := db.QueryRowxContext(ctx, query, id).StructScan(org)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, nil // Organization not found
		}
		return nil, fmt.Errorf("failed to get organization by ID: %w", err)
	}

	return org, nil
}
