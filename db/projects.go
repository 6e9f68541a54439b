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

type PostgresProjectsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for projects table
var projectsColumns = []string{
	"id",
	"organization_id",
	"name",
	"created_at",
	"updated_at",
}

func NewPostgresProjectsRepository(db *sqlx.DB, schema string) *PostgresProjectsRepository {
	return &PostgresProjectsRepository{db: db, schema: schema}
}

func (r *PostgresProjectsRepository) CreateProject(
	ctx context.Context,
	project *models.Project,
) error {
	db := dbtx.GetTransactional(ctx, r.db)

	if project.ID == "" {
		project.ID = core.NewID("p")
	}

	returningStr := strings.Join(projectsColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.projects (id, organization_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING %s`, r.schema, returningStr)

	err := db.QueryRowxContext(ctx, query, project.ID, project.OrgID, project.Name).StructScan(project)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

func (r *PostgresProjectsRepository) GetProjectByID(
	ctx context.Context,
	id string,
) (*models.Project, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	returningStr := strings.Join(projectsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.projects
		WHERE id = $1`, returningStr, r.schema)

	project := &models.Project{}
	err := db.QueryRowxContext(ctx, query, id).StructScan(project)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, nil // Project not found
		}
		return nil, fmt.Errorf("failed to get project by ID: %w", err)
	}

	return project, nil
}

func (r *PostgresProjectsRepository) GetProjectsByOrganizationID(
	ctx context.Context,
	organizationID models.OrgID,
) ([]*models.Project, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	returningStr := strings.Join(projectsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.projects
		WHERE organization_id = $1
		ORDER BY created_at ASC`, returningStr, r.schema)

	var projects []*models.Project
	err := db.SelectContext(ctx, &projects, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get projects by organization ID: %w", err)
	}

	return projects, nil
}
