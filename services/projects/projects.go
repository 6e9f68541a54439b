package projects

import (
	"context"
	"fmt"
	"log"

	"github.com/samber/mo"

	"meterbackend/core"
	"meterbackend/models"
)

// ProjectsRepository is the persistence surface the service needs
type ProjectsRepository interface {
	CreateProject(ctx context.Context, project *models.Project) error
	GetProjectByID(ctx context.Context, id string) (*models.Project, error)
	GetProjectsByOrganizationID(ctx context.Context, organizationID models.OrgID) ([]*models.Project, error)
}

type ProjectsService struct {
	projectsRepo ProjectsRepository
}

func NewProjectsService(repo ProjectsRepository) *ProjectsService {
	return &ProjectsService{projectsRepo: repo}
}

func (s *ProjectsService) CreateProject(
	ctx context.Context,
	organizationID models.OrgID,
	name string,
) (*models.Project, error) {
	log.Printf("📋 Starting to create project %q for organization %s", name, organizationID)

	if organizationID == "" {
		return nil, core.NewValidationError("organization_id", "cannot be empty")
	}
	if name == "" {
		return nil, core.NewValidationError("name", "cannot be empty")
	}

	project := &models.Project{
		ID:    core.NewID("p"),
		OrgID: organizationID,
		Name:  name,
	}
	if err := s.projectsRepo.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	log.Printf("📋 Completed successfully - created project %s", project.ID)
	return project, nil
}

func (s *ProjectsService) GetProjectByID(ctx context.Context, id string) (mo.Option[*models.Project], error) {
	if id == "" {
		return mo.None[*models.Project](), core.NewValidationError("project_id", "cannot be empty")
	}

	project, err := s.projectsRepo.GetProjectByID(ctx, id)
	if err != nil {
		return mo.None[*models.Project](), fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return mo.None[*models.Project](), nil
	}

	return mo.Some(project), nil
}

func (s *ProjectsService) GetProjectsByOrganizationID(
	ctx context.Context,
	organizationID models.OrgID,
) ([]*models.Project, error) {
	log.Printf("📋 Starting to get projects for organization %s", organizationID)

	projects, err := s.projectsRepo.GetProjectsByOrganizationID(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get projects by organization: %w", err)
	}

	log.Printf("📋 Completed successfully - retrieved %d projects", len(projects))
	return projects, nil
}

// CanAccessProject reports whether the caller's organization owns the
// project. Every metering operation refuses projects this check denies.
func (s *ProjectsService) CanAccessProject(user *models.User, project *models.Project) bool {
	if user == nil || project == nil {
		return false
	}
	return user.OrgID != "" && user.OrgID == project.OrgID
}
