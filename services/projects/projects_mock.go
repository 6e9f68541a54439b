package projects

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"meterbackend/models"
)

// MockProjectsService is a mock implementation of the ProjectsService interface
type MockProjectsService struct {
	mock.Mock
}

func (m *MockProjectsService) CreateProject(
	ctx context.Context,
	organizationID models.OrgID,
	name string,
) (*models.Project, error) {
	args := m.Called(ctx, organizationID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockProjectsService) GetProjectByID(ctx context.Context, id string) (mo.Option[*models.Project], error) {
	args := m.Called(ctx, id)
	return args.Get(0).(mo.Option[*models.Project]), args.Error(1)
}

func (m *MockProjectsService) GetProjectsByOrganizationID(
	ctx context.Context,
	organizationID models.OrgID,
) ([]*models.Project, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Project), args.Error(1)
}

func (m *MockProjectsService) CanAccessProject(user *models.User, project *models.Project) bool {
	args := m.Called(user, project)
	return args.Bool(0)
}
