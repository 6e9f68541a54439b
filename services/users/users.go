package users

import (
	"context"
	"fmt"
	"log"

	"meterbackend/core"
	"meterbackend/models"
	"meterbackend/services"
)

// UsersRepository is the persistence surface the service needs
type UsersRepository interface {
	GetUserByAuthProvider(ctx context.Context, authProvider, authProviderID string, forUpdate bool) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

// OrganizationsRepository creates the organization a first-time user lands in
type OrganizationsRepository interface {
	CreateOrganization(ctx context.Context, org *models.Organization) error
}

type UsersService struct {
	usersRepo UsersRepository
	orgsRepo  OrganizationsRepository
	txManager services.TransactionManager
}

func NewUsersService(
	usersRepo UsersRepository,
	orgsRepo OrganizationsRepository,
	txManager services.TransactionManager,
) *UsersService {
	return &UsersService{
		usersRepo: usersRepo,
		orgsRepo:  orgsRepo,
		txManager: txManager,
	}
}

// GetOrCreateUser resolves an authenticated identity to a local user,
// creating the user and its organization on first sight. The lookup and
// create run in one transaction so concurrent first logins cannot create
// duplicate users.
func (s *UsersService) GetOrCreateUser(
	ctx context.Context,
	authProvider, authProviderID, email string,
) (*models.User, error) {
	log.Printf("📋 Starting to get or create user for authProvider: %s, authProviderID: %s", authProvider, authProviderID)

	if authProvider == "" {
		return nil, core.NewValidationError("auth_provider", "cannot be empty")
	}
	if authProviderID == "" {
		return nil, core.NewValidationError("auth_provider_id", "cannot be empty")
	}

	var user *models.User
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.usersRepo.GetUserByAuthProvider(txCtx, authProvider, authProviderID, true)
		if err != nil {
			return fmt.Errorf("failed to look up user: %w", err)
		}
		if existing != nil {
			user = existing
			return nil
		}

		org := &models.Organization{}
		if err := s.orgsRepo.CreateOrganization(txCtx, org); err != nil {
			return fmt.Errorf("failed to create organization: %w", err)
		}

		user = &models.User{
			ID:             core.NewID("u"),
			AuthProvider:   authProvider,
			AuthProviderID: authProviderID,
			Email:          email,
			OrgID:          org.ID,
		}
		if err := s.usersRepo.CreateUser(txCtx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📋 Completed successfully - retrieved/created user with ID: %s", user.ID)
	return user, nil
}
