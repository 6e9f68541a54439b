package usage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"meterbackend/models"
)

// MockUsageService is a mock implementation of the UsageService interface
type MockUsageService struct {
	mock.Mock
}

func (m *MockUsageService) Record(ctx context.Context, params models.RecordUsageParams) (*models.UsageEvent, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UsageEvent), args.Error(1)
}

func (m *MockUsageService) Aggregate(
	ctx context.Context,
	filter models.UsageFilter,
	groupBy models.GroupBy,
) ([]*models.UsageAggregate, error) {
	args := m.Called(ctx, filter, groupBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UsageAggregate), args.Error(1)
}

func (m *MockUsageService) ListEvents(ctx context.Context, filter models.UsageFilter) ([]*models.UsageEvent, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UsageEvent), args.Error(1)
}

func (m *MockUsageService) ProjectCost(ctx context.Context, projectID string, since time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, projectID, since)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockUsageEventsRepository is a mock implementation of the UsageEventsRepository interface
type MockUsageEventsRepository struct {
	mock.Mock
}

func (m *MockUsageEventsRepository) CreateUsageEvent(ctx context.Context, event *models.UsageEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockUsageEventsRepository) ListUsageEvents(
	ctx context.Context,
	filter models.UsageFilter,
) ([]*models.UsageEvent, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UsageEvent), args.Error(1)
}

func (m *MockUsageEventsRepository) AggregateUsage(
	ctx context.Context,
	filter models.UsageFilter,
	groupBy models.GroupBy,
) ([]*models.UsageAggregate, error) {
	args := m.Called(ctx, filter, groupBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UsageAggregate), args.Error(1)
}
