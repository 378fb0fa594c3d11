package customer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/accessory-checkout/internal/customer"
)

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*customer.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Record), args.Error(1)
}

func (m *MockCustomerRepository) ListLocations(ctx context.Context) ([]customer.Location, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]customer.Location), args.Error(1)
}

func TestCustomerService_GetCustomer_ResolvesLegacyAddress(t *testing.T) {
	mockRepo := new(MockCustomerRepository)
	svc := customer.NewService(mockRepo)
	userID := uuid.Must(uuid.NewV4())

	mockRepo.On("GetByID", mock.Anything, userID).
		Return(&customer.Record{
			ID:        userID,
			Name:      "Ayu",
			Phone:     "0812",
			Addresses: []customer.StoredAddress{customer.LegacyAddress{Text: "Jl. Teuku Umar 10, Denpasar"}},
		}, nil).
		Once()
	mockRepo.On("ListLocations", mock.Anything).
		Return([]customer.Location{{ID: "114", City: "Denpasar", Province: "Bali"}}, nil).
		Once()

	c, err := svc.GetCustomer(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, c.Addresses, 1)
	assert.Equal(t, "114", c.Addresses[0].CityID)
	assert.Equal(t, "Bali", c.Addresses[0].Province)

	addr, ok := c.DeliveryAddress()
	require.True(t, ok)
	assert.Equal(t, "Jl. Teuku Umar 10, Denpasar", addr.Street)
	mockRepo.AssertExpectations(t)
}

func TestCustomerService_GetCustomer_SkipsLookupWhenResolved(t *testing.T) {
	mockRepo := new(MockCustomerRepository)
	svc := customer.NewService(mockRepo)
	userID := uuid.Must(uuid.NewV4())

	mockRepo.On("GetByID", mock.Anything, userID).
		Return(&customer.Record{
			ID: userID,
			Addresses: []customer.StoredAddress{
				customer.StructuredAddress{Street: "Jl. A", CityID: "22", City: "Bandung", Province: "Jawa Barat"},
				customer.StructuredAddress{Street: "Jl. B", CityID: "114", City: "Denpasar", Province: "Bali", IsPrimary: true},
			},
		}, nil).
		Once()

	c, err := svc.GetCustomer(context.Background(), userID)
	require.NoError(t, err)

	addr, ok := c.DeliveryAddress()
	require.True(t, ok)
	assert.Equal(t, "Jl. B", addr.Street)
	mockRepo.AssertNotCalled(t, "ListLocations", mock.Anything)
	mockRepo.AssertExpectations(t)
}

func TestCustomerService_GetCustomer_LookupFailureKeepsAddresses(t *testing.T) {
	mockRepo := new(MockCustomerRepository)
	svc := customer.NewService(mockRepo)
	userID := uuid.Must(uuid.NewV4())

	mockRepo.On("GetByID", mock.Anything, userID).
		Return(&customer.Record{
			ID:        userID,
			Addresses: []customer.StoredAddress{customer.LegacyAddress{Text: "Jl. Braga 5 Bandung"}},
		}, nil).
		Once()
	mockRepo.On("ListLocations", mock.Anything).
		Return(nil, errors.New("connection reset")).
		Once()

	c, err := svc.GetCustomer(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, c.Addresses, 1)
	assert.Empty(t, c.Addresses[0].CityID)
	mockRepo.AssertExpectations(t)
}

func TestCustomerService_GetCustomer_NoProfile(t *testing.T) {
	mockRepo := new(MockCustomerRepository)
	svc := customer.NewService(mockRepo)
	userID := uuid.Must(uuid.NewV4())

	mockRepo.On("GetByID", mock.Anything, userID).
		Return(nil, customer.ErrCustomerNotFound).
		Once()

	c, err := svc.GetCustomer(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, c.ID)
	_, ok := c.DeliveryAddress()
	assert.False(t, ok)
	mockRepo.AssertExpectations(t)
}

func TestCustomerService_GetCustomer_RepositoryError(t *testing.T) {
	mockRepo := new(MockCustomerRepository)
	svc := customer.NewService(mockRepo)
	userID := uuid.Must(uuid.NewV4())
	dbErr := errors.New("db down")

	mockRepo.On("GetByID", mock.Anything, userID).
		Return(nil, dbErr).
		Once()

	c, err := svc.GetCustomer(context.Background(), userID)
	require.ErrorIs(t, err, dbErr)
	require.Nil(t, c)
	mockRepo.AssertExpectations(t)
}
