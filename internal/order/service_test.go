package order_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout"
	"github.com/vasiliy-maslov/accessory-checkout/internal/order"
	"github.com/vasiliy-maslov/accessory-checkout/internal/shipping"
)

type mockOrderRepository struct {
	createFunc            func(ctx context.Context, rec *checkout.OrderRecord) error
	getByIDFunc           func(ctx context.Context, id string) (*checkout.OrderRecord, error)
	getOrdersByUserIDFunc func(ctx context.Context, userID uuid.UUID) ([]checkout.OrderRecord, error)
}

func (m *mockOrderRepository) CreateOrder(ctx context.Context, rec *checkout.OrderRecord) error {
	return m.createFunc(ctx, rec)
}

func (m *mockOrderRepository) GetOrderByID(ctx context.Context, id string) (*checkout.OrderRecord, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockOrderRepository) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]checkout.OrderRecord, error) {
	return m.getOrdersByUserIDFunc(ctx, userID)
}

func sampleOrder() *checkout.OrderRecord {
	return &checkout.OrderRecord{
		ID:            "ORD-01HZY8D3K5Q0W8B1X1Z9V3N7RT",
		Product:       checkout.ProductSnapshot{ID: "keychain", Name: "Acrylic Keychain", Price: 15000},
		Quantity:      5,
		UnitPrice:     15000,
		Subtotal:      75000,
		Shipping:      shipping.Offer{Carrier: "jne", DisplayName: "JNE", Service: "REG", Cost: 9000, EstimatedDays: "2-3"},
		ShippingCost:  9000,
		Total:         84000,
		PaymentMethod: "bank_transfer",
		PaymentProof:  checkout.PaymentProof{ID: "proof-1", Filename: "transfer.png", MIMEType: "image/png"},
		Customer:      checkout.CustomerSnapshot{ID: uuid.Must(uuid.NewV4()), Name: "Ayu"},
		Distribution:  []checkout.DistributionEntry{{ImageIndex: 0, Start: 1, End: 5, Count: 5}},
		Images:        []checkout.UploadedImage{{ID: "img-1", Filename: "a.png", Size: 10, MIMEType: "image/png", Data: "aGVsbG8="}},
		SubmittedAt:   time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
		Status:        checkout.StatusPending,
	}
}

func TestOrderService_Submit(t *testing.T) {
	repoErr := errors.New("connection refused")

	tests := []struct {
		name       string
		mutate     func(rec *checkout.OrderRecord)
		createFunc func(ctx context.Context, rec *checkout.OrderRecord) error
		wantID     string
		wantErrIs  error
		wantErrMsg string
	}{
		{
			name:       "success",
			createFunc: func(ctx context.Context, rec *checkout.OrderRecord) error { return nil },
			wantID:     "ORD-01HZY8D3K5Q0W8B1X1Z9V3N7RT",
		},
		{
			name:       "duplicate_is_idempotent",
			createFunc: func(ctx context.Context, rec *checkout.OrderRecord) error { return order.ErrDuplicateOrder },
			wantID:     "ORD-01HZY8D3K5Q0W8B1X1Z9V3N7RT",
		},
		{
			name:       "repository_failure",
			createFunc: func(ctx context.Context, rec *checkout.OrderRecord) error { return repoErr },
			wantErrIs:  repoErr,
		},
		{
			name:       "wrong_status",
			mutate:     func(rec *checkout.OrderRecord) { rec.Status = "shipped" },
			wantErrIs:  order.ErrInvalidOrder,
			wantErrMsg: "status must be pending",
		},
		{
			name:       "total_mismatch",
			mutate:     func(rec *checkout.OrderRecord) { rec.Total = 1 },
			wantErrIs:  order.ErrInvalidOrder,
			wantErrMsg: "total 1 does not match",
		},
		{
			name:       "subtotal_mismatch",
			mutate:     func(rec *checkout.OrderRecord) { rec.Subtotal = 70000; rec.Total = 79000 },
			wantErrIs:  order.ErrInvalidOrder,
			wantErrMsg: "subtotal 70000",
		},
		{
			name:       "no_images",
			mutate:     func(rec *checkout.OrderRecord) { rec.Images = nil },
			wantErrIs:  order.ErrInvalidOrder,
			wantErrMsg: "at least one image",
		},
		{
			name:      "missing_id",
			mutate:    func(rec *checkout.OrderRecord) { rec.ID = "" },
			wantErrIs: order.ErrInvalidOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			repo := &mockOrderRepository{
				createFunc: func(ctx context.Context, rec *checkout.OrderRecord) error {
					called = true
					return tt.createFunc(ctx, rec)
				},
			}
			svc := order.NewService(repo)

			rec := sampleOrder()
			if tt.mutate != nil {
				tt.mutate(rec)
			}

			id, err := svc.Submit(context.Background(), rec)
			if tt.wantErrIs != nil {
				require.ErrorIs(t, err, tt.wantErrIs)
				if tt.wantErrMsg != "" {
					assert.Contains(t, err.Error(), tt.wantErrMsg)
				}
				assert.Empty(t, id)
				if errors.Is(tt.wantErrIs, order.ErrInvalidOrder) {
					assert.False(t, called, "invalid orders never reach the repository")
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.True(t, called)
		})
	}
}

func TestOrderService_GetOrderByID(t *testing.T) {
	want := sampleOrder()

	tests := []struct {
		name        string
		getByIDFunc func(ctx context.Context, id string) (*checkout.OrderRecord, error)
		wantErrIs   error
		wantErr     bool
	}{
		{
			name:        "found",
			getByIDFunc: func(ctx context.Context, id string) (*checkout.OrderRecord, error) { return want, nil },
		},
		{
			name: "not_found",
			getByIDFunc: func(ctx context.Context, id string) (*checkout.OrderRecord, error) {
				return nil, order.ErrOrderNotFound
			},
			wantErrIs: order.ErrOrderNotFound,
		},
		{
			name:        "db_error",
			getByIDFunc: func(ctx context.Context, id string) (*checkout.OrderRecord, error) { return nil, errors.New("timeout") },
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := order.NewService(&mockOrderRepository{getByIDFunc: tt.getByIDFunc})

			got, err := svc.GetOrderByID(context.Background(), want.ID)
			switch {
			case tt.wantErrIs != nil:
				require.ErrorIs(t, err, tt.wantErrIs)
				assert.Nil(t, got)
			case tt.wantErr:
				require.Error(t, err)
				assert.Contains(t, err.Error(), "service: failed to fetch order by id")
			default:
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestOrderService_GetOrdersByUserID(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	repo := &mockOrderRepository{
		getOrdersByUserIDFunc: func(ctx context.Context, id uuid.UUID) ([]checkout.OrderRecord, error) {
			if id != userID {
				return []checkout.OrderRecord{}, nil
			}
			return []checkout.OrderRecord{*sampleOrder()}, nil
		},
	}
	svc := order.NewService(repo)

	orders, err := svc.GetOrdersByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	orders, err = svc.GetOrdersByUserID(context.Background(), uuid.Must(uuid.NewV4()))
	require.NoError(t, err)
	assert.Empty(t, orders)

	repo.getOrdersByUserIDFunc = func(ctx context.Context, id uuid.UUID) ([]checkout.OrderRecord, error) {
		return nil, errors.New("boom")
	}
	_, err = svc.GetOrdersByUserID(context.Background(), userID)
	require.Error(t, err)
}
