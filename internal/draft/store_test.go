package draft_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout"
	"github.com/vasiliy-maslov/accessory-checkout/internal/draft"
	"github.com/vasiliy-maslov/accessory-checkout/internal/shipping"
)

func sampleDrafts() map[string]checkout.DraftOrder {
	updated := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	return map[string]checkout.DraftOrder{
		"minimal": {Quantity: 1, UpdatedAt: updated},
		"with_images": {
			Quantity: 6,
			Images: []checkout.UploadedImage{
				{ID: "01J0000000000000000000000A", Filename: "a.png", Size: 10, MIMEType: "image/png", Data: "iVBORw0KGgo="},
				{ID: "01J0000000000000000000000B", Filename: "b.jpg", Size: 12, MIMEType: "image/jpeg", Data: "/9j/4AAQ"},
			},
			UpdatedAt: updated,
		},
		"full": {
			Quantity:      10,
			Variant:       &checkout.Variant{Name: "58mm", Price: 8000},
			Images:        []checkout.UploadedImage{{ID: "img", Filename: "x.webp", Size: 3, MIMEType: "image/webp", Data: "UklGRg=="}},
			Shipping:      &shipping.Offer{Carrier: "jne", DisplayName: "JNE", Service: "REG", Cost: 18000, EstimatedDays: "1-2"},
			PaymentMethod: "qris",
			PaymentProof: &checkout.PaymentProof{
				ID: "proof", Filename: "proof.png", Size: 5, MIMEType: "image/png", Data: "AAAA",
				UploadedAt: updated.Add(-time.Hour),
			},
			UpdatedAt: updated,
		},
	}
}

func assertRoundTrip(t *testing.T, store *draft.Store) {
	t.Helper()
	ctx := context.Background()

	for name, d := range sampleDrafts() {
		t.Run(name, func(t *testing.T) {
			productID := "product-" + name
			require.True(t, store.Save(ctx, productID, d))

			got, ok := store.Load(ctx, productID)
			require.True(t, ok)

			diff := cmp.Diff(d, got, cmpopts.EquateEmpty())
			require.Empty(t, diff, "draft mismatch (-want +got):\n%s", diff)
		})
	}
}

func TestStore_RoundTripMemory(t *testing.T) {
	assertRoundTrip(t, draft.NewStore(draft.NewMemoryBackend()))
}

func TestStore_PreviewIsNotPersisted(t *testing.T) {
	store := draft.NewStore(draft.NewMemoryBackend())
	ctx := context.Background()

	require.True(t, store.Save(ctx, "p1", checkout.DraftOrder{
		Quantity: 5,
		Images:   []checkout.UploadedImage{{ID: "a", Preview: "preview-123"}},
	}))

	got, ok := store.Load(ctx, "p1")
	require.True(t, ok)
	require.Len(t, got.Images, 1)
	assert.Empty(t, got.Images[0].Preview)
}

func TestStore_LoadMissingAndCorrupt(t *testing.T) {
	backend := draft.NewMemoryBackend()
	store := draft.NewStore(backend)
	ctx := context.Background()

	_, ok := store.Load(ctx, "absent")
	assert.False(t, ok)

	require.NoError(t, backend.Set(ctx, "checkout_broken", []byte(`{"quantity": "five"`)))
	_, ok = store.Load(ctx, "broken")
	assert.False(t, ok, "corrupt data is treated as absent")
}

func TestStore_Clear(t *testing.T) {
	store := draft.NewStore(draft.NewMemoryBackend())
	ctx := context.Background()

	require.True(t, store.Save(ctx, "p1", checkout.DraftOrder{Quantity: 5}))
	require.True(t, store.Clear(ctx, "p1"))

	_, ok := store.Load(ctx, "p1")
	assert.False(t, ok)
	assert.True(t, store.Clear(ctx, "p1"), "clearing a missing draft is fine")
}

func TestStore_ScopeIsolatesUsers(t *testing.T) {
	store := draft.NewStore(draft.NewMemoryBackend())
	ctx := context.Background()

	alice := store.Scope("alice")
	bob := store.Scope("bob")

	assert.Equal(t, "checkout_p1", store.Key("p1"))
	assert.Equal(t, "alice:checkout_p1", alice.Key("p1"))

	require.True(t, alice.Save(ctx, "p1", checkout.DraftOrder{Quantity: 7}))
	_, ok := bob.Load(ctx, "p1")
	assert.False(t, ok)

	got, ok := alice.Load(ctx, "p1")
	require.True(t, ok)
	assert.Equal(t, 7, got.Quantity)
}

type failingBackend struct{}

var errDiskFull = errors.New("disk full")

func (failingBackend) Get(context.Context, string) ([]byte, error) { return nil, errDiskFull }
func (failingBackend) Set(context.Context, string, []byte) error   { return errDiskFull }
func (failingBackend) Delete(context.Context, string) error        { return errDiskFull }
func (failingBackend) Close() error                                { return nil }

func TestStore_BackendFailuresAreSwallowed(t *testing.T) {
	store := draft.NewStore(failingBackend{})
	ctx := context.Background()

	assert.False(t, store.Save(ctx, "p1", checkout.DraftOrder{Quantity: 5}))
	_, ok := store.Load(ctx, "p1")
	assert.False(t, ok)
	assert.False(t, store.Clear(ctx, "p1"))
}

func TestStore_RoundTripPebble(t *testing.T) {
	dir := t.TempDir()

	backend, err := draft.NewPebbleBackend(dir)
	require.NoError(t, err)
	store := draft.NewStore(backend)
	assertRoundTrip(t, store)
	require.NoError(t, store.Close())

	reopened, err := draft.NewPebbleBackend(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := draft.NewStore(reopened).Load(context.Background(), "product-full")
	require.True(t, ok, "draft survives a reopen")
	assert.Equal(t, 10, got.Quantity)
}

func TestStore_RoundTripRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR_TEST")
	if addr == "" {
		t.Skip("REDIS_ADDR_TEST is not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	prefix := fmt.Sprintf("test:%d:", time.Now().UnixNano())
	store := draft.NewStore(draft.NewRedisBackend(client, prefix, time.Minute))
	defer store.Close()

	assertRoundTrip(t, store)

	ttl, err := client.TTL(context.Background(), prefix+"checkout_product-full").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
