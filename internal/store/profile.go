package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout"
)

var ErrProfileNotConfigured = errors.New("store profile is not configured")

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Profile reads the shop's shipping origin from the single store_profile row.
type Profile struct {
	db DB
}

func NewProfile(db DB) *Profile {
	return &Profile{db: db}
}

func (p *Profile) GetOrigin(ctx context.Context) (checkout.Origin, error) {
	query := `
		SELECT origin_location_id, origin_city, origin_province
		FROM store_profile
		WHERE id = 1
	`

	var o checkout.Origin
	err := p.db.QueryRow(ctx, query).Scan(&o.LocationID, &o.City, &o.Province)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Warn().Msg("repository: store profile row is missing")
			return checkout.Origin{}, ErrProfileNotConfigured
		}
		return checkout.Origin{}, fmt.Errorf("repository: failed to select store profile: %w", err)
	}

	return o, nil
}

var _ checkout.StoreProfile = (*Profile)(nil)
