package customer

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

var ErrCustomerNotFound = errors.New("customer not found")

// Record is a customer row with its addresses decoded but not yet resolved.
type Record struct {
	ID        uuid.UUID
	Name      string
	Phone     string
	Email     string
	Addresses []StoredAddress
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	ListLocations(ctx context.Context) ([]Location, error)
}

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	query := `
		SELECT id, name, phone, email, addresses
		FROM customers
		WHERE id = $1
	`

	var (
		rec Record
		raw []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(&rec.ID, &rec.Name, &rec.Phone, &rec.Email, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("repository: failed to select customer %s: %w", id, err)
	}

	rec.Addresses, err = DecodeAddresses(raw)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", id).Msg("repository: stored addresses are unreadable")
		return nil, fmt.Errorf("repository: customer %s: %w", id, err)
	}

	return &rec, nil
}

func (r *postgresRepository) ListLocations(ctx context.Context) ([]Location, error) {
	rows, err := r.db.Query(ctx, `SELECT id, city, province, postal_code FROM locations`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query locations: %w", err)
	}
	defer rows.Close()

	locs := make([]Location, 0)
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.City, &l.Province, &l.PostalCode); err != nil {
			return nil, fmt.Errorf("repository: failed to scan location: %w", err)
		}
		locs = append(locs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating locations: %w", err)
	}

	return locs, nil
}
