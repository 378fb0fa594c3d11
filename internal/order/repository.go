package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("order already exists")
)

type Repository interface {
	CreateOrder(ctx context.Context, rec *checkout.OrderRecord) error
	GetOrderByID(ctx context.Context, id string) (*checkout.OrderRecord, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]checkout.OrderRecord, error)
}

type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

type encodedOrder struct {
	product, variant, shipping, proof, customer, distribution []byte
}

func encode(rec *checkout.OrderRecord) (encodedOrder, error) {
	var (
		e   encodedOrder
		err error
	)
	if e.product, err = json.Marshal(rec.Product); err != nil {
		return e, err
	}
	if rec.Variant != nil {
		if e.variant, err = json.Marshal(rec.Variant); err != nil {
			return e, err
		}
	}
	if e.shipping, err = json.Marshal(rec.Shipping); err != nil {
		return e, err
	}
	if e.proof, err = json.Marshal(rec.PaymentProof); err != nil {
		return e, err
	}
	if e.customer, err = json.Marshal(rec.Customer); err != nil {
		return e, err
	}
	if e.distribution, err = json.Marshal(rec.Distribution); err != nil {
		return e, err
	}
	return e, nil
}

func (r *postgresRepository) CreateOrder(ctx context.Context, rec *checkout.OrderRecord) (err error) {
	enc, err := encode(rec)
	if err != nil {
		return fmt.Errorf("repository: failed to encode order %s: %w", rec.ID, err)
	}

	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Str("order_id", rec.ID).Msg("Panic recovered during CreateOrder, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Str("order_id", rec.ID).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			log.Warn().Err(err).Str("order_id", rec.ID).Msg("Transaction for CreateOrder failed, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Str("order_id", rec.ID).Msg("Failed to rollback transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			log.Error().Err(commitErr).Str("order_id", rec.ID).Msg("Failed to commit transaction")
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	queryOrder := `
		INSERT INTO orders (
			id, user_id, product_id, product, quantity, variant, unit_price, subtotal,
			shipping, shipping_cost, total, payment_method, payment_proof, customer,
			distribution, status, submitted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = tx.Exec(ctx, queryOrder,
		rec.ID,
		rec.Customer.ID,
		rec.Product.ID,
		enc.product,
		rec.Quantity,
		enc.variant,
		rec.UnitPrice,
		rec.Subtotal,
		enc.shipping,
		rec.ShippingCost,
		rec.Total,
		rec.PaymentMethod,
		enc.proof,
		enc.customer,
		enc.distribution,
		rec.Status,
		rec.SubmittedAt.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			err = ErrDuplicateOrder
			return err
		}
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	queryImage := `
		INSERT INTO order_images (order_id, position, image_id, filename, size, mime_type, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i, img := range rec.Images {
		_, err = tx.Exec(ctx, queryImage, rec.ID, i, img.ID, img.Filename, img.Size, img.MIMEType, img.Data)
		if err != nil {
			return fmt.Errorf("repository: failed to insert image %d for order %s: %w", i, rec.ID, err)
		}
	}

	return nil
}

const selectOrder = `
	SELECT id, product, quantity, variant, unit_price, subtotal, shipping, shipping_cost,
		total, payment_method, payment_proof, customer, distribution, status, submitted_at
	FROM orders
`

func scanOrder(row pgx.Row) (*checkout.OrderRecord, error) {
	var (
		rec checkout.OrderRecord
		enc encodedOrder
	)
	err := row.Scan(
		&rec.ID,
		&enc.product,
		&rec.Quantity,
		&enc.variant,
		&rec.UnitPrice,
		&rec.Subtotal,
		&enc.shipping,
		&rec.ShippingCost,
		&rec.Total,
		&rec.PaymentMethod,
		&enc.proof,
		&enc.customer,
		&enc.distribution,
		&rec.Status,
		&rec.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decode(enc, &rec); err != nil {
		return nil, fmt.Errorf("repository: malformed order %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func decode(enc encodedOrder, rec *checkout.OrderRecord) error {
	if err := json.Unmarshal(enc.product, &rec.Product); err != nil {
		return err
	}
	if len(enc.variant) > 0 {
		rec.Variant = &checkout.Variant{}
		if err := json.Unmarshal(enc.variant, rec.Variant); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(enc.shipping, &rec.Shipping); err != nil {
		return err
	}
	if err := json.Unmarshal(enc.proof, &rec.PaymentProof); err != nil {
		return err
	}
	if err := json.Unmarshal(enc.customer, &rec.Customer); err != nil {
		return err
	}
	return json.Unmarshal(enc.distribution, &rec.Distribution)
}

func (r *postgresRepository) GetOrderByID(ctx context.Context, id string) (*checkout.OrderRecord, error) {
	rec, err := scanOrder(r.db.QueryRow(ctx, selectOrder+"WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT image_id, filename, size, mime_type, data
		FROM order_images
		WHERE order_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query images for order %s: %w", id, err)
	}
	defer rows.Close()

	rec.Images = make([]checkout.UploadedImage, 0)
	for rows.Next() {
		var img checkout.UploadedImage
		if err := rows.Scan(&img.ID, &img.Filename, &img.Size, &img.MIMEType, &img.Data); err != nil {
			return nil, fmt.Errorf("repository: failed to scan image for order %s: %w", id, err)
		}
		rec.Images = append(rec.Images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating images for order %s: %w", id, err)
	}

	return rec, nil
}

// GetOrdersByUserID lists a user's orders newest first. Image payloads are
// left out; only their metadata is returned.
func (r *postgresRepository) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]checkout.OrderRecord, error) {
	rows, err := r.db.Query(ctx, selectOrder+"WHERE user_id = $1 ORDER BY submitted_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user id %s: %w", userID, err)
	}
	defer rows.Close()

	byID := make(map[string]*checkout.OrderRecord)
	ids := make([]string, 0)
	for rows.Next() {
		rec, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed scan order for user id %s: %w", userID, err)
		}
		rec.Images = make([]checkout.UploadedImage, 0)
		byID[rec.ID] = rec
		ids = append(ids, rec.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders for user id %s: %w", userID, err)
	}

	if len(ids) == 0 {
		return []checkout.OrderRecord{}, nil
	}

	imgRows, err := r.db.Query(ctx, `
		SELECT order_id, image_id, filename, size, mime_type
		FROM order_images
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query images for user id %s: %w", userID, err)
	}
	defer imgRows.Close()

	for imgRows.Next() {
		var (
			orderID string
			img     checkout.UploadedImage
		)
		if err := imgRows.Scan(&orderID, &img.ID, &img.Filename, &img.Size, &img.MIMEType); err != nil {
			return nil, fmt.Errorf("repository: failed to scan image for user id %s: %w", userID, err)
		}
		if rec, ok := byID[orderID]; ok {
			rec.Images = append(rec.Images, img)
		}
	}
	if err := imgRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating images for user id %s: %w", userID, err)
	}

	out := make([]checkout.OrderRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, *byID[id])
	}
	return out, nil
}
