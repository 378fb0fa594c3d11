package product

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout"
)

type row struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	Price       int64          `db:"price"`
	Variants    []byte         `db:"variants"`
	Images      pq.StringArray `db:"images"`
	WeightGrams int            `db:"weight_grams"`
}

func (r row) toProduct() (*checkout.Product, error) {
	p := &checkout.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Images:      []string(r.Images),
		WeightGrams: r.WeightGrams,
	}
	if len(r.Variants) > 0 {
		if err := json.Unmarshal(r.Variants, &p.Variants); err != nil {
			return nil, fmt.Errorf("repository: malformed variants for product %s: %w", r.ID, err)
		}
	}
	return p, nil
}

// Repository reads the product catalog.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const selectProduct = `
	SELECT id, name, description, price, variants, images, weight_grams
	FROM products
`

func (r *Repository) GetByID(ctx context.Context, id string) (*checkout.Product, error) {
	var pr row
	err := r.db.GetContext(ctx, &pr, selectProduct+"WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, checkout.ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product %s: %w", id, err)
	}

	return pr.toProduct()
}

var _ checkout.ProductCatalog = (*Repository)(nil)
