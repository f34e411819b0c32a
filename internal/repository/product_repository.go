package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"tradepost/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductAlreadySold = errors.New("product is already sold")
)

const productColumns = `id, owner_id, title, description, categories, price, rent_price, rent_period, sold, views, created_at, updated_at`

// ProductRepository defines the interface for catalog data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	// FindByIDForUpdate locks the product row for the duration of the
	// enclosing transaction. Only meaningful on a tx-bound repository.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	// MarkSold flips the sold flag as a compare-and-set: it fails with
	// ErrProductAlreadySold if the flag was already set.
	MarkSold(ctx context.Context, id uuid.UUID) error
	// IncrementViews atomically bumps the view counter and returns the new value.
	IncrementViews(ctx context.Context, id uuid.UUID) (int, error)
	// ListByOwner returns the owner's unsold listings, newest first.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error)
	// ListAvailable returns unsold listings, newest first, excluding the
	// viewer's own when a viewer is given.
	ListAvailable(ctx context.Context, excludeOwner *uuid.UUID) ([]*domain.Product, error)
	WithTx(tx *sql.Tx) ProductRepository
}

type productRepository struct {
	db DBTX
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db DBTX) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) WithTx(tx *sql.Tx) ProductRepository {
	return &productRepository{db: tx}
}

// Create inserts a new product into the database using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	categories, err := json.Marshal(product.Categories)
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}

	query := `
		INSERT INTO products (id, owner_id, title, description, categories, price, rent_price, rent_period, sold, views, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.OwnerID,
		product.Title,
		product.Description,
		categories,
		product.Price,
		product.RentPrice,
		product.RentPeriod,
		product.Sold,
		product.Views,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update persists the full product record. The sold flag and view counter are
// deliberately not touched here; they have dedicated, atomic mutations.
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	categories, err := json.Marshal(product.Categories)
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}

	query := `
		UPDATE products
		SET title = $2, description = $3, categories = $4, price = $5,
		    rent_price = $6, rent_period = $7, updated_at = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Title,
		product.Description,
		categories,
		product.Price,
		product.RentPrice,
		product.RentPeriod,
		product.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// Delete removes a product. Ledger entries referencing it are removed by the
// foreign-key cascade.
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM products WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product by ID using parameterized queries
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// FindByIDForUpdate retrieves a product and locks its row until the enclosing
// transaction commits or rolls back.
func (r *productRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1 FOR UPDATE`, productColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// MarkSold flips the sold flag with a guard on its previous value so a
// concurrent buyer surfaces as a conflict instead of a double sale.
func (r *productRepository) MarkSold(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE products SET sold = TRUE, updated_at = NOW() WHERE id = $1 AND sold = FALSE`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark product sold: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductAlreadySold
	}

	return nil
}

// IncrementViews bumps the view counter by exactly one and returns the new count
func (r *productRepository) IncrementViews(ctx context.Context, id uuid.UUID) (int, error) {
	query := `UPDATE products SET views = views + 1 WHERE id = $1 RETURNING views`

	var views int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&views)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrProductNotFound
		}
		return 0, fmt.Errorf("failed to increment views: %w", err)
	}

	return views, nil
}

// ListByOwner returns the owner's active (unsold) listings, newest first
func (r *productRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM products
		WHERE owner_id = $1 AND sold = FALSE
		ORDER BY created_at DESC
	`, productColumns)

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products by owner: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// ListAvailable returns unsold listings from other users, newest first. With
// no viewer (anonymous browsing) every unsold listing is returned.
func (r *productRepository) ListAvailable(ctx context.Context, excludeOwner *uuid.UUID) ([]*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE sold = FALSE`, productColumns)
	args := []any{}

	if excludeOwner != nil {
		query += ` AND owner_id <> $1`
		args = append(args, *excludeOwner)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list available products: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

func (r *productRepository) scanOne(row *sql.Row) (*domain.Product, error) {
	product := &domain.Product{}
	var categories []byte

	err := row.Scan(
		&product.ID,
		&product.OwnerID,
		&product.Title,
		&product.Description,
		&categories,
		&product.Price,
		&product.RentPrice,
		&product.RentPeriod,
		&product.Sold,
		&product.Views,
		&product.CreatedAt,
		&product.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	if err := json.Unmarshal(categories, &product.Categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}

	return product, nil
}

func (r *productRepository) scanAll(rows *sql.Rows) ([]*domain.Product, error) {
	products := []*domain.Product{}
	for rows.Next() {
		product := &domain.Product{}
		var categories []byte

		err := rows.Scan(
			&product.ID,
			&product.OwnerID,
			&product.Title,
			&product.Description,
			&categories,
			&product.Price,
			&product.RentPrice,
			&product.RentPeriod,
			&product.Sold,
			&product.Views,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}

		if err := json.Unmarshal(categories, &product.Categories); err != nil {
			return nil, fmt.Errorf("failed to decode categories: %w", err)
		}

		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}
