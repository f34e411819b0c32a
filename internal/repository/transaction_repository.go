package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tradepost/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
)

const transactionColumns = `id, kind, user_id, product_id, price, rent_price, rent_period, start_at, end_at, created_at`

// TransactionRepository is the append-only ledger of buy and rent events.
// Records are never updated; they disappear only through the product
// foreign-key cascade.
type TransactionRepository interface {
	Create(ctx context.Context, transaction *domain.Transaction) error
	// HistoryFor returns the user's transactions under the given viewpoint,
	// newest first. An unrecognized viewpoint yields an empty list.
	HistoryFor(ctx context.Context, userID uuid.UUID, viewpoint domain.Viewpoint) ([]*domain.Transaction, error)
	// FindLatestForUserAndProduct returns the user's most recent transaction
	// on the product.
	FindLatestForUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*domain.Transaction, error)
	// HasOverlappingRental reports whether [start, end] intersects any
	// not-yet-expired rental of the product. Closed-interval test:
	// start <= existing.end AND end >= existing.start.
	HasOverlappingRental(ctx context.Context, productID uuid.UUID, start, end, now time.Time) (bool, error)
	// HasActiveRental reports whether the product has a rental ending at or
	// after now. Such a rental blocks a sale.
	HasActiveRental(ctx context.Context, productID uuid.UUID, now time.Time) (bool, error)
	WithTx(tx *sql.Tx) TransactionRepository
}

type transactionRepository struct {
	db DBTX
}

// NewTransactionRepository creates a new instance of TransactionRepository
func NewTransactionRepository(db DBTX) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) WithTx(tx *sql.Tx) TransactionRepository {
	return &transactionRepository{db: tx}
}

// Create appends a ledger entry. All business validation happens upstream in
// the trade service; this is a trusted sink.
func (r *transactionRepository) Create(ctx context.Context, transaction *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, kind, user_id, product_id, price, rent_price, rent_period, start_at, end_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		transaction.ID,
		transaction.Kind,
		transaction.UserID,
		transaction.ProductID,
		transaction.Price,
		transaction.RentPrice,
		transaction.RentPeriod,
		transaction.StartAt,
		transaction.EndAt,
		transaction.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// HistoryFor filters the ledger by viewpoint:
//
//	BOUGHT    acting user, BUY
//	SOLD      product owner, BUY
//	BORROWED  acting user, RENT
//	LENT      product owner, RENT
func (r *transactionRepository) HistoryFor(ctx context.Context, userID uuid.UUID, viewpoint domain.Viewpoint) ([]*domain.Transaction, error) {
	var predicate string
	var kind domain.TransactionKind

	switch viewpoint {
	case domain.ViewpointBought:
		predicate, kind = "t.user_id = $1", domain.KindBuy
	case domain.ViewpointSold:
		predicate, kind = "p.owner_id = $1", domain.KindBuy
	case domain.ViewpointBorrowed:
		predicate, kind = "t.user_id = $1", domain.KindRent
	case domain.ViewpointLent:
		predicate, kind = "p.owner_id = $1", domain.KindRent
	default:
		return []*domain.Transaction{}, nil
	}

	query := fmt.Sprintf(`
		SELECT t.id, t.kind, t.user_id, t.product_id, t.price, t.rent_price, t.rent_period, t.start_at, t.end_at, t.created_at
		FROM transactions t
		JOIN products p ON p.id = t.product_id
		WHERE %s AND t.kind = $2
		ORDER BY t.created_at DESC
	`, predicate)

	rows, err := r.db.QueryContext(ctx, query, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction history: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// FindLatestForUserAndProduct returns the most recent transaction the user has
// on the product
func (r *transactionRepository) FindLatestForUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*domain.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE user_id = $1 AND product_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, transactionColumns)

	transaction := &domain.Transaction{}
	err := r.db.QueryRowContext(ctx, query, userID, productID).Scan(
		&transaction.ID,
		&transaction.Kind,
		&transaction.UserID,
		&transaction.ProductID,
		&transaction.Price,
		&transaction.RentPrice,
		&transaction.RentPeriod,
		&transaction.StartAt,
		&transaction.EndAt,
		&transaction.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}

	return transaction, nil
}

// HasOverlappingRental applies the closed-interval intersection test against
// every rental of the product that has not yet expired. Expired rentals never
// block a new booking.
func (r *transactionRepository) HasOverlappingRental(ctx context.Context, productID uuid.UUID, start, end, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE product_id = $1
			  AND kind = 'RENT'
			  AND end_at >= $4
			  AND start_at <= $3
			  AND end_at >= $2
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, productID, start, end, now).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check rental overlap: %w", err)
	}

	return exists, nil
}

// HasActiveRental reports whether any rental of the product is still running
// or scheduled for the future
func (r *transactionRepository) HasActiveRental(ctx context.Context, productID uuid.UUID, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE product_id = $1 AND kind = 'RENT' AND end_at >= $2
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, productID, now).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active rentals: %w", err)
	}

	return exists, nil
}

func (r *transactionRepository) scanAll(rows *sql.Rows) ([]*domain.Transaction, error) {
	transactions := []*domain.Transaction{}
	for rows.Next() {
		transaction := &domain.Transaction{}
		err := rows.Scan(
			&transaction.ID,
			&transaction.Kind,
			&transaction.UserID,
			&transaction.ProductID,
			&transaction.Price,
			&transaction.RentPrice,
			&transaction.RentPeriod,
			&transaction.StartAt,
			&transaction.EndAt,
			&transaction.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, transaction)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}
