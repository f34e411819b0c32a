package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tradepost/internal/domain"
	"tradepost/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrAlreadySold      = errors.New("product is already sold")
	ErrSelfTrade        = errors.New("you cannot buy or rent your own product")
	ErrNotForSale       = errors.New("product is not for sale")
	ErrNotForRent       = errors.New("product is not available for rent")
	ErrRentalOverlap    = errors.New("product is already rented for the selected dates")
	ErrRentalBlocksSale = errors.New("product has an active or upcoming rental and cannot be sold")
	ErrInvalidDateRange = errors.New("end date must be after start date")
	ErrStartInPast      = errors.New("start date must not be in the past")
)

// TxBeginner starts database transactions; satisfied by *sql.DB.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// TradeService is the transaction engine. It drives the product state machine
// (LISTED -> SOLD is the only one-way transition; rentals accumulate without
// changing state) and appends to the ledger. Buy and rent run inside a single
// database transaction holding a row lock on the product, so two concurrent
// attempts on the same product serialize: the loser observes the winner's
// write and fails with a conflict.
type TradeService interface {
	Buy(ctx context.Context, buyerID, productID uuid.UUID) (*domain.Transaction, error)
	Rent(ctx context.Context, renterID, productID uuid.UUID, start, end time.Time) (*domain.Transaction, error)
	History(ctx context.Context, userID uuid.UUID, viewpoint domain.Viewpoint) ([]*domain.Transaction, error)
	LatestForProduct(ctx context.Context, userID, productID uuid.UUID) (*domain.Transaction, error)
}

type tradeService struct {
	db           TxBeginner
	products     repository.ProductRepository
	transactions repository.TransactionRepository
	now          func() time.Time
}

// NewTradeService creates a new instance of TradeService
func NewTradeService(db TxBeginner, products repository.ProductRepository, transactions repository.TransactionRepository) TradeService {
	return &tradeService{
		db:           db,
		products:     products,
		transactions: transactions,
		now:          time.Now,
	}
}

// Buy purchases a product outright. Preconditions, checked under the row
// lock: the product exists, is unsold, is not the buyer's own, has a purchase
// price, and has no rental still running or scheduled. On success the sold
// flag flips and the ledger gains a BUY entry with the price frozen at this
// moment.
func (s *tradeService) Buy(ctx context.Context, buyerID, productID uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	products := s.products.WithTx(tx)
	ledger := s.transactions.WithTx(tx)
	now := s.now()

	product, err := products.FindByIDForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}

	if product.Sold {
		return nil, ErrAlreadySold
	}
	if product.OwnerID == buyerID {
		return nil, ErrSelfTrade
	}
	if product.Price == nil {
		return nil, ErrNotForSale
	}

	active, err := ledger.HasActiveRental(ctx, productID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to check rentals: %w", err)
	}
	if active {
		return nil, ErrRentalBlocksSale
	}

	// Compare-and-set on the sold flag. The row lock already serializes
	// buyers, but a guarded update keeps a lost race from ever double-selling.
	if err := products.MarkSold(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrProductAlreadySold) {
			return nil, ErrAlreadySold
		}
		return nil, err
	}

	transaction := &domain.Transaction{
		ID:        uuid.New(),
		Kind:      domain.KindBuy,
		UserID:    buyerID,
		ProductID: productID,
		Price:     product.Price,
		CreatedAt: now,
	}

	if err := ledger.Create(ctx, transaction); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}

	return transaction, nil
}

// Rent books the product for the closed interval [start, end]. The range must
// be well-formed and in the future, and must not intersect any other rental
// that has not yet expired. The overlap check and the ledger append happen
// under the same row lock, so two overlapping bookings can never both land.
func (s *tradeService) Rent(ctx context.Context, renterID, productID uuid.UUID, start, end time.Time) (*domain.Transaction, error) {
	now := s.now()

	if !end.After(start) {
		return nil, ErrInvalidDateRange
	}
	if start.Before(now) {
		return nil, ErrStartInPast
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	products := s.products.WithTx(tx)
	ledger := s.transactions.WithTx(tx)

	product, err := products.FindByIDForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}

	if product.Sold {
		return nil, ErrAlreadySold
	}
	if product.OwnerID == renterID {
		return nil, ErrSelfTrade
	}
	if product.RentPrice == nil || product.RentPeriod == nil {
		return nil, ErrNotForRent
	}

	overlap, err := ledger.HasOverlappingRental(ctx, productID, start, end, now)
	if err != nil {
		return nil, fmt.Errorf("failed to check rental overlap: %w", err)
	}
	if overlap {
		return nil, ErrRentalOverlap
	}

	transaction := &domain.Transaction{
		ID:         uuid.New(),
		Kind:       domain.KindRent,
		UserID:     renterID,
		ProductID:  productID,
		RentPrice:  product.RentPrice,
		RentPeriod: product.RentPeriod,
		StartAt:    &start,
		EndAt:      &end,
		CreatedAt:  now,
	}

	if err := ledger.Create(ctx, transaction); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit rental: %w", err)
	}

	return transaction, nil
}

// History returns the user's ledger entries under one of the four viewpoints,
// newest first. Unknown viewpoints yield an empty list rather than an error.
func (s *tradeService) History(ctx context.Context, userID uuid.UUID, viewpoint domain.Viewpoint) ([]*domain.Transaction, error) {
	transactions, err := s.transactions.HistoryFor(ctx, userID, viewpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return transactions, nil
}

// LatestForProduct returns the caller's most recent transaction on a product
func (s *tradeService) LatestForProduct(ctx context.Context, userID, productID uuid.UUID) (*domain.Transaction, error) {
	return s.transactions.FindLatestForUserAndProduct(ctx, userID, productID)
}
