package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind distinguishes purchases from rentals in the ledger.
type TransactionKind string

const (
	KindBuy  TransactionKind = "BUY"
	KindRent TransactionKind = "RENT"
)

// Viewpoint selects one of the four perspectives on a user's transaction
// history.
type Viewpoint string

const (
	ViewpointBought   Viewpoint = "BOUGHT"
	ViewpointSold     Viewpoint = "SOLD"
	ViewpointBorrowed Viewpoint = "BORROWED"
	ViewpointLent     Viewpoint = "LENT"
)

// Transaction is an immutable ledger entry for a completed buy or rent. The
// price fields are a snapshot frozen at creation time; later edits to the
// product's live pricing never touch them. StartAt/EndAt are set for rentals
// only and form a closed interval.
type Transaction struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	Kind       TransactionKind `json:"kind" db:"kind"`
	UserID     uuid.UUID       `json:"user_id" db:"user_id"`
	ProductID  uuid.UUID       `json:"product_id" db:"product_id"`
	Price      *float64        `json:"price,omitempty" db:"price"`
	RentPrice  *float64        `json:"rent_price,omitempty" db:"rent_price"`
	RentPeriod *RentPeriod     `json:"rent_period,omitempty" db:"rent_period"`
	StartAt    *time.Time      `json:"start_at,omitempty" db:"start_at"`
	EndAt      *time.Time      `json:"end_at,omitempty" db:"end_at"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
