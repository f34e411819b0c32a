package domain

import (
	"time"

	"github.com/google/uuid"
)

// RentPeriod is the billing unit for a rental price.
type RentPeriod string

const (
	RentPerHour RentPeriod = "PER_HOUR"
	RentPerDay  RentPeriod = "PER_DAY"
)

// ValidRentPeriod reports whether p is a known billing unit.
func ValidRentPeriod(p RentPeriod) bool {
	return p == RentPerHour || p == RentPerDay
}

// Product is a single-unit listing. A product must carry a purchase price, a
// rental price, or both; a rental price always comes with a billing period.
// The sold flag is one-way: once true it never reverts.
type Product struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	OwnerID     uuid.UUID   `json:"owner_id" db:"owner_id"`
	Title       string      `json:"title" db:"title"`
	Description string      `json:"description" db:"description"`
	Categories  []string    `json:"categories" db:"categories"`
	Price       *float64    `json:"price,omitempty" db:"price"`
	RentPrice   *float64    `json:"rent_price,omitempty" db:"rent_price"`
	RentPeriod  *RentPeriod `json:"rent_period,omitempty" db:"rent_period"`
	Sold        bool        `json:"sold" db:"sold"`
	Views       int         `json:"views" db:"views"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}
