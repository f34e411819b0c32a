package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradepost/internal/domain"
	"tradepost/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrNotOwner           = errors.New("unauthorized")
	ErrPricingRequired    = errors.New("a purchase price or a rental price is required")
	ErrRentPeriodRequired = errors.New("a rental period is required when a rental price is set")
	ErrNegativePrice      = errors.New("prices must not be negative")
	ErrInvalidRentPeriod  = errors.New("rental period must be PER_HOUR or PER_DAY")
	ErrTitleRequired      = errors.New("a title is required")
	ErrActiveRentals      = errors.New("product has active or upcoming rentals")
)

// CreateProductInput carries the fields of a new listing.
type CreateProductInput struct {
	Title       string
	Description string
	Categories  []string
	Price       *float64
	RentPrice   *float64
	RentPeriod  *domain.RentPeriod
}

// UpdateProductInput carries a partial edit. Nil fields are left unchanged;
// the Remove flags explicitly clear an optional price field.
type UpdateProductInput struct {
	Title           *string
	Description     *string
	Categories      []string
	Price           *float64
	RemovePrice     bool
	RentPrice       *float64
	RemoveRentPrice bool
	RentPeriod      *domain.RentPeriod
}

// ProductService owns catalog business rules: the pricing invariants, the
// ownership checks on edits, and the owner-exempt view counter.
type ProductService interface {
	ListMine(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error)
	ListAvailable(ctx context.Context, viewerID *uuid.UUID) ([]*domain.Product, error)
	Get(ctx context.Context, id uuid.UUID, viewerID *uuid.UUID) (*domain.Product, error)
	Create(ctx context.Context, ownerID uuid.UUID, input CreateProductInput) (*domain.Product, error)
	Update(ctx context.Context, id, editorID uuid.UUID, input UpdateProductInput) (*domain.Product, error)
	Delete(ctx context.Context, id, editorID uuid.UUID) error
}

type productService struct {
	products     repository.ProductRepository
	transactions repository.TransactionRepository
	now          func() time.Time
}

// NewProductService creates a new instance of ProductService
func NewProductService(products repository.ProductRepository, transactions repository.TransactionRepository) ProductService {
	return &productService{
		products:     products,
		transactions: transactions,
		now:          time.Now,
	}
}

// ListMine returns the caller's active listings, newest first
func (s *productService) ListMine(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error) {
	products, err := s.products.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list own products: %w", err)
	}
	return products, nil
}

// ListAvailable returns unsold listings from other users; anonymous viewers
// see every unsold listing
func (s *productService) ListAvailable(ctx context.Context, viewerID *uuid.UUID) ([]*domain.Product, error) {
	products, err := s.products.ListAvailable(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list available products: %w", err)
	}
	return products, nil
}

// Get returns a product and counts the visit unless the viewer is the owner.
// Owners cannot inflate their own view counters by self-visits.
func (s *productService) Get(ctx context.Context, id uuid.UUID, viewerID *uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if viewerID == nil || *viewerID != product.OwnerID {
		views, err := s.products.IncrementViews(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to count view: %w", err)
		}
		product.Views = views
	}

	return product, nil
}

// Create validates the pricing invariants and stores a new listing
func (s *productService) Create(ctx context.Context, ownerID uuid.UUID, input CreateProductInput) (*domain.Product, error) {
	if input.Title == "" {
		return nil, ErrTitleRequired
	}
	if err := validatePricing(input.Price, input.RentPrice, input.RentPeriod); err != nil {
		return nil, err
	}

	categories := input.Categories
	if categories == nil {
		categories = []string{}
	}

	product := &domain.Product{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       input.Title,
		Description: input.Description,
		Categories:  categories,
		Price:       input.Price,
		RentPrice:   input.RentPrice,
		RentPeriod:  input.RentPeriod,
		Sold:        false,
		Views:       0,
		CreatedAt:   s.now(),
		UpdatedAt:   s.now(),
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return product, nil
}

// Update merges the partial edit over the stored record, re-validates the
// pricing invariants on the merged state, and persists only if they hold. A
// failed update leaves the product untouched.
func (s *productService) Update(ctx context.Context, id, editorID uuid.UUID, input UpdateProductInput) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if product.OwnerID != editorID {
		return nil, ErrNotOwner
	}

	merged := *product
	if input.Title != nil {
		merged.Title = *input.Title
	}
	if input.Description != nil {
		merged.Description = *input.Description
	}
	if input.Categories != nil {
		merged.Categories = input.Categories
	}
	if input.Price != nil {
		merged.Price = input.Price
	}
	if input.RemovePrice {
		merged.Price = nil
	}
	if input.RentPrice != nil {
		merged.RentPrice = input.RentPrice
	}
	if input.RentPeriod != nil {
		merged.RentPeriod = input.RentPeriod
	}
	if input.RemoveRentPrice {
		merged.RentPrice = nil
		merged.RentPeriod = nil
	}

	if merged.Title == "" {
		return nil, ErrTitleRequired
	}
	if err := validatePricing(merged.Price, merged.RentPrice, merged.RentPeriod); err != nil {
		return nil, err
	}

	merged.UpdatedAt = s.now()
	if err := s.products.Update(ctx, &merged); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return &merged, nil
}

// Delete removes a listing and, through the foreign-key cascade, its ledger
// entries. A product with an active or future rental cannot be deleted; the
// renter's booked window survives until it lapses.
func (s *productService) Delete(ctx context.Context, id, editorID uuid.UUID) error {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if product.OwnerID != editorID {
		return ErrNotOwner
	}

	active, err := s.transactions.HasActiveRental(ctx, id, s.now())
	if err != nil {
		return fmt.Errorf("failed to check rentals: %w", err)
	}
	if active {
		return ErrActiveRentals
	}

	if err := s.products.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	return nil
}

// validatePricing enforces the two catalog invariants: at least one of the
// price fields is present, and a rental price always has a billing period.
func validatePricing(price, rentPrice *float64, rentPeriod *domain.RentPeriod) error {
	if price == nil && rentPrice == nil {
		return ErrPricingRequired
	}
	if price != nil && *price < 0 {
		return ErrNegativePrice
	}
	if rentPrice != nil {
		if *rentPrice < 0 {
			return ErrNegativePrice
		}
		if rentPeriod == nil {
			return ErrRentPeriodRequired
		}
		if !domain.ValidRentPeriod(*rentPeriod) {
			return ErrInvalidRentPeriod
		}
	}
	return nil
}
