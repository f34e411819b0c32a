package transport

import (
	"errors"
	"net/http"
	"time"

	"tradepost/internal/domain"
	"tradepost/internal/middleware"
	"tradepost/internal/repository"
	"tradepost/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductResponse is the wire shape of a listing
type ProductResponse struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"owner_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
	Price       *float64 `json:"price,omitempty"`
	RentPrice   *float64 `json:"rent_price,omitempty"`
	RentPeriod  *string  `json:"rent_period,omitempty"`
	Sold        bool     `json:"sold"`
	Views       int      `json:"views"`
	CreatedAt   string   `json:"created_at"`
}

// TransactionResponse is the wire shape of a ledger entry
type TransactionResponse struct {
	ID         string   `json:"id"`
	Kind       string   `json:"kind"`
	UserID     string   `json:"user_id"`
	ProductID  string   `json:"product_id"`
	Price      *float64 `json:"price,omitempty"`
	RentPrice  *float64 `json:"rent_price,omitempty"`
	RentPeriod *string  `json:"rent_period,omitempty"`
	StartAt    *string  `json:"start_at,omitempty"`
	EndAt      *string  `json:"end_at,omitempty"`
	CreatedAt  string   `json:"created_at"`
}

func toProductResponse(p *domain.Product) ProductResponse {
	resp := ProductResponse{
		ID:          p.ID.String(),
		OwnerID:     p.OwnerID.String(),
		Title:       p.Title,
		Description: p.Description,
		Categories:  p.Categories,
		Price:       p.Price,
		RentPrice:   p.RentPrice,
		Sold:        p.Sold,
		Views:       p.Views,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if p.RentPeriod != nil {
		period := string(*p.RentPeriod)
		resp.RentPeriod = &period
	}
	return resp
}

func toProductResponses(products []*domain.Product) []ProductResponse {
	responses := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		responses = append(responses, toProductResponse(p))
	}
	return responses
}

func toTransactionResponse(t *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:        t.ID.String(),
		Kind:      string(t.Kind),
		UserID:    t.UserID.String(),
		ProductID: t.ProductID.String(),
		Price:     t.Price,
		RentPrice: t.RentPrice,
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if t.RentPeriod != nil {
		period := string(*t.RentPeriod)
		resp.RentPeriod = &period
	}
	if t.StartAt != nil {
		start := t.StartAt.UTC().Format(time.RFC3339)
		resp.StartAt = &start
	}
	if t.EndAt != nil {
		end := t.EndAt.UTC().Format(time.RFC3339)
		resp.EndAt = &end
	}
	return resp
}

func toTransactionResponses(transactions []*domain.Transaction) []TransactionResponse {
	responses := make([]TransactionResponse, 0, len(transactions))
	for _, t := range transactions {
		responses = append(responses, toTransactionResponse(t))
	}
	return responses
}

// callerID extracts and parses the authenticated user's ID from the request
// context.
func callerID(r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

// optionalCallerID resolves the viewer for anonymous-friendly read paths.
func optionalCallerID(r *http.Request) *uuid.UUID {
	if userID, ok := callerID(r); ok {
		return &userID
	}
	return nil
}

// respondServiceError maps service and repository errors onto the HTTP error
// taxonomy. Conflict and validation failures keep their specific messages;
// authorization failures stay deliberately vague.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, repository.ErrTransactionNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, service.ErrNotOwner):
		middleware.RespondWithError(w, http.StatusForbidden, "unauthorized")
	case errors.Is(err, service.ErrAlreadySold),
		errors.Is(err, service.ErrSelfTrade),
		errors.Is(err, service.ErrRentalOverlap),
		errors.Is(err, service.ErrRentalBlocksSale),
		errors.Is(err, service.ErrActiveRentals):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotForSale),
		errors.Is(err, service.ErrNotForRent),
		errors.Is(err, service.ErrInvalidDateRange),
		errors.Is(err, service.ErrStartInPast),
		errors.Is(err, service.ErrPricingRequired),
		errors.Is(err, service.ErrRentPeriodRequired),
		errors.Is(err, service.ErrNegativePrice),
		errors.Is(err, service.ErrInvalidRentPeriod),
		errors.Is(err, service.ErrTitleRequired):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("Unexpected service error", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
