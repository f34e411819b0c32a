package transport

import (
	"net/http"
	"time"

	"tradepost/internal/domain"
	"tradepost/internal/middleware"
	"tradepost/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BuyRequest represents a purchase command
type BuyRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

// RentRequest represents a rental booking command. Dates are RFC 3339.
type RentRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	StartAt   string `json:"start_at" validate:"required"`
	EndAt     string `json:"end_at" validate:"required"`
}

// TradeHandler handles HTTP requests for buy/rent commands and ledger reads
type TradeHandler struct {
	tradeService service.TradeService
	logger       *zap.Logger
}

// NewTradeHandler creates a new TradeHandler
func NewTradeHandler(tradeService service.TradeService, logger *zap.Logger) *TradeHandler {
	return &TradeHandler{
		tradeService: tradeService,
		logger:       logger,
	}
}

// RegisterRoutes registers all trade routes. All of them require an
// authenticated caller; the write commands additionally sit behind the rate
// limiter.
func (h *TradeHandler) RegisterRoutes(r chi.Router, authMiddleware, rateLimitMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/trades", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Group(func(r chi.Router) {
			r.Use(rateLimitMiddleware)
			r.Post("/buy", h.Buy)
			r.Post("/rent", h.Rent)
		})

		r.Get("/history", h.History)
		r.Get("/products/{id}", h.LatestForProduct)
	})
}

// Buy handles a purchase command
func (h *TradeHandler) Buy(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := callerID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req BuyRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Buy validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	transaction, err := h.tradeService.Buy(r.Context(), buyerID, productID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("Product purchased",
		zap.String("product_id", productID.String()),
		zap.String("buyer_id", buyerID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, toTransactionResponse(transaction))
}

// Rent handles a rental booking command
func (h *TradeHandler) Rent(w http.ResponseWriter, r *http.Request) {
	renterID, ok := callerID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RentRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Rent validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid start date format")
		return
	}

	end, err := time.Parse(time.RFC3339, req.EndAt)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid end date format")
		return
	}

	transaction, err := h.tradeService.Rent(r.Context(), renterID, productID, start, end)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("Product rented",
		zap.String("product_id", productID.String()),
		zap.String("renter_id", renterID.String()),
		zap.Time("start_at", start),
		zap.Time("end_at", end),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, toTransactionResponse(transaction))
}

// History returns the caller's ledger entries under the requested viewpoint.
// An unknown viewpoint yields an empty list.
func (h *TradeHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	viewpoint := domain.Viewpoint(r.URL.Query().Get("view"))

	transactions, err := h.tradeService.History(r.Context(), userID, viewpoint)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toTransactionResponses(transactions))
}

// LatestForProduct returns the caller's most recent transaction on a product
func (h *TradeHandler) LatestForProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	transaction, err := h.tradeService.LatestForProduct(r.Context(), userID, productID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toTransactionResponse(transaction))
}
