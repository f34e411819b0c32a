package transport

import (
	"net/http"

	"tradepost/internal/domain"
	"tradepost/internal/middleware"
	"tradepost/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateProductRequest represents the listing creation payload
type CreateProductRequest struct {
	Title       string   `json:"title" validate:"required,max=255"`
	Description string   `json:"description" validate:"max=5000"`
	Categories  []string `json:"categories"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	RentPrice   *float64 `json:"rent_price" validate:"omitempty,gte=0"`
	RentPeriod  *string  `json:"rent_period" validate:"omitempty,oneof=PER_HOUR PER_DAY"`
}

// UpdateProductRequest represents a partial listing edit. Absent fields are
// left unchanged; the remove flags clear an optional price field.
type UpdateProductRequest struct {
	Title           *string  `json:"title" validate:"omitempty,max=255"`
	Description     *string  `json:"description" validate:"omitempty,max=5000"`
	Categories      []string `json:"categories"`
	Price           *float64 `json:"price" validate:"omitempty,gte=0"`
	RemovePrice     bool     `json:"remove_price"`
	RentPrice       *float64 `json:"rent_price" validate:"omitempty,gte=0"`
	RemoveRentPrice bool     `json:"remove_rent_price"`
	RentPeriod      *string  `json:"rent_period" validate:"omitempty,oneof=PER_HOUR PER_DAY"`
}

// ProductHandler handles HTTP requests for catalog operations
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers all catalog routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, optionalAuthMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		// Anonymous-friendly reads
		r.Group(func(r chi.Router) {
			r.Use(optionalAuthMiddleware)
			r.Get("/", h.ListAvailable)
			r.Get("/{id}", h.Get)
		})

		// Owner operations
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/mine", h.ListMine)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// ListAvailable returns unsold listings from other users, newest first
func (h *ProductHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.ListAvailable(r.Context(), optionalCallerID(r))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toProductResponses(products))
}

// ListMine returns the caller's active listings
func (h *ProductHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	products, err := h.productService.ListMine(r.Context(), ownerID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toProductResponses(products))
}

// Get returns a single listing, counting the visit for non-owners
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	product, err := h.productService.Get(r.Context(), productID, optionalCallerID(r))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toProductResponse(product))
}

// Create handles new listings
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product creation validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.productService.Create(r.Context(), ownerID, service.CreateProductInput{
		Title:       req.Title,
		Description: req.Description,
		Categories:  req.Categories,
		Price:       req.Price,
		RentPrice:   req.RentPrice,
		RentPeriod:  toRentPeriod(req.RentPeriod),
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("owner_id", ownerID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, toProductResponse(product))
}

// Update handles partial listing edits
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	editorID, ok := callerID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var req UpdateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product update validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.productService.Update(r.Context(), productID, editorID, service.UpdateProductInput{
		Title:           req.Title,
		Description:     req.Description,
		Categories:      req.Categories,
		Price:           req.Price,
		RemovePrice:     req.RemovePrice,
		RentPrice:       req.RentPrice,
		RemoveRentPrice: req.RemoveRentPrice,
		RentPeriod:      toRentPeriod(req.RentPeriod),
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toProductResponse(product))
}

// Delete removes a listing
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	editorID, ok := callerID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	if err := h.productService.Delete(r.Context(), productID, editorID); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", productID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

func toRentPeriod(s *string) *domain.RentPeriod {
	if s == nil {
		return nil
	}
	period := domain.RentPeriod(*s)
	return &period
}
