package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tradepost/internal/domain"
	"tradepost/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockProductService struct {
	listMineFn      func(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error)
	listAvailableFn func(ctx context.Context, viewerID *uuid.UUID) ([]*domain.Product, error)
	getFn           func(ctx context.Context, id uuid.UUID, viewerID *uuid.UUID) (*domain.Product, error)
	createFn        func(ctx context.Context, ownerID uuid.UUID, input service.CreateProductInput) (*domain.Product, error)
	updateFn        func(ctx context.Context, id, editorID uuid.UUID, input service.UpdateProductInput) (*domain.Product, error)
	deleteFn        func(ctx context.Context, id, editorID uuid.UUID) error
}

func (m *mockProductService) ListMine(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error) {
	return m.listMineFn(ctx, ownerID)
}

func (m *mockProductService) ListAvailable(ctx context.Context, viewerID *uuid.UUID) ([]*domain.Product, error) {
	return m.listAvailableFn(ctx, viewerID)
}

func (m *mockProductService) Get(ctx context.Context, id uuid.UUID, viewerID *uuid.UUID) (*domain.Product, error) {
	return m.getFn(ctx, id, viewerID)
}

func (m *mockProductService) Create(ctx context.Context, ownerID uuid.UUID, input service.CreateProductInput) (*domain.Product, error) {
	return m.createFn(ctx, ownerID, input)
}

func (m *mockProductService) Update(ctx context.Context, id, editorID uuid.UUID, input service.UpdateProductInput) (*domain.Product, error) {
	return m.updateFn(ctx, id, editorID, input)
}

func (m *mockProductService) Delete(ctx context.Context, id, editorID uuid.UUID) error {
	return m.deleteFn(ctx, id, editorID)
}

func sampleProduct(ownerID uuid.UUID) *domain.Product {
	price := 120.0
	return &domain.Product{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Title:      "Telescope",
		Categories: []string{"optics"},
		Price:      &price,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}

// newProductRouter wires the handler behind stand-in auth middlewares. The
// required-auth group sees callerID; the optional group stays anonymous unless
// authenticated is true.
func newProductRouter(svc service.ProductService, callerID uuid.UUID, authenticated bool) chi.Router {
	router := chi.NewRouter()
	handler := NewProductHandler(svc, zap.NewNop())

	optional := passthrough
	if authenticated {
		optional = authAs(callerID)
	}
	handler.RegisterRoutes(router, authAs(callerID), optional)
	return router
}

func TestProductHandler_ListAvailable_AnonymousViewer(t *testing.T) {
	svc := &mockProductService{
		listAvailableFn: func(ctx context.Context, viewerID *uuid.UUID) ([]*domain.Product, error) {
			assert.Nil(t, viewerID)
			return []*domain.Product{sampleProduct(uuid.New())}, nil
		},
	}
	router := newProductRouter(svc, uuid.New(), false)

	req := httptest.NewRequest(http.MethodGet, "/api/products/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp []ProductResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "Telescope", resp[0].Title)
}

func TestProductHandler_ListAvailable_AuthenticatedViewerIsPassedThrough(t *testing.T) {
	viewerID := uuid.New()
	svc := &mockProductService{
		listAvailableFn: func(ctx context.Context, gotViewerID *uuid.UUID) ([]*domain.Product, error) {
			require.NotNil(t, gotViewerID)
			assert.Equal(t, viewerID, *gotViewerID)
			return []*domain.Product{}, nil
		},
	}
	router := newProductRouter(svc, viewerID, true)

	req := httptest.NewRequest(http.MethodGet, "/api/products/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProductHandler_ListMine(t *testing.T) {
	ownerID := uuid.New()
	svc := &mockProductService{
		listMineFn: func(ctx context.Context, gotOwnerID uuid.UUID) ([]*domain.Product, error) {
			assert.Equal(t, ownerID, gotOwnerID)
			return []*domain.Product{sampleProduct(gotOwnerID)}, nil
		},
	}
	router := newProductRouter(svc, ownerID, true)

	req := httptest.NewRequest(http.MethodGet, "/api/products/mine", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProductHandler_Get(t *testing.T) {
	product := sampleProduct(uuid.New())
	svc := &mockProductService{
		getFn: func(ctx context.Context, id uuid.UUID, viewerID *uuid.UUID) (*domain.Product, error) {
			assert.Equal(t, product.ID, id)
			return product, nil
		},
	}
	router := newProductRouter(svc, uuid.New(), false)

	req := httptest.NewRequest(http.MethodGet, "/api/products/"+product.ID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProductResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, product.ID.String(), resp.ID)
	require.NotNil(t, resp.Price)
	assert.Equal(t, 120.0, *resp.Price)
	assert.Nil(t, resp.RentPeriod)
}

func TestProductHandler_Get_InvalidID(t *testing.T) {
	router := newProductRouter(&mockProductService{}, uuid.New(), false)

	req := httptest.NewRequest(http.MethodGet, "/api/products/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductHandler_Create(t *testing.T) {
	ownerID := uuid.New()

	var gotInput service.CreateProductInput
	svc := &mockProductService{
		createFn: func(ctx context.Context, gotOwnerID uuid.UUID, input service.CreateProductInput) (*domain.Product, error) {
			assert.Equal(t, ownerID, gotOwnerID)
			gotInput = input
			return sampleProduct(gotOwnerID), nil
		},
	}
	router := newProductRouter(svc, ownerID, true)

	price := 120.0
	rentPrice := 15.0
	period := "PER_HOUR"
	rec := postJSON(t, router, "/api/products/", CreateProductRequest{
		Title:      "Telescope",
		Categories: []string{"optics"},
		Price:      &price,
		RentPrice:  &rentPrice,
		RentPeriod: &period,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, "Telescope", gotInput.Title)
	require.NotNil(t, gotInput.RentPeriod)
	assert.Equal(t, domain.RentPerHour, *gotInput.RentPeriod)
}

func TestProductHandler_Create_RejectsBadPayloads(t *testing.T) {
	svc := &mockProductService{
		createFn: func(ctx context.Context, ownerID uuid.UUID, input service.CreateProductInput) (*domain.Product, error) {
			t.Fatal("service must not be called for invalid payloads")
			return nil, nil
		},
	}
	router := newProductRouter(svc, uuid.New(), true)

	price := 10.0
	negative := -5.0
	badPeriod := "PER_WEEK"

	cases := []struct {
		name    string
		request CreateProductRequest
	}{
		{"missing title", CreateProductRequest{Price: &price}},
		{"negative price", CreateProductRequest{Title: "a", Price: &negative}},
		{"unknown rent period", CreateProductRequest{Title: "a", RentPrice: &price, RentPeriod: &badPeriod}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, router, "/api/products/", tc.request)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestProductHandler_Create_PricingRuleFromService(t *testing.T) {
	svc := &mockProductService{
		createFn: func(ctx context.Context, ownerID uuid.UUID, input service.CreateProductInput) (*domain.Product, error) {
			return nil, service.ErrPricingRequired
		},
	}
	router := newProductRouter(svc, uuid.New(), true)

	rec := postJSON(t, router, "/api/products/", CreateProductRequest{Title: "Unpriced"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "price")
}

func TestProductHandler_Update(t *testing.T) {
	ownerID := uuid.New()
	product := sampleProduct(ownerID)

	svc := &mockProductService{
		updateFn: func(ctx context.Context, id, editorID uuid.UUID, input service.UpdateProductInput) (*domain.Product, error) {
			assert.Equal(t, product.ID, id)
			assert.Equal(t, ownerID, editorID)
			require.NotNil(t, input.Title)
			assert.Equal(t, "Refractor telescope", *input.Title)
			assert.True(t, input.RemoveRentPrice)
			return product, nil
		},
	}
	router := newProductRouter(svc, ownerID, true)

	title := "Refractor telescope"
	body, err := json.Marshal(UpdateProductRequest{Title: &title, RemoveRentPrice: true})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/api/products/"+product.ID.String(), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProductHandler_Update_NonOwnerGets403(t *testing.T) {
	svc := &mockProductService{
		updateFn: func(ctx context.Context, id, editorID uuid.UUID, input service.UpdateProductInput) (*domain.Product, error) {
			return nil, service.ErrNotOwner
		},
	}
	router := newProductRouter(svc, uuid.New(), true)

	title := "Hijacked"
	body, err := json.Marshal(UpdateProductRequest{Title: &title})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/api/products/"+uuid.New().String(), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")
}

func TestProductHandler_Delete(t *testing.T) {
	ownerID := uuid.New()
	productID := uuid.New()

	t.Run("success", func(t *testing.T) {
		svc := &mockProductService{
			deleteFn: func(ctx context.Context, id, editorID uuid.UUID) error {
				assert.Equal(t, productID, id)
				assert.Equal(t, ownerID, editorID)
				return nil
			},
		}
		router := newProductRouter(svc, ownerID, true)

		req := httptest.NewRequest(http.MethodDelete, "/api/products/"+productID.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("blocked by active rentals", func(t *testing.T) {
		svc := &mockProductService{
			deleteFn: func(ctx context.Context, id, editorID uuid.UUID) error {
				return service.ErrActiveRentals
			},
		}
		router := newProductRouter(svc, ownerID, true)

		req := httptest.NewRequest(http.MethodDelete, "/api/products/"+productID.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}
