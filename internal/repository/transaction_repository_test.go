package repository

import (
	"context"
	"testing"
	"time"

	"tradepost/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createBuyTransaction(t *testing.T, buyerID, productID uuid.UUID, price float64) *domain.Transaction {
	t.Helper()

	tx := &domain.Transaction{
		ID:        uuid.New(),
		Kind:      domain.KindBuy,
		UserID:    buyerID,
		ProductID: productID,
		Price:     floatPtr(price),
		CreatedAt: time.Now(),
	}
	require.NoError(t, NewTransactionRepository(testDB).Create(context.Background(), tx))
	return tx
}

func createRentTransaction(t *testing.T, renterID, productID uuid.UUID, start, end time.Time) *domain.Transaction {
	t.Helper()

	tx := &domain.Transaction{
		ID:         uuid.New(),
		Kind:       domain.KindRent,
		UserID:     renterID,
		ProductID:  productID,
		RentPrice:  floatPtr(10),
		RentPeriod: periodPtr(domain.RentPerDay),
		StartAt:    &start,
		EndAt:      &end,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, NewTransactionRepository(testDB).Create(context.Background(), tx))
	return tx
}

func historyIDs(t *testing.T, userID uuid.UUID, viewpoint domain.Viewpoint) []uuid.UUID {
	t.Helper()

	transactions, err := NewTransactionRepository(testDB).HistoryFor(context.Background(), userID, viewpoint)
	require.NoError(t, err)

	ids := make([]uuid.UUID, 0, len(transactions))
	for _, tx := range transactions {
		ids = append(ids, tx.ID)
	}
	return ids
}

func TestTransactionRepository_HistoryFor_PartitionsByViewpoint(t *testing.T) {
	seller := createTestUser(t)
	buyer := createTestUser(t)
	product := createTestProduct(t, seller.ID, nil)
	rented := createTestProduct(t, seller.ID, nil)

	sale := createBuyTransaction(t, buyer.ID, product.ID, 50)
	start := time.Now().Add(24 * time.Hour)
	rental := createRentTransaction(t, buyer.ID, rented.ID, start, start.Add(48*time.Hour))

	assert.Contains(t, historyIDs(t, buyer.ID, domain.ViewpointBought), sale.ID)
	assert.Contains(t, historyIDs(t, seller.ID, domain.ViewpointSold), sale.ID)
	assert.NotContains(t, historyIDs(t, buyer.ID, domain.ViewpointBorrowed), sale.ID)
	assert.NotContains(t, historyIDs(t, seller.ID, domain.ViewpointLent), sale.ID)

	assert.Contains(t, historyIDs(t, buyer.ID, domain.ViewpointBorrowed), rental.ID)
	assert.Contains(t, historyIDs(t, seller.ID, domain.ViewpointLent), rental.ID)
	assert.NotContains(t, historyIDs(t, buyer.ID, domain.ViewpointBought), rental.ID)
	assert.NotContains(t, historyIDs(t, seller.ID, domain.ViewpointSold), rental.ID)

	// The counterparties see nothing under the opposite viewpoints.
	assert.Empty(t, historyIDs(t, buyer.ID, domain.ViewpointSold))
	assert.Empty(t, historyIDs(t, seller.ID, domain.ViewpointBought))
}

func TestTransactionRepository_HistoryFor_UnknownViewpointIsEmpty(t *testing.T) {
	user := createTestUser(t)

	transactions, err := NewTransactionRepository(testDB).HistoryFor(context.Background(), user.ID, domain.Viewpoint("SHOPLIFTED"))
	require.NoError(t, err)
	assert.Empty(t, transactions)
}

func TestTransactionRepository_HistoryFor_EveryEntryLandsInExactlyTwoViewpoints(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20

	properties := gopter.NewProperties(parameters)

	properties.Property("a ledger entry appears for actor and owner under matching viewpoints only", prop.ForAll(
		func(isRent bool) bool {
			owner := createTestUser(t)
			actor := createTestUser(t)
			product := createTestProduct(t, owner.ID, nil)

			var tx *domain.Transaction
			if isRent {
				start := time.Now().Add(time.Hour)
				tx = createRentTransaction(t, actor.ID, product.ID, start, start.Add(24*time.Hour))
			} else {
				tx = createBuyTransaction(t, actor.ID, product.ID, 50)
			}

			actorView, ownerView := domain.ViewpointBought, domain.ViewpointSold
			otherActorView, otherOwnerView := domain.ViewpointBorrowed, domain.ViewpointLent
			if isRent {
				actorView, ownerView = domain.ViewpointBorrowed, domain.ViewpointLent
				otherActorView, otherOwnerView = domain.ViewpointBought, domain.ViewpointSold
			}

			return contains(historyIDs(t, actor.ID, actorView), tx.ID) &&
				contains(historyIDs(t, owner.ID, ownerView), tx.ID) &&
				!contains(historyIDs(t, actor.ID, otherActorView), tx.ID) &&
				!contains(historyIDs(t, owner.ID, otherOwnerView), tx.ID)
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func TestTransactionRepository_FindLatestForUserAndProduct(t *testing.T) {
	repo := NewTransactionRepository(testDB)
	owner := createTestUser(t)
	renter := createTestUser(t)
	product := createTestProduct(t, owner.ID, nil)

	first := time.Now().Add(time.Hour)
	createRentTransaction(t, renter.ID, product.ID, first, first.Add(2*time.Hour))

	// Newer entry with a strictly later created_at.
	latest := &domain.Transaction{
		ID:         uuid.New(),
		Kind:       domain.KindRent,
		UserID:     renter.ID,
		ProductID:  product.ID,
		RentPrice:  floatPtr(10),
		RentPeriod: periodPtr(domain.RentPerHour),
		StartAt:    timePtr(first.Add(72 * time.Hour)),
		EndAt:      timePtr(first.Add(96 * time.Hour)),
		CreatedAt:  time.Now().Add(time.Minute),
	}
	require.NoError(t, repo.Create(context.Background(), latest))

	found, err := repo.FindLatestForUserAndProduct(context.Background(), renter.ID, product.ID)
	require.NoError(t, err)
	assert.Equal(t, latest.ID, found.ID)
	assert.Equal(t, domain.RentPerHour, *found.RentPeriod)

	_, err = repo.FindLatestForUserAndProduct(context.Background(), owner.ID, product.ID)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestTransactionRepository_HasOverlappingRental(t *testing.T) {
	repo := NewTransactionRepository(testDB)
	owner := createTestUser(t)
	renter := createTestUser(t)
	product := createTestProduct(t, owner.ID, nil)

	now := time.Now()
	day := func(n int) time.Time { return now.Add(time.Duration(n) * 24 * time.Hour) }

	createRentTransaction(t, renter.ID, product.ID, day(1), day(5))

	cases := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"fully inside", day(2), day(4), true},
		{"straddles the start", day(0), day(2), true},
		{"straddles the end", day(4), day(7), true},
		{"touching end boundary", day(5), day(8), true},
		{"touching start boundary", day(0), day(1), true},
		{"strictly after", day(6), day(10), false},
		{"strictly before", day(-3), day(0), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.HasOverlappingRental(context.Background(), product.ID, tc.start, tc.end, now)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTransactionRepository_HasOverlappingRental_IgnoresExpired(t *testing.T) {
	repo := NewTransactionRepository(testDB)
	owner := createTestUser(t)
	renter := createTestUser(t)
	product := createTestProduct(t, owner.ID, nil)

	now := time.Now()
	createRentTransaction(t, renter.ID, product.ID, now.Add(-72*time.Hour), now.Add(-24*time.Hour))

	// Same dates as the finished rental, but it already ended.
	got, err := repo.HasOverlappingRental(context.Background(), product.ID, now.Add(-72*time.Hour), now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestTransactionRepository_HasActiveRental(t *testing.T) {
	repo := NewTransactionRepository(testDB)
	owner := createTestUser(t)
	renter := createTestUser(t)

	idle := createTestProduct(t, owner.ID, nil)
	booked := createTestProduct(t, owner.ID, nil)
	expired := createTestProduct(t, owner.ID, nil)

	now := time.Now()
	createRentTransaction(t, renter.ID, booked.ID, now.Add(24*time.Hour), now.Add(48*time.Hour))
	createRentTransaction(t, renter.ID, expired.ID, now.Add(-48*time.Hour), now.Add(-24*time.Hour))

	got, err := repo.HasActiveRental(context.Background(), idle.ID, now)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = repo.HasActiveRental(context.Background(), booked.ID, now)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = repo.HasActiveRental(context.Background(), expired.ID, now)
	require.NoError(t, err)
	assert.False(t, got)
}

func timePtr(v time.Time) *time.Time {
	return &v
}
