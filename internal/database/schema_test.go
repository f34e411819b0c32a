package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const migrationsDir = "../../migrations"

func readMigration(t *testing.T, name string) string {
	t.Helper()

	content, err := os.ReadFile(filepath.Join(migrationsDir, name))
	require.NoError(t, err, "migration %s must exist", name)
	return string(content)
}

func TestMigrationFilesPresent(t *testing.T) {
	expected := []string{
		"00001_create_users_table.sql",
		"00002_create_refresh_tokens_table.sql",
		"00003_create_products_table.sql",
		"00004_create_transactions_table.sql",
	}

	entries, err := os.ReadDir(migrationsDir)
	require.NoError(t, err)

	found := map[string]bool{}
	for _, entry := range entries {
		found[entry.Name()] = true
	}

	for _, name := range expected {
		assert.True(t, found[name], "missing migration %s", name)
	}
}

func TestMigrationsCarryGooseMarkers(t *testing.T) {
	entries, err := os.ReadDir(migrationsDir)
	require.NoError(t, err)

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		content := readMigration(t, entry.Name())
		assert.Contains(t, content, "-- +goose Up", "%s lacks an Up section", entry.Name())
		assert.Contains(t, content, "-- +goose Down", "%s lacks a Down section", entry.Name())
	}
}

func TestProductsSchemaEnforcesPricingInvariants(t *testing.T) {
	content := readMigration(t, "00003_create_products_table.sql")

	assert.Contains(t, content, "products_pricing_present")
	assert.Contains(t, content, "products_rent_period_present")
	assert.Contains(t, content, "'PER_HOUR'")
	assert.Contains(t, content, "'PER_DAY'")
}

func TestTransactionsSchemaConstrainsRentRanges(t *testing.T) {
	content := readMigration(t, "00004_create_transactions_table.sql")

	assert.Contains(t, content, "transactions_rent_range")
	assert.Contains(t, content, "'BUY'")
	assert.Contains(t, content, "'RENT'")
	assert.Contains(t, content, "ON DELETE CASCADE")
}
