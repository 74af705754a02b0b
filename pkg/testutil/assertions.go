package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorContains checks that err contains the expected substring.
func AssertErrorContains(t *testing.T, err error, expected string) {
	t.Helper()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), expected)
}

// CountRows runs a SELECT count(*) style query and returns the count.
func CountRows(t *testing.T, pool *pgxpool.Pool, query string, args ...any) int {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var n int
	require.NoError(t, pool.QueryRow(ctx, query, args...).Scan(&n), "query: %s", query)
	return n
}

// AssertRowCount checks the number of rows in table.
func AssertRowCount(t *testing.T, pool *pgxpool.Pool, table string, want int) {
	t.Helper()
	assert.Equal(t, want, CountRows(t, pool, "SELECT count(*) FROM "+table), "rows in %s", table)
}
