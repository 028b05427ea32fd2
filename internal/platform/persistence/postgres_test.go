package persistence

import (
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
)

// Pool behavior needs a live database; repositories cover their SQL with
// pgxmock instead. This only checks the accessor wiring.
func TestPostgresDB_Pool(t *testing.T) {
	var pool *pgxpool.Pool
	db := &PostgresDB{
		pool:   pool,
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}

	assert.Equal(t, pool, db.Pool())
}
