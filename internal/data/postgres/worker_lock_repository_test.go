package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerLockRepository_TryAcquire(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WorkerLockRepository{querier: mock, logger: logger}
	staleAfter := 90 * time.Second

	query := `
		INSERT INTO worker_locks \(name, holder, heartbeat_at\)
		VALUES \(\$1, \$2, NOW\(\)\)
		ON CONFLICT \(name\) DO UPDATE
		SET holder = EXCLUDED\.holder, heartbeat_at = NOW\(\)
		WHERE worker_locks\.holder = EXCLUDED\.holder
		   OR worker_locks\.heartbeat_at < NOW\(\) - make_interval\(secs => \$3\)
	`

	t.Run("acquired", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs("reconciler", "host-a:1234", staleAfter.Seconds()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		acquired, err := repo.TryAcquire(ctx, "reconciler", "host-a:1234", staleAfter)
		assert.NoError(t, err)
		assert.True(t, acquired)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("held by live holder", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs("reconciler", "host-b:5678", staleAfter.Seconds()).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		acquired, err := repo.TryAcquire(ctx, "reconciler", "host-b:5678", staleAfter)
		assert.NoError(t, err)
		assert.False(t, acquired)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("lock db error")
		mock.ExpectExec(query).
			WithArgs("reconciler", "host-a:1234", staleAfter.Seconds()).
			WillReturnError(dbErr)

		acquired, err := repo.TryAcquire(ctx, "reconciler", "host-a:1234", staleAfter)
		assert.Error(t, err)
		assert.False(t, acquired)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWorkerLockRepository_Release(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WorkerLockRepository{querier: mock, logger: logger}

	query := `DELETE FROM worker_locks WHERE name = \$1 AND holder = \$2`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs("reconciler", "host-a:1234").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		err := repo.Release(ctx, "reconciler", "host-a:1234")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("delete db error")
		mock.ExpectExec(query).
			WithArgs("reconciler", "host-a:1234").
			WillReturnError(dbErr)

		err := repo.Release(ctx, "reconciler", "host-a:1234")
		assert.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
