// File: internal/intelligence/memory_test.go
package intelligence

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
)

func TestEnsureSchema(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectExec("CREATE TABLE IF NOT EXISTS action_feedback").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, EnsureSchema(context.Background(), mockPool))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPGMemoryRecord(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	recordedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &schemas.FeedbackRecord{
		Recommendation: schemas.ActionRecommendation{
			Action: schemas.ExecutableAction{Kind: schemas.ActionClick, Target: "#buy"},
		},
		ActualResult:    "clicked",
		Success:         true,
		ExecutionTimeMs: 340,
		RecordedAt:      recordedAt,
	}

	mockPool.ExpectExec("INSERT INTO action_feedback").
		WithArgs("click", "#buy", true, int64(340), "clicked", pgxmock.AnyArg(), recordedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mem := NewPGMemory(mockPool, zap.NewNop())
	require.NoError(t, mem.Record(context.Background(), rec))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPGMemoryRecordStampsMissingTime(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	rec := &schemas.FeedbackRecord{
		Recommendation: schemas.ActionRecommendation{
			Action: schemas.ExecutableAction{Kind: schemas.ActionType, Target: "#q"},
		},
		Success: false,
	}

	mockPool.ExpectExec("INSERT INTO action_feedback").
		WithArgs("type", "#q", false, int64(0), "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mem := NewPGMemory(mockPool, zap.NewNop())
	require.NoError(t, mem.Record(context.Background(), rec))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPGMemoryStats(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectQuery("SELECT COUNT").
		WithArgs("click").
		WillReturnRows(pgxmock.NewRows([]string{"count", "successes"}).AddRow(int64(4), int64(3)))

	mem := NewPGMemory(mockPool, zap.NewNop())
	rate, samples, err := mem.Stats(context.Background(), schemas.ActionClick)
	require.NoError(t, err)

	assert.Equal(t, 4, samples)
	assert.Equal(t, 0.75, rate)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPGMemoryStatsEmpty(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectQuery("SELECT COUNT").
		WithArgs("extract").
		WillReturnRows(pgxmock.NewRows([]string{"count", "successes"}).AddRow(int64(0), int64(0)))

	mem := NewPGMemory(mockPool, zap.NewNop())
	rate, samples, err := mem.Stats(context.Background(), schemas.ActionExtract)
	require.NoError(t, err)

	assert.Zero(t, samples)
	assert.Zero(t, rate)
}

func TestPGMemoryErrorsWrapped(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	dbErr := errors.New("connection reset")
	mockPool.ExpectExec("INSERT INTO action_feedback").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(dbErr)

	mem := NewPGMemory(mockPool, zap.NewNop())
	err = mem.Record(context.Background(), feedbackFor(schemas.ActionClick, true))
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.Equal(t, schemas.KindFatal, schemas.KindOf(err))
}
