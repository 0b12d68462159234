// File: internal/intelligence/memory.go
package intelligence

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FeedbackMemory stores action outcomes and answers how well a kind of
// action has worked historically.
type FeedbackMemory interface {
	Record(ctx context.Context, rec *schemas.FeedbackRecord) error
	// Stats returns the success rate in [0,1] and the sample count for an
	// action kind. Zero samples means no history.
	Stats(ctx context.Context, kind schemas.ActionKind) (rate float64, samples int, err error)
}

const memoryCapacity = 1000

// ringMemory keeps the most recent records in process memory. It backs the
// engine when no database URL is configured.
type ringMemory struct {
	mu      sync.Mutex
	records []schemas.FeedbackRecord
	next    int
	full    bool
}

// NewRingMemory returns an in-memory feedback store bounded to the most
// recent records.
func NewRingMemory() FeedbackMemory {
	return &ringMemory{records: make([]schemas.FeedbackRecord, memoryCapacity)}
}

func (m *ringMemory) Record(_ context.Context, rec *schemas.FeedbackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[m.next] = *rec
	m.next++
	if m.next == len(m.records) {
		m.next = 0
		m.full = true
	}
	return nil
}

func (m *ringMemory) Stats(_ context.Context, kind schemas.ActionKind) (float64, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := m.next
	if m.full {
		count = len(m.records)
	}
	var samples, successes int
	for i := 0; i < count; i++ {
		if m.records[i].Recommendation.Action.Kind != kind {
			continue
		}
		samples++
		if m.records[i].Success {
			successes++
		}
	}
	if samples == 0 {
		return 0, 0, nil
	}
	return float64(successes) / float64(samples), samples, nil
}

// PGPool is the subset of pgxpool.Pool the persistent store needs, extracted
// so tests can substitute pgxmock.
type PGPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	feedbackSchema = `
CREATE TABLE IF NOT EXISTS action_feedback (
	id BIGSERIAL PRIMARY KEY,
	action_kind TEXT NOT NULL,
	target TEXT NOT NULL DEFAULT '',
	success BOOLEAN NOT NULL,
	execution_time_ms BIGINT NOT NULL,
	actual_result TEXT NOT NULL DEFAULT '',
	recommendation JSONB NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
)`

	insertFeedbackSQL = `INSERT INTO action_feedback
	(action_kind, target, success, execution_time_ms, actual_result, recommendation, recorded_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

	statsSQL = `SELECT COUNT(*),
	COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0)
	FROM action_feedback WHERE action_kind = $1`
)

// pgMemory persists feedback in PostgreSQL.
type pgMemory struct {
	db     PGPool
	logger *zap.Logger
}

// NewPGMemory wraps a pgx pool as a feedback store.
func NewPGMemory(db PGPool, logger *zap.Logger) FeedbackMemory {
	return &pgMemory{db: db, logger: logger.Named("feedback")}
}

// EnsureSchema creates the feedback table when missing.
func EnsureSchema(ctx context.Context, db PGPool) error {
	if _, err := db.Exec(ctx, feedbackSchema); err != nil {
		return schemas.WrapError(schemas.KindFatal, "intelligence.schema", err)
	}
	return nil
}

// OpenPool connects a pgx pool to the configured database.
func OpenPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, schemas.WrapError(schemas.KindFatal, "intelligence.connect", err)
	}
	return pool, nil
}

func (m *pgMemory) Record(ctx context.Context, rec *schemas.FeedbackRecord) error {
	recJSON, err := json.Marshal(rec.Recommendation)
	if err != nil {
		return schemas.WrapError(schemas.KindFatal, "intelligence.record", err)
	}

	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	_, err = m.db.Exec(ctx, insertFeedbackSQL,
		string(rec.Recommendation.Action.Kind),
		rec.Recommendation.Action.Target,
		rec.Success,
		rec.ExecutionTimeMs,
		rec.ActualResult,
		recJSON,
		recordedAt,
	)
	if err != nil {
		return schemas.WrapError(schemas.KindFatal, "intelligence.record", err)
	}
	return nil
}

func (m *pgMemory) Stats(ctx context.Context, kind schemas.ActionKind) (float64, int, error) {
	var total, successes int64
	err := m.db.QueryRow(ctx, statsSQL, string(kind)).Scan(&total, &successes)
	if err != nil {
		return 0, 0, schemas.WrapError(schemas.KindFatal, "intelligence.stats", err)
	}
	if total == 0 {
		return 0, 0, nil
	}
	return float64(successes) / float64(total), int(total), nil
}
