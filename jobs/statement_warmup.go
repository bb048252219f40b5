package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/versatilewordsmith/footwear-accounting/internal/ledger"
)

// StatementWarmupJob pre-builds partner statements so the first dashboard
// view after a quiet period hits the cache.
type StatementWarmupJob struct {
	Ledger *ledger.Service
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

// NewStatementWarmupJob wires dependencies for the warmup handler.
func NewStatementWarmupJob(ledgerSvc *ledger.Service, pool *pgxpool.Pool, logger *slog.Logger) *StatementWarmupJob {
	return &StatementWarmupJob{Ledger: ledgerSvc, Pool: pool, Logger: logger}
}

// Handle processes statement warmup tasks.
func (j *StatementWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("statement warmup: handler not configured")
	}
	var payload StatementWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 || payload.Limit > 500 {
		payload.Limit = 100
	}

	logger := j.logger()
	started := time.Now()
	logger.Info("starting statement warmup", slog.String("partner_type", payload.PartnerType))

	ids, err := j.fetchPartnerIDs(ctx, payload)
	if err != nil {
		logger.Error("load warmup partners", slog.Any("error", err))
		return err
	}

	warmed := 0
	for _, id := range ids {
		partnerCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		_, err := j.Ledger.BuildStatement(partnerCtx, id)
		cancel()
		if err != nil {
			// Data faults in one partner's ledger should not stall the rest.
			logger.Error("warm statement", slog.Int64("partner_id", id), slog.Any("error", err))
			continue
		}
		warmed++
	}

	logger.Info("completed statement warmup",
		slog.Int("partners", warmed),
		slog.Duration("duration", time.Since(started)))
	return nil
}

func (j *StatementWarmupJob) fetchPartnerIDs(ctx context.Context, payload StatementWarmupPayload) ([]int64, error) {
	if j.Pool == nil {
		return nil, errors.New("statement warmup: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `SELECT id FROM partners
WHERE $1 = '' OR type = $1
ORDER BY updated_at DESC
LIMIT $2`, payload.PartnerType, payload.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (j *StatementWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStatementWarmup))
	}
	return slog.Default().With(slog.String("job", TaskStatementWarmup))
}
