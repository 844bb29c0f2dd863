package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/atelier-crm/atelier-crm/internal/jobs"
)

// OverdueScanJob counts unpaid invoices past their due date and publishes
// the result as a gauge, per currency. It runs on the scheduler.
type OverdueScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewOverdueScanJob wires dependencies for the scan handler.
func NewOverdueScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueScanJob {
	return &OverdueScanJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskTypeOverdueScan tasks.
func (j *OverdueScanJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("overdue scan: handler not configured")
	}

	tracker := j.metrics().Track(TaskTypeOverdueScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	rows, err := j.Pool.Query(ctx, `
		SELECT currency, COUNT(*)
		FROM invoices
		WHERE status IN ('draft', 'sent') AND due_on < $1
		GROUP BY currency
	`, j.clock())
	if err != nil {
		resultErr = err
		return resultErr
	}
	defer rows.Close()

	total := 0
	for rows.Next() {
		var currency string
		var count int
		if err := rows.Scan(&currency, &count); err != nil {
			resultErr = err
			return resultErr
		}
		j.metrics().SetOverdue(currency, count)
		total += count
	}
	if err := rows.Err(); err != nil {
		resultErr = err
		return resultErr
	}

	j.logger().Info("overdue scan complete", slog.Int("overdue", total))
	return resultErr
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeOverdueScan))
	}
	return slog.Default().With(slog.String("job", TaskTypeOverdueScan))
}

func (j *OverdueScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
