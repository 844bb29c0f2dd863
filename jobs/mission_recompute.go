package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/atelier-crm/atelier-crm/internal/deals"
	jobmetrics "github.com/atelier-crm/atelier-crm/internal/jobs"
)

// MissionRecomputeJob refreshes a mission's remaining-to-invoice amount out
// of band, for callers that mutate invoices without going through the
// billing service.
type MissionRecomputeJob struct {
	Deals   *deals.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewMissionRecomputeJob wires dependencies for the recompute handler.
func NewMissionRecomputeJob(dealsSvc *deals.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *MissionRecomputeJob {
	return &MissionRecomputeJob{Deals: dealsSvc, Logger: logger, Metrics: metrics}
}

// Handle processes TaskTypeMissionRecompute tasks.
func (j *MissionRecomputeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Deals == nil {
		return errors.New("mission recompute: handler not configured")
	}
	var payload MissionRecomputePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTypeMissionRecompute)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	remaining, err := j.Deals.RecomputeBilling(ctx, payload.OwnerID, payload.MissionID)
	if err != nil {
		resultErr = err
		j.logger().Error("recompute mission billing",
			slog.String("mission_id", payload.MissionID.String()), slog.Any("error", err))
		return resultErr
	}
	j.logger().Info("mission billing refreshed",
		slog.String("mission_id", payload.MissionID.String()),
		slog.Float64("reste_a_facturer", remaining))
	return resultErr
}

func (j *MissionRecomputeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeMissionRecompute))
	}
	return slog.Default().With(slog.String("job", TaskTypeMissionRecompute))
}

func (j *MissionRecomputeJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
