package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	jobmetrics "github.com/forkline/forkline/internal/jobs"
	"github.com/forkline/forkline/internal/transfer"
)

// BranchChannel is the Redis pub/sub channel carrying transfer events for a
// location.
func BranchChannel(locationID string) string {
	return "transfer:events:" + locationID
}

// TransferNotificationJob publishes status changes to the origin and
// destination channels.
type TransferNotificationJob struct {
	Redis   *redis.Client
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewTransferNotificationJob wires dependencies for the notification handler.
func NewTransferNotificationJob(client *redis.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *TransferNotificationJob {
	return &TransferNotificationJob{Redis: client, Logger: logger, Metrics: metrics}
}

// Handle processes TaskTransferStatusChanged tasks.
func (j *TransferNotificationJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Redis == nil {
		return errors.New("transfer notification: handler not configured")
	}
	var change transfer.StatusChange
	if err := json.Unmarshal(t.Payload(), &change); err != nil {
		return asynq.SkipRetry
	}
	if change.RequestID == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTransferStatusChanged)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.String("request_id", change.RequestID),
		slog.String("to", string(change.To)),
	)
	payload := t.Payload()
	for _, location := range []string{change.OriginID, change.DestinationID} {
		if location == "" {
			continue
		}
		if err := j.Redis.Publish(ctx, BranchChannel(location), payload).Err(); err != nil {
			logger.Error("publish transfer event", slog.String("location", location), slog.Any("error", err))
			return err
		}
	}
	logger.Info("transfer event published")
	return nil
}

func (j *TransferNotificationJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTransferStatusChanged))
	}
	return slog.Default().With(slog.String("job", TaskTransferStatusChanged))
}

func (j *TransferNotificationJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
