package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/outbound-shipments/internal/domain"
	"github.com/kursadbilgin/outbound-shipments/internal/observability"
	"github.com/kursadbilgin/outbound-shipments/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// TrackingUpdater applies a tracking update to the shipment it addresses.
type TrackingUpdater interface {
	ApplyTrackingUpdate(ctx context.Context, trackingNumber string, update domain.TrackingUpdate) (*domain.OutboundShipment, error)
}

// TrackingWorker consumes carrier tracking updates and applies them to shipments.
type TrackingWorker struct {
	updater     TrackingUpdater
	consumer    queue.Consumer
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
}

func NewTrackingWorker(
	updater TrackingUpdater,
	consumer queue.Consumer,
	concurrency int,
	logger *zap.Logger,
) (*TrackingWorker, error) {
	if updater == nil {
		return nil, fmt.Errorf("tracking updater is required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TrackingWorker{
		updater:     updater,
		consumer:    consumer,
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

func (w *TrackingWorker) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Start runs concurrency consumers on the tracking queue until ctx is canceled.
func (w *TrackingWorker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("tracking worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.TrackingQueue),
			)

			if err := w.consumer.Consume(groupCtx, queue.TrackingQueue, w.processMessage); err != nil {
				w.logger.Error("tracking worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("tracking worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

// processMessage returns an error only for failures worth redelivering.
// Updates for unknown tracking numbers and invalid updates are acked.
func (w *TrackingWorker) processMessage(ctx context.Context, msg queue.TrackingUpdateMessage) error {
	w.metrics.IncWorkerInFlight()
	defer w.metrics.DecWorkerInFlight()

	if cid := strings.TrimSpace(msg.CorrelationID); cid != "" {
		ctx = observability.WithCorrelationID(ctx, cid)
	}
	logger := observability.WithContextLogger(w.logger, ctx)

	_, err := w.updater.ApplyTrackingUpdate(ctx, msg.TrackingNumber, msg.Update())
	switch {
	case err == nil:
		w.metrics.IncTrackingUpdate("applied")
		logger.Debug("tracking update applied",
			zap.String("trackingNumber", msg.TrackingNumber),
			zap.String("messageId", msg.MessageID),
		)
		return nil
	case errors.Is(err, domain.ErrNotFound):
		w.metrics.IncTrackingUpdate("unknown_shipment")
		logger.Warn("tracking update for unknown shipment, skipping",
			zap.String("trackingNumber", msg.TrackingNumber),
			zap.String("messageId", msg.MessageID),
		)
		return nil
	case errors.Is(err, domain.ErrValidation):
		w.metrics.IncTrackingUpdate("invalid")
		logger.Warn("invalid tracking update, skipping",
			zap.String("trackingNumber", msg.TrackingNumber),
			zap.String("messageId", msg.MessageID),
			zap.Error(err),
		)
		return nil
	default:
		w.metrics.IncTrackingUpdate("error")
		return fmt.Errorf("failed to apply tracking update for %q: %w", msg.TrackingNumber, err)
	}
}
