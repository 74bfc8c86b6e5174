package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/outbound-shipments/internal/airtable"
	"github.com/kursadbilgin/outbound-shipments/internal/domain"
	"github.com/kursadbilgin/outbound-shipments/internal/observability"
	"github.com/kursadbilgin/outbound-shipments/internal/ratelimit"
	"github.com/kursadbilgin/outbound-shipments/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultAirtableSyncInterval = time.Minute
	defaultAirtableSyncBatch    = 50
	airtableRateLimitKey        = "airtable"
)

// AirtableSync periodically mirrors shipments into an Airtable table. New rows
// are created, changed rows are patched in place.
type AirtableSync struct {
	shipments repository.ShipmentRepository
	records   airtable.RecordStore
	limiter   ratelimit.RateLimiter
	logger    *zap.Logger
	metrics   *observability.Metrics
	interval  time.Duration
	batch     int
	now       func() time.Time
}

// NewAirtableSync builds the sync loop. limiter may be nil.
func NewAirtableSync(
	shipments repository.ShipmentRepository,
	records airtable.RecordStore,
	limiter ratelimit.RateLimiter,
	interval time.Duration,
	batch int,
	logger *zap.Logger,
) (*AirtableSync, error) {
	if shipments == nil {
		return nil, fmt.Errorf("shipment repository is required")
	}
	if records == nil {
		return nil, fmt.Errorf("airtable client is required")
	}
	if interval <= 0 {
		interval = defaultAirtableSyncInterval
	}
	if batch <= 0 {
		batch = defaultAirtableSyncBatch
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AirtableSync{
		shipments: shipments,
		records:   records,
		limiter:   limiter,
		logger:    logger,
		interval:  interval,
		batch:     batch,
		now:       time.Now,
	}, nil
}

func (s *AirtableSync) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *AirtableSync) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.syncPending(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("airtable initial sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.syncPending(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("airtable sync failed", zap.Error(err))
			}
		}
	}
}

// syncPending walks every shipment once by id. Rows without an Airtable
// record are adopted or created, synced rows whose fields changed since the
// last push are patched. Rows Airtable rejects are logged and left for the
// next pass; a transient failure ends the pass early.
func (s *AirtableSync) syncPending(ctx context.Context) (int, error) {
	pushed := 0
	var afterID int32

	for {
		candidates, err := s.shipments.ListForAirtableSync(ctx, afterID, s.batch)
		if err != nil {
			return pushed, fmt.Errorf("failed to fetch shipments for airtable sync: %w", err)
		}

		for i := range candidates {
			if err := ctx.Err(); err != nil {
				return pushed, err
			}
			candidate := candidates[i]
			shipment := candidate.Shipment
			afterID = shipment.ID

			fields := airtable.ShipmentFields(&shipment)
			fingerprint, err := airtable.Fingerprint(fields)
			if err != nil {
				s.metrics.IncAirtableSync("error")
				s.logger.Error("failed to fingerprint airtable fields",
					zap.Int32("shipmentId", shipment.ID),
					zap.Error(err),
				)
				continue
			}
			if shipment.IsSyncedToAirtable() && fingerprint == candidate.Fingerprint {
				continue
			}

			recordID, result, err := s.push(ctx, &shipment, fields)
			if err != nil {
				if errors.Is(err, errLimiter) {
					return pushed, err
				}
				if airtable.IsTransient(err) {
					s.metrics.IncAirtableSync("transient_error")
					s.logger.Warn("airtable unavailable, pausing sync",
						zap.Int32("shipmentId", shipment.ID),
						zap.Error(err),
					)
					return pushed, nil
				}

				s.metrics.IncAirtableSync("permanent_error")
				s.logger.Error("airtable rejected shipment, skipping",
					zap.Int32("shipmentId", shipment.ID),
					zap.String("trackingNumber", shipment.TrackingNumber),
					zap.Error(err),
				)
				continue
			}

			if err := s.shipments.MarkAirtableSynced(ctx, shipment.ID, recordID, fingerprint); err != nil {
				s.metrics.IncAirtableSync("error")
				s.logger.Error("failed to store airtable sync state",
					zap.Int32("shipmentId", shipment.ID),
					zap.String("recordId", recordID),
					zap.Error(err),
				)
				continue
			}

			s.metrics.IncAirtableSync(result)
			pushed++
		}

		if len(candidates) < s.batch {
			return pushed, nil
		}
	}
}

var errLimiter = errors.New("rate limiter wait failed")

// push sends one shipment to Airtable and returns the record id it now maps
// to. An unsynced shipment is first looked up by tracking number so a record
// left behind by an interrupted pass is adopted instead of duplicated.
func (s *AirtableSync) push(ctx context.Context, shipment *domain.OutboundShipment, fields airtable.Fields) (string, string, error) {
	if shipment.IsSyncedToAirtable() {
		if err := s.wait(ctx); err != nil {
			return "", "", err
		}
		start := s.now()
		err := s.records.UpdateRecord(ctx, shipment.AirtableRecordID, fields)
		s.metrics.ObserveAirtableRequest(s.now().Sub(start))
		if err != nil {
			return "", "", err
		}
		return shipment.AirtableRecordID, "updated", nil
	}

	if err := s.wait(ctx); err != nil {
		return "", "", err
	}
	start := s.now()
	recordID, found, err := s.records.FindRecordID(ctx, airtable.ColumnTrackingNumber, shipment.TrackingNumber)
	s.metrics.ObserveAirtableRequest(s.now().Sub(start))
	if err != nil {
		return "", "", err
	}
	if found {
		return recordID, "adopted", nil
	}

	if err := s.wait(ctx); err != nil {
		return "", "", err
	}
	start = s.now()
	recordID, err = s.records.CreateRecord(ctx, fields)
	s.metrics.ObserveAirtableRequest(s.now().Sub(start))
	if err != nil {
		return "", "", err
	}
	return recordID, "created", nil
}

func (s *AirtableSync) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx, airtableRateLimitKey); err != nil {
		return fmt.Errorf("%w: %w", errLimiter, err)
	}
	return nil
}
