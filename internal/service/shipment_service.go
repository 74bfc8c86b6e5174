package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/outbound-shipments/internal/domain"
	"github.com/kursadbilgin/outbound-shipments/internal/observability"
	"github.com/kursadbilgin/outbound-shipments/internal/queue"
	"github.com/kursadbilgin/outbound-shipments/internal/repository"
	"go.uber.org/zap"
)

// ShipmentCache is a read-through cache for tracking number lookups.
type ShipmentCache interface {
	Get(ctx context.Context, trackingNumber string) (*domain.OutboundShipment, bool, error)
	Set(ctx context.Context, s *domain.OutboundShipment) error
	Delete(ctx context.Context, trackingNumbers ...string) error
}

type ShipmentService struct {
	shipments repository.ShipmentRepository
	cache     ShipmentCache
	publisher queue.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewShipmentService wires the shipment use cases. cache and publisher are
// optional; without them lookups always hit the database and no events are sent.
func NewShipmentService(
	shipments repository.ShipmentRepository,
	cache ShipmentCache,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*ShipmentService, error) {
	if shipments == nil {
		return nil, fmt.Errorf("shipment repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ShipmentService{
		shipments: shipments,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}, nil
}

func (s *ShipmentService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *ShipmentService) Create(ctx context.Context, shipment *domain.OutboundShipment) (*domain.OutboundShipment, error) {
	if err := s.prepareShipment(ctx, shipment); err != nil {
		return nil, err
	}
	shipment.ID = 0

	if err := s.shipments.Create(ctx, shipment); err != nil {
		return nil, err
	}

	s.metrics.IncShipmentCreated(shipment.Carrier)
	s.publish(ctx, queue.EventShipmentCreated, shipment)

	return shipment, nil
}

func (s *ShipmentService) GetByID(ctx context.Context, id int32) (*domain.OutboundShipment, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: shipment id must be positive", domain.ErrValidation)
	}
	return s.shipments.GetByID(ctx, id)
}

func (s *ShipmentService) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.OutboundShipment, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, fmt.Errorf("%w: tracking number is required", domain.ErrValidation)
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, trackingNumber)
		switch {
		case err != nil:
			s.metrics.IncCacheResult("error")
			observability.WithContextLogger(s.logger, ctx).Warn("shipment cache read failed",
				zap.String("trackingNumber", trackingNumber),
				zap.Error(err),
			)
		case ok:
			s.metrics.IncCacheResult("hit")
			return cached, nil
		default:
			s.metrics.IncCacheResult("miss")
		}
	}

	shipment, err := s.shipments.GetByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, shipment); err != nil {
			observability.WithContextLogger(s.logger, ctx).Warn("shipment cache write failed",
				zap.String("trackingNumber", trackingNumber),
				zap.Error(err),
			)
		}
	}

	return shipment, nil
}

func (s *ShipmentService) List(
	ctx context.Context,
	params repository.ListParams,
) ([]domain.OutboundShipment, int64, error) {
	if params.From != nil && params.To != nil && params.From.After(*params.To) {
		return nil, 0, fmt.Errorf("%w: from must not be after to", domain.ErrValidation)
	}
	return s.shipments.List(ctx, params)
}

// Update replaces every mutable column of the shipment identified by
// shipment.ID. The id itself never changes.
func (s *ShipmentService) Update(ctx context.Context, shipment *domain.OutboundShipment) (*domain.OutboundShipment, error) {
	if shipment == nil {
		return nil, fmt.Errorf("%w: shipment is required", domain.ErrValidation)
	}
	if shipment.ID <= 0 {
		return nil, fmt.Errorf("%w: shipment id must be positive", domain.ErrValidation)
	}
	if err := s.prepareShipment(ctx, shipment); err != nil {
		return nil, err
	}

	existing, err := s.shipments.GetByID(ctx, shipment.ID)
	if err != nil {
		return nil, err
	}

	if err := s.shipments.Update(ctx, shipment); err != nil {
		return nil, err
	}

	s.evict(ctx, existing.TrackingNumber, shipment.TrackingNumber)
	s.publish(ctx, queue.EventShipmentUpdated, shipment)

	return shipment, nil
}

func (s *ShipmentService) UpdateFlags(ctx context.Context, id int32, flags domain.FlagsUpdate) (*domain.OutboundShipment, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: shipment id must be positive", domain.ErrValidation)
	}
	if flags.IsEmpty() {
		return nil, fmt.Errorf("%w: at least one flag is required", domain.ErrValidation)
	}
	if err := flags.Validate(); err != nil {
		return nil, err
	}

	updated, err := s.shipments.UpdateFlags(ctx, id, flags)
	if err != nil {
		return nil, err
	}

	s.evict(ctx, updated.TrackingNumber)
	s.publish(ctx, queue.EventShipmentUpdated, updated)

	return updated, nil
}

// ApplyTrackingUpdate writes carrier-reported progress onto the shipment with
// the given tracking number. Only the fields present in update change.
func (s *ShipmentService) ApplyTrackingUpdate(
	ctx context.Context,
	trackingNumber string,
	update domain.TrackingUpdate,
) (*domain.OutboundShipment, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, fmt.Errorf("%w: tracking number is required", domain.ErrValidation)
	}
	if update.IsEmpty() {
		return nil, fmt.Errorf("%w: tracking update carries no fields", domain.ErrValidation)
	}

	updated, err := s.shipments.ApplyTrackingUpdate(ctx, trackingNumber, update)
	if err != nil {
		return nil, err
	}

	s.evict(ctx, trackingNumber)
	s.publish(ctx, queue.EventShipmentTrackingUpdated, updated)

	return updated, nil
}

// publish emits a lifecycle event. The row is already committed, so a broker
// failure is logged and counted instead of failing the call.
func (s *ShipmentService) publish(ctx context.Context, eventType queue.EventType, shipment *domain.OutboundShipment) {
	if s.publisher == nil || shipment == nil {
		return
	}

	correlationID, _ := observability.CorrelationIDFromContext(ctx)
	event := queue.NewShipmentEvent(eventType, shipment, correlationID)

	if err := s.publisher.Publish(ctx, queue.EventsQueue, event); err != nil {
		s.metrics.IncEventPublished(string(eventType), "error")
		observability.WithContextLogger(s.logger, ctx).Error("failed to publish shipment event",
			zap.String("eventType", string(eventType)),
			zap.Int32("shipmentId", shipment.ID),
			zap.String("trackingNumber", shipment.TrackingNumber),
			zap.Error(err),
		)
		return
	}
	s.metrics.IncEventPublished(string(eventType), "ok")
}

func (s *ShipmentService) evict(ctx context.Context, trackingNumbers ...string) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Delete(ctx, uniqueNonEmpty(trackingNumbers)...); err != nil {
		observability.WithContextLogger(s.logger, ctx).Warn("shipment cache eviction failed",
			zap.Strings("trackingNumbers", trackingNumbers),
			zap.Error(err),
		)
	}
}

// prepareShipment normalises caller input and validates it. Unknown status
// values are stored as given but logged, since they usually mean a typo.
func (s *ShipmentService) prepareShipment(ctx context.Context, shipment *domain.OutboundShipment) error {
	if shipment == nil {
		return fmt.Errorf("%w: shipment is required", domain.ErrValidation)
	}

	shipment.Name = strings.TrimSpace(shipment.Name)
	shipment.TrackingNumber = strings.TrimSpace(shipment.TrackingNumber)
	shipment.Carrier = strings.TrimSpace(shipment.Carrier)
	shipment.Status = strings.TrimSpace(shipment.Status)
	shipment.TrackingStatus = strings.TrimSpace(shipment.TrackingStatus)
	shipment.Email = strings.TrimSpace(shipment.Email)
	shipment.CreatedTime = shipment.CreatedTime.UTC()

	if err := shipment.Validate(); err != nil {
		return err
	}

	logger := observability.WithContextLogger(s.logger, ctx)
	if shipment.Status != "" && !domain.IsKnownStatus(shipment.Status) {
		logger.Warn("shipment has unrecognised status",
			zap.String("trackingNumber", shipment.TrackingNumber),
			zap.String("status", shipment.Status),
		)
	}
	if shipment.TrackingStatus != "" && !domain.IsKnownTrackingStatus(shipment.TrackingStatus) {
		logger.Warn("shipment has unrecognised tracking status",
			zap.String("trackingNumber", shipment.TrackingNumber),
			zap.String("trackingStatus", shipment.TrackingStatus),
		)
	}
	return nil
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
