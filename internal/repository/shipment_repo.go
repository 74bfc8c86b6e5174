package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/outbound-shipments/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultListPageSize = 50
	maxListPageSize     = 100
)

type ListParams struct {
	Status         *string
	Carrier        *string
	TrackingStatus *string
	From           *time.Time
	To             *time.Time
	Page           int
	PageSize       int
}

type ShipmentRepository interface {
	Create(ctx context.Context, s *domain.OutboundShipment) error
	GetByID(ctx context.Context, id int32) (*domain.OutboundShipment, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.OutboundShipment, error)
	List(ctx context.Context, params ListParams) ([]domain.OutboundShipment, int64, error)
	Update(ctx context.Context, s *domain.OutboundShipment) error
	UpdateFlags(ctx context.Context, id int32, flags domain.FlagsUpdate) (*domain.OutboundShipment, error)
	ApplyTrackingUpdate(ctx context.Context, trackingNumber string, update domain.TrackingUpdate) (*domain.OutboundShipment, error)
	ListForAirtableSync(ctx context.Context, afterID int32, limit int) ([]AirtableSyncCandidate, error)
	MarkAirtableSynced(ctx context.Context, id int32, recordID string, fingerprint string) error
}

// AirtableSyncCandidate is a shipment with the fingerprint of the fields last
// pushed to Airtable. Fingerprint is empty when nothing was pushed yet.
type AirtableSyncCandidate struct {
	Shipment    domain.OutboundShipment
	Fingerprint string
}

type GormShipmentRepo struct {
	db *gorm.DB
}

func NewGormShipmentRepo(db *gorm.DB) *GormShipmentRepo {
	return &GormShipmentRepo{db: db}
}

func (r *GormShipmentRepo) Create(ctx context.Context, s *domain.OutboundShipment) error {
	if s == nil {
		return fmt.Errorf("%w: shipment is required", domain.ErrValidation)
	}

	model := shipmentModelFromDomain(s)
	model.ID = 0
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return TranslateError(err)
	}

	*s = *shipmentModelToDomain(model)
	return nil
}

func (r *GormShipmentRepo) GetByID(ctx context.Context, id int32) (*domain.OutboundShipment, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *GormShipmentRepo) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.OutboundShipment, error) {
	return r.first(r.db.WithContext(ctx).Where("tracking_number = ?", trackingNumber))
}

func (r *GormShipmentRepo) List(ctx context.Context, params ListParams) ([]domain.OutboundShipment, int64, error) {
	query := r.db.WithContext(ctx).Model(&OutboundShipmentModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Carrier != nil {
		query = query.Where("carrier = ?", *params.Carrier)
	}
	if params.TrackingStatus != nil {
		query = query.Where("tracking_status = ?", *params.TrackingStatus)
	}
	if params.From != nil {
		query = query.Where("created_time >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_time <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = defaultListPageSize
	}
	pageSize = min(pageSize, maxListPageSize)

	var models []OutboundShipmentModel
	err := query.
		Order("created_time DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	return shipmentModelsToDomain(models), total, nil
}

// Update writes every mutable column of s. The id column is never written.
func (r *GormShipmentRepo) Update(ctx context.Context, s *domain.OutboundShipment) error {
	if s == nil {
		return fmt.Errorf("%w: shipment is required", domain.ErrValidation)
	}

	model := shipmentModelFromDomain(s)
	result := r.db.WithContext(ctx).
		Model(&OutboundShipmentModel{}).
		Where("id = ?", s.ID).
		Select(mutableColumns).
		Updates(model)
	if result.Error != nil {
		return TranslateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	updated, err := r.GetByID(ctx, s.ID)
	if err != nil {
		return err
	}
	*s = *updated
	return nil
}

func (r *GormShipmentRepo) UpdateFlags(ctx context.Context, id int32, flags domain.FlagsUpdate) (*domain.OutboundShipment, error) {
	fields := map[string]any{}
	if flags.ReprintLabel != nil {
		fields["reprint_label"] = *flags.ReprintLabel
	}
	if flags.ResendEmailToRecipient != nil {
		fields["resend_email_to_recipient"] = *flags.ResendEmailToRecipient
	}
	if flags.SchedulePickup != nil {
		fields["schedule_pickup"] = *flags.SchedulePickup
	}
	if flags.PickupDate != nil {
		fields["pickup_date"] = *flags.PickupDate
	}
	if flags.ClearPickupDate {
		fields["pickup_date"] = nil
	}

	return r.updateFields(ctx, "id = ?", id, fields)
}

func (r *GormShipmentRepo) ApplyTrackingUpdate(
	ctx context.Context,
	trackingNumber string,
	update domain.TrackingUpdate,
) (*domain.OutboundShipment, error) {
	fields := map[string]any{}
	if update.Status != nil {
		fields["status"] = *update.Status
	}
	if update.TrackingStatus != nil {
		fields["tracking_status"] = *update.TrackingStatus
	}
	if update.TrackingLink != nil {
		fields["tracking_link"] = *update.TrackingLink
	}
	if update.ShippedTime != nil {
		fields["shipped_time"] = *update.ShippedTime
	}
	if update.DeliveredTime != nil {
		fields["delivered_time"] = *update.DeliveredTime
	}
	if update.ETA != nil {
		fields["eta"] = *update.ETA
	}
	if update.Messages != nil {
		fields["messages"] = *update.Messages
	}

	return r.updateFields(ctx, "tracking_number = ?", trackingNumber, fields)
}

// ListForAirtableSync pages through all shipments in id order, starting after
// afterID, together with their last pushed fingerprint.
func (r *GormShipmentRepo) ListForAirtableSync(ctx context.Context, afterID int32, limit int) ([]AirtableSyncCandidate, error) {
	if limit < 1 {
		limit = defaultListPageSize
	}

	var models []OutboundShipmentModel
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}

	ids := make([]int32, 0, len(models))
	for i := range models {
		ids = append(ids, models[i].ID)
	}

	var states []AirtableSyncStateModel
	if err := r.db.WithContext(ctx).Where("shipment_id IN ?", ids).Find(&states).Error; err != nil {
		return nil, err
	}
	fingerprints := make(map[int32]string, len(states))
	for _, state := range states {
		fingerprints[state.ShipmentID] = state.Fingerprint
	}

	candidates := make([]AirtableSyncCandidate, 0, len(models))
	for i := range models {
		candidates = append(candidates, AirtableSyncCandidate{
			Shipment:    *shipmentModelToDomain(&models[i]),
			Fingerprint: fingerprints[models[i].ID],
		})
	}
	return candidates, nil
}

// MarkAirtableSynced stores the Airtable record id of a shipment and the
// fingerprint of what was pushed, in one transaction.
func (r *GormShipmentRepo) MarkAirtableSynced(ctx context.Context, id int32, recordID string, fingerprint string) error {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return fmt.Errorf("%w: airtable record id is required", domain.ErrValidation)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&OutboundShipmentModel{}).
			Where("id = ?", id).
			Update("airtable_record_id", recordID)
		if result.Error != nil {
			return TranslateError(result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		state := AirtableSyncStateModel{
			ShipmentID:  id,
			Fingerprint: fingerprint,
			SyncedAt:    time.Now().UTC(),
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shipment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"fingerprint", "synced_at"}),
		}).Create(&state).Error
		return TranslateError(err)
	})
}

func (r *GormShipmentRepo) first(query *gorm.DB) (*domain.OutboundShipment, error) {
	var model OutboundShipmentModel
	err := query.First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return shipmentModelToDomain(&model), nil
}

// updateFields applies fields to the single row matched by cond and returns
// the row as stored afterwards.
func (r *GormShipmentRepo) updateFields(ctx context.Context, cond string, arg any, fields map[string]any) (*domain.OutboundShipment, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", domain.ErrValidation)
	}

	var updated *domain.OutboundShipment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&OutboundShipmentModel{}).Where(cond, arg).Updates(fields)
		if result.Error != nil {
			return TranslateError(result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		var err error
		updated, err = r.first(tx.Where(cond, arg))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
