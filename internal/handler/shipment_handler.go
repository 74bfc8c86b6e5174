package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/outbound-shipments/internal/domain"
	"github.com/kursadbilgin/outbound-shipments/internal/observability"
	"github.com/kursadbilgin/outbound-shipments/internal/repository"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100

	pickupDateLayout = "2006-01-02"
)

type ShipmentService interface {
	Create(ctx context.Context, s *domain.OutboundShipment) (*domain.OutboundShipment, error)
	GetByID(ctx context.Context, id int32) (*domain.OutboundShipment, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.OutboundShipment, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.OutboundShipment, int64, error)
	Update(ctx context.Context, s *domain.OutboundShipment) (*domain.OutboundShipment, error)
	UpdateFlags(ctx context.Context, id int32, flags domain.FlagsUpdate) (*domain.OutboundShipment, error)
	ApplyTrackingUpdate(ctx context.Context, trackingNumber string, update domain.TrackingUpdate) (*domain.OutboundShipment, error)
}

type ShipmentHandler struct {
	service  ShipmentService
	validate *validator.Validate
}

func NewShipmentHandler(service ShipmentService) (*ShipmentHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("shipment service is required")
	}
	return &ShipmentHandler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

func RegisterShipmentRoutes(router fiber.Router, service ShipmentService) error {
	h, err := NewShipmentHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/shipments", h.CreateShipment)
	v1.Get("/shipments", h.ListShipments)
	v1.Get("/shipments/tracking/:trackingNumber", h.GetShipmentByTrackingNumber)
	v1.Post("/shipments/tracking/:trackingNumber/updates", h.ApplyTrackingUpdate)
	v1.Get("/shipments/:id", h.GetShipment)
	v1.Put("/shipments/:id", h.UpdateShipment)
	v1.Patch("/shipments/:id/flags", h.UpdateFlags)

	return nil
}

type shipmentRequest struct {
	Name     string `json:"name" validate:"required"`
	Contents string `json:"contents"`

	Street1          string `json:"street1"`
	Street2          string `json:"street2"`
	City             string `json:"city"`
	State            string `json:"state"`
	Zipcode          string `json:"zipcode"`
	Country          string `json:"country"`
	AddressFormatted string `json:"addressFormatted"`

	Email string `json:"email"`
	Phone string `json:"phone"`

	Status            string `json:"status"`
	Carrier           string `json:"carrier"`
	TrackingNumber    string `json:"trackingNumber" validate:"required"`
	TrackingLink      string `json:"trackingLink"`
	OxideTrackingLink string `json:"oxideTrackingLink"`
	TrackingStatus    string `json:"trackingStatus"`
	LabelLink         string `json:"labelLink"`

	ReprintLabel           bool    `json:"reprintLabel"`
	ResendEmailToRecipient bool    `json:"resendEmailToRecipient"`
	SchedulePickup         bool    `json:"schedulePickup"`
	Cost                   float64 `json:"cost"`
	PickupDate             *string `json:"pickupDate,omitempty"`

	CreatedTime   *time.Time `json:"createdTime" validate:"required"`
	ShippedTime   *time.Time `json:"shippedTime,omitempty"`
	DeliveredTime *time.Time `json:"deliveredTime,omitempty"`
	ETA           *time.Time `json:"eta,omitempty"`

	ShippoID     string `json:"shippoId"`
	Messages     string `json:"messages"`
	Notes        string `json:"notes"`
	GeocodeCache string `json:"geocodeCache"`
}

type flagsRequest struct {
	ReprintLabel           *bool   `json:"reprintLabel,omitempty"`
	ResendEmailToRecipient *bool   `json:"resendEmailToRecipient,omitempty"`
	SchedulePickup         *bool   `json:"schedulePickup,omitempty"`
	PickupDate             *string `json:"pickupDate,omitempty"`
	ClearPickupDate        bool    `json:"clearPickupDate"`
}

type trackingUpdateRequest struct {
	Status         *string    `json:"status,omitempty"`
	TrackingStatus *string    `json:"trackingStatus,omitempty"`
	TrackingLink   *string    `json:"trackingLink,omitempty" validate:"omitempty,url"`
	ShippedTime    *time.Time `json:"shippedTime,omitempty"`
	DeliveredTime  *time.Time `json:"deliveredTime,omitempty"`
	ETA            *time.Time `json:"eta,omitempty"`
	Messages       *string    `json:"messages,omitempty"`
}

type shipmentResponse struct {
	ID int32 `json:"id"`

	Name     string `json:"name"`
	Contents string `json:"contents"`

	Street1          string `json:"street1"`
	Street2          string `json:"street2"`
	City             string `json:"city"`
	State            string `json:"state"`
	Zipcode          string `json:"zipcode"`
	Country          string `json:"country"`
	AddressFormatted string `json:"addressFormatted"`

	Email string `json:"email"`
	Phone string `json:"phone"`

	Status            string `json:"status"`
	Carrier           string `json:"carrier"`
	TrackingNumber    string `json:"trackingNumber"`
	TrackingLink      string `json:"trackingLink"`
	OxideTrackingLink string `json:"oxideTrackingLink"`
	TrackingStatus    string `json:"trackingStatus"`
	LabelLink         string `json:"labelLink"`

	ReprintLabel           bool    `json:"reprintLabel"`
	ResendEmailToRecipient bool    `json:"resendEmailToRecipient"`
	SchedulePickup         bool    `json:"schedulePickup"`
	Cost                   float64 `json:"cost"`
	PickupDate             *string `json:"pickupDate,omitempty"`

	CreatedTime   time.Time  `json:"createdTime"`
	ShippedTime   *time.Time `json:"shippedTime,omitempty"`
	DeliveredTime *time.Time `json:"deliveredTime,omitempty"`
	ETA           *time.Time `json:"eta,omitempty"`

	ShippoID         string `json:"shippoId"`
	Messages         string `json:"messages"`
	Notes            string `json:"notes"`
	GeocodeCache     string `json:"geocodeCache"`
	AirtableRecordID string `json:"airtableRecordId"`
}

type listShipmentsResponse struct {
	Data []shipmentResponse `json:"data"`
	Meta listMeta           `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *ShipmentHandler) CreateShipment(c *fiber.Ctx) error {
	shipment, err := h.parseShipment(c)
	if err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.Create(requestContext(c), shipment)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toShipmentResponse(created))
}

func (h *ShipmentHandler) GetShipment(c *fiber.Ctx) error {
	id, err := parseShipmentID(c)
	if err != nil {
		return toHTTPError(err)
	}

	shipment, err := h.service.GetByID(requestContext(c), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toShipmentResponse(shipment))
}

func (h *ShipmentHandler) GetShipmentByTrackingNumber(c *fiber.Ctx) error {
	trackingNumber := strings.TrimSpace(c.Params("trackingNumber"))
	shipment, err := h.service.GetByTrackingNumber(requestContext(c), trackingNumber)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toShipmentResponse(shipment))
}

func (h *ShipmentHandler) ListShipments(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	shipments, total, err := h.service.List(requestContext(c), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listShipmentsResponse{
		Data: toShipmentResponses(shipments),
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

// UpdateShipment replaces every mutable column of the shipment. The id comes
// from the path; an id in the body is ignored.
func (h *ShipmentHandler) UpdateShipment(c *fiber.Ctx) error {
	id, err := parseShipmentID(c)
	if err != nil {
		return toHTTPError(err)
	}

	shipment, err := h.parseShipment(c)
	if err != nil {
		return toHTTPError(err)
	}
	shipment.ID = id

	updated, err := h.service.Update(requestContext(c), shipment)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toShipmentResponse(updated))
}

func (h *ShipmentHandler) UpdateFlags(c *fiber.Ctx) error {
	id, err := parseShipmentID(c)
	if err != nil {
		return toHTTPError(err)
	}

	var req flagsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	pickupDate, err := parsePickupDate(req.PickupDate)
	if err != nil {
		return toHTTPError(err)
	}

	updated, err := h.service.UpdateFlags(requestContext(c), id, domain.FlagsUpdate{
		ReprintLabel:           req.ReprintLabel,
		ResendEmailToRecipient: req.ResendEmailToRecipient,
		SchedulePickup:         req.SchedulePickup,
		PickupDate:             pickupDate,
		ClearPickupDate:        req.ClearPickupDate,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toShipmentResponse(updated))
}

func (h *ShipmentHandler) ApplyTrackingUpdate(c *fiber.Ctx) error {
	trackingNumber := strings.TrimSpace(c.Params("trackingNumber"))

	var req trackingUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validateStruct(req); err != nil {
		return toHTTPError(err)
	}

	updated, err := h.service.ApplyTrackingUpdate(requestContext(c), trackingNumber, domain.TrackingUpdate{
		Status:         req.Status,
		TrackingStatus: req.TrackingStatus,
		TrackingLink:   req.TrackingLink,
		ShippedTime:    req.ShippedTime,
		DeliveredTime:  req.DeliveredTime,
		ETA:            req.ETA,
		Messages:       req.Messages,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toShipmentResponse(updated))
}

func (h *ShipmentHandler) parseShipment(c *fiber.Ctx) (*domain.OutboundShipment, error) {
	var req shipmentRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}
	if err := h.validateStruct(req); err != nil {
		return nil, err
	}

	pickupDate, err := parsePickupDate(req.PickupDate)
	if err != nil {
		return nil, err
	}

	return &domain.OutboundShipment{
		Name:                   req.Name,
		Contents:               req.Contents,
		Street1:                req.Street1,
		Street2:                req.Street2,
		City:                   req.City,
		State:                  req.State,
		Zipcode:                req.Zipcode,
		Country:                req.Country,
		AddressFormatted:       req.AddressFormatted,
		Email:                  req.Email,
		Phone:                  req.Phone,
		Status:                 req.Status,
		Carrier:                req.Carrier,
		TrackingNumber:         req.TrackingNumber,
		TrackingLink:           req.TrackingLink,
		OxideTrackingLink:      req.OxideTrackingLink,
		TrackingStatus:         req.TrackingStatus,
		LabelLink:              req.LabelLink,
		ReprintLabel:           req.ReprintLabel,
		ResendEmailToRecipient: req.ResendEmailToRecipient,
		SchedulePickup:         req.SchedulePickup,
		Cost:                   req.Cost,
		PickupDate:             pickupDate,
		CreatedTime:            *req.CreatedTime,
		ShippedTime:            req.ShippedTime,
		DeliveredTime:          req.DeliveredTime,
		ETA:                    req.ETA,
		ShippoID:               req.ShippoID,
		Messages:               req.Messages,
		Notes:                  req.Notes,
		GeocodeCache:           req.GeocodeCache,
	}, nil
}

// validateStruct runs the struct tags and reports the first failing field as
// a validation error.
func (h *ShipmentHandler) validateStruct(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Errorf("%w: %s failed %q validation", domain.ErrValidation, lowerFirst(fe.Field()), fe.Tag())
	}
	return fmt.Errorf("%w: %v", domain.ErrValidation, err)
}

func parseShipmentID(c *fiber.Ctx) (int32, error) {
	raw := strings.TrimSpace(c.Params("id"))
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", domain.ErrValidation)
	}
	return int32(id), nil
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	params.Status = optionalQuery(c, "status")
	params.Carrier = optionalQuery(c, "carrier")
	params.TrackingStatus = optionalQuery(c, "trackingStatus")

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil
	}
	return &value
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

// parsePickupDate accepts a calendar date or a full RFC3339 timestamp.
func parsePickupDate(value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}

	if t, err := time.Parse(pickupDateLayout, trimmed); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: pickupDate must be YYYY-MM-DD", domain.ErrValidation)
	}
	return &t, nil
}

// requestContext carries the request's correlation id into service calls so
// published events and logs can be tied back to the request.
func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if correlationID := requestCorrelationID(c); correlationID != "" {
		ctx = observability.WithCorrelationID(ctx, correlationID)
	}
	return ctx
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toShipmentResponses(shipments []domain.OutboundShipment) []shipmentResponse {
	responses := make([]shipmentResponse, 0, len(shipments))
	for i := range shipments {
		responses = append(responses, toShipmentResponse(&shipments[i]))
	}
	return responses
}

func toShipmentResponse(s *domain.OutboundShipment) shipmentResponse {
	if s == nil {
		return shipmentResponse{}
	}

	var pickupDate *string
	if s.PickupDate != nil {
		formatted := s.PickupDate.Format(pickupDateLayout)
		pickupDate = &formatted
	}

	return shipmentResponse{
		ID:                     s.ID,
		Name:                   s.Name,
		Contents:               s.Contents,
		Street1:                s.Street1,
		Street2:                s.Street2,
		City:                   s.City,
		State:                  s.State,
		Zipcode:                s.Zipcode,
		Country:                s.Country,
		AddressFormatted:       s.AddressFormatted,
		Email:                  s.Email,
		Phone:                  s.Phone,
		Status:                 s.Status,
		Carrier:                s.Carrier,
		TrackingNumber:         s.TrackingNumber,
		TrackingLink:           s.TrackingLink,
		OxideTrackingLink:      s.OxideTrackingLink,
		TrackingStatus:         s.TrackingStatus,
		LabelLink:              s.LabelLink,
		ReprintLabel:           s.ReprintLabel,
		ResendEmailToRecipient: s.ResendEmailToRecipient,
		SchedulePickup:         s.SchedulePickup,
		Cost:                   s.Cost,
		PickupDate:             pickupDate,
		CreatedTime:            s.CreatedTime,
		ShippedTime:            s.ShippedTime,
		DeliveredTime:          s.DeliveredTime,
		ETA:                    s.ETA,
		ShippoID:               s.ShippoID,
		Messages:               s.Messages,
		Notes:                  s.Notes,
		GeocodeCache:           s.GeocodeCache,
		AirtableRecordID:       s.AirtableRecordID,
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
