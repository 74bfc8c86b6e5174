package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/outbound-shipments/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultCacheTTL   = 5 * time.Minute
	shipmentKeyPrefix = "shipment:tracking:"
)

// ShipmentCache stores shipments as JSON keyed by tracking number.
type ShipmentCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewShipmentCache(client *goredis.Client, ttl time.Duration) (*ShipmentCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return &ShipmentCache{client: client, ttl: ttl}, nil
}

// Get returns the cached shipment. A miss reports false with a nil error.
func (c *ShipmentCache) Get(ctx context.Context, trackingNumber string) (*domain.OutboundShipment, bool, error) {
	payload, err := c.client.Get(ctx, shipmentKey(trackingNumber)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read shipment cache: %w", err)
	}

	var s domain.OutboundShipment
	if err := json.Unmarshal(payload, &s); err != nil {
		// Drop entries written by an incompatible version.
		_ = c.client.Del(ctx, shipmentKey(trackingNumber)).Err()
		return nil, false, nil
	}

	return &s, true, nil
}

func (c *ShipmentCache) Set(ctx context.Context, s *domain.OutboundShipment) error {
	if s == nil || strings.TrimSpace(s.TrackingNumber) == "" {
		return fmt.Errorf("shipment with tracking number is required")
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal shipment: %w", err)
	}

	if err := c.client.Set(ctx, shipmentKey(s.TrackingNumber), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write shipment cache: %w", err)
	}
	return nil
}

func (c *ShipmentCache) Delete(ctx context.Context, trackingNumbers ...string) error {
	if len(trackingNumbers) == 0 {
		return nil
	}

	keys := make([]string, 0, len(trackingNumbers))
	for _, tn := range trackingNumbers {
		keys = append(keys, shipmentKey(tn))
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to evict shipment cache: %w", err)
	}
	return nil
}

func shipmentKey(trackingNumber string) string {
	return shipmentKeyPrefix + strings.TrimSpace(trackingNumber)
}
