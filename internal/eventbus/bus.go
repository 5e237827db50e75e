// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/fleetlink/internal/metrics"
	"github.com/tomtom215/fleetlink/internal/models"
)

// Topics.
const (
	TopicLocationUpdated = "fleet.location.updated"
	TopicAlertRaised     = "fleet.alert.raised"
)

// Metadata keys set on every message.
const (
	MetaProvider  = "provider"
	MetaVehicleID = "vehicle_id"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("event bus is closed")

// ErrSubscribeUnsupported is returned by Subscribe on publish-only transports.
var ErrSubscribeUnsupported = errors.New("event bus transport does not support subscribe")

// Bus publishes fleet events to Watermill.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	breaker    *gobreaker.CircuitBreaker[struct{}]
	// dedupe sets Nats-Msg-Id so JetStream drops duplicate alerts.
	dedupe bool

	mu     sync.RWMutex
	closed bool
}

// NewInMemory returns a bus over a Watermill gochannel. Messages published
// while nobody subscribes are discarded.
func NewInMemory(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = NewLogger()
	}
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
	return &Bus{publisher: ch, subscriber: ch}
}

// PublishLocation publishes a persisted reading.
func (b *Bus) PublishLocation(ctx context.Context, loc *models.VehicleLocation) error {
	msg, err := newMessage(watermill.NewUUID(), loc)
	if err != nil {
		return err
	}
	msg.Metadata.Set(MetaProvider, loc.Provider)
	msg.Metadata.Set(MetaVehicleID, loc.VehicleID)
	return b.publish(ctx, TopicLocationUpdated, msg)
}

// PublishAlert publishes a newly inserted alert. The message id is the alert id.
func (b *Bus) PublishAlert(ctx context.Context, alert *models.GPSAlert) error {
	msg, err := newMessage(alert.ID, alert)
	if err != nil {
		return err
	}
	msg.Metadata.Set(MetaProvider, alert.Provider)
	msg.Metadata.Set(MetaVehicleID, alert.VehicleID)
	return b.publish(ctx, TopicAlertRaised, msg)
}

// Subscribe returns the messages published to topic from now on.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if b.subscriber == nil {
		return nil, ErrSubscribeUnsupported
	}
	return b.subscriber.Subscribe(ctx, topic)
}

func newMessage(id string, payload interface{}) (*message.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serialize event: %w", err)
	}
	return message.NewMessage(id, data), nil
}

func (b *Bus) publish(ctx context.Context, topic string, msg *message.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	msg.SetContext(ctx)
	if b.dedupe && msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}

	var err error
	if b.breaker != nil {
		_, err = b.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, b.publisher.Publish(topic, msg)
		})
	} else {
		err = b.publisher.Publish(topic, msg)
	}

	result := "ok"
	if err != nil {
		result = "error"
		err = fmt.Errorf("publish %s: %w", topic, err)
	}
	metrics.EventsPublished.WithLabelValues(topic, result).Inc()
	return err
}

// Close shuts the transport down. It is safe to call more than once.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	return b.publisher.Close()
}
