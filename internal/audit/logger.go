// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/fleetlink/internal/auth"
	"github.com/tomtom215/fleetlink/internal/authz"
	"github.com/tomtom215/fleetlink/internal/logging"
)

// Config configures a Logger.
type Config struct {
	// BufferSize is the capacity of the async write queue.
	BufferSize int
	// WriteTimeout bounds each Store.Save call.
	WriteTimeout time.Duration
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{BufferSize: 1000, WriteTimeout: 5 * time.Second}
}

// Logger writes audit events to a Store from a background goroutine so
// request handlers never wait on persistence.
type Logger struct {
	config    Config
	store     Store
	eventChan chan *Event
	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	now       func() time.Time
}

// NewLogger starts a Logger writing to store.
func NewLogger(store Store, cfg Config) *Logger {
	def := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	l := &Logger{
		config:    cfg,
		store:     store,
		eventChan: make(chan *Event, cfg.BufferSize),
		stopChan:  make(chan struct{}),
		now:       time.Now,
	}
	l.wg.Add(1)
	go l.asyncWriter()
	return l
}

func (l *Logger) asyncWriter() {
	defer l.wg.Done()
	for {
		select {
		case event := <-l.eventChan:
			l.writeEvent(event)
		case <-l.stopChan:
			// Drain what was queued before Close.
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) writeEvent(event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), l.config.WriteTimeout)
	defer cancel()

	if err := l.store.Save(ctx, event); err != nil {
		logging.Error().Err(err).
			Str("event_id", event.ID).
			Str("action", string(event.Action)).
			Msg("Failed to save audit event")
	}
}

// Log queues event. ID and Timestamp are filled when empty. Events are
// dropped with a warning when the queue is full.
func (l *Logger) Log(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}

	select {
	case l.eventChan <- event:
	default:
		logging.Warn().
			Str("event_id", event.ID).
			Str("action", string(event.Action)).
			Msg("Audit event buffer full, dropping event")
	}
}

// Record logs the outcome of action on target by subject. A nil err is a
// success; authz.ErrForbidden is recorded as denied.
func (l *Logger) Record(ctx context.Context, subject *auth.AuthSubject, action Action, target Target, err error) {
	event := &Event{
		Action:    action,
		Outcome:   OutcomeSuccess,
		Target:    target,
		RequestID: logging.RequestIDFromContext(ctx),
	}
	if subject != nil {
		event.Actor = Actor{
			ID:         subject.ID,
			Username:   subject.Username,
			Roles:      append([]string(nil), subject.Roles...),
			AuthMethod: subject.AuthMethod,
		}
	}
	switch {
	case err == nil:
	case errors.Is(err, authz.ErrForbidden):
		event.Outcome = OutcomeDenied
		event.Error = err.Error()
	default:
		event.Outcome = OutcomeFailure
		event.Error = err.Error()
	}
	l.Log(event)
}

// Query reads events from the underlying store.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// Close stops the writer after flushing queued events.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() { close(l.stopChan) })
	l.wg.Wait()
	return nil
}
