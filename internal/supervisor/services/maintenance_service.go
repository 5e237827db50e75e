// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package services

import (
	"context"
	"time"

	"github.com/tomtom215/fleetlink/internal/logging"
)

// ValueLogCollector is satisfied by *kvstore.Store.
type ValueLogCollector interface {
	RunValueLogGC(discardRatio float64) error
}

// DefaultGCDiscardRatio is the fraction of a value log file that must be
// stale before Badger rewrites it.
const DefaultGCDiscardRatio = 0.5

// StoreGCService runs value log garbage collection on the embedded store
// at a fixed interval. A failed pass is logged and retried on the next
// tick; only cancellation ends the service.
type StoreGCService struct {
	store    ValueLogCollector
	interval time.Duration
	ratio    float64
	name     string
}

// NewStoreGCService wraps store. A non-positive interval means 10 minutes.
func NewStoreGCService(store ValueLogCollector, interval time.Duration) *StoreGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &StoreGCService{
		store:    store,
		interval: interval,
		ratio:    DefaultGCDiscardRatio,
		name:     "store-gc",
	}
}

// Serve implements suture.Service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.store.RunValueLogGC(s.ratio); err != nil {
				logging.Warn().Err(err).Msg("Value log GC failed")
				continue
			}
			logging.Debug().Dur("elapsed", time.Since(start)).Msg("Value log GC pass complete")
		}
	}
}

// String names the service in supervisor logs.
func (s *StoreGCService) String() string {
	return s.name
}
