// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var (
	_ suture.Service = (*SyncEngineService)(nil)
	_ suture.Service = (*StoreGCService)(nil)
	_ suture.Service = (*EventBusService)(nil)
)

type fakeEngine struct {
	stops       atomic.Int32
	hadDeadline atomic.Bool
	err         error
}

func (e *fakeEngine) StopAll(ctx context.Context) error {
	e.stops.Add(1)
	_, ok := ctx.Deadline()
	e.hadDeadline.Store(ok)
	return e.err
}

func TestSyncEngineServiceStopsEngineOnCancel(t *testing.T) {
	eng := &fakeEngine{}
	svc := NewSyncEngineService(eng, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	time.Sleep(10 * time.Millisecond)
	if eng.stops.Load() != 0 {
		t.Fatal("StopAll called before cancellation")
	}
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v, want context.Canceled", err)
	}
	if eng.stops.Load() != 1 {
		t.Errorf("StopAll calls = %d, want 1", eng.stops.Load())
	}
	if !eng.hadDeadline.Load() {
		t.Error("StopAll context has no deadline")
	}
}

func TestSyncEngineServiceStopError(t *testing.T) {
	eng := &fakeEngine{err: context.DeadlineExceeded}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewSyncEngineService(eng, 0).Serve(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve = %v, want wrapped deadline error", err)
	}
	if got := NewSyncEngineService(eng, 0).shutdownTimeout; got != 30*time.Second {
		t.Errorf("default timeout = %v", got)
	}
}

type fakeCollector struct {
	calls atomic.Int32
	ratio atomic.Value
	err   error
}

func (c *fakeCollector) RunValueLogGC(ratio float64) error {
	c.calls.Add(1)
	c.ratio.Store(ratio)
	return c.err
}

func TestStoreGCServiceRunsPeriodically(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"success", nil},
		{"failures keep the loop alive", errors.New("disk busy")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := &fakeCollector{err: tt.err}
			svc := NewStoreGCService(col, 5*time.Millisecond)

			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() { errCh <- svc.Serve(ctx) }()

			deadline := time.Now().Add(2 * time.Second)
			for col.calls.Load() < 3 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			cancel()

			if err := <-errCh; !errors.Is(err, context.Canceled) {
				t.Errorf("Serve = %v, want context.Canceled", err)
			}
			if col.calls.Load() < 3 {
				t.Errorf("GC passes = %d, want at least 3", col.calls.Load())
			}
			if r, _ := col.ratio.Load().(float64); r != DefaultGCDiscardRatio {
				t.Errorf("ratio = %v", r)
			}
		})
	}
}

type recorder struct {
	order *[]string
	name  string
	err   error
}

func (r recorder) Close() error {
	*r.order = append(*r.order, r.name)
	return r.err
}

func (r recorder) Shutdown(context.Context) error {
	*r.order = append(*r.order, r.name)
	return r.err
}

func TestEventBusServiceShutdownOrder(t *testing.T) {
	var order []string
	svc := NewEventBusService(recorder{order: &order, name: "bus"}, recorder{order: &order, name: "server"}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v", err)
	}
	if len(order) != 2 || order[0] != "bus" || order[1] != "server" {
		t.Errorf("shutdown order = %v, want [bus server]", order)
	}
}

func TestEventBusServiceWithoutServer(t *testing.T) {
	var order []string
	closeErr := errors.New("flush failed")
	svc := NewEventBusService(recorder{order: &order, name: "bus", err: closeErr}, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Serve(ctx); !errors.Is(err, closeErr) {
		t.Errorf("Serve = %v, want %v", err, closeErr)
	}
	if svc.String() != "event-bus" {
		t.Errorf("String() = %q", svc.String())
	}
}
