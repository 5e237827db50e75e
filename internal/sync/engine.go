// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package sync

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/metrics"
	"github.com/tomtom215/fleetlink/internal/models"
	"github.com/tomtom215/fleetlink/internal/provider"
	"github.com/tomtom215/fleetlink/internal/store"
)

// Adapters resolves provider ids to adapters. *registry.Registry implements it.
type Adapters interface {
	Get(id string) (provider.Adapter, bool)
	ListAll() []provider.Adapter
}

// LiveState receives accepted records. *livestate.Cache implements it.
type LiveState interface {
	Update(loc *models.VehicleLocation)
	PublishAlert(alert *models.GPSAlert)
}

// EventPublisher forwards accepted records to the event bus.
// Errors are logged and never fail a tick.
type EventPublisher interface {
	PublishLocation(ctx context.Context, loc *models.VehicleLocation) error
	PublishAlert(ctx context.Context, alert *models.GPSAlert) error
}

type trigger string

const (
	triggerScheduled trigger = "scheduled"
	triggerManual    trigger = "manual"
)

// loop is one running actor. done closes when its goroutine exits.
type loop struct {
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// worker is the per-provider scheduling state. It outlives its loops so the
// single-flight token also guards manual syncs of unscheduled providers.
type worker struct {
	token chan struct{}
	state *stateMachine
	loop  *loop
}

// Engine schedules provider ticks and persists their results.
type Engine struct {
	adapters Adapters
	store    store.Store
	live     LiveState
	events   EventPublisher
	now      func() time.Time

	mu       sync.Mutex
	workers  map[string]*worker
	statuses map[string]models.SyncStatus
	loops    map[*loop]struct{}

	// ticks counts ticks dispatched by loops; StopAll waits for it.
	ticks sync.WaitGroup
}

// New creates an Engine. events may be nil.
func New(adapters Adapters, st store.Store, live LiveState, events EventPublisher) *Engine {
	return &Engine{
		adapters: adapters,
		store:    st,
		live:     live,
		events:   events,
		now:      time.Now,
		workers:  make(map[string]*worker),
		statuses: make(map[string]models.SyncStatus),
		loops:    make(map[*loop]struct{}),
	}
}

func (e *Engine) workerLocked(id string) *worker {
	w, ok := e.workers[id]
	if !ok {
		w = &worker{
			token: make(chan struct{}, 1),
			state: newStateMachine(id),
		}
		e.workers[id] = w
	}
	return w
}

// StartSync schedules providerID: one tick now, then one per interval.
// The first tick runs before StartSync returns, so its status is visible to
// the caller. A non-positive interval uses the provider's configured interval.
// Starting an already scheduled provider logs a warning and does nothing.
func (e *Engine) StartSync(ctx context.Context, providerID string, interval time.Duration) error {
	adapter, ok := e.adapters.Get(providerID)
	if !ok {
		return fleeterr.NewNotFound("provider", providerID)
	}
	if interval <= 0 {
		cfg := adapter.Config()
		interval = cfg.Interval()
	}
	if interval <= 0 {
		interval = models.MinSyncInterval * time.Second
	}

	e.mu.Lock()
	w := e.workerLocked(providerID)
	if w.loop != nil {
		e.mu.Unlock()
		logging.Warn().Str("provider_id", providerID).Msg("Sync already scheduled, ignoring start")
		return nil
	}

	// The loop outlives the caller's request; keep its values, drop its cancellation.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	loopCtx = logging.ContextWithProviderID(loopCtx, providerID)
	l := &loop{interval: interval, cancel: cancel, done: make(chan struct{})}
	w.loop = l
	e.loops[l] = struct{}{}
	if w.state.Current() == stateStopped {
		w.state.fire(eventSchedule)
	}
	metrics.SyncLoopsActive.Inc()
	e.ticks.Add(1)
	e.mu.Unlock()

	logging.Info().
		Str("provider_id", providerID).
		Dur("interval", interval).
		Msg("Sync scheduled")

	_, _ = e.tick(context.WithoutCancel(loopCtx), providerID, triggerScheduled) //nolint:errcheck // outcome recorded in status
	e.ticks.Done()

	go e.run(loopCtx, providerID, l)
	return nil
}

// StopSync cancels future ticks for providerID and reports whether it was
// scheduled. A tick in flight runs to completion.
func (e *Engine) StopSync(providerID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, ok := e.workers[providerID]
	if !ok || w.loop == nil {
		return false
	}
	e.unscheduleLocked(w)
	logging.Info().Str("provider_id", providerID).Msg("Sync stopped")
	return true
}

func (e *Engine) unscheduleLocked(w *worker) {
	w.loop.cancel()
	w.loop = nil
	if w.state.Current() == stateScheduled {
		w.state.fire(eventUnschedule)
	}
	metrics.SyncLoopsActive.Dec()
}

// IsScheduled reports whether providerID has a running loop.
func (e *Engine) IsScheduled(providerID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.workers[providerID]
	return ok && w.loop != nil
}

// SyncOnce runs one tick now and returns its result. It fails with
// fleeterr.ErrSyncInProgress while another tick for the provider runs and
// with *fleeterr.NotFoundError for unknown providers.
func (e *Engine) SyncOnce(ctx context.Context, providerID string) (models.SyncResult, error) {
	ctx = logging.ContextWithProviderID(ctx, providerID)
	return e.tick(context.WithoutCancel(ctx), providerID, triggerManual)
}

func (e *Engine) run(ctx context.Context, providerID string, l *loop) {
	defer func() {
		e.mu.Lock()
		delete(e.loops, l)
		e.mu.Unlock()
		close(l.done)
	}()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			e.dispatch(ctx, providerID)
		}
	}
}

// dispatch starts a tick without blocking the loop, so a tick that outlasts
// the interval causes the next one to be skipped rather than queued.
func (e *Engine) dispatch(ctx context.Context, providerID string) {
	e.ticks.Add(1)
	go func() {
		defer e.ticks.Done()
		_, _ = e.tick(context.WithoutCancel(ctx), providerID, triggerScheduled) //nolint:errcheck // outcome recorded in status
	}()
}

func (e *Engine) acquire(providerID string) (*worker, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	w := e.workerLocked(providerID)
	select {
	case w.token <- struct{}{}:
		w.state.fire(eventBegin)
		return w, true
	default:
		return w, false
	}
}

func (e *Engine) release(w *worker) {
	e.mu.Lock()
	defer e.mu.Unlock()

	<-w.token
	if w.loop != nil {
		w.state.fire(eventResume)
	} else {
		w.state.fire(eventFinish)
	}
}

func (e *Engine) tick(ctx context.Context, providerID string, trig trigger) (models.SyncResult, error) {
	adapter, ok := e.adapters.Get(providerID)
	if !ok {
		return models.SyncResult{}, fleeterr.NewNotFound("provider", providerID)
	}

	w, acquired := e.acquire(providerID)
	if !acquired {
		logging.Info().
			Str("provider_id", providerID).
			Str("trigger", string(trig)).
			Msg("Sync already in progress, tick skipped")
		metrics.RecordSyncTick(providerID, string(models.SyncSkipped), 0)
		if trig == triggerScheduled {
			e.recordSkipped(providerID)
		}
		return models.SyncResult{}, fleeterr.ErrSyncInProgress
	}
	defer e.release(w)

	result := adapter.Sync(ctx)
	if result.Status.ProviderID == "" {
		result.Status.ProviderID = providerID
	}

	if result.Status.Status == models.SyncSuccess {
		e.persist(ctx, providerID, &result)
	}

	e.recordResult(providerID, trig, &result.Status)
	return result, nil
}

// persist stores each record individually. A failed record is logged and
// skipped; the counts in status are rewritten to accepted records only.
func (e *Engine) persist(ctx context.Context, providerID string, result *models.SyncResult) {
	var locOK, locFailed int
	for i := range result.Vehicles {
		loc := &result.Vehicles[i]
		if err := e.store.UpsertLocation(ctx, loc); err != nil {
			locFailed++
			logPersistenceFailure(providerID, &fleeterr.PersistenceError{
				Op:  "upsert location",
				Key: loc.VehicleID + "@" + loc.Timestamp.UTC().Format(time.RFC3339Nano),
				Err: err,
			})
			continue
		}
		locOK++
		e.live.Update(loc)
		if e.events != nil {
			if err := e.events.PublishLocation(ctx, loc); err != nil {
				logging.Warn().Err(err).Str("provider_id", providerID).Str("vehicle_id", loc.VehicleID).Msg("Failed to publish location event")
			}
		}
	}

	var alertsNew, alertsFailed int
	for i := range result.Alerts {
		alert := &result.Alerts[i]
		inserted, err := e.store.InsertAlertIfAbsent(ctx, alert)
		if err != nil {
			alertsFailed++
			logPersistenceFailure(providerID, &fleeterr.PersistenceError{Op: "insert alert", Key: alert.ID, Err: err})
			continue
		}
		if !inserted {
			continue
		}
		alertsNew++
		e.live.PublishAlert(alert)
		if e.events != nil {
			if err := e.events.PublishAlert(ctx, alert); err != nil {
				logging.Warn().Err(err).Str("provider_id", providerID).Str("alert_id", alert.ID).Msg("Failed to publish alert event")
			}
		}
	}

	result.Status.VehiclesUpdated = locOK
	result.Status.AlertsGenerated = alertsNew
	metrics.RecordPersisted(providerID, "location", locOK, locFailed)
	metrics.RecordPersisted(providerID, "alert", alertsNew, alertsFailed)
}

func logPersistenceFailure(providerID string, err *fleeterr.PersistenceError) {
	logging.Error().
		Err(err).
		Str("provider_id", providerID).
		Str("op", err.Op).
		Str("key", err.Key).
		Msg("Failed to persist record")
}

func (e *Engine) recordResult(providerID string, trig trigger, status *models.SyncStatus) {
	e.mu.Lock()
	if w, ok := e.workers[providerID]; ok && w.loop != nil {
		status.NextSync = status.LastSync.Add(w.loop.interval)
	}
	// A provider deleted mid-tick must not reappear in the status list.
	if _, ok := e.adapters.Get(providerID); ok {
		e.statuses[providerID] = *status
	}
	e.mu.Unlock()

	metrics.RecordSyncTick(providerID, string(status.Status), time.Duration(status.DurationMs)*time.Millisecond)

	if status.Status == models.SyncError {
		logging.Warn().
			Str("provider_id", providerID).
			Str("trigger", string(trig)).
			Str("error", status.ErrorMessage).
			Int64("duration_ms", status.DurationMs).
			Msg("Sync tick failed")
		return
	}
	logging.Info().
		Str("provider_id", providerID).
		Str("trigger", string(trig)).
		Int("vehicles_updated", status.VehiclesUpdated).
		Int("alerts_generated", status.AlertsGenerated).
		Int64("duration_ms", status.DurationMs).
		Msg("Sync tick completed")
}

func (e *Engine) recordSkipped(providerID string) {
	now := e.now()
	status := models.SyncStatus{
		ProviderID: providerID,
		LastSync:   now,
		Status:     models.SyncSkipped,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if w, ok := e.workers[providerID]; ok && w.loop != nil {
		status.NextSync = now.Add(w.loop.interval)
	}
	if _, ok := e.adapters.Get(providerID); ok {
		e.statuses[providerID] = status
	}
}

// Status returns the latest recorded status for providerID.
func (e *Engine) Status(providerID string) (models.SyncStatus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.statuses[providerID]
	return s, ok
}

// SyncStatuses returns the latest status of every provider that has ticked,
// ordered by provider id.
func (e *Engine) SyncStatuses() []models.SyncStatus {
	e.mu.Lock()
	out := make([]models.SyncStatus, 0, len(e.statuses))
	for _, s := range e.statuses {
		out = append(out, s)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out
}

// GetStatus reports the scheduling state of every registered provider.
func (e *Engine) GetStatus() []models.EngineStatus {
	adapters := e.adapters.ListAll()

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.EngineStatus, 0, len(adapters))
	for _, a := range adapters {
		cfg := a.Config()
		st := models.EngineStatus{
			ProviderID:   a.ID(),
			State:        stateStopped,
			IntervalSecs: cfg.SyncInterval,
		}
		if w, ok := e.workers[a.ID()]; ok {
			st.State = w.state.Current()
			st.IsRunning = st.State == stateRunning
			if w.loop != nil {
				st.IsScheduled = true
				st.IntervalSecs = int(w.loop.interval / time.Second)
			}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out
}

// Forget drops the recorded status of providerID, and its scheduling state
// when it is neither scheduled nor running.
func (e *Engine) Forget(providerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.statuses, providerID)
	if w, ok := e.workers[providerID]; ok && w.loop == nil && w.state.Current() == stateStopped {
		delete(e.workers, providerID)
	}
}

// StopAll cancels every loop and waits until the loops have exited and
// their in-flight ticks have finished, or ctx is done.
func (e *Engine) StopAll(ctx context.Context) error {
	e.mu.Lock()
	stopped := 0
	for _, w := range e.workers {
		if w.loop != nil {
			e.unscheduleLocked(w)
			stopped++
		}
	}
	pending := make([]*loop, 0, len(e.loops))
	for l := range e.loops {
		pending = append(pending, l)
	}
	e.mu.Unlock()

	logging.Info().Int("loops", stopped).Msg("Stopping sync engine")

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range pending {
		g.Go(func() error {
			select {
			case <-l.done:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	ticksDone := make(chan struct{})
	go func() {
		e.ticks.Wait()
		close(ticksDone)
	}()

	select {
	case <-ticksDone:
		logging.Info().Msg("Sync engine stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
