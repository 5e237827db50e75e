// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package livestate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/fleetlink/internal/models"
)

func loc(vehicleID string, speed float64) *models.VehicleLocation {
	return &models.VehicleLocation{
		VehicleID: vehicleID,
		Latitude:  40.7,
		Longitude: -74,
		Speed:     speed,
		Status:    models.StatusMoving,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Provider:  "nt",
	}
}

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestUpdateOverwritesLastLocation(t *testing.T) {
	c := New(Options{})
	c.Update(loc("v1", 10))
	c.Update(loc("v1", 20))
	c.Update(loc("v2", 30))

	got, ok := c.GetLast("v1")
	if !ok || got.Speed != 20 {
		t.Errorf("GetLast(v1) = %+v, %v", got, ok)
	}
	if _, ok := c.GetLast("nope"); ok {
		t.Error("GetLast(unknown) should report false")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	all := c.GetAll()
	if len(all) != 2 || all[0].VehicleID != "v1" || all[1].VehicleID != "v2" {
		t.Errorf("GetAll = %+v", all)
	}
}

func TestUpdateIgnoresEmptyVehicleID(t *testing.T) {
	c := New(Options{})
	c.Update(nil)
	c.Update(&models.VehicleLocation{})
	if c.Len() != 0 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestUpdateStoresCopy(t *testing.T) {
	c := New(Options{})
	l := loc("v1", 10)
	c.Update(l)
	l.Speed = 99
	got, _ := c.GetLast("v1")
	if got.Speed != 10 {
		t.Errorf("cache aliased the caller's struct: speed = %v", got.Speed)
	}
}

func TestSubscribeSnapshotThenStream(t *testing.T) {
	c := New(Options{})
	c.Update(loc("v1", 10))
	c.Update(loc("v2", 20))

	sub, err := c.Subscribe("s1")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	first := recv(t, sub)
	if first.Kind != EventSnapshot || len(first.Snapshot) != 2 {
		t.Fatalf("first event = %+v, want a two-vehicle snapshot", first)
	}

	c.Update(loc("v1", 50))
	c.PublishAlert(&models.GPSAlert{ID: "nt:a1", VehicleID: "v1"})

	ev := recv(t, sub)
	if ev.Kind != EventLocationUpdate || ev.Location.Speed != 50 {
		t.Errorf("second event = %+v", ev)
	}
	ev = recv(t, sub)
	if ev.Kind != EventAlertRaised || ev.Alert.ID != "nt:a1" {
		t.Errorf("third event = %+v", ev)
	}
}

func TestSubscribeEmptyCacheSnapshot(t *testing.T) {
	c := New(Options{})
	sub, err := c.Subscribe("")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	if sub.ID() == "" {
		t.Error("expected a generated subscriber id")
	}
	ev := recv(t, sub)
	if ev.Kind != EventSnapshot || len(ev.Snapshot) != 0 {
		t.Errorf("snapshot = %+v", ev)
	}
	if p, ok := ev.Payload().([]models.VehicleLocation); !ok || p == nil {
		t.Errorf("empty snapshot payload should be a non-nil slice, got %#v", ev.Payload())
	}
}

func TestSubscribeDuplicateID(t *testing.T) {
	c := New(Options{})
	sub, err := c.Subscribe("dup")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	if _, err := c.Subscribe("dup"); !errors.Is(err, ErrDuplicateSubscriber) {
		t.Errorf("err = %v, want ErrDuplicateSubscriber", err)
	}
}

// Concurrent writers must never produce an update that a new subscriber sees
// both in its snapshot and again as a stream event with an older value.
func TestSnapshotNeverMissesConcurrentUpdates(t *testing.T) {
	c := New(Options{SubscriberBuffer: 4096})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 500; i++ {
			c.Update(loc("v1", float64(i)))
		}
	}()

	time.Sleep(time.Millisecond)
	sub, err := c.Subscribe("late")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	wg.Wait()

	snap := recv(t, sub)
	last := 0.0
	if len(snap.Snapshot) == 1 {
		last = snap.Snapshot[0].Speed
	}
	for last < 500 {
		ev := recv(t, sub)
		if ev.Location.Speed != last+1 {
			t.Fatalf("after %v got %v: update lost or reordered", last, ev.Location.Speed)
		}
		last = ev.Location.Speed
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	c := New(Options{SubscriberBuffer: 2})
	slow, err := c.Subscribe("slow")
	if err != nil {
		t.Fatal(err)
	}
	fast, err := c.Subscribe("fast")
	if err != nil {
		t.Fatal(err)
	}
	defer fast.Close()

	// The snapshot occupies one slot; the second update overflows.
	c.Update(loc("v1", 1))
	_ = recv(t, fast)
	_ = recv(t, fast)
	c.Update(loc("v1", 2))

	if c.SubscriberCount() != 1 {
		t.Fatalf("subscribers = %d, want 1 after drop", c.SubscriberCount())
	}

	n := 0
	for range slow.Events() {
		n++
	}
	if n != 2 {
		t.Errorf("slow subscriber drained %d events before close, want 2", n)
	}
	slow.Close()
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New(Options{})
	sub, err := c.Subscribe("s")
	if err != nil {
		t.Fatal(err)
	}
	sub.Close()
	sub.Close()
	c.Unsubscribe("s")
	if c.SubscriberCount() != 0 {
		t.Errorf("subscribers = %d", c.SubscriberCount())
	}

	// A new subscription under the same id is not affected by the old handle.
	again, err := c.Subscribe("s")
	if err != nil {
		t.Fatal(err)
	}
	sub.Close()
	if c.SubscriberCount() != 1 {
		t.Error("stale Close removed the new subscription")
	}
	again.Close()
}

type recordingMirror struct {
	mu     sync.Mutex
	locs   []string
	alerts []string
	fail   bool
}

func (m *recordingMirror) MirrorLocation(_ context.Context, l *models.VehicleLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locs = append(m.locs, l.VehicleID)
	if m.fail {
		return errors.New("mirror down")
	}
	return nil
}

func (m *recordingMirror) MirrorAlert(_ context.Context, a *models.GPSAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a.ID)
	if m.fail {
		return errors.New("mirror down")
	}
	return nil
}

func TestMirrorReceivesUpdatesAndFailuresAreIgnored(t *testing.T) {
	m := &recordingMirror{fail: true}
	c := New(Options{Mirror: m})

	c.Update(loc("v1", 1))
	c.PublishAlert(&models.GPSAlert{ID: "nt:a"})

	if _, ok := c.GetLast("v1"); !ok {
		t.Error("mirror failure must not affect the cache")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.locs) != 1 || len(m.alerts) != 1 {
		t.Errorf("mirror saw %v / %v", m.locs, m.alerts)
	}
}

// hangingMirror blocks every write until released or its context expires.
type hangingMirror struct {
	release chan struct{}
	calls   chan struct{}
}

func newHangingMirror() *hangingMirror {
	return &hangingMirror{release: make(chan struct{}), calls: make(chan struct{}, 64)}
}

func (m *hangingMirror) wait(ctx context.Context) error {
	select {
	case m.calls <- struct{}{}:
	default:
	}
	select {
	case <-m.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *hangingMirror) MirrorLocation(ctx context.Context, _ *models.VehicleLocation) error {
	return m.wait(ctx)
}

func (m *hangingMirror) MirrorAlert(ctx context.Context, _ *models.GPSAlert) error {
	return m.wait(ctx)
}

func TestHungMirrorDoesNotStallUpdates(t *testing.T) {
	m := newHangingMirror()
	c := New(Options{Mirror: m, MirrorQueue: 4})
	defer func() {
		close(m.release)
		_ = c.Close()
	}()

	sub, err := c.Subscribe("s1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()
	recv(t, sub) // snapshot

	start := time.Now()
	for i := range 20 {
		c.Update(loc("v1", float64(i)))
		c.PublishAlert(&models.GPSAlert{ID: "nt:a"})
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("40 writes took %v with a hung mirror", elapsed)
	}

	select {
	case <-m.calls:
	case <-time.After(time.Second):
		t.Fatal("mirror never called")
	}
	if got, _ := c.GetLast("v1"); got.Speed != 19 {
		t.Errorf("GetLast speed = %v, want 19", got.Speed)
	}
	if ev := recv(t, sub); ev.Kind != EventLocationUpdate {
		t.Errorf("first event kind = %v, want location update", ev.Kind)
	}
}

func TestCloseFlushesQueuedMirrorWrites(t *testing.T) {
	m := &recordingMirror{}
	c := New(Options{Mirror: m})
	for _, id := range []string{"v1", "v2", "v3"} {
		c.Update(loc(id, 1))
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	c.Update(loc("v4", 1))

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.locs) != 3 {
		t.Errorf("mirrored %v, want v1..v3 only", m.locs)
	}
	if _, ok := c.GetLast("v4"); !ok {
		t.Error("update after Close should still reach the cache")
	}
}
