// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
cache.go - Live State Cache and Broadcaster

The cache keeps the most recent VehicleLocation per vehicle id and fans every
change out to subscribers.

Ordering:
  - Update writes the map entry and enqueues the event to every subscriber
    while holding c.mu
  - Subscribe captures the snapshot and registers the subscriber while
    holding the same lock

So a subscriber's first event is a snapshot, and every later event is a change
made after that snapshot. No update can fall between the two.

Slow subscribers: delivery never blocks. A subscriber whose buffer is full is
removed and its channel closed; the client reconnects and gets a fresh snapshot.

Fan-in: when two providers report the same vehicle id the last write wins.

Mirror: writes go through a bounded queue drained by one goroutine, so a slow
or hung mirror never stalls Update. When the queue is full the record is
dropped with a warning. Close flushes what is queued.
*/
//nolint:staticcheck // File documentation, not package doc
package livestate

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/metrics"
	"github.com/tomtom215/fleetlink/internal/models"
)

// DefaultSubscriberBuffer is the per-subscriber event buffer.
const DefaultSubscriberBuffer = 256

// DefaultMirrorQueue is the capacity of the mirror write queue.
const DefaultMirrorQueue = 1024

// mirrorTimeout bounds one best-effort mirror write.
const mirrorTimeout = 2 * time.Second

// ErrDuplicateSubscriber is returned by Subscribe for an id already in use.
var ErrDuplicateSubscriber = errors.New("subscriber id already in use")

// Mirror receives a copy of every change, for consumers outside this process.
// Failures are logged and never affect the cache.
type Mirror interface {
	MirrorLocation(ctx context.Context, loc *models.VehicleLocation) error
	MirrorAlert(ctx context.Context, alert *models.GPSAlert) error
}

// Options configures a Cache.
type Options struct {
	// SubscriberBuffer is the channel size of each subscription.
	SubscriberBuffer int
	// Mirror is optional.
	Mirror Mirror
	// MirrorQueue is the capacity of the mirror write queue.
	MirrorQueue int
}

// mirrorJob carries exactly one of a location or an alert.
type mirrorJob struct {
	loc   *models.VehicleLocation
	alert *models.GPSAlert
}

// Cache is the live state cache. The zero value is not usable; call New.
type Cache struct {
	mu        sync.Mutex
	locations map[string]models.VehicleLocation
	subs      map[string]*Subscription
	buffer    int

	mirror    Mirror
	mirrorCh  chan mirrorJob
	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates an empty cache.
func New(opts Options) *Cache {
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = DefaultSubscriberBuffer
	}
	if opts.MirrorQueue <= 0 {
		opts.MirrorQueue = DefaultMirrorQueue
	}
	c := &Cache{
		locations: make(map[string]models.VehicleLocation),
		subs:      make(map[string]*Subscription),
		buffer:    opts.SubscriberBuffer,
		mirror:    opts.Mirror,
		stopChan:  make(chan struct{}),
	}
	if c.mirror != nil {
		c.mirrorCh = make(chan mirrorJob, opts.MirrorQueue)
		c.wg.Add(1)
		go c.mirrorWriter()
	}
	return c
}

// Close stops the mirror writer after flushing queued writes. Updates made
// after Close are cached and broadcast but no longer mirrored.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() { close(c.stopChan) })
	c.wg.Wait()
	return nil
}

func (c *Cache) mirrorWriter() {
	defer c.wg.Done()
	for {
		select {
		case job := <-c.mirrorCh:
			c.writeMirror(job)
		case <-c.stopChan:
			for {
				select {
				case job := <-c.mirrorCh:
					c.writeMirror(job)
				default:
					return
				}
			}
		}
	}
}

func (c *Cache) writeMirror(job mirrorJob) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	switch {
	case job.loc != nil:
		if err := c.mirror.MirrorLocation(ctx, job.loc); err != nil {
			logging.Warn().Err(err).Str("vehicle_id", job.loc.VehicleID).Msg("Live state mirror write failed")
		}
	case job.alert != nil:
		if err := c.mirror.MirrorAlert(ctx, job.alert); err != nil {
			logging.Warn().Err(err).Str("alert_id", job.alert.ID).Msg("Live state mirror alert failed")
		}
	}
}

// enqueueMirror never blocks.
func (c *Cache) enqueueMirror(job mirrorJob) {
	if c.mirror == nil {
		return
	}
	select {
	case <-c.stopChan:
		return
	default:
	}
	select {
	case c.mirrorCh <- job:
	default:
		metrics.LiveMirrorDropped.Inc()
		logging.Warn().Msg("Live state mirror queue full, dropping record")
	}
}

// Update overwrites the vehicle's last location and broadcasts it.
func (c *Cache) Update(loc *models.VehicleLocation) {
	if loc == nil || loc.VehicleID == "" {
		return
	}
	entry := *loc

	c.mu.Lock()
	c.locations[entry.VehicleID] = entry
	metrics.LiveVehicles.Set(float64(len(c.locations)))
	c.broadcastLocked(Event{Kind: EventLocationUpdate, Location: &entry})
	c.mu.Unlock()

	c.enqueueMirror(mirrorJob{loc: &entry})
}

// PublishAlert broadcasts a newly raised alert. Alerts are not cached.
func (c *Cache) PublishAlert(alert *models.GPSAlert) {
	if alert == nil {
		return
	}
	a := *alert

	c.mu.Lock()
	c.broadcastLocked(Event{Kind: EventAlertRaised, Alert: &a})
	c.mu.Unlock()

	c.enqueueMirror(mirrorJob{alert: &a})
}

// GetLast returns the vehicle's most recent location.
func (c *Cache) GetLast(vehicleID string) (models.VehicleLocation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	loc, ok := c.locations[vehicleID]
	return loc, ok
}

// GetAll returns every cached location ordered by vehicle id.
func (c *Cache) GetAll() []models.VehicleLocation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Len returns the number of cached vehicles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locations)
}

// SubscriberCount returns the number of active subscriptions.
func (c *Cache) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Subscribe registers a subscriber. The first event on the returned
// subscription is a snapshot of the whole cache. An empty id is replaced
// by a generated one.
func (c *Cache) Subscribe(subscriberID string) (*Subscription, error) {
	if subscriberID == "" {
		subscriberID = uuid.NewString()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.subs[subscriberID]; exists {
		return nil, ErrDuplicateSubscriber
	}

	sub := &Subscription{
		id:     subscriberID,
		cache:  c,
		events: make(chan Event, c.buffer),
	}
	sub.events <- Event{Kind: EventSnapshot, Snapshot: c.snapshotLocked()}
	c.subs[subscriberID] = sub
	metrics.LiveSubscribers.Set(float64(len(c.subs)))

	logging.Debug().Str("subscriber_id", subscriberID).Int("subscribers", len(c.subs)).Msg("Live subscriber added")
	return sub, nil
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids are ignored.
func (c *Cache) Unsubscribe(subscriberID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sub, ok := c.subs[subscriberID]; ok {
		c.removeLocked(sub)
	}
}

func (c *Cache) snapshotLocked() []models.VehicleLocation {
	out := make([]models.VehicleLocation, 0, len(c.locations))
	for _, loc := range c.locations {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}

func (c *Cache) broadcastLocked(ev Event) {
	var slow []*Subscription
	for _, sub := range c.subs {
		select {
		case sub.events <- ev:
		default:
			slow = append(slow, sub)
		}
	}
	for _, sub := range slow {
		logging.Warn().Str("subscriber_id", sub.id).Msg("Dropping slow live subscriber")
		metrics.LiveEventsDropped.Inc()
		c.removeLocked(sub)
	}
}

func (c *Cache) removeLocked(sub *Subscription) {
	delete(c.subs, sub.id)
	close(sub.events)
	metrics.LiveSubscribers.Set(float64(len(c.subs)))
}
