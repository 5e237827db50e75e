// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package kvstore implements store.Store on an embedded BadgerDB, for single
node deployments that want durability without a SQL engine.

Key layout:

	loc:<vehicleID>\x00<unix nanos, 20 digits>  -> VehicleLocation JSON
	alert:<id>                                  -> GPSAlert JSON
	provider:<id>                               -> ProviderConfig JSON

Location keys sort by time within a vehicle, so a history query is one
bounded prefix scan.
*/
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/models"
	"github.com/tomtom215/fleetlink/internal/store"
)

const (
	prefixLocation = "loc:"
	prefixAlert    = "alert:"
	prefixProvider = "provider:"
)

// Store is the Badger-backed store.
type Store struct {
	db *badger.DB
}

var _ store.Store = (*Store)(nil)

// Open opens the database in dir. An in-memory database ignores dir.
func Open(dir string, inMemory bool) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", dir).
		Bool("in_memory", inMemory).
		Msg("Badger store ready")
	return &Store{db: db}, nil
}

// Ping reports whether the database is still open.
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger store is closed")
	}
	return nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func locationPrefix(vehicleID string) []byte {
	return []byte(prefixLocation + vehicleID + "\x00")
}

func locationKey(vehicleID string, ts time.Time) []byte {
	return append(locationPrefix(vehicleID), fmt.Sprintf("%020d", ts.UTC().UnixNano())...)
}

// UpsertLocation writes the reading under its (vehicle, timestamp) key.
func (s *Store) UpsertLocation(_ context.Context, loc *models.VehicleLocation) error {
	rec := *loc
	rec.Timestamp = loc.Timestamp.UTC()
	data, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(locationKey(loc.VehicleID, rec.Timestamp), data)
	})
}

// QueryHistory scans the vehicle's keys from start up to end.
func (s *Store) QueryHistory(ctx context.Context, vehicleID string, start, end time.Time, limit int) ([]models.VehicleLocation, error) {
	limit = store.ClampLimit(limit)
	prefix := locationPrefix(vehicleID)
	endKey := locationKey(vehicleID, end)

	var out []models.VehicleLocation
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(locationKey(vehicleID, start)); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if string(item.Key()) > string(endKey) || len(out) >= limit {
				break
			}
			var loc models.VehicleLocation
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &loc)
			}); err != nil {
				return fmt.Errorf("decode location: %w", err)
			}
			out = append(out, loc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", vehicleID, err)
	}
	return out, nil
}

func getJSON(txn *badger.Txn, key string, v interface{}) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), data)
}

// InsertAlertIfAbsent stores the alert unless the key already exists.
// Badger's optimistic transactions reject a concurrent second insert with
// ErrConflict, which is retried once so the loser sees the winner's row.
func (s *Store) InsertAlertIfAbsent(_ context.Context, alert *models.GPSAlert) (bool, error) {
	var inserted bool
	insert := func(txn *badger.Txn) error {
		inserted = false
		key := prefixAlert + alert.ID
		if _, err := txn.Get([]byte(key)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		rec := *alert
		rec.Timestamp = alert.Timestamp.UTC()
		if err := setJSON(txn, key, &rec); err != nil {
			return err
		}
		inserted = true
		return nil
	}

	err := s.db.Update(insert)
	if errors.Is(err, badger.ErrConflict) {
		err = s.db.Update(insert)
	}
	if err != nil {
		return false, fmt.Errorf("insert alert %s: %w", alert.ID, err)
	}
	return inserted, nil
}

// GetAlert returns one alert by id.
func (s *Store) GetAlert(_ context.Context, id string) (*models.GPSAlert, error) {
	var alert models.GPSAlert
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, prefixAlert+id, &alert)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fleeterr.NewNotFound("alert", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get alert %s: %w", id, err)
	}
	return &alert, nil
}

// GetUnacknowledgedAlerts scans every alert and keeps the open ones.
func (s *Store) GetUnacknowledgedAlerts(ctx context.Context, vehicleID string) ([]models.GPSAlert, error) {
	var out []models.GPSAlert
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixAlert)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var alert models.GPSAlert
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &alert)
			}); err != nil {
				return fmt.Errorf("decode alert: %w", err)
			}
			if alert.Acknowledged || (vehicleID != "" && alert.VehicleID != vehicleID) {
				continue
			}
			out = append(out, alert)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query open alerts: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AcknowledgeAlert transitions an open alert inside one transaction.
func (s *Store) AcknowledgeAlert(_ context.Context, id, userID string, at time.Time) (bool, error) {
	var changed bool
	ack := func(txn *badger.Txn) error {
		var alert models.GPSAlert
		if err := getJSON(txn, prefixAlert+id, &alert); err != nil {
			return err
		}
		changed = alert.Acknowledge(userID, at)
		if !changed {
			return nil
		}
		return setJSON(txn, prefixAlert+id, &alert)
	}

	err := s.db.Update(ack)
	if errors.Is(err, badger.ErrConflict) {
		err = s.db.Update(ack)
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, fleeterr.NewNotFound("alert", id)
	}
	if err != nil {
		return false, fmt.Errorf("acknowledge alert %s: %w", id, err)
	}
	return changed, nil
}

// SaveProvider stores the configuration document.
func (s *Store) SaveProvider(_ context.Context, cfg *models.ProviderConfig) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, prefixProvider+cfg.ID, cfg)
	})
	if err != nil {
		return fmt.Errorf("save provider %s: %w", cfg.ID, err)
	}
	return nil
}

// ListProviders returns saved configurations ordered by id. Badger iterates
// keys in byte order, which is id order under the shared prefix.
func (s *Store) ListProviders(_ context.Context) ([]models.ProviderConfig, error) {
	var out []models.ProviderConfig
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixProvider)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var cfg models.ProviderConfig
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &cfg)
			}); err != nil {
				return fmt.Errorf("decode provider: %w", err)
			}
			out = append(out, cfg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return out, nil
}

// DeleteProvider removes a saved configuration. Badger deletes of a missing key succeed.
func (s *Store) DeleteProvider(_ context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixProvider + id))
	})
	if err != nil {
		return fmt.Errorf("delete provider %s: %w", id, err)
	}
	return nil
}

// RunValueLogGC reclaims value log space. Badger returns ErrNoRewrite when
// there is nothing to collect, which is not a failure.
func (s *Store) RunValueLogGC(ratio float64) error {
	err := s.db.RunValueLogGC(ratio)
	if err == nil || errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
		return nil
	}
	return err
}
