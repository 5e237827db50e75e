// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordSyncTick(t *testing.T) {
	before := testutil.ToFloat64(SyncTicksTotal.WithLabelValues("metrics-test", "success"))
	RecordSyncTick("metrics-test", "success", 120*time.Millisecond)
	RecordSyncTick("metrics-test", "skipped", 0)

	if got := testutil.ToFloat64(SyncTicksTotal.WithLabelValues("metrics-test", "success")); got != before+1 {
		t.Errorf("success ticks = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(SyncTicksTotal.WithLabelValues("metrics-test", "skipped")); got < 1 {
		t.Errorf("skipped ticks = %v, want >= 1", got)
	}

	// Skipped ticks must not be observed in the duration histogram.
	m := &dto.Metric{}
	obs, err := SyncDuration.GetMetricWithLabelValues("metrics-test")
	if err != nil {
		t.Fatal(err)
	}
	if err := obs.(interface{ Write(*dto.Metric) error }).Write(m); err != nil {
		t.Fatal(err)
	}
	if got := m.GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("duration samples = %d, want 1", got)
	}
}

func TestRecordPersisted(t *testing.T) {
	RecordPersisted("metrics-persist", "location", 4, 1)

	if got := testutil.ToFloat64(SyncRecordsPersisted.WithLabelValues("metrics-persist", "location")); got != 4 {
		t.Errorf("persisted = %v, want 4", got)
	}
	if got := testutil.ToFloat64(SyncPersistenceFailures.WithLabelValues("metrics-persist", "location")); got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}
}

func TestRecordVendorRequestLabels(t *testing.T) {
	tests := []struct {
		status int
		label  string
	}{
		{200, "200"},
		{401, "401"},
		{0, "transport_error"},
	}

	for _, tt := range tests {
		RecordVendorRequest("metrics-vendor", "get_vehicles", tt.status, time.Millisecond)
		if got := testutil.ToFloat64(VendorRequestsTotal.WithLabelValues("metrics-vendor", "get_vehicles", tt.label)); got != 1 {
			t.Errorf("status %d: counter %s = %v, want 1", tt.status, tt.label, got)
		}
	}
}

func TestTrackActiveRequest(t *testing.T) {
	start := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	TrackActiveRequest(true)
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != start+1 {
		t.Errorf("active requests = %v, want %v", got, start+1)
	}
}
