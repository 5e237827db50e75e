// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package provider

import (
	"context"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/models"
)

// NavTrack authenticates with a static X-API-Key header and reports metric units.
type NavTrack struct {
	cfg      models.ProviderConfig
	opts     Options
	tr       *transport
	verified atomic.Bool
}

var _ Adapter = (*NavTrack)(nil)

type navTrackVehicle struct {
	DeviceID     string   `json:"device_id"`
	UnitID       string   `json:"unit_id"`
	Lat          float64  `json:"lat"`
	Lng          float64  `json:"lng"`
	SpeedKph     float64  `json:"speed_kph"`
	Bearing      float64  `json:"bearing"`
	AltitudeM    *float64 `json:"altitude_m"`
	GPSAccuracyM *float64 `json:"gps_accuracy_m"`
	FuelPct      *float64 `json:"fuel_pct"`
	CoolantTempC *float64 `json:"coolant_temp_c"`
	OdometerKm   *float64 `json:"odometer_km"`
	Address      string   `json:"address"`
	State        string   `json:"state"`
	RecordedAt   string   `json:"recorded_at"`
}

type navTrackAlert struct {
	ID         string `json:"id"`
	UnitID     string `json:"unit_id"`
	Code       string `json:"code"`
	Level      int    `json:"level"`
	Text       string `json:"text"`
	OccurredAt string `json:"occurred_at"`
}

var navTrackStates = map[string]models.VehicleStatus{
	"driving":   models.StatusMoving,
	"parked":    models.StatusStopped,
	"idling":    models.StatusIdle,
	"no_signal": models.StatusOffline,
}

var navTrackCodes = map[string]models.AlertType{
	"SPD":  models.AlertSpeeding,
	"HB":   models.AlertHarshBraking,
	"HA":   models.AlertHarshAcceleration,
	"FUEL": models.AlertLowFuel,
	"ENG":  models.AlertEngineFault,
	"GEO":  models.AlertGeofenceViolation,
	"OFF":  models.AlertOffline,
}

var navTrackLevels = map[int]models.AlertSeverity{
	1: models.SeverityLow,
	2: models.SeverityMedium,
	3: models.SeverityHigh,
	4: models.SeverityCritical,
}

// NewNavTrack builds a NavTrack adapter. It performs no I/O.
func NewNavTrack(cfg models.ProviderConfig, opts Options) (*NavTrack, error) {
	if cfg.APIKey == "" {
		return nil, fleeterr.NewValidationError(fleeterr.Violation{Field: "apiKey", Rule: "required", Message: "apiKey is required"})
	}
	opts = opts.withDefaults()
	return &NavTrack{
		cfg:  cfg.Clone(),
		opts: opts,
		tr:   newTransport(cfg.ID, cfg.APIURL, opts),
	}, nil
}

func (n *NavTrack) ID() string { return n.cfg.ID }

func (n *NavTrack) Config() models.ProviderConfig { return n.cfg.Clone() }

func (n *NavTrack) auth(r *http.Request) {
	r.Header.Set("X-API-Key", n.cfg.APIKey)
}

// get wraps transport calls so a 401 clears the cached verification.
func (n *NavTrack) get(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	err := n.tr.getJSON(ctx, op, path, query, n.auth, out)
	if fleeterr.IsAuthentication(err) {
		n.verified.Store(false)
	}
	return err
}

// Authenticate checks the key once against the account endpoint and caches the result.
func (n *NavTrack) Authenticate(ctx context.Context) (bool, error) {
	if n.verified.Load() {
		return true, nil
	}
	if err := n.get(ctx, "authenticate", "/v1/account", nil, nil); err != nil {
		return false, err
	}
	n.verified.Store(true)
	return true, nil
}

func (n *NavTrack) GetVehicles(ctx context.Context) ([]models.VehicleLocation, error) {
	var body struct {
		Vehicles []navTrackVehicle `json:"vehicles"`
	}
	if err := n.get(ctx, "get_vehicles", "/v1/vehicles", nil, &body); err != nil {
		return nil, err
	}
	locs := make([]models.VehicleLocation, 0, len(body.Vehicles))
	for i := range body.Vehicles {
		locs = append(locs, n.normalizeVehicle(&body.Vehicles[i]))
	}
	return keepValid(ctx, locs), nil
}

func (n *NavTrack) GetVehicleLocation(ctx context.Context, vehicleID string) (*models.VehicleLocation, error) {
	var v navTrackVehicle
	err := n.get(ctx, "get_vehicle", "/v1/units/"+url.PathEscape(vehicleID), nil, &v)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	loc := n.normalizeVehicle(&v)
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return &loc, nil
}

func (n *NavTrack) GetAlerts(ctx context.Context) ([]models.GPSAlert, error) {
	var body struct {
		Alerts []navTrackAlert `json:"alerts"`
	}
	q := url.Values{"status": {"open"}}
	if err := n.get(ctx, "get_alerts", "/v1/alerts", q, &body); err != nil {
		return nil, err
	}
	alerts := make([]models.GPSAlert, 0, len(body.Alerts))
	for i := range body.Alerts {
		alerts = append(alerts, n.normalizeAlert(&body.Alerts[i]))
	}
	return keepValidAlerts(ctx, alerts), nil
}

func (n *NavTrack) GetRouteHistory(ctx context.Context, vehicleID string, start, end time.Time) (*models.RouteHistory, error) {
	var body struct {
		Points []navTrackVehicle `json:"points"`
	}
	q := url.Values{
		"from": {start.UTC().Format(time.RFC3339)},
		"to":   {end.UTC().Format(time.RFC3339)},
	}
	err := n.get(ctx, "get_route_history", "/v1/units/"+url.PathEscape(vehicleID)+"/trail", q, &body)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	points := make([]models.VehicleLocation, 0, len(body.Points))
	for i := range body.Points {
		p := n.normalizeVehicle(&body.Points[i])
		if p.VehicleID == "" {
			p.VehicleID = vehicleID
		}
		points = append(points, p)
	}
	return models.BuildRouteHistory(vehicleID, keepValid(ctx, points)), nil
}

// AcknowledgeAlert returns false when NavTrack does not know the alert and
// true when it was already acknowledged there.
func (n *NavTrack) AcknowledgeAlert(ctx context.Context, alertID, userID string) (bool, error) {
	vendorID := models.VendorAlertID(n.cfg.ID, alertID)
	err := n.tr.sendJSON(ctx, "acknowledge_alert", http.MethodPost,
		"/v1/alerts/"+url.PathEscape(vendorID)+"/acknowledge",
		map[string]string{"user": userID}, n.auth, nil)
	switch {
	case err == nil, hasStatus(err, http.StatusConflict):
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func (n *NavTrack) SetGeofence(ctx context.Context, vehicleID string, lat, lon, radiusMeters float64) (bool, error) {
	if err := checkGeofence(vehicleID, lat, lon, radiusMeters); err != nil {
		return false, err
	}
	body := map[string]interface{}{
		"center":   map[string]float64{"lat": lat, "lng": lon},
		"radius_m": radiusMeters,
	}
	err := n.tr.sendJSON(ctx, "set_geofence", http.MethodPut,
		"/v1/units/"+url.PathEscape(vehicleID)+"/geofence", body, n.auth, nil)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (n *NavTrack) Sync(ctx context.Context) models.SyncResult {
	return runSync(logging.ContextWithProviderID(ctx, n.cfg.ID), n, n.opts.Now)
}

func (n *NavTrack) normalizeVehicle(v *navTrackVehicle) models.VehicleLocation {
	vehicleID := v.UnitID
	if vehicleID == "" {
		vehicleID = v.DeviceID
	}
	status, ok := navTrackStates[v.State]
	if !ok {
		status = models.StatusFromSpeed(v.SpeedKph, false)
	}
	loc := models.VehicleLocation{
		VehicleID:         vehicleID,
		Latitude:          v.Lat,
		Longitude:         v.Lng,
		Speed:             nonNegative(v.SpeedKph),
		Heading:           models.NormalizeHeading(v.Bearing),
		Altitude:          v.AltitudeM,
		Accuracy:          mapFloat(v.GPSAccuracyM, nonNegative),
		FuelLevel:         mapFloat(v.FuelPct, clampPercent),
		Temperature:       v.CoolantTempC,
		Odometer:          mapFloat(v.OdometerKm, nonNegative),
		Address:           models.String(v.Address),
		Status:            status,
		Timestamp:         parseRFC3339(v.RecordedAt),
		Provider:          n.cfg.ID,
		ProviderVehicleID: v.DeviceID,
	}
	return loc
}

func (n *NavTrack) normalizeAlert(a *navTrackAlert) models.GPSAlert {
	typ, known := navTrackCodes[a.Code]
	if !known {
		typ = models.AlertCustom
	}
	severity, ok := navTrackLevels[a.Level]
	if !ok {
		severity = models.SeverityMedium
	}
	ts := parseRFC3339(a.OccurredAt)
	id := models.AlertID(n.cfg.ID, a.ID)
	if a.ID == "" {
		id = models.DerivedAlertID(n.cfg.ID, a.UnitID, a.Code, ts)
	}
	return models.GPSAlert{
		ID:        id,
		VehicleID: a.UnitID,
		Provider:  n.cfg.ID,
		Type:      typ,
		Severity:  severity,
		Message:   a.Text,
		Timestamp: ts,
		Metadata:  alertMetadata(a.Code, a.ID, nil),
	}
}

// parseRFC3339 returns the zero time for unparseable input, which fails validation.
func parseRFC3339(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
