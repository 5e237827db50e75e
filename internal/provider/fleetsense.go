// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/models"
)

// Credential keys FleetSense requires in ProviderConfig.Credentials.
const (
	CredUsername = "username"
	CredPassword = "password"
)

// defaultSessionTTL applies when the login response omits expiresIn.
const defaultSessionTTL = time.Hour

// FleetSense logs in with username and password and sends the returned
// session token on every call. A 401 mid-session triggers one re-login.
type FleetSense struct {
	cfg  models.ProviderConfig
	opts Options
	tr   *transport

	sess    session
	loginMu sync.Mutex
}

var _ Adapter = (*FleetSense)(nil)

type fleetSensePosition struct {
	VehicleRef    string `json:"vehicleRef"`
	TrackerSerial string `json:"trackerSerial"`
	Position      struct {
		Latitude  float64  `json:"latitude"`
		Longitude float64  `json:"longitude"`
		Altitude  *float64 `json:"altitude"`
		AccuracyM *float64 `json:"accuracyM"`
	} `json:"position"`
	SpeedKmh    float64  `json:"speedKmh"`
	Course      float64  `json:"course"`
	Fuel        *float64 `json:"fuel"`
	EngineTempC *float64 `json:"engineTempC"`
	OdometerM   *float64 `json:"odometerM"`
	Location    struct {
		FormattedAddress string `json:"formattedAddress"`
	} `json:"location"`
	Ignition bool   `json:"ignition"`
	Online   *bool  `json:"online"`
	GPSTime  string `json:"gpsTime"`
}

type fleetSenseEvent struct {
	EventID     string                 `json:"eventId"`
	VehicleRef  string                 `json:"vehicleRef"`
	Type        string                 `json:"type"`
	Priority    string                 `json:"priority"`
	Description string                 `json:"description"`
	EventTime   string                 `json:"eventTime"`
	Details     map[string]interface{} `json:"details"`
}

var fleetSenseTypes = map[string]models.AlertType{
	"OVERSPEED":      models.AlertSpeeding,
	"HARD_BRAKE":     models.AlertHarshBraking,
	"RAPID_ACCEL":    models.AlertHarshAcceleration,
	"FUEL_LOW":       models.AlertLowFuel,
	"DTC":            models.AlertEngineFault,
	"ENGINE_WARNING": models.AlertEngineFault,
	"ZONE_EXIT":      models.AlertGeofenceViolation,
	"ZONE_ENTRY":     models.AlertGeofenceViolation,
	"TRACKER_LOST":   models.AlertOffline,
}

var fleetSensePriorities = map[string]models.AlertSeverity{
	"LOW":    models.SeverityLow,
	"NORMAL": models.SeverityMedium,
	"HIGH":   models.SeverityHigh,
	"URGENT": models.SeverityCritical,
}

// NewFleetSense builds a FleetSense adapter. It performs no I/O.
func NewFleetSense(cfg models.ProviderConfig, opts Options) (*FleetSense, error) {
	verr := &fleeterr.ValidationError{}
	for _, key := range []string{CredUsername, CredPassword} {
		if cfg.Credential(key) == "" {
			verr.Add("credentials."+key, "required", "credentials."+key+" is required")
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	return &FleetSense{
		cfg:  cfg.Clone(),
		opts: opts,
		tr:   newTransport(cfg.ID, cfg.APIURL, opts),
	}, nil
}

func (f *FleetSense) ID() string { return f.cfg.ID }

func (f *FleetSense) Config() models.ProviderConfig { return f.cfg.Clone() }

// Authenticate reuses a live session or logs in. Concurrent callers share one login.
func (f *FleetSense) Authenticate(ctx context.Context) (bool, error) {
	if _, ok := f.sess.get(f.opts.Now()); ok {
		return true, nil
	}
	if _, err := f.login(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (f *FleetSense) login(ctx context.Context) (string, error) {
	f.loginMu.Lock()
	defer f.loginMu.Unlock()

	if token, ok := f.sess.get(f.opts.Now()); ok {
		return token, nil
	}

	var body struct {
		SessionToken string `json:"sessionToken"`
		ExpiresIn    int    `json:"expiresIn"`
	}
	creds := map[string]string{
		"accountKey": f.cfg.APIKey,
		"username":   f.cfg.Credential(CredUsername),
		"password":   f.cfg.Credential(CredPassword),
	}
	if err := f.tr.sendJSON(ctx, "login", http.MethodPost, "/api/auth/login", creds, nil, &body); err != nil {
		if hasStatus(err, http.StatusBadRequest) {
			return "", &fleeterr.AuthenticationError{Provider: f.cfg.ID, Err: err}
		}
		return "", err
	}
	if body.SessionToken == "" {
		return "", &fleeterr.AuthenticationError{Provider: f.cfg.ID, Err: fmt.Errorf("login response carried no session token")}
	}

	ttl := defaultSessionTTL
	if body.ExpiresIn > 0 {
		ttl = time.Duration(body.ExpiresIn) * time.Second
	}
	f.sess.set(body.SessionToken, f.opts.Now().Add(ttl))
	logging.Ctx(ctx).Debug().Str("provider_type", string(models.ProviderFleetSense)).Dur("ttl", ttl).Msg("Vendor session established")
	return body.SessionToken, nil
}

// call runs fn with a valid token, re-logging in once if the session was rejected.
func (f *FleetSense) call(ctx context.Context, fn func(auth authorizer) error) error {
	for attempt := 0; ; attempt++ {
		token, err := f.login(ctx)
		if err != nil {
			return err
		}
		err = fn(func(r *http.Request) { r.Header.Set("X-Session-Token", token) })
		if attempt == 0 && fleeterr.IsAuthentication(err) {
			f.sess.invalidate()
			continue
		}
		return err
	}
}

func (f *FleetSense) GetVehicles(ctx context.Context) ([]models.VehicleLocation, error) {
	var positions []fleetSensePosition
	err := f.call(ctx, func(auth authorizer) error {
		return f.tr.getJSON(ctx, "get_vehicles", "/api/fleet/positions", nil, auth, &positions)
	})
	if err != nil {
		return nil, err
	}
	locs := make([]models.VehicleLocation, 0, len(positions))
	for i := range positions {
		locs = append(locs, f.normalizePosition(&positions[i]))
	}
	return keepValid(ctx, locs), nil
}

func (f *FleetSense) GetVehicleLocation(ctx context.Context, vehicleID string) (*models.VehicleLocation, error) {
	var pos fleetSensePosition
	err := f.call(ctx, func(auth authorizer) error {
		return f.tr.getJSON(ctx, "get_vehicle", "/api/fleet/positions/"+url.PathEscape(vehicleID), nil, auth, &pos)
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	loc := f.normalizePosition(&pos)
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return &loc, nil
}

func (f *FleetSense) GetAlerts(ctx context.Context) ([]models.GPSAlert, error) {
	var body struct {
		Events []fleetSenseEvent `json:"events"`
	}
	err := f.call(ctx, func(auth authorizer) error {
		return f.tr.getJSON(ctx, "get_alerts", "/api/events", url.Values{"active": {"true"}}, auth, &body)
	})
	if err != nil {
		return nil, err
	}
	alerts := make([]models.GPSAlert, 0, len(body.Events))
	for i := range body.Events {
		alerts = append(alerts, f.normalizeEvent(&body.Events[i]))
	}
	return keepValidAlerts(ctx, alerts), nil
}

func (f *FleetSense) GetRouteHistory(ctx context.Context, vehicleID string, start, end time.Time) (*models.RouteHistory, error) {
	var body struct {
		Positions []fleetSensePosition `json:"positions"`
	}
	q := url.Values{
		"start": {start.UTC().Format(time.RFC3339)},
		"end":   {end.UTC().Format(time.RFC3339)},
	}
	err := f.call(ctx, func(auth authorizer) error {
		return f.tr.getJSON(ctx, "get_route_history", "/api/fleet/positions/"+url.PathEscape(vehicleID)+"/history", q, auth, &body)
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	points := make([]models.VehicleLocation, 0, len(body.Positions))
	for i := range body.Positions {
		p := f.normalizePosition(&body.Positions[i])
		if p.VehicleID == "" {
			p.VehicleID = vehicleID
		}
		points = append(points, p)
	}
	return models.BuildRouteHistory(vehicleID, keepValid(ctx, points)), nil
}

func (f *FleetSense) AcknowledgeAlert(ctx context.Context, alertID, userID string) (bool, error) {
	vendorID := models.VendorAlertID(f.cfg.ID, alertID)
	err := f.call(ctx, func(auth authorizer) error {
		return f.tr.sendJSON(ctx, "acknowledge_alert", http.MethodPost,
			"/api/events/"+url.PathEscape(vendorID)+"/ack",
			map[string]string{"acknowledgedBy": userID}, auth, nil)
	})
	switch {
	case err == nil, hasStatus(err, http.StatusConflict):
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func (f *FleetSense) SetGeofence(ctx context.Context, vehicleID string, lat, lon, radiusMeters float64) (bool, error) {
	if err := checkGeofence(vehicleID, lat, lon, radiusMeters); err != nil {
		return false, err
	}
	body := map[string]interface{}{
		"vehicleRef":   vehicleID,
		"center":       map[string]float64{"latitude": lat, "longitude": lon},
		"radiusMeters": radiusMeters,
	}
	err := f.call(ctx, func(auth authorizer) error {
		return f.tr.sendJSON(ctx, "set_geofence", http.MethodPost, "/api/zones", body, auth, nil)
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (f *FleetSense) Sync(ctx context.Context) models.SyncResult {
	return runSync(logging.ContextWithProviderID(ctx, f.cfg.ID), f, f.opts.Now)
}

func (f *FleetSense) normalizePosition(p *fleetSensePosition) models.VehicleLocation {
	vehicleID := p.VehicleRef
	if vehicleID == "" {
		vehicleID = p.TrackerSerial
	}
	status := models.StatusFromSpeed(p.SpeedKmh, p.Ignition)
	if p.Online != nil && !*p.Online {
		status = models.StatusOffline
	}
	return models.VehicleLocation{
		VehicleID:         vehicleID,
		Latitude:          p.Position.Latitude,
		Longitude:         p.Position.Longitude,
		Speed:             nonNegative(p.SpeedKmh),
		Heading:           models.NormalizeHeading(p.Course),
		Altitude:          p.Position.Altitude,
		Accuracy:          mapFloat(p.Position.AccuracyM, nonNegative),
		FuelLevel:         mapFloat(p.Fuel, fractionToPercent),
		Temperature:       p.EngineTempC,
		Odometer:          mapFloat(p.OdometerM, metersToKm),
		Address:           models.String(p.Location.FormattedAddress),
		Status:            status,
		Timestamp:         parseRFC3339(p.GPSTime),
		Provider:          f.cfg.ID,
		ProviderVehicleID: p.TrackerSerial,
	}
}

func (f *FleetSense) normalizeEvent(e *fleetSenseEvent) models.GPSAlert {
	typ, known := fleetSenseTypes[e.Type]
	if !known {
		typ = models.AlertCustom
	}
	severity, ok := fleetSensePriorities[e.Priority]
	if !ok {
		severity = models.SeverityMedium
	}
	ts := parseRFC3339(e.EventTime)
	id := models.AlertID(f.cfg.ID, e.EventID)
	if e.EventID == "" {
		id = models.DerivedAlertID(f.cfg.ID, e.VehicleRef, e.Type, ts)
	}
	return models.GPSAlert{
		ID:        id,
		VehicleID: e.VehicleRef,
		Provider:  f.cfg.ID,
		Type:      typ,
		Severity:  severity,
		Message:   e.Description,
		Timestamp: ts,
		Metadata:  alertMetadata(e.Type, e.EventID, e.Details),
	}
}
