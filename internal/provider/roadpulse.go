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
	"strconv"
	"sync"
	"time"

	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/models"
)

// CredClientSecret is the OAuth client secret RoadPulse requires.
const CredClientSecret = "clientSecret"

// RoadPulse uses OAuth client credentials and reports imperial units.
type RoadPulse struct {
	cfg  models.ProviderConfig
	opts Options
	tr   *transport

	sess    session
	loginMu sync.Mutex
}

var _ Adapter = (*RoadPulse)(nil)

type roadPulseAsset struct {
	AssetID     string `json:"asset_id"`
	FleetNumber string `json:"fleet_number"`
	GPS         struct {
		Lat        float64  `json:"lat"`
		Lon        float64  `json:"lon"`
		AltFt      *float64 `json:"alt_ft"`
		Heading    float64  `json:"heading"`
		AccuracyFt *float64 `json:"accuracy_ft"`
	} `json:"gps"`
	SpeedMph      float64  `json:"speed_mph"`
	OdometerMi    *float64 `json:"odometer_mi"`
	FuelGal       *float64 `json:"fuel_gal"`
	TankGal       float64  `json:"tank_gal"`
	TempF         *float64 `json:"temp_f"`
	StreetAddress string   `json:"street_address"`
	Motion        string   `json:"motion"`
	TS            int64    `json:"ts"`
}

type roadPulseAlert struct {
	ID          string  `json:"id"`
	FleetNumber string  `json:"fleet_number"`
	Category    string  `json:"category"`
	Severity    string  `json:"severity"`
	Summary     string  `json:"summary"`
	TS          int64   `json:"ts"`
	Value       float64 `json:"value,omitempty"`
}

var roadPulseMotion = map[string]models.VehicleStatus{
	"MOVING":      models.StatusMoving,
	"STOPPED":     models.StatusStopped,
	"IDLE":        models.StatusIdle,
	"UNREACHABLE": models.StatusOffline,
}

var roadPulseCategories = map[string]models.AlertType{
	"SPEEDING":     models.AlertSpeeding,
	"HARSH_BRAKE":  models.AlertHarshBraking,
	"HARSH_ACCEL":  models.AlertHarshAcceleration,
	"LOW_FUEL":     models.AlertLowFuel,
	"CHECK_ENGINE": models.AlertEngineFault,
	"GEOFENCE":     models.AlertGeofenceViolation,
	"UNREACHABLE":  models.AlertOffline,
}

var roadPulseSeverities = map[string]models.AlertSeverity{
	"minor":    models.SeverityLow,
	"moderate": models.SeverityMedium,
	"major":    models.SeverityHigh,
	"critical": models.SeverityCritical,
}

// NewRoadPulse builds a RoadPulse adapter. It performs no I/O.
func NewRoadPulse(cfg models.ProviderConfig, opts Options) (*RoadPulse, error) {
	if cfg.Credential(CredClientSecret) == "" {
		return nil, fleeterr.NewValidationError(fleeterr.Violation{
			Field:   "credentials." + CredClientSecret,
			Rule:    "required",
			Message: "credentials." + CredClientSecret + " is required",
		})
	}
	opts = opts.withDefaults()
	return &RoadPulse{
		cfg:  cfg.Clone(),
		opts: opts,
		tr:   newTransport(cfg.ID, cfg.APIURL, opts),
	}, nil
}

func (p *RoadPulse) ID() string { return p.cfg.ID }

func (p *RoadPulse) Config() models.ProviderConfig { return p.cfg.Clone() }

func (p *RoadPulse) Authenticate(ctx context.Context) (bool, error) {
	if _, err := p.token(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// token returns a cached bearer token or requests a new one.
func (p *RoadPulse) token(ctx context.Context) (string, error) {
	if tok, ok := p.sess.get(p.opts.Now()); ok {
		return tok, nil
	}

	p.loginMu.Lock()
	defer p.loginMu.Unlock()
	if tok, ok := p.sess.get(p.opts.Now()); ok {
		return tok, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {p.cfg.APIKey},
		"client_secret": {p.cfg.Credential(CredClientSecret)},
	}
	resp, err := p.tr.do(ctx, request{op: "oauth_token", method: http.MethodPost, path: "/oauth/token", form: form}, nil)
	if err != nil {
		// OAuth servers answer bad client credentials with 400 invalid_client.
		if hasStatus(err, http.StatusBadRequest) {
			return "", &fleeterr.AuthenticationError{Provider: p.cfg.ID, Err: err}
		}
		return "", err
	}
	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := decodeBody("oauth_token", resp, &body); err != nil {
		return "", err
	}
	if body.AccessToken == "" {
		return "", &fleeterr.AuthenticationError{Provider: p.cfg.ID, Err: fmt.Errorf("token response carried no access_token")}
	}

	ttl := defaultSessionTTL
	if body.ExpiresIn > 0 {
		ttl = time.Duration(body.ExpiresIn) * time.Second
	}
	p.sess.set(body.AccessToken, p.opts.Now().Add(ttl))
	logging.Ctx(ctx).Debug().Str("provider_type", string(models.ProviderRoadPulse)).Dur("ttl", ttl).Msg("Vendor token issued")
	return body.AccessToken, nil
}

// call runs fn with a bearer token, fetching a new token once if the current one is rejected.
func (p *RoadPulse) call(ctx context.Context, fn func(auth authorizer) error) error {
	for attempt := 0; ; attempt++ {
		tok, err := p.token(ctx)
		if err != nil {
			return err
		}
		err = fn(func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) })
		if attempt == 0 && fleeterr.IsAuthentication(err) {
			p.sess.invalidate()
			continue
		}
		return err
	}
}

func (p *RoadPulse) GetVehicles(ctx context.Context) ([]models.VehicleLocation, error) {
	var body struct {
		Data []roadPulseAsset `json:"data"`
	}
	err := p.call(ctx, func(auth authorizer) error {
		return p.tr.getJSON(ctx, "get_vehicles", "/v2/assets", nil, auth, &body)
	})
	if err != nil {
		return nil, err
	}
	locs := make([]models.VehicleLocation, 0, len(body.Data))
	for i := range body.Data {
		locs = append(locs, p.normalizeAsset(&body.Data[i]))
	}
	return keepValid(ctx, locs), nil
}

func (p *RoadPulse) GetVehicleLocation(ctx context.Context, vehicleID string) (*models.VehicleLocation, error) {
	var body struct {
		Data roadPulseAsset `json:"data"`
	}
	err := p.call(ctx, func(auth authorizer) error {
		return p.tr.getJSON(ctx, "get_vehicle", "/v2/assets/"+url.PathEscape(vehicleID), nil, auth, &body)
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	loc := p.normalizeAsset(&body.Data)
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return &loc, nil
}

func (p *RoadPulse) GetAlerts(ctx context.Context) ([]models.GPSAlert, error) {
	var body struct {
		Data []roadPulseAlert `json:"data"`
	}
	err := p.call(ctx, func(auth authorizer) error {
		return p.tr.getJSON(ctx, "get_alerts", "/v2/alerts", url.Values{"state": {"active"}}, auth, &body)
	})
	if err != nil {
		return nil, err
	}
	alerts := make([]models.GPSAlert, 0, len(body.Data))
	for i := range body.Data {
		alerts = append(alerts, p.normalizeAlert(&body.Data[i]))
	}
	return keepValidAlerts(ctx, alerts), nil
}

func (p *RoadPulse) GetRouteHistory(ctx context.Context, vehicleID string, start, end time.Time) (*models.RouteHistory, error) {
	var body struct {
		Data []roadPulseAsset `json:"data"`
	}
	q := url.Values{
		"start_ts": {strconv.FormatInt(start.Unix(), 10)},
		"end_ts":   {strconv.FormatInt(end.Unix(), 10)},
	}
	err := p.call(ctx, func(auth authorizer) error {
		return p.tr.getJSON(ctx, "get_route_history", "/v2/assets/"+url.PathEscape(vehicleID)+"/breadcrumbs", q, auth, &body)
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	points := make([]models.VehicleLocation, 0, len(body.Data))
	for i := range body.Data {
		pt := p.normalizeAsset(&body.Data[i])
		if pt.VehicleID == "" {
			pt.VehicleID = vehicleID
		}
		points = append(points, pt)
	}
	return models.BuildRouteHistory(vehicleID, keepValid(ctx, points)), nil
}

func (p *RoadPulse) AcknowledgeAlert(ctx context.Context, alertID, userID string) (bool, error) {
	vendorID := models.VendorAlertID(p.cfg.ID, alertID)
	err := p.call(ctx, func(auth authorizer) error {
		return p.tr.sendJSON(ctx, "acknowledge_alert", http.MethodPost,
			"/v2/alerts/"+url.PathEscape(vendorID)+"/acknowledge",
			map[string]string{"acknowledged_by": userID}, auth, nil)
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

func (p *RoadPulse) SetGeofence(ctx context.Context, vehicleID string, lat, lon, radiusMeters float64) (bool, error) {
	if err := checkGeofence(vehicleID, lat, lon, radiusMeters); err != nil {
		return false, err
	}
	body := map[string]float64{
		"lat":       lat,
		"lon":       lon,
		"radius_ft": metersToFeet(radiusMeters),
	}
	err := p.call(ctx, func(auth authorizer) error {
		return p.tr.sendJSON(ctx, "set_geofence", http.MethodPost,
			"/v2/assets/"+url.PathEscape(vehicleID)+"/geofences", body, auth, nil)
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *RoadPulse) Sync(ctx context.Context) models.SyncResult {
	return runSync(logging.ContextWithProviderID(ctx, p.cfg.ID), p, p.opts.Now)
}

func (p *RoadPulse) normalizeAsset(a *roadPulseAsset) models.VehicleLocation {
	vehicleID := a.FleetNumber
	if vehicleID == "" {
		vehicleID = a.AssetID
	}
	speed := mphToKmh(a.SpeedMph)
	status, ok := roadPulseMotion[a.Motion]
	if !ok {
		status = models.StatusFromSpeed(speed, false)
	}
	var fuel *float64
	if a.FuelGal != nil {
		if pct, ok := tankPercent(*a.FuelGal, a.TankGal); ok {
			fuel = &pct
		}
	}
	var ts time.Time
	if a.TS > 0 {
		ts = time.Unix(a.TS, 0).UTC()
	}
	return models.VehicleLocation{
		VehicleID:         vehicleID,
		Latitude:          a.GPS.Lat,
		Longitude:         a.GPS.Lon,
		Speed:             speed,
		Heading:           models.NormalizeHeading(a.GPS.Heading),
		Altitude:          mapFloat(a.GPS.AltFt, feetToMeters),
		Accuracy:          mapFloat(a.GPS.AccuracyFt, func(v float64) float64 { return nonNegative(feetToMeters(v)) }),
		FuelLevel:         fuel,
		Temperature:       mapFloat(a.TempF, fahrenheitToCelsius),
		Odometer:          mapFloat(a.OdometerMi, milesToKm),
		Address:           models.String(a.StreetAddress),
		Status:            status,
		Timestamp:         ts,
		Provider:          p.cfg.ID,
		ProviderVehicleID: a.AssetID,
	}
}

func (p *RoadPulse) normalizeAlert(a *roadPulseAlert) models.GPSAlert {
	typ, known := roadPulseCategories[a.Category]
	if !known {
		typ = models.AlertCustom
	}
	severity, ok := roadPulseSeverities[a.Severity]
	if !ok {
		severity = models.SeverityMedium
	}
	var ts time.Time
	if a.TS > 0 {
		ts = time.Unix(a.TS, 0).UTC()
	}
	id := models.AlertID(p.cfg.ID, a.ID)
	if a.ID == "" {
		id = models.DerivedAlertID(p.cfg.ID, a.FleetNumber, a.Category, ts)
	}
	var extra map[string]interface{}
	if typ == models.AlertSpeeding && a.Value > 0 {
		extra = map[string]interface{}{"speedKmh": mphToKmh(a.Value)}
	}
	return models.GPSAlert{
		ID:        id,
		VehicleID: a.FleetNumber,
		Provider:  p.cfg.ID,
		Type:      typ,
		Severity:  severity,
		Message:   a.Summary,
		Timestamp: ts,
		Metadata:  alertMetadata(a.Category, a.ID, extra),
	}
}
