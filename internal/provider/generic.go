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
	"strings"
	"time"

	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/models"
)

// Generic adapts any JSON REST vendor described by a models.FieldMapping.
// Authenticate performs no I/O: the key is sent on every request and a
// rejection surfaces from the data calls.
type Generic struct {
	cfg  models.ProviderConfig
	m    models.FieldMapping
	opts Options
	tr   *transport
}

var _ Adapter = (*Generic)(nil)

// NewGeneric builds a generic adapter. cfg.FieldMapping is required.
func NewGeneric(cfg models.ProviderConfig, opts Options) (*Generic, error) {
	if cfg.FieldMapping == nil {
		return nil, fleeterr.NewValidationError(fleeterr.Violation{
			Field: "fieldMapping", Rule: "required", Message: "fieldMapping is required for generic providers",
		})
	}
	if verr := cfg.FieldMapping.Validate(); verr != nil {
		return nil, verr
	}
	opts = opts.withDefaults()
	return &Generic{
		cfg:  cfg.Clone(),
		m:    cfg.FieldMapping.Clone(),
		opts: opts,
		tr:   newTransport(cfg.ID, cfg.APIURL, opts),
	}, nil
}

func (g *Generic) ID() string { return g.cfg.ID }

func (g *Generic) Config() models.ProviderConfig { return g.cfg.Clone() }

func (g *Generic) auth(r *http.Request) {
	switch g.m.AuthScheme {
	case models.AuthSchemeBearer:
		r.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	case models.AuthSchemeQuery:
		q := r.URL.Query()
		q.Set(g.m.AuthQuery, g.cfg.APIKey)
		r.URL.RawQuery = q.Encode()
	default:
		r.Header.Set(g.m.AuthHeader, g.cfg.APIKey)
	}
}

func (g *Generic) Authenticate(_ context.Context) (bool, error) {
	return g.cfg.APIKey != "", nil
}

func (g *Generic) fetch(ctx context.Context, op, path string) (interface{}, error) {
	var doc interface{}
	if err := g.tr.getJSON(ctx, op, path, nil, g.auth, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (g *Generic) GetVehicles(ctx context.Context) ([]models.VehicleLocation, error) {
	doc, err := g.fetch(ctx, "get_vehicles", g.m.VehiclesPath)
	if err != nil {
		return nil, err
	}
	items, err := listAt(doc, g.m.VehiclesRoot)
	if err != nil {
		return nil, err
	}
	locs := make([]models.VehicleLocation, 0, len(items))
	for _, item := range items {
		locs = append(locs, g.normalizeVehicle(item))
	}
	return keepValid(ctx, locs), nil
}

// GetVehicleLocation uses VehiclePath when configured, otherwise scans the fleet list.
func (g *Generic) GetVehicleLocation(ctx context.Context, vehicleID string) (*models.VehicleLocation, error) {
	if g.m.VehiclePath == "" {
		locs, err := g.GetVehicles(ctx)
		if err != nil {
			return nil, err
		}
		for i := range locs {
			if locs[i].VehicleID == vehicleID {
				return &locs[i], nil
			}
		}
		return nil, nil
	}

	doc, err := g.fetch(ctx, "get_vehicle", expandPath(g.m.VehiclePath, map[string]string{"vehicleId": vehicleID}))
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	loc := g.normalizeVehicle(doc)
	if loc.VehicleID == "" {
		loc.VehicleID = vehicleID
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return &loc, nil
}

// GetAlerts returns nothing when the mapping has no alerts endpoint.
func (g *Generic) GetAlerts(ctx context.Context) ([]models.GPSAlert, error) {
	if g.m.AlertsPath == "" {
		return nil, nil
	}
	doc, err := g.fetch(ctx, "get_alerts", g.m.AlertsPath)
	if err != nil {
		return nil, err
	}
	items, err := listAt(doc, g.m.AlertsRoot)
	if err != nil {
		return nil, err
	}
	alerts := make([]models.GPSAlert, 0, len(items))
	for _, item := range items {
		alerts = append(alerts, g.normalizeAlert(item))
	}
	return keepValidAlerts(ctx, alerts), nil
}

func (g *Generic) GetRouteHistory(ctx context.Context, vehicleID string, start, end time.Time) (*models.RouteHistory, error) {
	if g.m.HistoryPath == "" {
		return nil, nil
	}
	path := expandPath(g.m.HistoryPath, map[string]string{
		"vehicleId": vehicleID,
		"start":     g.formatTime(start),
		"end":       g.formatTime(end),
	})
	doc, err := g.fetch(ctx, "get_route_history", path)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	items, err := listAt(doc, g.m.HistoryRoot)
	if err != nil {
		return nil, err
	}
	points := make([]models.VehicleLocation, 0, len(items))
	for _, item := range items {
		p := g.normalizeVehicle(item)
		if p.VehicleID == "" {
			p.VehicleID = vehicleID
		}
		points = append(points, p)
	}
	return models.BuildRouteHistory(vehicleID, keepValid(ctx, points)), nil
}

// AcknowledgeAlert returns false when the mapping has no acknowledge endpoint.
func (g *Generic) AcknowledgeAlert(ctx context.Context, alertID, userID string) (bool, error) {
	if g.m.AcknowledgePath == "" {
		return false, nil
	}
	path := expandPath(g.m.AcknowledgePath, map[string]string{"alertId": models.VendorAlertID(g.cfg.ID, alertID)})
	err := g.tr.sendJSON(ctx, "acknowledge_alert", http.MethodPost, path, map[string]string{"userId": userID}, g.auth, nil)
	switch {
	case err == nil, hasStatus(err, http.StatusConflict):
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func (g *Generic) SetGeofence(ctx context.Context, vehicleID string, lat, lon, radiusMeters float64) (bool, error) {
	if err := checkGeofence(vehicleID, lat, lon, radiusMeters); err != nil {
		return false, err
	}
	if g.m.GeofencePath == "" {
		return false, nil
	}
	path := expandPath(g.m.GeofencePath, map[string]string{"vehicleId": vehicleID})
	body := map[string]interface{}{
		"vehicleId":    vehicleID,
		"latitude":     lat,
		"longitude":    lon,
		"radiusMeters": radiusMeters,
	}
	err := g.tr.sendJSON(ctx, "set_geofence", http.MethodPost, path, body, g.auth, nil)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (g *Generic) Sync(ctx context.Context) models.SyncResult {
	return runSync(logging.ContextWithProviderID(ctx, g.cfg.ID), g, g.opts.Now)
}

func (g *Generic) field(item interface{}, name string) (interface{}, bool) {
	path, ok := g.m.Fields[name]
	if !ok || path == "" {
		return nil, false
	}
	return lookup(item, path)
}

func (g *Generic) floatField(item interface{}, name string) (float64, bool) {
	v, ok := g.field(item, name)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

func (g *Generic) optFloat(item interface{}, name string, conv func(float64) float64) *float64 {
	f, ok := g.floatField(item, name)
	if !ok {
		return nil
	}
	if conv != nil {
		f = conv(f)
	}
	return &f
}

func (g *Generic) normalizeVehicle(item interface{}) models.VehicleLocation {
	id, _ := g.field(item, models.FieldVehicleID)
	lat, _ := g.floatField(item, models.FieldLatitude)
	lon, _ := g.floatField(item, models.FieldLongitude)
	rawSpeed, _ := g.floatField(item, models.FieldSpeed)
	heading, _ := g.floatField(item, models.FieldHeading)
	speed := g.speedKmh(rawSpeed)

	status := models.StatusFromSpeed(speed, false)
	if raw, ok := g.field(item, models.FieldStatus); ok {
		if mapped, ok := g.m.StatusMap[toString(raw)]; ok {
			status = mapped
		}
	}

	var address *string
	if raw, ok := g.field(item, models.FieldAddress); ok {
		address = models.String(toString(raw))
	}
	ts, _ := g.field(item, models.FieldTimestamp)
	vehicleID := toString(id)

	return models.VehicleLocation{
		VehicleID:         vehicleID,
		Latitude:          lat,
		Longitude:         lon,
		Speed:             speed,
		Heading:           models.NormalizeHeading(heading),
		Altitude:          g.optFloat(item, models.FieldAltitude, nil),
		Accuracy:          g.optFloat(item, models.FieldAccuracy, nonNegative),
		FuelLevel:         g.optFloat(item, models.FieldFuelLevel, g.fuelPercent),
		Temperature:       g.optFloat(item, models.FieldTemperature, nil),
		Odometer:          g.optFloat(item, models.FieldOdometer, g.distanceKm),
		Address:           address,
		Status:            status,
		Timestamp:         g.parseTime(ts),
		Provider:          g.cfg.ID,
		ProviderVehicleID: vehicleID,
	}
}

func (g *Generic) alertField(item interface{}, name string) (interface{}, bool) {
	path := g.m.AlertFields[name]
	if path == "" {
		path = name
	}
	return lookup(item, path)
}

func (g *Generic) normalizeAlert(item interface{}) models.GPSAlert {
	rawID, _ := g.alertField(item, models.AlertFieldID)
	rawVehicle, _ := g.alertField(item, models.AlertFieldVehicleID)
	rawCode, _ := g.alertField(item, models.AlertFieldCode)
	rawSeverity, _ := g.alertField(item, models.AlertFieldSeverity)
	rawMessage, _ := g.alertField(item, models.AlertFieldMessage)
	rawTS, _ := g.alertField(item, models.AlertFieldTimestamp)

	vendorID := toString(rawID)
	vehicleID := toString(rawVehicle)
	code := toString(rawCode)
	ts := g.parseTime(rawTS)

	typ, known := g.m.AlertCodes[code]
	if !known {
		typ = models.AlertCustom
	}
	severity := severityOr(g.m.SeverityMap[toString(rawSeverity)],
		severityOr(models.AlertSeverity(strings.ToLower(toString(rawSeverity))), models.SeverityMedium))

	id := models.AlertID(g.cfg.ID, vendorID)
	if vendorID == "" {
		id = models.DerivedAlertID(g.cfg.ID, vehicleID, code, ts)
	}
	return models.GPSAlert{
		ID:        id,
		VehicleID: vehicleID,
		Provider:  g.cfg.ID,
		Type:      typ,
		Severity:  severity,
		Message:   toString(rawMessage),
		Timestamp: ts,
		Metadata:  alertMetadata(code, vendorID, nil),
	}
}

func (g *Generic) speedKmh(v float64) float64 {
	switch g.m.SpeedUnit {
	case models.SpeedMph:
		return mphToKmh(v)
	case models.SpeedMps:
		return mpsToKmh(v)
	default:
		return nonNegative(v)
	}
}

func (g *Generic) distanceKm(v float64) float64 {
	switch g.m.DistanceUnit {
	case models.DistanceMiles:
		return milesToKm(v)
	case models.DistanceMeter:
		return metersToKm(v)
	default:
		return nonNegative(v)
	}
}

func (g *Generic) fuelPercent(v float64) float64 {
	if g.m.FuelUnit == models.FuelFraction {
		return fractionToPercent(v)
	}
	return clampPercent(v)
}

func (g *Generic) parseTime(v interface{}) time.Time {
	switch g.m.TimestampFormat {
	case models.TimeUnix:
		if f, ok := toFloat(v); ok && f > 0 {
			return time.Unix(int64(f), 0).UTC()
		}
		return time.Time{}
	case models.TimeUnixMs:
		if f, ok := toFloat(v); ok && f > 0 {
			return time.UnixMilli(int64(f)).UTC()
		}
		return time.Time{}
	default:
		return parseRFC3339(toString(v))
	}
}

func (g *Generic) formatTime(t time.Time) string {
	switch g.m.TimestampFormat {
	case models.TimeUnix:
		return strconv.FormatInt(t.Unix(), 10)
	case models.TimeUnixMs:
		return strconv.FormatInt(t.UnixMilli(), 10)
	default:
		return t.UTC().Format(time.RFC3339)
	}
}

// expandPath fills {name} placeholders with path-escaped values.
func expandPath(tmpl string, vars map[string]string) string {
	out := tmpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", url.PathEscape(v))
	}
	return out
}

// lookup walks a dotted path through decoded JSON. Numeric segments index arrays.
func lookup(doc interface{}, path string) (interface{}, bool) {
	if path == "" {
		return doc, doc != nil
	}
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// listAt returns the array found at root.
func listAt(doc interface{}, root string) ([]interface{}, error) {
	v, ok := lookup(doc, root)
	if !ok {
		return nil, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected array at %q, got %T", root, v)
	}
	return items, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
