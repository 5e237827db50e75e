// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package api is the administrative HTTP surface of Fleetlink.

It exposes provider management, sync control, vehicle and alert queries, the
audit trail and the live WebSocket stream under /api/v1, plus /health and
/metrics. Write operations are recorded in the audit log when one is
configured.

# Layers

  - Service: every operation, with authorization, callable without HTTP
  - Handler: decodes the request, calls one Service method, writes the envelope
  - NewRouter: chi routing and the middleware chain

# Middleware Chain

Global: request id, real IP, panic recovery, CORS.
Under /api/v1: per-IP rate limit (go-chi/httprate), security headers,
Prometheus request metrics, authentication. Writes and forced syncs carry
tighter limits.

# Response Format

Every response uses APIResponse:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "VALIDATION_FAILED", "message": "...", "details": [...]}}

Validation failures list every violated rule in error.details as
{field, rule, message} objects.

# Status Codes

	400  malformed body or validation failure
	401  missing or invalid credentials
	403  policy denies the operation
	404  unknown provider, vehicle, alert or route
	409  duplicate provider id, or a sync already in flight
	429  rate limit exceeded
	500  vendor, store or internal failure
	503  WebSocket capacity reached, or the store is down (/health)
*/
package api
