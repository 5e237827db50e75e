// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/fleetlink/internal/authz"
	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/logging"
)

// ErrUnauthenticated is returned when an operation runs without a caller.
var ErrUnauthenticated = errors.New("authentication required")

// WriteServiceError maps err onto a status code and writes the envelope.
//
//	*fleeterr.ValidationError     400 VALIDATION_FAILED (violations in details)
//	ErrUnauthenticated            401
//	authz.ErrForbidden            403
//	*fleeterr.NotFoundError       404
//	ErrSyncInProgress             409 SYNC_IN_PROGRESS
//	ErrProviderExists             409
//	vendor auth/transport errors  500 EXTERNAL_SERVICE_FAILED
//	persistence errors            500 DATABASE_ERROR
//	anything else                 500
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)

	var verr *fleeterr.ValidationError
	switch {
	case errors.As(err, &verr):
		rw.ValidationError(verr.Error(), verr.Violations)
	case errors.Is(err, ErrUnauthenticated):
		rw.Unauthorized(err.Error())
	case errors.Is(err, authz.ErrForbidden):
		rw.Forbidden(err.Error())
	case fleeterr.IsNotFound(err):
		rw.NotFound(err.Error())
	case errors.Is(err, fleeterr.ErrSyncInProgress):
		rw.Error(http.StatusConflict, ErrCodeSyncInProgress, err.Error())
	case errors.Is(err, ErrProviderExists):
		rw.Error(http.StatusConflict, ErrCodeConflict, err.Error())
	case fleeterr.IsAuthentication(err), fleeterr.IsTransport(err):
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Vendor call failed")
		rw.Error(http.StatusInternalServerError, ErrCodeExternalServiceFail, err.Error())
	case fleeterr.IsPersistence(err):
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Store error")
		rw.Error(http.StatusInternalServerError, ErrCodeDatabaseError, "A database error occurred")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		rw.Error(http.StatusInternalServerError, ErrCodeInternalError, "internal error")
	}
}
