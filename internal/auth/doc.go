// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package auth identifies callers of the administrative API.

Three modes are supported, selected by AUTH_MODE:

  - none: every request is the local administrator
  - jwt: HS256 bearer tokens carrying a username and roles
  - basic: one administrator checked against a bcrypt password hash

The result is an AuthSubject stored in the request context. What a subject
may do is decided by package authz.
*/
package auth
