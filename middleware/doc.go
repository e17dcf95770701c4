// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and JSON helpers.

  - WithLogging: request/completion logging via slog
  - JSONResponse / ErrorResponse: consistent JSON bodies
  - ParseJSONBody: request decoding
  - CORS: cross-origin headers for the configured client origins,
    including preflight handling
*/
package middleware
