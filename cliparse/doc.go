// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles configuration for the ClassPulse server.

Configuration comes from CLI flags with environment-variable fallback:

  - PORT (-p): server port (default: 3318)
  - DATABASE_URL (-d): connection string, required
  - DATABASE_TYPE (-t): "sqlite" or "postgres" (default: sqlite)
  - CLIENT_ORIGIN (-origin): comma-separated allowed origins (default: *)
  - RECENT_POLL_LIMIT (-recent): archive listing size (default: 20)

Flags win over environment variables; both are optional except the
database URL.
*/
package cliparse
