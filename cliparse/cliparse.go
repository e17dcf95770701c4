// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port            int
	DatabaseURL     string
	DatabaseType    string
	ClientOrigins   []string
	RecentPollLimit int
}

// ParseFlags validates flags and fills in env-variable fallbacks
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var origins string

	fs := flag.NewFlagSet("classpulse", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&origins, "origin", "", "Allowed client origins (comma-separated)")
	fs.IntVar(&cfg.RecentPollLimit, "recent", 0, "Max polls returned by the archive listing")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3318 // default
		}
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}

	if origins == "" {
		origins = os.Getenv("CLIENT_ORIGIN")
		if origins == "" {
			origins = "*"
		}
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.ClientOrigins = append(cfg.ClientOrigins, o)
		}
	}

	if cfg.RecentPollLimit == 0 {
		if limitStr := os.Getenv("RECENT_POLL_LIMIT"); limitStr != "" {
			limit, err := strconv.Atoi(limitStr)
			if err != nil || limit < 1 {
				return Config{}, errors.New("invalid RECENT_POLL_LIMIT env variable")
			}
			cfg.RecentPollLimit = limit
		} else {
			cfg.RecentPollLimit = 20
		}
	}

	return cfg, nil
}

// AllowsOrigin reports whether the given Origin header value is permitted.
func (c Config) AllowsOrigin(origin string) bool {
	for _, o := range c.ClientOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
