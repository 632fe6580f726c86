package config

import "time"

const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultPGMaxConns        = 10
	DefaultPGMinConns        = 1
	DefaultPGMaxConnIdle     = 2 * time.Minute
	DefaultSQLiteBusyTimeout = 5 * time.Second
	DefaultSQLiteReadConns   = 4
	DefaultMaxBodyBytes      = 1 << 20
)
