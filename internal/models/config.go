package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Ledger   LedgerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	CreateDemoUsers bool
}

// ServerConfig holds transfer gateway settings
type ServerConfig struct {
	ListenAddr      string
	JWTSecret       string
	ShutdownTimeout time.Duration
}

// LedgerConfig holds ledger service settings
type LedgerConfig struct {
	LockWaitTimeout time.Duration
	CurrenciesFile  string
	HistoryPageSize int
}
