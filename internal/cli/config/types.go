// Package config loads CLI configuration from file, environment
// variables, and flags.
package config

// Config holds all CLI configuration options.
type Config struct {
	// StatePath is the path of the engine's own SQLite database.
	StatePath string `koanf:"state_path"`
	// PlatformDSN is the Postgres DSN of the platform hosting local
	// projects. Empty when only remote projects are used.
	PlatformDSN string `koanf:"platform_dsn"`
	// Port is the HTTP API listen port.
	Port int `koanf:"port"`

	Verbose bool   `koanf:"verbose"`
	Output  string `koanf:"output"`
}

// Default configuration values.
const (
	DefaultStateFile = ".fieldshift/state.db"
	DefaultPort      = 8090
	DefaultOutput    = "table"
)
