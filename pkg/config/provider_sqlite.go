package config

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from the SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	query := `
		SELECT device_name, link_serial_device, link_baud, link_listen_addr,
		       http_listen_addr,
		       sampler_interval_seconds, sampler_simulate, sampler_simulator_seed,
		       profile_file, timezone_file, network_file,
		       logging_debug, logging_file
		FROM node_config
		WHERE name = 'default'
	`

	config := &ConfigData{}
	err := s.db.QueryRow(query).Scan(
		&config.Device.Name,
		&config.Link.SerialDevice, &config.Link.Baud, &config.Link.ListenAddr,
		&config.HTTP.ListenAddr,
		&config.Sampler.IntervalSeconds, &config.Sampler.Simulate, &config.Sampler.SimulatorSeed,
		&config.Paths.ProfileFile, &config.Paths.TimezoneFile, &config.Paths.NetworkFile,
		&config.Logging.Debug, &config.Logging.File,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no configuration named 'default' in %s", s.dbPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query node config: %w", err)
	}

	config.ApplyDefaults()
	return config, nil
}

// InitSchema creates the configuration table if it does not exist.
func (s *SQLiteProvider) InitSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS node_config (
			name TEXT PRIMARY KEY,
			device_name TEXT NOT NULL DEFAULT '',
			link_serial_device TEXT NOT NULL DEFAULT '',
			link_baud INTEGER NOT NULL DEFAULT 0,
			link_listen_addr TEXT NOT NULL DEFAULT '',
			http_listen_addr TEXT NOT NULL DEFAULT '',
			sampler_interval_seconds INTEGER NOT NULL DEFAULT 0,
			sampler_simulate INTEGER NOT NULL DEFAULT 0,
			sampler_simulator_seed INTEGER NOT NULL DEFAULT 0,
			profile_file TEXT NOT NULL DEFAULT '',
			timezone_file TEXT NOT NULL DEFAULT '',
			network_file TEXT NOT NULL DEFAULT '',
			logging_debug INTEGER NOT NULL DEFAULT 0,
			logging_file TEXT NOT NULL DEFAULT ''
		)
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create config schema: %w", err)
	}
	return nil
}

// SaveConfig writes the configuration as the 'default' entry.
func (s *SQLiteProvider) SaveConfig(config *ConfigData) error {
	query := `
		INSERT INTO node_config (
			name, device_name, link_serial_device, link_baud, link_listen_addr,
			http_listen_addr,
			sampler_interval_seconds, sampler_simulate, sampler_simulator_seed,
			profile_file, timezone_file, network_file,
			logging_debug, logging_file
		) VALUES ('default', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			device_name = excluded.device_name,
			link_serial_device = excluded.link_serial_device,
			link_baud = excluded.link_baud,
			link_listen_addr = excluded.link_listen_addr,
			http_listen_addr = excluded.http_listen_addr,
			sampler_interval_seconds = excluded.sampler_interval_seconds,
			sampler_simulate = excluded.sampler_simulate,
			sampler_simulator_seed = excluded.sampler_simulator_seed,
			profile_file = excluded.profile_file,
			timezone_file = excluded.timezone_file,
			network_file = excluded.network_file,
			logging_debug = excluded.logging_debug,
			logging_file = excluded.logging_file
	`
	_, err := s.db.Exec(query,
		config.Device.Name,
		config.Link.SerialDevice, config.Link.Baud, config.Link.ListenAddr,
		config.HTTP.ListenAddr,
		config.Sampler.IntervalSeconds, config.Sampler.Simulate, config.Sampler.SimulatorSeed,
		config.Paths.ProfileFile, config.Paths.TimezoneFile, config.Paths.NetworkFile,
		config.Logging.Debug, config.Logging.File,
	)
	if err != nil {
		return fmt.Errorf("failed to save node config: %w", err)
	}
	return nil
}

// IsReadOnly reports whether the provider supports writes
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the underlying database
func (s *SQLiteProvider) Close() error {
	return s.db.Close()
}
