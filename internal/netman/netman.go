// Package netman owns the uplink credentials and connection state. The
// actual radio is abstracted behind the Uplink interface so the node can run
// against real hardware, a host network, or nothing at all.
package netman

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/verdantworks/soilnode/internal/types"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Uplink brings the physical network link up and down.
type Uplink interface {
	Up(cfg types.NetworkConfig) error
	Down() error
}

// NullUplink accepts any credentials and always succeeds. Used when the node
// runs without a radio.
type NullUplink struct{}

func (NullUplink) Up(types.NetworkConfig) error { return nil }
func (NullUplink) Down() error                  { return nil }

// Manager keeps the working credentials and tracks link state.
type Manager struct {
	filename string
	uplink   Uplink
	logger   *zap.SugaredLogger

	mu        sync.RWMutex
	config    types.NetworkConfig
	connected bool
}

// NewManager loads persisted credentials from filename if present.
func NewManager(filename string, uplink Uplink, logger *zap.SugaredLogger) (*Manager, error) {
	m := &Manager{
		filename: filename,
		uplink:   uplink,
		logger:   logger,
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("reading network config %v: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, &m.config); err != nil {
		return nil, fmt.Errorf("parsing network config %v: %w", filename, err)
	}
	return m, nil
}

// SetConfig replaces the working credentials in memory. An established
// connection keeps running on the old credentials until reconnected.
func (m *Manager) SetConfig(cfg types.NetworkConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = cfg
}

// Config returns the working credentials.
func (m *Manager) Config() types.NetworkConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SaveConfig persists the working credentials to the backing file.
func (m *Manager) SaveConfig() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding network config: %w", err)
	}
	// credentials file, keep it owner-only
	if err := os.WriteFile(m.filename, data, 0o600); err != nil {
		return fmt.Errorf("writing network config %v: %w", m.filename, err)
	}
	return nil
}

// Connect brings the uplink up with the working credentials.
func (m *Manager) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.SSID == "" {
		return errors.New("no network configured")
	}
	if m.connected {
		return nil
	}
	if err := m.uplink.Up(m.config); err != nil {
		return fmt.Errorf("connecting to %q: %w", m.config.SSID, err)
	}
	m.connected = true
	m.logger.Infof("network connected to %q", m.config.SSID)
	return nil
}

// Disconnect takes the uplink down. Disconnecting an already-down link is
// not an error.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}
	if err := m.uplink.Down(); err != nil {
		return fmt.Errorf("disconnecting: %w", err)
	}
	m.connected = false
	m.logger.Info("network disconnected")
	return nil
}

// Connected reports the current link state.
func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}
