// Package profile manages the active plant profile: the thresholds the
// decision engine classifies against. The profile lives in memory and is
// persisted to a YAML file on request from the command link.
package profile

import (
	"fmt"
	"os"
	"sync"

	"github.com/verdantworks/soilnode/internal/types"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Default is the profile the node runs with until one is loaded or applied.
var Default = types.PlantProfile{
	Name:               "default",
	SoilDryThreshold:   2500,
	SoilWetThreshold:   1000,
	DryDaysForWatering: 3,
	TempHighLimit:      35,
	TempLowLimit:       5,
	WateringThreshold:  300,
}

// Manager holds the active profile and its backing file.
type Manager struct {
	filename string
	logger   *zap.SugaredLogger

	mu      sync.RWMutex
	current types.PlantProfile
}

// NewManager loads the profile from filename if present, falling back to the
// default profile otherwise. A missing file is not an error; the node has to
// come up on first boot.
func NewManager(filename string, logger *zap.SugaredLogger) (*Manager, error) {
	m := &Manager{
		filename: filename,
		logger:   logger,
		current:  Default,
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Infof("no profile at %v, using default profile %q", filename, Default.Name)
			return m, nil
		}
		return nil, fmt.Errorf("reading profile %v: %w", filename, err)
	}

	var loaded types.PlantProfile
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parsing profile %v: %w", filename, err)
	}

	m.current = loaded
	logger.Infof("loaded plant profile %q from %v", loaded.Name, filename)
	return m, nil
}

// Profile returns the active profile.
func (m *Manager) Profile() types.PlantProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Apply replaces the active profile in memory. The change is not persisted
// until Persist is called.
func (m *Manager) Apply(p types.PlantProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = p
}

// Persist writes the active profile to the backing file.
func (m *Manager) Persist() error {
	m.mu.RLock()
	current := m.current
	m.mu.RUnlock()

	data, err := yaml.Marshal(current)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	if err := os.WriteFile(m.filename, data, 0o644); err != nil {
		return fmt.Errorf("writing profile %v: %w", m.filename, err)
	}
	m.logger.Debugf("persisted plant profile %q to %v", current.Name, m.filename)
	return nil
}
