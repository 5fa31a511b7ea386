package plant

import (
	"context"
	"sync"
	"time"

	"github.com/verdantworks/soilnode/internal/store"
	"github.com/verdantworks/soilnode/internal/types"
	"go.uber.org/zap"
)

// ProfileSource provides the active plant profile to the monitor loop.
type ProfileSource interface {
	Profile() types.PlantProfile
}

// Monitor periodically classifies the latest stored sample and logs
// condition transitions. Display rendering hangs off these log events in
// deployments with an indicator attached.
type Monitor struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	engine   *Engine
	store    *store.Store
	profiles ProfileSource
	interval time.Duration
	logger   *zap.SugaredLogger

	mu      sync.RWMutex
	current types.PlantCondition
}

// NewMonitor creates the periodic classifier task.
func NewMonitor(ctx context.Context, wg *sync.WaitGroup, engine *Engine, st *store.Store, profiles ProfileSource, interval time.Duration, logger *zap.SugaredLogger) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Monitor{
		ctx:      ctx,
		wg:       wg,
		engine:   engine,
		store:    st,
		profiles: profiles,
		interval: interval,
		logger:   logger,
		current:  types.SoilWet,
	}
}

// Start launches the monitor goroutine.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.run()
}

// Current returns the most recently computed condition.
func (m *Monitor) Current() types.PlantCondition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Infof("plant monitor started, classifying every %v", m.interval)
	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("cancellation request received, stopping plant monitor")
			return
		case <-ticker.C:
			m.classifyOnce()
		}
	}
}

func (m *Monitor) classifyOnce() {
	latest, err := m.store.GetLatest()
	if err != nil {
		m.logger.Debug("no sample available yet, skipping classification")
		return
	}

	condition := m.engine.Classify(latest, m.profiles.Profile())

	m.mu.Lock()
	previous := m.current
	m.current = condition
	m.mu.Unlock()

	if condition != previous {
		m.logger.Infof("plant condition changed: %v -> %v", previous, condition)
	}
}
