// Package sampler runs the periodic sensor reading task: once per interval
// it reads the sensor source, stamps the reading and inserts it into the
// sample store.
package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/verdantworks/soilnode/internal/store"
	"github.com/verdantworks/soilnode/internal/types"
	"go.uber.org/zap"
)

// DefaultInterval matches the store's per-minute slot granularity.
const DefaultInterval = time.Minute

// cleanupInterval is how often expired samples and aggregates are swept.
const cleanupInterval = time.Hour

// SensorSource reads one measurement from the attached probe hardware.
type SensorSource interface {
	Read() (types.Sample, error)
}

// Sampler drives the acquisition loop.
type Sampler struct {
	source   SensorSource
	store    *store.Store
	clock    store.Clock
	interval time.Duration
	logger   *zap.SugaredLogger
}

// New creates a sampler. A zero interval selects DefaultInterval.
func New(source SensorSource, st *store.Store, clock store.Clock, interval time.Duration, logger *zap.SugaredLogger) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{
		source:   source,
		store:    st,
		clock:    clock,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the acquisition loop. An initial reading is taken
// immediately so the node has data as soon as it boots.
func (s *Sampler) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.logger.Infof("starting sensor acquisition every %v", s.interval)

		s.sampleOnce()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		cleanup := time.NewTicker(cleanupInterval)
		defer cleanup.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("stopping sensor acquisition")
				return
			case <-ticker.C:
				s.sampleOnce()
			case <-cleanup.C:
				s.store.CleanupOlderThan()
			}
		}
	}()
}

func (s *Sampler) sampleOnce() {
	sample, err := s.source.Read()
	if err != nil {
		s.logger.Errorf("sensor read failed: %v", err)
		return
	}

	if sample.Timestamp.IsZero() {
		sample.Timestamp = types.CalendarTimeOf(s.clock.NowLocal())
	}

	if err := s.store.Insert(sample); err != nil {
		s.logger.Errorf("could not store sample: %v", err)
		return
	}
	s.logger.Debugf("sample stored: temp=%.1f°C rh=%.0f%% lux=%.0f soil=%.0f",
		sample.Temperature, sample.Humidity, sample.Lux, sample.SoilMoisture)
}
