// Package plant implements the plant-condition decision engine: a priority-
// ordered classifier that turns the latest sample plus recent history into
// one discrete condition.
package plant

import (
	"sort"
	"sync"

	"github.com/verdantworks/soilnode/internal/store"
	"github.com/verdantworks/soilnode/internal/types"
	"go.uber.org/zap"
)

// wateringWindowSamples is the minimum number of recent samples required
// before the watering delta heuristic applies.
const wateringWindowSamples = 3

// History is the slice of the store the classifier reads: the last hour of
// samples for the watering detector and the recent daily aggregates for the
// needs-watering rule.
type History interface {
	GetRecent(hours int) []types.Sample
	RecentAggregates(days int) []types.DailyAggregate
}

// Engine classifies plant condition. It holds one piece of state across
// calls: the last emitted condition, used only as a hysteresis input.
type Engine struct {
	mu      sync.Mutex
	last    types.PlantCondition
	history History
	logger  *zap.SugaredLogger
}

// NewEngine creates a classifier. The initial hysteresis state assumes
// moist soil.
func NewEngine(history History, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		last:    types.SoilWet,
		history: history,
		logger:  logger,
	}
}

// Classify evaluates the rules in priority order against the given sample
// and profile; the first matching rule wins. Store lookups that find
// insufficient data skip their rule rather than fail. An invalid sample
// classifies as ConditionError and leaves the hysteresis state unchanged.
func (e *Engine) Classify(sample types.Sample, profile types.PlantProfile) types.PlantCondition {
	if !sample.Valid {
		e.logger.Warn("invalid sample passed to classifier")
		return types.ConditionError
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	condition := e.classifyLocked(sample, profile)
	e.last = condition
	return condition
}

func (e *Engine) classifyLocked(sample types.Sample, profile types.PlantProfile) types.PlantCondition {
	moisture := sample.SoilMoisture
	temperature := sample.Temperature

	// Temperature limits are safety-critical and always win.
	if temperature >= profile.TempHighLimit {
		return types.TempTooHigh
	}
	if temperature <= profile.TempLowLimit {
		return types.TempTooLow
	}

	// A sharp moisture drop is the clearest watering signal; check it
	// before the slower day-granularity logic.
	if e.detectWateringEvent(moisture, profile.WateringThreshold) {
		e.logger.Infof("watering event detected: moisture dropped >= %.0f from two samples ago",
			profile.WateringThreshold)
		return types.WateringCompleted
	}

	// Hysteresis: never flap straight from dry to wet without surfacing
	// the completed watering.
	if (e.last == types.SoilDry || e.last == types.NeedsWatering) && moisture <= profile.SoilWetThreshold {
		e.logger.Info("watering completed: dry state reached wet threshold")
		return types.WateringCompleted
	}

	if e.needsWatering(profile) {
		return types.NeedsWatering
	}

	if moisture >= profile.SoilDryThreshold {
		return types.SoilDry
	}
	if moisture <= profile.SoilWetThreshold {
		return types.SoilWet
	}

	// Between the thresholds: no observable transition.
	return e.last
}

// detectWateringEvent compares the moisture reading from two samples ago
// against the current one and reports whether the decrease crosses the
// profile threshold. Requires at least three samples in the last hour.
func (e *Engine) detectWateringEvent(currentMoisture, threshold float32) bool {
	recent := e.history.GetRecent(1)
	if len(recent) < wateringWindowSamples {
		e.logger.Debugf("watering detection skipped: %d samples in window", len(recent))
		return false
	}

	// newest first
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].Timestamp.After(recent[j].Timestamp)
	})

	twoAgo := recent[2].SoilMoisture
	decrease := twoAgo - currentMoisture

	e.logger.Debugf("watering check: two samples ago=%.0f current=%.0f decrease=%.0f threshold=%.0f",
		twoAgo, currentMoisture, decrease, threshold)

	return decrease >= threshold
}

// needsWatering reports whether the last DryDaysForWatering daily aggregates
// all averaged at or above the dry threshold. Skipped when fewer days of
// history exist.
func (e *Engine) needsWatering(profile types.PlantProfile) bool {
	if profile.DryDaysForWatering < 1 {
		return false
	}

	aggregates := e.history.RecentAggregates(profile.DryDaysForWatering)
	if len(aggregates) < profile.DryDaysForWatering {
		return false
	}

	for _, agg := range aggregates {
		if agg.AvgSoilMoisture < profile.SoilDryThreshold {
			return false
		}
	}

	e.logger.Debugf("needs watering: %d consecutive dry days", profile.DryDaysForWatering)
	return true
}

var _ History = (*store.Store)(nil)
