package store

import (
	"sort"

	"github.com/verdantworks/soilnode/internal/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// slotIndex hashes a date into the aggregate buffer. It is a hash, not a
// unique key: two dates in different months can land on the same slot, and
// the later write replaces the earlier aggregate. Preserved deliberately,
// matching the deployed fleet's behavior.
func slotIndex(date types.CalendarTime) int {
	return (date.Month*31 + date.Day) % AggregateCapacity
}

// Recompute rescans the sample buffer for the given day and rewrites that
// day's aggregate slot. Called automatically on every insert; exposed for
// manual recalculation over the command link. Returns ErrNotFound when the
// day has no valid samples, leaving the slot untouched.
func (s *Store) Recompute(date types.CalendarTime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recomputeLocked(date)
}

func (s *Store) recomputeLocked(date types.CalendarTime) error {
	var (
		temps     []float64
		humidity  []float64
		lux       []float64
		moisture  []float64
		soilTemps []float64
	)

	for i := range s.samples {
		if !s.samples[i].Valid || !s.samples[i].Timestamp.SameDay(date) {
			continue
		}
		sm := &s.samples[i]
		temps = append(temps, float64(sm.Temperature))
		humidity = append(humidity, float64(sm.Humidity))
		lux = append(lux, float64(sm.Lux))
		moisture = append(moisture, float64(sm.SoilMoisture))
		soilTemps = append(soilTemps, float64(sm.SoilTemp1))
	}

	if len(temps) == 0 {
		return ErrNotFound
	}

	agg := types.DailyAggregate{
		Date:        date.DateOnly(),
		SampleCount: uint16(len(temps)),

		MinTemperature: float32(floats.Min(temps)),
		MaxTemperature: float32(floats.Max(temps)),
		AvgTemperature: float32(stat.Mean(temps, nil)),
		AvgHumidity:    float32(stat.Mean(humidity, nil)),
		AvgLux:         float32(stat.Mean(lux, nil)),

		AvgSoilMoisture: float32(stat.Mean(moisture, nil)),
		MinSoilMoisture: float32(floats.Min(moisture)),
		MaxSoilMoisture: float32(floats.Max(moisture)),

		AvgSoilTemp: float32(stat.Mean(soilTemps, nil)),
		MinSoilTemp: float32(floats.Min(soilTemps)),
		MaxSoilTemp: float32(floats.Max(soilTemps)),

		Complete: len(temps) >= CompleteSampleThreshold,
	}

	s.aggregates[slotIndex(date)] = agg
	s.logger.Debugf("daily aggregate recomputed for %04d-%02d-%02d: samples=%d complete=%v",
		date.Year, date.Month, date.Day, agg.SampleCount, agg.Complete)
	return nil
}

// GetAggregate returns the aggregate whose date matches exactly. Partial
// days are returned too, marked incomplete.
func (s *Store) GetAggregate(date types.CalendarTime) (types.DailyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.aggregates {
		if s.aggregates[i].Populated() && s.aggregates[i].Date.SameDay(date) {
			return s.aggregates[i], nil
		}
	}
	return types.DailyAggregate{}, ErrNotFound
}

// LatestAggregate returns the populated aggregate with the greatest date.
func (s *Store) LatestAggregate() (types.DailyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best := -1
	for i := range s.aggregates {
		if !s.aggregates[i].Populated() {
			continue
		}
		if best < 0 || s.aggregates[i].Date.CompareDate(s.aggregates[best].Date) > 0 {
			best = i
		}
	}
	if best < 0 {
		return types.DailyAggregate{}, ErrNotFound
	}
	return s.aggregates[best], nil
}

// RecentAggregates returns up to days populated aggregates, sorted ascending
// by date, keeping the newest ones. days is clamped to the buffer capacity.
func (s *Store) RecentAggregates(days int) []types.DailyAggregate {
	if days < 1 {
		return nil
	}
	if days > AggregateCapacity {
		days = AggregateCapacity
	}

	s.mu.RLock()
	var all []types.DailyAggregate
	for i := range s.aggregates {
		if s.aggregates[i].Populated() {
			all = append(all, s.aggregates[i])
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].Date.CompareDate(all[j].Date) < 0
	})

	if len(all) > days {
		all = all[len(all)-days:]
	}
	return all
}
