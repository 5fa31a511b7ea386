// Package store implements the fixed-capacity time-series storage for the
// node: a ring buffer holding one day of per-minute samples and a derived
// buffer holding one month of daily aggregates. Both buffers live behind a
// single mutex; any goroutine may call into the store concurrently.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/verdantworks/soilnode/internal/types"
	"go.uber.org/zap"
)

const (
	// SampleCapacity is the number of per-minute slots, one day's worth.
	SampleCapacity = 24 * 60
	// AggregateCapacity is the number of daily aggregate slots.
	AggregateCapacity = 30
	// CompleteSampleThreshold is the contributing-sample count at which a
	// daily aggregate is marked complete (80% of a full day at one-minute
	// cadence). Policy constant, not a correctness guarantee.
	CompleteSampleThreshold = 1200
)

// ErrNotFound is returned by lookups that matched nothing. Always
// recoverable; never indicates a corrupt store.
var ErrNotFound = errors.New("store: not found")

// ErrInvalidSample is returned when an insert is attempted with an invalid
// or timestamp-less sample.
var ErrInvalidSample = errors.New("store: invalid sample")

// Clock supplies local wall-clock time for recency queries. Recency results
// are only meaningful once the clock has been synced externally.
type Clock interface {
	NowLocal() time.Time
}

// Store owns the sample ring buffer and the daily aggregate buffer.
type Store struct {
	mu           sync.RWMutex
	samples      [SampleCapacity]types.Sample
	aggregates   [AggregateCapacity]types.DailyAggregate
	writeIndex   int
	totalInserts uint32
	clock        Clock
	logger       *zap.SugaredLogger
}

// New creates an empty store. The clock is required; queries that need wall
// time fail closed (return nothing recent) if it reports a meaningless time.
func New(clock Clock, logger *zap.SugaredLogger) *Store {
	return &Store{
		clock:  clock,
		logger: logger,
	}
}

// Insert writes sample at the current cursor, marks it valid and advances
// the cursor. Insertion never fails for a full buffer; the oldest slot is
// overwritten. The aggregate for the sample's day is recomputed in full
// before Insert returns.
func (s *Store) Insert(sample types.Sample) error {
	if sample.Timestamp.IsZero() {
		return ErrInvalidSample
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sample.Valid = true
	s.samples[s.writeIndex] = sample
	s.writeIndex = (s.writeIndex + 1) % SampleCapacity
	s.totalInserts++

	s.logger.Debugf("inserted sample at index %d: temp=%.1f humidity=%.1f soil=%.0f",
		(s.writeIndex+SampleCapacity-1)%SampleCapacity,
		sample.Temperature, sample.Humidity, sample.SoilMoisture)

	s.recomputeLocked(sample.Timestamp)
	return nil
}

// GetAt returns the valid sample whose timestamp matches ts at minute
// granularity. Seconds are ignored. This is an exact-minute lookup, not
// nearest-neighbor.
func (s *Store) GetAt(ts types.CalendarTime) (types.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.samples {
		if s.samples[i].Valid && s.samples[i].Timestamp.SameMinute(ts) {
			return s.samples[i], nil
		}
	}
	return types.Sample{}, ErrNotFound
}

// GetLatest returns the most recently inserted sample, the slot immediately
// behind the write cursor. On a cold start that slot was never written and
// ErrNotFound is returned.
func (s *Store) GetLatest() (types.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.writeIndex - 1
	if idx < 0 {
		idx = SampleCapacity - 1
	}
	if !s.samples[idx].Valid {
		return types.Sample{}, ErrNotFound
	}
	return s.samples[idx], nil
}

// GetRecent returns all valid samples newer than now minus hours, clamped to
// [1,24] hours and at most hours*60 entries. The result is unordered;
// callers that need time order must sort.
func (s *Store) GetRecent(hours int) []types.Sample {
	if hours < 1 {
		hours = 1
	}
	if hours > 24 {
		hours = 24
	}

	now := s.clock.NowLocal()
	cutoff := now.Add(-time.Duration(hours) * time.Hour)
	maxEntries := hours * 60

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Sample
	for i := range s.samples {
		if !s.samples[i].Valid {
			continue
		}
		if !s.samples[i].Timestamp.Time(now.Location()).Before(cutoff) {
			out = append(out, s.samples[i])
			if len(out) >= maxEntries {
				break
			}
		}
	}
	return out
}

// GetDay returns every valid sample recorded on the given calendar day.
func (s *Store) GetDay(date types.CalendarTime) []types.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Sample
	for i := range s.samples {
		if s.samples[i].Valid && s.samples[i].Timestamp.SameDay(date) {
			out = append(out, s.samples[i])
		}
	}
	return out
}

// Stats scans both buffers and reports counts plus oldest/newest timestamps
// for valid samples and complete daily aggregates. The buffers never signal
// overflow; compare SampleCount against SampleCapacity to detect a full ring.
func (s *Store) Stats() types.StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st types.StoreStats
	for i := range s.samples {
		if !s.samples[i].Valid {
			continue
		}
		ts := s.samples[i].Timestamp
		if st.SampleCount == 0 || ts.Before(st.OldestSample) {
			st.OldestSample = ts
		}
		if st.SampleCount == 0 || ts.After(st.NewestSample) {
			st.NewestSample = ts
		}
		st.SampleCount++
	}

	for i := range s.aggregates {
		if !s.aggregates[i].Complete {
			continue
		}
		d := s.aggregates[i].Date
		if st.AggregateCount == 0 || d.Before(st.OldestAggregate) {
			st.OldestAggregate = d
		}
		if st.AggregateCount == 0 || d.After(st.NewestAggregate) {
			st.NewestAggregate = d
		}
		st.AggregateCount++
	}
	return st
}

// TotalInserts returns the number of samples inserted since construction,
// including overwritten ones.
func (s *Store) TotalInserts() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalInserts
}

// Clear invalidates every sample and aggregate without reshaping the
// buffers, and resets the write cursor.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.samples {
		s.samples[i] = types.Sample{}
	}
	for i := range s.aggregates {
		s.aggregates[i] = types.DailyAggregate{}
	}
	s.writeIndex = 0
	s.logger.Info("all data buffers cleared")
}

// CleanupOlderThan invalidates samples older than 24 hours and aggregates
// older than 30 days, measured against the clock.
func (s *Store) CleanupOlderThan() {
	now := s.clock.NowLocal()
	sampleCutoff := now.Add(-24 * time.Hour)
	aggregateCutoff := now.Add(-30 * 24 * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()

	var cleanedSamples, cleanedAggregates int
	for i := range s.samples {
		if s.samples[i].Valid && s.samples[i].Timestamp.Time(now.Location()).Before(sampleCutoff) {
			s.samples[i].Valid = false
			cleanedSamples++
		}
	}
	for i := range s.aggregates {
		if s.aggregates[i].Populated() && s.aggregates[i].Date.Time(now.Location()).Before(aggregateCutoff) {
			s.aggregates[i] = types.DailyAggregate{}
			cleanedAggregates++
		}
	}

	s.logger.Infof("cleanup completed: removed %d samples, %d aggregates",
		cleanedSamples, cleanedAggregates)
}
