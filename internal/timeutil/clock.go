// Package timeutil provides the node's wall clock: local time with a
// manually settable offset, a configurable IANA timezone, and a sync flag
// that tracks whether the clock has ever been set or synchronized.
package timeutil

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// NodeClock keeps local time for the sample store and the command link.
// Until the clock is set or synced it still ticks (from the host clock) but
// reports itself unsynced, which the system-status payload surfaces as a
// zero current time.
type NodeClock struct {
	filename string
	logger   *zap.SugaredLogger

	mu     sync.RWMutex
	loc    *time.Location
	tzName string
	offset time.Duration
	synced bool
}

type tzFile struct {
	Timezone string `yaml:"timezone"`
}

// NewNodeClock loads the persisted timezone from filename, defaulting to
// UTC when the file is absent.
func NewNodeClock(filename string, logger *zap.SugaredLogger) (*NodeClock, error) {
	c := &NodeClock{
		filename: filename,
		logger:   logger,
		loc:      time.UTC,
		tzName:   "UTC",
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("reading timezone file %v: %w", filename, err)
	}

	var saved tzFile
	if err := yaml.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("parsing timezone file %v: %w", filename, err)
	}
	if saved.Timezone != "" {
		if err := c.SetTimezone(saved.Timezone); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// NowLocal returns the current local time, including any manual offset.
func (c *NodeClock) NowLocal() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().Add(c.offset).In(c.loc)
}

// Synced reports whether the clock has been set or synchronized since boot.
func (c *NodeClock) Synced() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.synced
}

// SetLocal adjusts the clock so NowLocal tracks the given time, and marks
// the clock synced.
func (c *NodeClock) SetLocal(t time.Time) error {
	if t.IsZero() {
		return fmt.Errorf("refusing to set zero time")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = time.Until(t)
	c.synced = true
	c.logger.Infof("clock set to %v (offset %v)", t.In(c.loc), c.offset.Round(time.Second))
	return nil
}

// SyncNow adopts the host clock as authoritative, clearing any manual
// offset. The caller gates this on network connectivity.
func (c *NodeClock) SyncNow() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = 0
	c.synced = true
	c.logger.Info("clock synchronized to host time")
	return nil
}

// Timezone returns the active IANA timezone name.
func (c *NodeClock) Timezone() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tzName
}

// SetTimezone switches the clock to the named IANA timezone.
func (c *NodeClock) SetTimezone(name string) error {
	name = strings.TrimSpace(name)
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("unknown timezone %q: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loc = loc
	c.tzName = name
	return nil
}

// SaveTimezone persists the active timezone to the backing file.
func (c *NodeClock) SaveTimezone() error {
	c.mu.RLock()
	name := c.tzName
	c.mu.RUnlock()

	data, err := yaml.Marshal(tzFile{Timezone: name})
	if err != nil {
		return fmt.Errorf("encoding timezone: %w", err)
	}
	if err := os.WriteFile(c.filename, data, 0o644); err != nil {
		return fmt.Errorf("writing timezone file %v: %w", c.filename, err)
	}
	return nil
}
