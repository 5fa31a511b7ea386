// Package types defines the data model shared by the soilnode subsystems:
// calendar timestamps, sensor samples, daily aggregates, plant profiles and
// the discrete plant condition produced by the decision engine.
package types

import "time"

// CapacitanceChannels is the number of capacitance channels carried by probes
// with a capacitance array.
const CapacitanceChannels = 4

// SampleShape selects which optional channels a deployed sensor configuration
// carries. It is chosen at construction time so one binary can serve every
// hardware revision.
type SampleShape uint8

const (
	// ShapeBasic is a single moisture channel plus one soil temperature probe.
	ShapeBasic SampleShape = iota
	// ShapeDualSoilTemp adds a second soil temperature channel.
	ShapeDualSoilTemp
	// ShapeCapacitanceArray adds a capacitance channel array on top of the
	// dual soil temperature channels.
	ShapeCapacitanceArray
)

// CalendarTime is a caller-supplied local calendar timestamp. There is no
// timezone attached; whoever produces it decides what "local" means.
type CalendarTime struct {
	Year    int `yaml:"year"`
	Month   int `yaml:"month"` // 1-12
	Day     int `yaml:"day"`
	Hour    int `yaml:"hour"`
	Minute  int `yaml:"minute"`
	Second  int `yaml:"second"`
	Weekday int `yaml:"weekday"`
	YearDay int `yaml:"year_day"`
}

// CalendarTimeOf converts a time.Time into its calendar fields.
func CalendarTimeOf(t time.Time) CalendarTime {
	return CalendarTime{
		Year:    t.Year(),
		Month:   int(t.Month()),
		Day:     t.Day(),
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Second:  t.Second(),
		Weekday: int(t.Weekday()),
		YearDay: t.YearDay(),
	}
}

// Time converts the calendar fields back into a time.Time in loc.
func (c CalendarTime) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(c.Year, time.Month(c.Month), c.Day, c.Hour, c.Minute, c.Second, 0, loc)
}

// IsZero reports whether no calendar fields have been set.
func (c CalendarTime) IsZero() bool {
	return c == CalendarTime{}
}

// SameMinute reports whether two timestamps match at minute granularity.
// Seconds are ignored.
func (c CalendarTime) SameMinute(o CalendarTime) bool {
	return c.Year == o.Year && c.Month == o.Month && c.Day == o.Day &&
		c.Hour == o.Hour && c.Minute == o.Minute
}

// SameDay reports whether two timestamps fall on the same calendar day.
func (c CalendarTime) SameDay(o CalendarTime) bool {
	return c.Year == o.Year && c.Month == o.Month && c.Day == o.Day
}

// DateOnly returns a copy with the time-of-day fields zeroed.
func (c CalendarTime) DateOnly() CalendarTime {
	return CalendarTime{Year: c.Year, Month: c.Month, Day: c.Day, Weekday: c.Weekday, YearDay: c.YearDay}
}

// Before reports whether c sorts earlier than o by calendar field order.
func (c CalendarTime) Before(o CalendarTime) bool {
	return c.key() < o.key()
}

// After reports whether c sorts later than o by calendar field order.
func (c CalendarTime) After(o CalendarTime) bool {
	return c.key() > o.key()
}

// CompareDate orders two timestamps by date only. Returns <0, 0 or >0.
func (c CalendarTime) CompareDate(o CalendarTime) int {
	if c.Year != o.Year {
		return c.Year - o.Year
	}
	if c.Month != o.Month {
		return c.Month - o.Month
	}
	return c.Day - o.Day
}

func (c CalendarTime) key() int64 {
	return ((((int64(c.Year)*12+int64(c.Month))*31+int64(c.Day))*24+
		int64(c.Hour))*60+int64(c.Minute))*60 + int64(c.Second)
}

// Sample is one per-minute sensor observation. A Sample is either fully
// populated with Valid set, or Valid is false and every consumer must
// ignore it.
type Sample struct {
	Timestamp    CalendarTime
	Temperature  float32 // °C
	Humidity     float32 // %RH
	Lux          float32
	SoilMoisture float32 // mV (resistive probe) or pF (capacitive probe)

	// Optional channels, populated per Shape.
	SoilTemp1   float32
	SoilTemp2   float32
	Capacitance [CapacitanceChannels]float32

	Shape SampleShape
	Valid bool
}

// DailyAggregate is the derived per-day summary recomputed from every sample
// sharing that calendar day.
type DailyAggregate struct {
	Date        CalendarTime
	SampleCount uint16

	MinTemperature float32
	MaxTemperature float32
	AvgTemperature float32
	AvgHumidity    float32
	AvgLux         float32

	AvgSoilMoisture float32
	MinSoilMoisture float32
	MaxSoilMoisture float32

	AvgSoilTemp float32
	MinSoilTemp float32
	MaxSoilTemp float32

	// Complete is set once the day has accumulated at least
	// store.CompleteSampleThreshold samples. Partial days stay visible.
	Complete bool
}

// Populated reports whether the aggregate holds at least one sample.
func (d DailyAggregate) Populated() bool {
	return d.SampleCount > 0
}

// PlantProfile holds the externally persisted thresholds driving
// classification. Dry and wet thresholds define a band; no ordering between
// them is enforced here.
type PlantProfile struct {
	Name               string  `yaml:"name"`
	SoilDryThreshold   float32 `yaml:"soil_dry_threshold"`
	SoilWetThreshold   float32 `yaml:"soil_wet_threshold"`
	DryDaysForWatering int     `yaml:"dry_days_for_watering"`
	TempHighLimit      float32 `yaml:"temp_high_limit"`
	TempLowLimit       float32 `yaml:"temp_low_limit"`
	WateringThreshold  float32 `yaml:"watering_threshold"`
}

// PlantCondition is the discrete classification output of the decision engine.
type PlantCondition uint8

const (
	SoilDry PlantCondition = iota
	SoilWet
	NeedsWatering
	WateringCompleted
	TempTooHigh
	TempTooLow
	ConditionError
)

func (p PlantCondition) String() string {
	switch p {
	case SoilDry:
		return "soil-dry"
	case SoilWet:
		return "soil-wet"
	case NeedsWatering:
		return "needs-watering"
	case WateringCompleted:
		return "watering-completed"
	case TempTooHigh:
		return "temp-too-high"
	case TempTooLow:
		return "temp-too-low"
	case ConditionError:
		return "error"
	}
	return "unknown"
}

// StoreStats summarizes the contents of the sample and aggregate buffers.
type StoreStats struct {
	SampleCount     uint16
	AggregateCount  uint16
	OldestSample    CalendarTime
	NewestSample    CalendarTime
	OldestAggregate CalendarTime
	NewestAggregate CalendarTime
}

// NetworkConfig carries credentials for the uplink network.
type NetworkConfig struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
}

// DeviceInfo is the static identity reported over the command link.
type DeviceInfo struct {
	Name            string
	FirmwareVersion string
	HardwareVersion string
	UptimeSeconds   uint32
	TotalReadings   uint32
}

// SystemStatus is the live runtime snapshot reported over the command link.
type SystemStatus struct {
	UptimeSeconds    uint32
	HeapFree         uint32
	HeapMinFree      uint32
	TaskCount        uint32
	CurrentTime      uint32 // unix seconds, 0 when the clock is unsynced
	NetworkConnected bool
	LinkSubscribed   bool
}
