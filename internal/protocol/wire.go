package protocol

import (
	"bytes"
	"encoding/binary"

	"github.com/verdantworks/soilnode/internal/types"
)

// Wire layouts are fixed little-endian structs shared with the paired
// controller. Calendar timestamps travel in the C tm convention: years
// since 1900, months 0-11, year-day 0-based.

type wireCalendar struct {
	Sec   int32
	Min   int32
	Hour  int32
	Mday  int32
	Mon   int32
	Year  int32
	Wday  int32
	Yday  int32
	Isdst int32
}

// WireCalendarSize is the encoded size of a calendar timestamp.
const WireCalendarSize = 9 * 4

func calendarToWire(c types.CalendarTime) wireCalendar {
	return wireCalendar{
		Sec:  int32(c.Second),
		Min:  int32(c.Minute),
		Hour: int32(c.Hour),
		Mday: int32(c.Day),
		Mon:  int32(c.Month - 1),
		Year: int32(c.Year - 1900),
		Wday: int32(c.Weekday),
		Yday: int32(c.YearDay - 1),
	}
}

func calendarFromWire(w wireCalendar) types.CalendarTime {
	return types.CalendarTime{
		Second:  int(w.Sec),
		Minute:  int(w.Min),
		Hour:    int(w.Hour),
		Day:     int(w.Mday),
		Month:   int(w.Mon) + 1,
		Year:    int(w.Year) + 1900,
		Weekday: int(w.Wday),
		YearDay: int(w.Yday) + 1,
	}
}

// wireSample is the basic latest-sample payload (opcode 0x01).
type wireSample struct {
	Timestamp    wireCalendar
	Lux          float32
	Temperature  float32
	Humidity     float32
	SoilMoisture float32
	SoilTemp     float32
}

// wireSampleV2 extends wireSample with the secondary soil temperature and
// the capacitance channel array (opcode 0x17).
type wireSampleV2 struct {
	wireSample
	SoilTemp2   float32
	Capacitance [types.CapacitanceChannels]float32
}

// wireTimeQueryResult is the get-sample-by-time payload (opcode 0x0A).
type wireTimeQueryResult struct {
	ActualTime   wireCalendar
	Temperature  float32
	Humidity     float32
	Lux          float32
	SoilMoisture float32
}

// wireProfile is the fixed 56-byte plant profile (opcodes 0x03/0x0C).
type wireProfile struct {
	Name               [32]byte
	SoilDryThreshold   float32
	SoilWetThreshold   float32
	DryDaysForWatering int32
	TempHighLimit      float32
	TempLowLimit       float32
	WateringThreshold  float32
}

// WireProfileSize is the encoded size of a plant profile.
const WireProfileSize = 32 + 6*4

// wireDeviceInfo is the device identity payload (opcode 0x06).
type wireDeviceInfo struct {
	Name            [32]byte
	FirmwareVersion [16]byte
	HardwareVersion [16]byte
	UptimeSeconds   uint32
	TotalReadings   uint32
}

// wireSystemStatus is the live status payload (opcode 0x02).
type wireSystemStatus struct {
	UptimeSeconds    uint32
	HeapFree         uint32
	HeapMinFree      uint32
	TaskCount        uint32
	CurrentTime      uint32
	NetworkConnected uint8
	LinkSubscribed   uint8
	_                [2]uint8
}

// wireNetworkConfig is the credentials payload (opcodes 0x0D/0x0E).
type wireNetworkConfig struct {
	SSID     [32]byte
	Password [64]byte
}

// WireNetworkConfigSize is the encoded size of network credentials.
const WireNetworkConfigSize = 32 + 64

// wireHistoryRecord is one daily aggregate row in a get-history response
// (opcode 0x04).
type wireHistoryRecord struct {
	Year            uint16
	Month           uint8
	Day             uint8
	SampleCount     uint16
	Complete        uint8
	_               uint8
	AvgTemperature  float32
	AvgSoilMoisture float32
	MinSoilMoisture float32
	MaxSoilMoisture float32
}

// wireHistoryRecordSize is the encoded size of one history row.
const wireHistoryRecordSize = 8 + 4*4

// maxHistoryDays is the largest day count a single history response can
// carry within the response ceiling (1-byte count prefix plus rows).
const maxHistoryDays = (MaxResponsePayload - 1) / wireHistoryRecordSize

func encodeWire(v interface{}) []byte {
	var buf bytes.Buffer
	// fixed-size struct of scalar fields; this cannot fail
	binary.Write(&buf, binary.LittleEndian, v)
	return buf.Bytes()
}

func decodeWire(data []byte, v interface{}) error {
	return binary.Read(bytes.NewReader(data), binary.LittleEndian, v)
}

func sampleToWire(s types.Sample) wireSample {
	return wireSample{
		Timestamp:    calendarToWire(s.Timestamp),
		Lux:          s.Lux,
		Temperature:  s.Temperature,
		Humidity:     s.Humidity,
		SoilMoisture: s.SoilMoisture,
		SoilTemp:     s.SoilTemp1,
	}
}

func sampleToWireV2(s types.Sample) wireSampleV2 {
	return wireSampleV2{
		wireSample:  sampleToWire(s),
		SoilTemp2:   s.SoilTemp2,
		Capacitance: s.Capacitance,
	}
}

func profileToWire(p types.PlantProfile) wireProfile {
	var w wireProfile
	copy(w.Name[:], p.Name)
	if len(p.Name) >= len(w.Name) {
		w.Name[len(w.Name)-1] = 0 // keep NUL termination
	}
	w.SoilDryThreshold = p.SoilDryThreshold
	w.SoilWetThreshold = p.SoilWetThreshold
	w.DryDaysForWatering = int32(p.DryDaysForWatering)
	w.TempHighLimit = p.TempHighLimit
	w.TempLowLimit = p.TempLowLimit
	w.WateringThreshold = p.WateringThreshold
	return w
}

func profileFromWire(w wireProfile) types.PlantProfile {
	return types.PlantProfile{
		Name:               cString(w.Name[:]),
		SoilDryThreshold:   w.SoilDryThreshold,
		SoilWetThreshold:   w.SoilWetThreshold,
		DryDaysForWatering: int(w.DryDaysForWatering),
		TempHighLimit:      w.TempHighLimit,
		TempLowLimit:       w.TempLowLimit,
		WateringThreshold:  w.WateringThreshold,
	}
}

func networkConfigToWire(c types.NetworkConfig) wireNetworkConfig {
	var w wireNetworkConfig
	copy(w.SSID[:], c.SSID)
	copy(w.Password[:], c.Password)
	return w
}

func networkConfigFromWire(w wireNetworkConfig) types.NetworkConfig {
	return types.NetworkConfig{
		SSID:     cString(w.SSID[:]),
		Password: cString(w.Password[:]),
	}
}

func aggregateToWire(a types.DailyAggregate) wireHistoryRecord {
	rec := wireHistoryRecord{
		Year:            uint16(a.Date.Year),
		Month:           uint8(a.Date.Month),
		Day:             uint8(a.Date.Day),
		SampleCount:     a.SampleCount,
		AvgTemperature:  a.AvgTemperature,
		AvgSoilMoisture: a.AvgSoilMoisture,
		MinSoilMoisture: a.MinSoilMoisture,
		MaxSoilMoisture: a.MaxSoilMoisture,
	}
	if a.Complete {
		rec.Complete = 1
	}
	return rec
}

// cString interprets a fixed NUL-padded byte field as a Go string.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
