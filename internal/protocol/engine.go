package protocol

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/verdantworks/soilnode/internal/store"
	"github.com/verdantworks/soilnode/internal/types"
	"go.uber.org/zap"
)

// resetDelay is the fixed wait between sending a system-reset response and
// performing the restart.
const resetDelay = 500 * time.Millisecond

// maxTimezoneLen bounds the timezone string on the wire.
const maxTimezoneLen = 64

// ProfileAccessor loads, applies and persists the active plant profile.
type ProfileAccessor interface {
	Profile() types.PlantProfile
	Apply(types.PlantProfile)
	Persist() error
}

// Clock is the node's wall-clock accessor, including the timezone state the
// command link can read and write.
type Clock interface {
	NowLocal() time.Time
	SetLocal(time.Time) error
	Synced() bool
	SyncNow() error
	Timezone() string
	SetTimezone(string) error
	SaveTimezone() error
}

// NetworkManager owns the uplink credentials and link state.
type NetworkManager interface {
	SetConfig(types.NetworkConfig)
	Config() types.NetworkConfig
	SaveConfig() error
	Connect() error
	Disconnect() error
	Connected() bool
}

// DigitalInput reads the node's pushbutton.
type DigitalInput interface {
	IsPressed() bool
}

// Notifier delivers encoded responses to the paired controller. Delivery is
// gated on the controller's subscription state.
type Notifier interface {
	Subscribed() bool
	Notify([]byte) error
}

// Identity is the static device identity reported over the link.
type Identity struct {
	Name            string
	FirmwareVersion string
	HardwareVersion string
}

// Deps collects the collaborators the engine answers requests from.
type Deps struct {
	Store    *store.Store
	Profiles ProfileAccessor
	Clock    Clock
	Network  NetworkManager
	Input    DigitalInput
	Notifier Notifier
	Identity Identity
	// Restart performs the system restart after a reset command. Left nil
	// in tests.
	Restart func()
}

// Engine decodes command frames, dispatches to exactly one handler and
// emits the response through the notifier. At most one request is processed
// at a time; frames arriving while one is in flight are dropped, not queued.
type Engine struct {
	deps      Deps
	logger    *zap.SugaredLogger
	startTime time.Time
	sessionID uuid.UUID

	inflight atomic.Bool

	mu          sync.Mutex
	heapMinFree uint32
}

// NewEngine creates the command engine. The session ID identifies this boot
// in logs and troubleshooting sessions with the paired controller.
func NewEngine(deps Deps, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		deps:      deps,
		logger:    logger,
		startTime: time.Now(),
		sessionID: uuid.New(),
	}
}

// SessionID returns the per-boot session identifier.
func (e *Engine) SessionID() string {
	return e.sessionID.String()
}

// SetNotifier installs the response notifier. The transport and the engine
// reference each other, so the notifier is wired after both exist; it must
// be set before any frame is handled.
func (e *Engine) SetNotifier(n Notifier) {
	e.deps.Notifier = n
}

// HandleFrame processes one received command frame end to end: validate,
// dispatch, respond. Safe to call from the transport goroutine; a frame
// arriving while another is being processed is silently dropped.
func (e *Engine) HandleFrame(frame []byte) {
	if !e.inflight.CompareAndSwap(false, true) {
		e.logger.Warn("command received while another is processing, dropping")
		return
	}
	defer e.inflight.Store(false)

	req, err := DecodeRequest(frame)
	if err != nil {
		e.logger.Warnf("rejecting malformed frame (%d bytes): %v", len(frame), err)
		var opcode Opcode
		var seq uint8
		if len(frame) >= 2 {
			opcode = Opcode(frame[0])
			seq = frame[1]
		}
		e.deliver(Response{Opcode: opcode, Status: StatusInvalidParameter, Seq: seq})
		return
	}

	e.logger.Debugf("processing command 0x%02X seq=%d len=%d", req.Opcode, req.Seq, len(req.Payload))
	e.deliver(e.dispatch(req))
}

func (e *Engine) dispatch(req Request) Response {
	switch req.Opcode {
	case OpGetLatestSample:
		return e.handleGetLatestSample(req, false)
	case OpGetLatestSampleV2:
		return e.handleGetLatestSample(req, true)
	case OpGetSystemStatus:
		return e.handleGetSystemStatus(req)
	case OpSetPlantProfile:
		return e.handleSetPlantProfile(req)
	case OpGetPlantProfile:
		return e.ok(req, encodeWire(profileToWire(e.deps.Profiles.Profile())))
	case OpSavePlantProfile:
		return e.statusOnly(req, persistStatus(e.deps.Profiles.Persist()))
	case OpGetHistory:
		return e.handleGetHistory(req)
	case OpSystemReset:
		return e.handleSystemReset(req)
	case OpGetDeviceInfo:
		return e.handleGetDeviceInfo(req)
	case OpSetTime:
		return e.handleSetTime(req)
	case OpGetSampleByTime:
		return e.handleGetSampleByTime(req)
	case OpGetDigitalInput:
		return e.handleGetDigitalInput(req)
	case OpSetNetworkConfig:
		return e.handleSetNetworkConfig(req)
	case OpGetNetworkConfig:
		return e.ok(req, encodeWire(networkConfigToWire(e.deps.Network.Config())))
	case OpSaveNetworkConfig:
		return e.statusOnly(req, persistStatus(e.deps.Network.SaveConfig()))
	case OpNetworkConnect:
		return e.statusOnly(req, persistStatus(e.deps.Network.Connect()))
	case OpNetworkDisconnect:
		return e.statusOnly(req, persistStatus(e.deps.Network.Disconnect()))
	case OpGetTimezone:
		return e.ok(req, []byte(e.deps.Clock.Timezone()))
	case OpSetTimezone:
		return e.handleSetTimezone(req)
	case OpSaveTimezone:
		return e.statusOnly(req, persistStatus(e.deps.Clock.SaveTimezone()))
	case OpSyncTime:
		return e.handleSyncTime(req)
	}

	e.logger.Warnf("unknown command 0x%02X", req.Opcode)
	return e.statusOnly(req, StatusInvalidCommand)
}

// deliver encodes the response and notifies the controller. When the
// controller is not subscribed the response is discarded; there is no retry
// or buffering.
func (e *Engine) deliver(resp Response) {
	encoded := resp.Encode()
	if !e.deps.Notifier.Subscribed() {
		e.logger.Debugf("controller not subscribed, discarding %d byte response", len(encoded))
		return
	}
	if err := e.deps.Notifier.Notify(encoded); err != nil {
		e.logger.Errorf("error sending response notification: %v", err)
	}
}

func (e *Engine) ok(req Request, payload []byte) Response {
	return Response{Opcode: req.Opcode, Status: StatusSuccess, Seq: req.Seq, Payload: payload}
}

func (e *Engine) statusOnly(req Request, status Status) Response {
	return Response{Opcode: req.Opcode, Status: status, Seq: req.Seq}
}

func persistStatus(err error) Status {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

func (e *Engine) handleGetLatestSample(req Request, extended bool) Response {
	latest, err := e.deps.Store.GetLatest()
	if err != nil {
		e.logger.Warn("no sample available for latest-sample command")
		return e.statusOnly(req, StatusError)
	}

	if extended {
		return e.ok(req, encodeWire(sampleToWireV2(latest)))
	}
	return e.ok(req, encodeWire(sampleToWire(latest)))
}

func (e *Engine) handleGetSystemStatus(req Request) Response {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	free := uint32(mem.HeapIdle)

	e.mu.Lock()
	if e.heapMinFree == 0 || free < e.heapMinFree {
		e.heapMinFree = free
	}
	minFree := e.heapMinFree
	e.mu.Unlock()

	var current uint32
	if e.deps.Clock.Synced() {
		current = uint32(e.deps.Clock.NowLocal().Unix())
	}

	status := wireSystemStatus{
		UptimeSeconds: uint32(time.Since(e.startTime).Seconds()),
		HeapFree:      free,
		HeapMinFree:   minFree,
		TaskCount:     uint32(runtime.NumGoroutine()),
		CurrentTime:   current,
	}
	if e.deps.Network.Connected() {
		status.NetworkConnected = 1
	}
	if e.deps.Notifier.Subscribed() {
		status.LinkSubscribed = 1
	}

	return e.ok(req, encodeWire(status))
}

func (e *Engine) handleSetPlantProfile(req Request) Response {
	if len(req.Payload) != WireProfileSize {
		e.logger.Warnf("set-profile payload size %d, expected %d", len(req.Payload), WireProfileSize)
		return e.statusOnly(req, StatusInvalidParameter)
	}

	var w wireProfile
	if err := decodeWire(req.Payload, &w); err != nil {
		return e.statusOnly(req, StatusInvalidParameter)
	}

	profile := profileFromWire(w)
	e.deps.Profiles.Apply(profile)
	if err := e.deps.Profiles.Persist(); err != nil {
		e.logger.Errorf("failed to persist plant profile: %v", err)
		return e.statusOnly(req, StatusError)
	}

	e.logger.Infof("plant profile updated: %s", profile.Name)
	return e.statusOnly(req, StatusSuccess)
}

func (e *Engine) handleGetHistory(req Request) Response {
	if len(req.Payload) != 1 {
		return e.statusOnly(req, StatusInvalidParameter)
	}

	days := int(req.Payload[0])
	if days > maxHistoryDays {
		days = maxHistoryDays
	}

	aggregates := e.deps.Store.RecentAggregates(days)
	payload := []byte{byte(len(aggregates))}
	for _, agg := range aggregates {
		payload = append(payload, encodeWire(aggregateToWire(agg))...)
	}
	return e.ok(req, payload)
}

func (e *Engine) handleSystemReset(req Request) Response {
	e.logger.Info("system reset requested, restarting after response")

	if e.deps.Restart != nil {
		go func() {
			time.Sleep(resetDelay)
			e.deps.Restart()
		}()
	}
	return e.statusOnly(req, StatusSuccess)
}

func (e *Engine) handleGetDeviceInfo(req Request) Response {
	var info wireDeviceInfo
	copy(info.Name[:], e.deps.Identity.Name)
	copy(info.FirmwareVersion[:], e.deps.Identity.FirmwareVersion)
	copy(info.HardwareVersion[:], e.deps.Identity.HardwareVersion)
	info.UptimeSeconds = uint32(time.Since(e.startTime).Seconds())
	info.TotalReadings = e.deps.Store.TotalInserts()

	return e.ok(req, encodeWire(info))
}

func (e *Engine) handleSetTime(req Request) Response {
	if len(req.Payload) != WireCalendarSize {
		return e.statusOnly(req, StatusInvalidParameter)
	}

	var w wireCalendar
	if err := decodeWire(req.Payload, &w); err != nil {
		return e.statusOnly(req, StatusInvalidParameter)
	}

	ct := calendarFromWire(w)
	if err := e.deps.Clock.SetLocal(ct.Time(e.deps.Clock.NowLocal().Location())); err != nil {
		e.logger.Errorf("failed to set clock: %v", err)
		return e.statusOnly(req, StatusError)
	}
	return e.statusOnly(req, StatusSuccess)
}

func (e *Engine) handleGetSampleByTime(req Request) Response {
	if len(req.Payload) != WireCalendarSize {
		e.logger.Warnf("get-sample-by-time payload size %d, expected %d", len(req.Payload), WireCalendarSize)
		return e.statusOnly(req, StatusInvalidParameter)
	}

	var w wireCalendar
	if err := decodeWire(req.Payload, &w); err != nil {
		return e.statusOnly(req, StatusInvalidParameter)
	}

	sample, err := e.deps.Store.GetAt(calendarFromWire(w))
	if err != nil {
		// well-formed query with no data gets a normal response
		return e.statusOnly(req, StatusError)
	}

	result := wireTimeQueryResult{
		ActualTime:   calendarToWire(sample.Timestamp),
		Temperature:  sample.Temperature,
		Humidity:     sample.Humidity,
		Lux:          sample.Lux,
		SoilMoisture: sample.SoilMoisture,
	}
	return e.ok(req, encodeWire(result))
}

func (e *Engine) handleGetDigitalInput(req Request) Response {
	state := byte(0)
	if e.deps.Input.IsPressed() {
		state = 1
	}
	return e.ok(req, []byte{state})
}

func (e *Engine) handleSetNetworkConfig(req Request) Response {
	if len(req.Payload) != WireNetworkConfigSize {
		return e.statusOnly(req, StatusInvalidParameter)
	}

	var w wireNetworkConfig
	if err := decodeWire(req.Payload, &w); err != nil {
		return e.statusOnly(req, StatusInvalidParameter)
	}

	e.deps.Network.SetConfig(networkConfigFromWire(w))
	return e.statusOnly(req, StatusSuccess)
}

func (e *Engine) handleSetTimezone(req Request) Response {
	if len(req.Payload) == 0 || len(req.Payload) > maxTimezoneLen {
		return e.statusOnly(req, StatusInvalidParameter)
	}
	for _, b := range req.Payload {
		if b == 0 {
			return e.statusOnly(req, StatusInvalidParameter)
		}
	}

	if err := e.deps.Clock.SetTimezone(string(req.Payload)); err != nil {
		e.logger.Errorf("failed to set timezone: %v", err)
		return e.statusOnly(req, StatusError)
	}
	return e.statusOnly(req, StatusSuccess)
}

func (e *Engine) handleSyncTime(req Request) Response {
	if !e.deps.Network.Connected() {
		return e.statusOnly(req, StatusNotSupported)
	}
	if err := e.deps.Clock.SyncNow(); err != nil {
		e.logger.Errorf("time sync failed: %v", err)
		return e.statusOnly(req, StatusError)
	}
	return e.statusOnly(req, StatusSuccess)
}
