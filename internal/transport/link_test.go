package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdantworks/soilnode/internal/protocol"
	"go.uber.org/zap"
)

type recordingHandler struct {
	mu     sync.Mutex
	frames [][]byte
}

func (h *recordingHandler) HandleFrame(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, append([]byte(nil), frame...))
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames)
}

func (h *recordingHandler) frame(i int) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames[i]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestReadFrame(t *testing.T) {
	payload := []byte{0xAA, 0xBB, 0xCC}
	wire := protocol.EncodeRequest(protocol.Request{Opcode: protocol.OpSetTimezone, Seq: 3, Payload: payload})

	frame, err := readFrame(bytes.NewReader(wire))
	require.NoError(t, err)
	assert.Equal(t, wire, frame)
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	wire := protocol.EncodeRequest(protocol.Request{Opcode: protocol.OpSetTimezone, Seq: 3, Payload: []byte{1, 2, 3}})

	_, err := readFrame(bytes.NewReader(wire[:5]))
	assert.Error(t, err)
}

func TestReadFrameRejectsOversizedDeclaration(t *testing.T) {
	header := []byte{0x01, 0x00, 0xFF, 0xFF}

	_, err := readFrame(bytes.NewReader(header))
	assert.ErrorContains(t, err, "exceeds limit")
}

func TestNewLinkRequiresMedium(t *testing.T) {
	_, err := NewLink(Config{}, &recordingHandler{}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestTCPLinkLifecycle(t *testing.T) {
	handler := &recordingHandler{}
	link, err := NewLink(Config{ListenAddr: "127.0.0.1:0"}, handler, zap.NewNop().Sugar())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	link.Start(ctx, &wg)

	assert.False(t, link.Subscribed(), "no controller attached yet")
	assert.Error(t, link.Notify([]byte{1}), "notify without a controller fails")

	conn, err := net.Dial("tcp", link.Addr().String())
	require.NoError(t, err)

	waitFor(t, link.Subscribed)

	// inbound frame reaches the handler intact
	req := protocol.EncodeRequest(protocol.Request{Opcode: protocol.OpGetDigitalInput, Seq: 9})
	_, err = conn.Write(req)
	require.NoError(t, err)
	waitFor(t, func() bool { return handler.count() == 1 })
	assert.Equal(t, req, handler.frame(0))

	// outbound notification reaches the controller
	resp := []byte{0x0B, 0x00, 0x09, 0x01, 0x00, 0x01}
	require.NoError(t, link.Notify(resp))
	got := make([]byte, len(resp))
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, err = io.ReadFull(conn, got)
	require.NoError(t, err)
	assert.Equal(t, resp, got)

	// disconnect clears the subscription
	conn.Close()
	waitFor(t, func() bool { return !link.Subscribed() })

	cancel()
	wg.Wait()
}

func TestTCPLinkSequentialControllers(t *testing.T) {
	handler := &recordingHandler{}
	link, err := NewLink(Config{ListenAddr: "127.0.0.1:0"}, handler, zap.NewNop().Sugar())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	link.Start(ctx, &wg)

	for seq := uint8(1); seq <= 2; seq++ {
		conn, err := net.Dial("tcp", link.Addr().String())
		require.NoError(t, err)
		waitFor(t, link.Subscribed)

		_, err = conn.Write(protocol.EncodeRequest(protocol.Request{Opcode: protocol.OpGetSystemStatus, Seq: seq}))
		require.NoError(t, err)
		want := int(seq)
		waitFor(t, func() bool { return handler.count() == want })

		conn.Close()
		waitFor(t, func() bool { return !link.Subscribed() })
	}

	cancel()
	wg.Wait()
}
