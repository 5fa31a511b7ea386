// Package transport carries the command link between the node and its paired
// controller, over either a local serial device or a TCP listener. Only one
// controller is served at a time; the subscription state the protocol engine
// gates notifications on tracks the controller connection.
package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	serial "github.com/tarm/goserial"
	"github.com/verdantworks/soilnode/internal/protocol"
	"go.uber.org/zap"
)

// maxRequestPayload bounds the declared payload length of an inbound frame.
// Anything larger is treated as a framing error and the connection dropped.
const maxRequestPayload = 1024

// serialRetryInterval is how long to wait before reopening a serial device
// that failed to open.
const serialRetryInterval = 30 * time.Second

// FrameHandler consumes one complete command frame.
type FrameHandler interface {
	HandleFrame(frame []byte)
}

// Config selects the link medium. SerialDevice takes precedence; otherwise
// ListenAddr starts a TCP listener.
type Config struct {
	SerialDevice string `yaml:"serial-device,omitempty"`
	Baud         int    `yaml:"baud,omitempty"`
	ListenAddr   string `yaml:"listen-addr,omitempty"`
}

// Link owns the controller connection and pumps inbound frames to the
// handler. It implements the protocol engine's Notifier.
type Link struct {
	cfg     Config
	handler FrameHandler
	logger  *zap.SugaredLogger

	subscribed atomic.Bool
	listener   net.Listener

	connMu sync.Mutex
	conn   io.ReadWriteCloser
}

// NewLink creates a command link. In TCP mode the listener is bound
// immediately so configuration errors surface at startup. Start must be
// called to begin serving.
func NewLink(cfg Config, handler FrameHandler, logger *zap.SugaredLogger) (*Link, error) {
	l := &Link{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
	}

	switch {
	case cfg.SerialDevice != "":
	case cfg.ListenAddr != "":
		listener, err := net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			return nil, fmt.Errorf("transport: listening on %v: %w", cfg.ListenAddr, err)
		}
		l.listener = listener
	default:
		return nil, errors.New("transport: either serial-device or listen-addr must be configured")
	}
	return l, nil
}

// Addr reports the bound listener address, or nil in serial mode.
func (l *Link) Addr() net.Addr {
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Subscribed reports whether a controller is currently attached.
func (l *Link) Subscribed() bool {
	return l.subscribed.Load()
}

// Notify sends an encoded response to the attached controller.
func (l *Link) Notify(frame []byte) error {
	l.connMu.Lock()
	conn := l.conn
	l.connMu.Unlock()

	if conn == nil {
		return errors.New("transport: no controller attached")
	}
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("transport: writing response: %w", err)
	}
	return nil
}

// Start launches the link goroutine. It runs until the context is cancelled.
func (l *Link) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	if l.cfg.SerialDevice != "" {
		go l.serveSerial(ctx, wg)
		return
	}
	go l.serveTCP(ctx, wg)
}

func (l *Link) serveSerial(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		l.logger.Infof("opening command link on %v", l.cfg.SerialDevice)
		sc := &serial.Config{Name: l.cfg.SerialDevice, Baud: l.cfg.Baud}
		port, err := serial.OpenPort(sc)
		if err != nil {
			l.logger.Errorf("could not open %v: %v; retrying in %v",
				l.cfg.SerialDevice, err, serialRetryInterval)
			select {
			case <-ctx.Done():
				return
			case <-time.After(serialRetryInterval):
			}
			continue
		}

		l.attach(port)
		l.pumpFrames(ctx, port)
		l.detach()
	}
}

func (l *Link) serveTCP(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	l.logger.Infof("command link listening on %v", l.listener.Addr())

	go func() {
		<-ctx.Done()
		l.listener.Close()
	}()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Errorf("accept error: %v", err)
			continue
		}

		l.logger.Infof("controller attached from %v", conn.RemoteAddr())
		l.attach(conn)
		l.pumpFrames(ctx, conn)
		l.detach()
		conn.Close()
		l.logger.Info("controller detached")
	}
}

// attach records the active connection and marks the controller subscribed.
func (l *Link) attach(conn io.ReadWriteCloser) {
	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()
	l.subscribed.Store(true)
}

func (l *Link) detach() {
	l.subscribed.Store(false)
	l.connMu.Lock()
	l.conn = nil
	l.connMu.Unlock()
}

// pumpFrames reads length-prefixed frames until the reader fails or the
// context is cancelled, handing each complete frame to the handler.
func (l *Link) pumpFrames(ctx context.Context, r io.ReadWriteCloser) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			r.Close()
		case <-done:
		}
	}()

	for {
		frame, err := readFrame(r)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				l.logger.Errorf("command link read error: %v", err)
			}
			return
		}
		l.handler.HandleFrame(frame)
	}
}

// readFrame reads one complete command frame: the fixed header first, then
// exactly the payload the header declares.
func readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, protocol.RequestHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	declared := int(binary.LittleEndian.Uint16(header[2:4]))
	if declared > maxRequestPayload {
		return nil, fmt.Errorf("declared payload of %d bytes exceeds limit", declared)
	}

	frame := make([]byte, protocol.RequestHeaderSize+declared)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[protocol.RequestHeaderSize:]); err != nil {
		return nil, fmt.Errorf("short payload read: %w", err)
	}
	return frame, nil
}
