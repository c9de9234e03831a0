package aquos

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Default settings for the serial link.
const (
	// defaultBaudRate matches the TV's factory serial configuration
	// (9600 baud, 8 data bits, no parity, 1 stop bit, no flow control).
	defaultBaudRate = 9600

	// defaultReconnectInterval is the initial delay between attempts to
	// reopen the port after a read failure.
	defaultReconnectInterval = 5 * time.Second

	// maxReconnectInterval caps the reconnection backoff.
	maxReconnectInterval = 2 * time.Minute

	// reconnectBackoffFactor grows the delay between failed attempts.
	reconnectBackoffFactor = 1.5
)

// PortOpener opens the byte stream to the device. The default opener
// uses go.bug.st/serial; tests and simulators inject their own.
type PortOpener func(path string, baudRate int) (io.ReadWriteCloser, error)

// defaultPortOpener opens a real serial port in 8N1 mode without flow
// control, as the TV protocol requires.
func defaultPortOpener(path string, baudRate int) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return serial.Open(path, mode)
}

// TransportConfig holds serial transport configuration.
type TransportConfig struct {
	// Path is the serial device path (e.g. "/dev/ttyUSB0").
	Path string

	// BaudRate is the line speed. Default: 9600.
	BaudRate int

	// ReconnectInterval is the initial delay between reconnection
	// attempts after a read failure. Default: 5 seconds.
	ReconnectInterval time.Duration

	// Opener overrides how the port is opened. Default: real serial port.
	Opener PortOpener
}

// TransportStats holds operational statistics.
type TransportStats struct {
	FramesTx        uint64
	LinesRx         uint64
	ErrorsTotal     uint64
	ReconnectsTotal uint64
	LastActivity    time.Time
	Connected       bool
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Transport owns the open serial connection to the TV.
//
// It writes raw command frames and decodes the inbound byte stream into
// carriage-return-delimited lines. It performs no correlation and no
// filtering: every decoded line — solicited or not — is handed to the
// line handler. Deciding whether a line is owed to anyone is the
// Dispatcher's job.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The line handler is invoked from a single goroutine, in arrival
//     order. Responses must reach the Dispatcher in the order the device
//     produced them, so lines are never fanned out to workers.
//
// Auto-Reconnection:
//   - When a read fails the transport reopens the port with exponential
//     backoff until Close() is called. Writes fail with ErrNotConnected
//     while the link is down.
type Transport struct {
	cfg    TransportConfig
	opener PortOpener

	// Connection state
	portMu    sync.RWMutex
	port      io.ReadWriteCloser
	connected bool

	// Write serialization: the port is a single exclusively-owned
	// resource and must never be written concurrently.
	writeMu sync.Mutex

	// Line handler callback
	onLine func(line string)
	lineMu sync.RWMutex

	// Link state change callback
	onState func(connected bool)
	stateMu sync.RWMutex

	// Shutdown coordination
	done *closeOnce
	wg   sync.WaitGroup

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex

	// Statistics (atomic for performance)
	framesTx        atomic.Uint64
	linesRx         atomic.Uint64
	errorsTotal     atomic.Uint64
	reconnectsTotal atomic.Uint64
	lastActivity    atomic.Int64 // Unix timestamp
}

// OpenTransport opens the serial connection to the TV and starts the
// read loop.
//
// Returns a wrapped ErrConnectionFailed if the device path is invalid
// or the port is busy.
func OpenTransport(cfg TransportConfig) (*Transport, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = defaultBaudRate
	}
	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}
	opener := cfg.Opener
	if opener == nil {
		opener = defaultPortOpener
	}

	port, err := opener(cfg.Path, cfg.BaudRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.Path, err)
	}

	t := &Transport{
		cfg:       cfg,
		opener:    opener,
		port:      port,
		connected: true,
		done:      newCloseOnce(),
	}
	t.lastActivity.Store(time.Now().Unix())

	t.wg.Add(1)
	go t.readLoop()

	return t, nil
}

// scanCRLines is a bufio.SplitFunc that splits the stream on carriage
// returns. Tokens exclude the terminator. A trailing fragment with no
// terminator is dropped when the stream ends: a partial frame cannot be
// attributed to any command.
func scanCRLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.IndexByte(data, frameTerminator); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), nil, nil
	}
	return 0, nil, nil
}

// readLoop decodes lines from the port for the lifetime of the
// transport, reconnecting with backoff on read failure.
func (t *Transport) readLoop() {
	defer t.wg.Done()

	for {
		t.portMu.RLock()
		port := t.port
		t.portMu.RUnlock()
		if port == nil {
			return
		}

		scanner := bufio.NewScanner(port)
		scanner.Split(scanCRLines)

		for scanner.Scan() {
			line := scanner.Text()
			t.linesRx.Add(1)
			t.lastActivity.Store(time.Now().Unix())
			t.deliverLine(line)
		}

		if t.isClosed() {
			return
		}

		if err := scanner.Err(); err != nil {
			t.logError("serial read failed", err)
		} else {
			t.logWarn("serial stream ended")
		}
		t.errorsTotal.Add(1)
		t.markDisconnected()

		if !t.reconnect() {
			return
		}
	}
}

// deliverLine hands one decoded line to the handler, recovering from
// handler panics so a misbehaving consumer cannot kill the read loop.
func (t *Transport) deliverLine(line string) {
	t.lineMu.RLock()
	handler := t.onLine
	t.lineMu.RUnlock()

	if handler == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			t.logError("line handler panic", fmt.Errorf("%v", r))
		}
	}()
	handler(line)
}

// markDisconnected flips the connection state after a read failure.
func (t *Transport) markDisconnected() {
	t.portMu.Lock()
	wasConnected := t.connected
	t.connected = false
	t.portMu.Unlock()

	if wasConnected {
		t.logInfo("serial connection lost, will attempt reconnection")
		t.notifyStateChange(false)
	}
}

// notifyStateChange invokes the state change callback, if set.
func (t *Transport) notifyStateChange(connected bool) {
	t.stateMu.RLock()
	handler := t.onState
	t.stateMu.RUnlock()

	if handler != nil {
		handler(connected)
	}
}

// reconnect attempts to reopen the serial port with exponential backoff.
// Returns true on success, false if shutdown was signalled.
func (t *Transport) reconnect() bool {
	// Close the dead port before reopening the path
	t.portMu.Lock()
	if t.port != nil {
		t.port.Close()
		t.port = nil
	}
	t.portMu.Unlock()

	backoff := t.cfg.ReconnectInterval
	attempt := 0

	for {
		select {
		case <-t.done.Done():
			return false
		case <-time.After(backoff):
		}

		attempt++
		port, err := t.opener(t.cfg.Path, t.cfg.BaudRate)
		if err != nil {
			t.logError("serial reopen failed", err)
			t.errorsTotal.Add(1)

			backoff = time.Duration(float64(backoff) * reconnectBackoffFactor)
			if backoff > maxReconnectInterval {
				backoff = maxReconnectInterval
			}
			continue
		}

		t.portMu.Lock()
		t.port = port
		t.connected = true
		t.portMu.Unlock()

		t.reconnectsTotal.Add(1)
		t.lastActivity.Store(time.Now().Unix())
		t.logInfo("serial reconnected", "attempts", attempt)
		t.notifyStateChange(true)
		return true
	}
}

// WriteFrame sends one raw command frame to the TV.
//
// The write is a side effect only; it does not wait for a reply.
// Returns ErrNotConnected while the link is down, or a wrapped
// ErrWriteFailed on a broken link.
func (t *Transport) WriteFrame(frame []byte) error {
	t.portMu.RLock()
	port := t.port
	connected := t.connected
	t.portMu.RUnlock()

	if !connected || port == nil {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := port.Write(frame); err != nil {
		t.errorsTotal.Add(1)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	t.framesTx.Add(1)
	t.lastActivity.Store(time.Now().Unix())
	return nil
}

// SetOnLine registers the handler invoked once per decoded line,
// excluding the terminator. The handler runs on the read-loop goroutine
// in arrival order; it must not block for extended periods.
func (t *Transport) SetOnLine(handler func(line string)) {
	t.lineMu.Lock()
	t.onLine = handler
	t.lineMu.Unlock()
}

// SetOnStateChange sets a callback invoked when the link drops or a
// reconnection succeeds. It is called from the read loop goroutine;
// keep the handler fast. It is not called for the initial open or for
// Close().
func (t *Transport) SetOnStateChange(handler func(connected bool)) {
	t.stateMu.Lock()
	t.onState = handler
	t.stateMu.Unlock()
}

// SetLogger sets the logger for this transport.
func (t *Transport) SetLogger(logger Logger) {
	t.loggerMu.Lock()
	t.logger = logger
	t.loggerMu.Unlock()
}

// IsConnected returns true while the serial link is open.
func (t *Transport) IsConnected() bool {
	t.portMu.RLock()
	defer t.portMu.RUnlock()
	return t.connected
}

// Stats returns current operational statistics.
func (t *Transport) Stats() TransportStats {
	return TransportStats{
		FramesTx:        t.framesTx.Load(),
		LinesRx:         t.linesRx.Load(),
		ErrorsTotal:     t.errorsTotal.Load(),
		ReconnectsTotal: t.reconnectsTotal.Load(),
		LastActivity:    time.Unix(t.lastActivity.Load(), 0),
		Connected:       t.IsConnected(),
	}
}

// isClosed returns true if the transport has been closed.
func (t *Transport) isClosed() bool {
	select {
	case <-t.done.Done():
		return true
	default:
		return false
	}
}

// Close gracefully closes the serial connection.
//
// It stops the read loop, closes the underlying port, and waits for all
// goroutines to finish. Safe to call multiple times.
func (t *Transport) Close() error {
	t.done.Close()

	t.portMu.Lock()
	t.connected = false
	if t.port != nil {
		t.port.Close()
	}
	t.portMu.Unlock()

	t.wg.Wait()

	t.logInfo("serial connection closed")
	return nil
}

// logInfo logs an info message if logger is set.
func (t *Transport) logInfo(msg string, keysAndValues ...any) {
	t.loggerMu.RLock()
	logger := t.logger
	t.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (t *Transport) logWarn(msg string, keysAndValues ...any) {
	t.loggerMu.RLock()
	logger := t.logger
	t.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (t *Transport) logError(msg string, err error) {
	t.loggerMu.RLock()
	logger := t.logger
	t.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
