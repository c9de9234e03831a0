package aquos

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// defaultCommandTimeout bounds how long a dispatched command may wait
// for its response line before the slot is reclaimed.
const defaultCommandTimeout = 3 * time.Second

// TransportWriter is the write half of the serial link as the Dispatcher
// sees it. *Transport satisfies it; tests substitute fakes.
type TransportWriter interface {
	WriteFrame(frame []byte) error
}

// Result is the outcome of one dispatched command: either the raw
// response line from the TV, or an error (timeout, write failure,
// shutdown). Exactly one of Line and Err is meaningful.
type Result struct {
	Line string
	Err  error
}

// command is one queued unit of work. done is buffered so the dispatcher
// never blocks on a caller that has abandoned its reply channel.
type command struct {
	frame []byte
	done  chan Result
	sent  time.Time
}

// DispatcherStats holds operational statistics.
type DispatcherStats struct {
	CommandsSent     uint64
	ResponsesMatched uint64
	TimeoutsTotal    uint64
	LinesDiscarded   uint64
	WriteFailures    uint64
	Pending          int
	InFlight         bool
}

// Dispatcher serializes commands onto the serial link and correlates
// response lines by arrival order.
//
// The TV answers every command with exactly one line and carries no
// request identifier, so correlation is temporal: at most one command is
// in flight, and the next line that arrives belongs to it. Lines that
// arrive while nothing is in flight (power-on banners, echoes, remote
// key chatter) are counted and dropped.
//
// Per-command timeouts keep the pipeline moving when the TV swallows a
// command: the waiting slot is reclaimed, the caller gets ErrTimeout,
// and the next queued command dispatches. Likewise a failed write
// resolves immediately with ErrWriteFailed instead of occupying the
// slot waiting for a response that was never requested.
//
// Thread Safety: all methods are safe for concurrent use. HandleLine
// must be called from a single goroutine (the transport read loop) so
// response order matches device order.
type Dispatcher struct {
	tw      TransportWriter
	timeout time.Duration

	mu      sync.Mutex
	queue   []*command
	current *command
	timer   *time.Timer
	closed  bool

	logger   Logger
	loggerMu sync.RWMutex

	commandsSent     atomic.Uint64
	responsesMatched atomic.Uint64
	timeoutsTotal    atomic.Uint64
	linesDiscarded   atomic.Uint64
	writeFailures    atomic.Uint64
}

// NewDispatcher creates a dispatcher writing frames through tw. A zero
// timeout selects the default of 3 seconds.
func NewDispatcher(tw TransportWriter, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return &Dispatcher{
		tw:      tw,
		timeout: timeout,
	}
}

// SetLogger sets the logger for this dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.loggerMu.Lock()
	d.logger = logger
	d.loggerMu.Unlock()
}

// Send enqueues a frame and returns a channel that yields exactly one
// Result: the TV's response line, or an error if the command timed out,
// the write failed, or the dispatcher shut down. The channel is
// buffered; callers may abandon it without wedging the dispatcher.
func (d *Dispatcher) Send(frame []byte) <-chan Result {
	cmd := &command{
		frame: frame,
		done:  make(chan Result, 1),
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		cmd.done <- Result{Err: ErrClosed}
		return cmd.done
	}
	d.queue = append(d.queue, cmd)
	if d.current == nil {
		d.dispatchLocked()
	}
	d.mu.Unlock()

	return cmd.done
}

// Do sends a frame and blocks until its response arrives or ctx is
// cancelled. Cancellation abandons the reply; the command still occupies
// the in-flight slot until its response or timeout, preserving
// correlation for the commands behind it.
func (d *Dispatcher) Do(ctx context.Context, frame []byte) (string, error) {
	ch := d.Send(frame)
	select {
	case res := <-ch:
		return res.Line, res.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// dispatchLocked pops queued commands and writes them until one is in
// flight or the queue drains. Write failures resolve the command and
// advance to the next; the slot is never parked waiting for a response
// to a command the TV never received. Caller must hold d.mu.
func (d *Dispatcher) dispatchLocked() {
	for d.current == nil && len(d.queue) > 0 {
		cmd := d.queue[0]
		d.queue = d.queue[1:]

		if err := d.tw.WriteFrame(cmd.frame); err != nil {
			d.writeFailures.Add(1)
			d.logWarn("command write failed", "error", err)
			cmd.done <- Result{Err: fmt.Errorf("%w: %w", ErrWriteFailed, err)}
			continue
		}

		cmd.sent = time.Now()
		d.current = cmd
		d.commandsSent.Add(1)
		d.armTimerLocked(cmd)
	}
}

// armTimerLocked starts the response deadline for cmd. The expiry
// callback re-checks identity under the lock: if the response won the
// race the timer does nothing. Caller must hold d.mu.
func (d *Dispatcher) armTimerLocked(cmd *command) {
	d.timer = time.AfterFunc(d.timeout, func() {
		d.expire(cmd)
	})
}

// expire times out cmd if it is still the in-flight command.
func (d *Dispatcher) expire(cmd *command) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current != cmd {
		return
	}

	d.current = nil
	d.timer = nil
	d.timeoutsTotal.Add(1)
	d.logWarn("command timed out", "timeout", d.timeout)
	cmd.done <- Result{Err: ErrTimeout}

	d.dispatchLocked()
}

// HandleLine consumes one decoded line from the transport. If a command
// is in flight the line is its response; otherwise the line is
// unsolicited and dropped. Must be wired as the transport's line
// handler.
func (d *Dispatcher) HandleLine(line string) {
	d.mu.Lock()

	cmd := d.current
	if cmd == nil {
		d.mu.Unlock()
		d.linesDiscarded.Add(1)
		d.logDebug("unsolicited line discarded", "line", line)
		return
	}

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.current = nil
	d.responsesMatched.Add(1)

	cmd.done <- Result{Line: line}

	d.dispatchLocked()
	d.mu.Unlock()
}

// PendingCount returns the number of queued commands, excluding the one
// in flight.
func (d *Dispatcher) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Stats returns current operational statistics.
func (d *Dispatcher) Stats() DispatcherStats {
	d.mu.Lock()
	pending := len(d.queue)
	inFlight := d.current != nil
	d.mu.Unlock()

	return DispatcherStats{
		CommandsSent:     d.commandsSent.Load(),
		ResponsesMatched: d.responsesMatched.Load(),
		TimeoutsTotal:    d.timeoutsTotal.Load(),
		LinesDiscarded:   d.linesDiscarded.Load(),
		WriteFailures:    d.writeFailures.Load(),
		Pending:          pending,
		InFlight:         inFlight,
	}
}

// Close fails the in-flight command and everything queued with
// ErrClosed, and rejects future Sends. Safe to call multiple times.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	if d.current != nil {
		d.current.done <- Result{Err: ErrClosed}
		d.current = nil
	}
	for _, cmd := range d.queue {
		cmd.done <- Result{Err: ErrClosed}
	}
	d.queue = nil

	return nil
}

// logDebug logs a debug message if logger is set.
func (d *Dispatcher) logDebug(msg string, keysAndValues ...any) {
	d.loggerMu.RLock()
	logger := d.logger
	d.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (d *Dispatcher) logWarn(msg string, keysAndValues ...any) {
	d.loggerMu.RLock()
	logger := d.logger
	d.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}
