package aquos

import (
	"context"
	"errors"
)

// Domain errors for the TV bridge package.
var (
	// ErrConnectionFailed is returned when the serial port cannot be opened.
	// Fatal to the bridge instance; surfaced once at construction.
	ErrConnectionFailed = errors.New("aquos: serial port open failed")

	// ErrNotConnected is returned when an operation requires an open
	// serial connection but the transport is disconnected.
	ErrNotConnected = errors.New("aquos: not connected to device")

	// ErrWriteFailed is returned when writing a command frame fails.
	// The failing command is resolved with this error and the queue advances.
	ErrWriteFailed = errors.New("aquos: frame write failed")

	// ErrTimeout is returned when a dispatched command receives no
	// response line within the configured deadline.
	ErrTimeout = errors.New("aquos: command timed out")

	// ErrClosed is returned for commands pending or submitted after the
	// dispatcher has been closed.
	ErrClosed = errors.New("aquos: dispatcher closed")

	// ErrInvalidFrame is returned when a command frame cannot be built
	// from the given name and parameter.
	ErrInvalidFrame = errors.New("aquos: invalid command frame")

	// ErrUnexpectedResponse is returned when a response line does not
	// match the token set expected for the command that produced it.
	ErrUnexpectedResponse = errors.New("aquos: unexpected response")

	// ErrCommandRejected is returned when the TV answers a command with
	// the ERR token. The TV rejects input queries in standby and any
	// command it considers invalid in its current state.
	ErrCommandRejected = errors.New("aquos: command rejected by device")

	// ErrInvalidInput is returned when an input selector is outside the
	// range the protocol supports.
	ErrInvalidInput = errors.New("aquos: invalid input id")
)

// Classification helpers used when mapping execution errors to MQTT ack
// codes and history statuses.

func isTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

func isInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidFrame)
}

func isUnexpectedResponse(err error) bool {
	return errors.Is(err, ErrUnexpectedResponse)
}

func isRejected(err error) bool {
	return errors.Is(err, ErrCommandRejected)
}

func isNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}

func isWriteFailed(err error) bool {
	return errors.Is(err, ErrWriteFailed)
}
