// Package aquos implements the serial TV bridge for Gray Logic.
//
// This package drives a television that speaks the Sharp Aquos RS-232
// command protocol: fixed-width ASCII frames out, exactly one
// carriage-return-terminated response line back per frame. It translates
// between Gray Logic's MQTT command/state messages and that serial
// protocol.
//
// # Architecture
//
// The bridge is a translator between two transports:
//
//	┌─────────────────┐          ┌─────────────────┐
//	│   Gray Logic    │   MQTT   │   TV Bridge     │  RS-232
//	│      Core       │◄────────►│   (this pkg)    │◄────────► TV
//	└─────────────────┘          └─────────────────┘
//
// # Single-In-Flight Discipline
//
// The TV protocol carries no command identifiers and cannot pipeline:
// the only way to correlate a response with its command is temporal —
// the next line after a write belongs to that write. The Dispatcher
// therefore enforces strict one-outstanding-command discipline: frames
// are queued FIFO, at most one is ever in flight, and each inbound line
// resolves the in-flight command before the next frame is written.
// Lines arriving with nothing in flight are counted and discarded.
//
// Every command resolves exactly once: with its response line, with a
// timeout failure if the TV never answers, or with a write failure if
// the link is broken. A dead TV can therefore never wedge the queue.
//
// # Key Responsibilities
//
//   - Own the serial port (open, line decoding, reconnection)
//   - Queue commands and correlate responses (Dispatcher)
//   - Build and interpret Aquos command frames
//   - Translate MQTT commands to frames and responses to state messages
//   - Publish health status and metrics
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package aquos
