package aquos

import (
	"fmt"
	"strconv"
	"strings"
)

// Aquos frame format constants.
//
// Every command is an 8-character ASCII frame followed by a carriage
// return: a 4-character command name and a 4-character parameter field,
// space-padded on the right. Responses are single lines terminated by
// the same carriage return.
const (
	// frameTerminator ends every command frame and every response line.
	frameTerminator = '\r'

	// commandWidth is the fixed width of the command name field.
	commandWidth = 4

	// parameterWidth is the fixed width of the parameter field.
	parameterWidth = 4
)

// Response tokens common to all commands.
const (
	// ResponseOK acknowledges a successful set command.
	ResponseOK = "OK"

	// ResponseErr indicates the TV rejected the command.
	ResponseErr = "ERR"
)

// Command name and parameter vocabulary.
const (
	cmdPower = "POWR"
	cmdInput = "IAVD"

	paramQuery      = "????"
	paramInputQuery = "?"
	paramPowerOn    = "1"
	paramPowerOff   = "0"
)

// Input selector range supported by the IAVD command family.
const (
	MinInputID = 1
	MaxInputID = 8
)

// BuildFrame assembles a raw command frame from a 4-character command
// name and a parameter of up to 4 printable ASCII characters. The
// parameter is space-padded to the fixed field width and the frame is
// terminated with a carriage return.
//
// Returns ErrInvalidFrame if the name or parameter does not fit the
// fixed-width format.
func BuildFrame(name, param string) ([]byte, error) {
	if len(name) != commandWidth {
		return nil, fmt.Errorf("%w: command %q must be %d characters", ErrInvalidFrame, name, commandWidth)
	}
	if len(param) > parameterWidth {
		return nil, fmt.Errorf("%w: parameter %q exceeds %d characters", ErrInvalidFrame, param, parameterWidth)
	}
	for i := 0; i < len(name); i++ {
		if name[i] < 0x20 || name[i] > 0x7E {
			return nil, fmt.Errorf("%w: command contains non-printable byte 0x%02X", ErrInvalidFrame, name[i])
		}
	}
	for i := 0; i < len(param); i++ {
		if param[i] < 0x20 || param[i] > 0x7E {
			return nil, fmt.Errorf("%w: parameter contains non-printable byte 0x%02X", ErrInvalidFrame, param[i])
		}
	}

	frame := make([]byte, 0, commandWidth+parameterWidth+1)
	frame = append(frame, name...)
	frame = append(frame, param...)
	for i := len(param); i < parameterWidth; i++ {
		frame = append(frame, ' ')
	}
	frame = append(frame, frameTerminator)
	return frame, nil
}

// mustFrame builds a frame from vocabulary constants. It panics only on
// programmer error (a malformed constant), never on runtime input.
func mustFrame(name, param string) []byte {
	frame, err := BuildFrame(name, param)
	if err != nil {
		panic(err)
	}
	return frame
}

// PowerQueryFrame returns the frame that asks for the current power
// state ("POWR????\r"). The TV answers with a line containing "0"
// (standby) or "1" (on).
func PowerQueryFrame() []byte {
	return mustFrame(cmdPower, paramQuery)
}

// PowerSetFrame returns the frame that switches the TV on or off
// ("POWR1   \r" / "POWR0   \r"). The TV answers "OK" or "ERR".
func PowerSetFrame(on bool) []byte {
	if on {
		return mustFrame(cmdPower, paramPowerOn)
	}
	return mustFrame(cmdPower, paramPowerOff)
}

// InputQueryFrame returns the frame that asks for the currently selected
// input ("IAVD?   \r"). The TV answers with a 4-digit input id.
func InputQueryFrame() []byte {
	return mustFrame(cmdInput, paramInputQuery)
}

// InputSelectFrame returns the frame that selects input id (1..8),
// e.g. "IAVD0002\r". The TV answers "OK" or "ERR".
func InputSelectFrame(id int) ([]byte, error) {
	if id < MinInputID || id > MaxInputID {
		return nil, fmt.Errorf("%w: %d (valid range %d..%d)", ErrInvalidInput, id, MinInputID, MaxInputID)
	}
	return BuildFrame(cmdInput, fmt.Sprintf("%04d", id))
}

// IsOK reports whether a response line is the OK acknowledgement.
func IsOK(line string) bool {
	return strings.TrimSpace(line) == ResponseOK
}

// IsErr reports whether a response line is the ERR rejection.
func IsErr(line string) bool {
	return strings.TrimSpace(line) == ResponseErr
}

// ParsePowerState interprets a power query response line.
//
// The TV answers "1" (on) or "0" (standby). An ERR token is reported as
// ErrCommandRejected, anything else as ErrUnexpectedResponse; what
// counts as unexpected is command-specific, which is why this lives
// with the frame vocabulary and not in the dispatcher.
func ParsePowerState(line string) (bool, error) {
	switch strings.TrimSpace(line) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	case ResponseErr:
		return false, fmt.Errorf("%w: power query", ErrCommandRejected)
	default:
		return false, fmt.Errorf("%w: power query answered %q", ErrUnexpectedResponse, line)
	}
}

// ParseInputID interprets an input query response line.
//
// The TV answers with a 4-digit input id (e.g. "0002"). A bare digit is
// also accepted; some firmware revisions do not zero-pad.
func ParseInputID(line string) (int, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == ResponseErr {
		return 0, fmt.Errorf("%w: input query", ErrCommandRejected)
	}
	if trimmed == "" || len(trimmed) > parameterWidth {
		return 0, fmt.Errorf("%w: input query answered %q", ErrUnexpectedResponse, line)
	}
	id, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: input query answered %q", ErrUnexpectedResponse, line)
	}
	if id < MinInputID || id > MaxInputID {
		return 0, fmt.Errorf("%w: input id %d out of range %d..%d", ErrUnexpectedResponse, id, MinInputID, MaxInputID)
	}
	return id, nil
}
