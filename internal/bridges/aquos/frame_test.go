package aquos

import (
	"bytes"
	"errors"
	"testing"
)

func TestBuildFrame(t *testing.T) {
	tests := []struct {
		name    string
		cmd     string
		param   string
		want    string
		wantErr bool
	}{
		{name: "full parameter", cmd: "POWR", param: "????", want: "POWR????\r"},
		{name: "short parameter padded", cmd: "POWR", param: "1", want: "POWR1   \r"},
		{name: "empty parameter padded", cmd: "POWR", param: "", want: "POWR    \r"},
		{name: "command too short", cmd: "POW", param: "1", wantErr: true},
		{name: "command too long", cmd: "POWER", param: "1", wantErr: true},
		{name: "parameter too long", cmd: "IAVD", param: "00001", wantErr: true},
		{name: "control byte in parameter", cmd: "IAVD", param: "1\n", wantErr: true},
		{name: "control byte in command", cmd: "PO\rR", param: "1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildFrame(tt.cmd, tt.param)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("BuildFrame(%q, %q) expected error, got %q", tt.cmd, tt.param, got)
				}
				if !errors.Is(err, ErrInvalidFrame) {
					t.Errorf("error = %v, want ErrInvalidFrame", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildFrame(%q, %q) unexpected error: %v", tt.cmd, tt.param, err)
			}
			if !bytes.Equal(got, []byte(tt.want)) {
				t.Errorf("BuildFrame(%q, %q) = %q, want %q", tt.cmd, tt.param, got, tt.want)
			}
		})
	}
}

func TestVocabularyFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  string
	}{
		{name: "power query", frame: PowerQueryFrame(), want: "POWR????\r"},
		{name: "power on", frame: PowerSetFrame(true), want: "POWR1   \r"},
		{name: "power off", frame: PowerSetFrame(false), want: "POWR0   \r"},
		{name: "input query", frame: InputQueryFrame(), want: "IAVD?   \r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.frame) != tt.want {
				t.Errorf("frame = %q, want %q", tt.frame, tt.want)
			}
		})
	}
}

func TestInputSelectFrame(t *testing.T) {
	frame, err := InputSelectFrame(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(frame) != "IAVD0002\r" {
		t.Errorf("frame = %q, want %q", frame, "IAVD0002\r")
	}

	for _, id := range []int{0, -1, 9, 100} {
		if _, err := InputSelectFrame(id); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("InputSelectFrame(%d) error = %v, want ErrInvalidInput", id, err)
		}
	}
}

func TestResponseTokens(t *testing.T) {
	if !IsOK("OK") || !IsOK("OK ") {
		t.Error("IsOK should accept OK with trailing whitespace")
	}
	if IsOK("ERR") || IsOK("") {
		t.Error("IsOK accepted a non-OK line")
	}
	if !IsErr("ERR") {
		t.Error("IsErr should accept ERR")
	}
	if IsErr("OK") {
		t.Error("IsErr accepted OK")
	}
}

func TestParsePowerState(t *testing.T) {
	tests := []struct {
		line      string
		want      bool
		wantErrIs error
	}{
		{line: "1", want: true},
		{line: "0", want: false},
		{line: " 1 ", want: true},
		{line: "ERR", wantErrIs: ErrCommandRejected},
		{line: "OK", wantErrIs: ErrUnexpectedResponse},
		{line: "", wantErrIs: ErrUnexpectedResponse},
		{line: "2", wantErrIs: ErrUnexpectedResponse},
	}

	for _, tt := range tests {
		got, err := ParsePowerState(tt.line)
		if tt.wantErrIs != nil {
			if !errors.Is(err, tt.wantErrIs) {
				t.Errorf("ParsePowerState(%q) error = %v, want %v", tt.line, err, tt.wantErrIs)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePowerState(%q) unexpected error: %v", tt.line, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePowerState(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestParseInputID(t *testing.T) {
	tests := []struct {
		line      string
		want      int
		wantErrIs error
	}{
		{line: "0002", want: 2},
		{line: "2", want: 2},
		{line: "0008", want: 8},
		{line: "0001", want: 1},
		{line: "0000", wantErrIs: ErrUnexpectedResponse},
		{line: "0009", wantErrIs: ErrUnexpectedResponse},
		{line: "ERR", wantErrIs: ErrCommandRejected},
		{line: "", wantErrIs: ErrUnexpectedResponse},
		{line: "00002", wantErrIs: ErrUnexpectedResponse},
	}

	for _, tt := range tests {
		got, err := ParseInputID(tt.line)
		if tt.wantErrIs != nil {
			if !errors.Is(err, tt.wantErrIs) {
				t.Errorf("ParseInputID(%q) error = %v, want %v", tt.line, err, tt.wantErrIs)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseInputID(%q) unexpected error: %v", tt.line, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseInputID(%q) = %d, want %d", tt.line, got, tt.want)
		}
	}
}
