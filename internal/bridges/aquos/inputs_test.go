package aquos

import (
	"errors"
	"testing"
)

func TestValidateInputs(t *testing.T) {
	tests := []struct {
		name    string
		inputs  []Input
		wantErr bool
	}{
		{
			name: "valid table",
			inputs: []Input{
				{ID: 1, Name: "Sky Box", Type: "hdmi"},
				{ID: 2, Name: "Blu-ray", Type: "hdmi"},
			},
		},
		{name: "empty table", inputs: nil},
		{
			name:    "id below range",
			inputs:  []Input{{ID: 0, Name: "Nothing"}},
			wantErr: true,
		},
		{
			name:    "id above range",
			inputs:  []Input{{ID: 9, Name: "Ghost"}},
			wantErr: true,
		},
		{
			name:    "blank name",
			inputs:  []Input{{ID: 1, Name: ""}},
			wantErr: true,
		},
		{
			name: "duplicate id",
			inputs: []Input{
				{ID: 1, Name: "Sky Box"},
				{ID: 1, Name: "Blu-ray"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInputs(tt.inputs)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestFindInput(t *testing.T) {
	inputs := []Input{
		{ID: 1, Name: "Sky Box", Type: "hdmi"},
		{ID: 3, Name: "Chromecast", Type: "hdmi"},
	}

	if in, ok := FindInput(inputs, 3); !ok || in.Name != "Chromecast" {
		t.Errorf("FindInput(3) = %+v, %v", in, ok)
	}
	if _, ok := FindInput(inputs, 2); ok {
		t.Error("FindInput(2) found an unconfigured input")
	}

	if in, ok := FindInputByName(inputs, "Sky Box"); !ok || in.ID != 1 {
		t.Errorf("FindInputByName(Sky Box) = %+v, %v", in, ok)
	}
	if _, ok := FindInputByName(inputs, "VCR"); ok {
		t.Error("FindInputByName(VCR) found an unconfigured input")
	}
}
