package aquos

import "fmt"

// Input describes one configured external input on the TV.
type Input struct {
	// ID is the IAVD input selector (1..8).
	ID int `yaml:"id" json:"id"`

	// Name is the display name shown to users (e.g., "Sky Box").
	Name string `yaml:"name" json:"name"`

	// Type categorizes the source (e.g., "hdmi", "component", "tuner").
	Type string `yaml:"type" json:"type,omitempty"`
}

// ValidateInputs checks a configured input table for out-of-range ids,
// duplicate ids, and blank names.
func ValidateInputs(inputs []Input) error {
	seen := make(map[int]bool, len(inputs))
	for _, in := range inputs {
		if in.ID < MinInputID || in.ID > MaxInputID {
			return fmt.Errorf("%w: input %q has id %d (valid range %d..%d)",
				ErrInvalidInput, in.Name, in.ID, MinInputID, MaxInputID)
		}
		if in.Name == "" {
			return fmt.Errorf("%w: input %d has no name", ErrInvalidInput, in.ID)
		}
		if seen[in.ID] {
			return fmt.Errorf("%w: duplicate input id %d", ErrInvalidInput, in.ID)
		}
		seen[in.ID] = true
	}
	return nil
}

// FindInput returns the configured input with the given id, or false if
// the id is not in the table.
func FindInput(inputs []Input, id int) (Input, bool) {
	for _, in := range inputs {
		if in.ID == id {
			return in, true
		}
	}
	return Input{}, false
}

// FindInputByName returns the configured input with the given name, or
// false if no input carries it.
func FindInputByName(inputs []Input, name string) (Input, bool) {
	for _, in := range inputs {
		if in.Name == name {
			return in, true
		}
	}
	return Input{}, false
}
