package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Hex is a number that may be written in JSON either as a number or as a
// string in Go syntax, e.g. "0x3f215000".
type Hex uint64

// UnmarshalJSON implements json.Unmarshaler.
func (h *Hex) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", s, err)
		}
		*h = Hex(v)
		return nil
	}
	var v uint64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid number %s", data)
	}
	*h = Hex(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (h Hex) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h Hex) String() string { return fmt.Sprintf("%#x", uint64(h)) }

// WindowConfig is a physical address window to map from /dev/mem
type WindowConfig struct {
	Base Hex `json:"base"`
	Size Hex `json:"size"`
}

// GPIOConfig is a bank of GPIO lines exposed as a register
type GPIOConfig struct {
	Chip    string `json:"chip"`
	Lines   []int  `json:"lines"`
	Address Hex    `json:"address"`
	Width   int    `json:"width"`
	Output  bool   `json:"output"`
}

// TraceConfig controls access tracing
type TraceConfig struct {
	Path    string `json:"path"`
	Verbose bool   `json:"verbose"`
}

// SimConfig seeds the simulated bus
type SimConfig struct {
	// Registers maps register names to their initial contents. Registers
	// not listed start at their catalog reset value.
	Registers map[string]Hex `json:"registers"`
}
