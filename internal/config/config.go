package config

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/fkcurrie/regio/internal/types"
	"github.com/fkcurrie/regio/pkg/catalog"
)

// Backends
const (
	BackendSim    = "sim"
	BackendDevMem = "devmem"
	BackendCPU    = "cpu"
)

// Config represents the application configuration
type Config struct {
	Backend  string               `json:"backend"`
	Catalogs []string             `json:"catalogs"`
	Windows  []types.WindowConfig `json:"windows"`
	GPIO     []types.GPIOConfig   `json:"gpio"`
	Trace    types.TraceConfig    `json:"trace"`
	Strict   bool                 `json:"strict"`
	Sim      types.SimConfig      `json:"sim"`
}

// LoadConfig loads the configuration from a file. Settings missing from
// the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := DefaultConfig()
	dec := json.NewDecoder(file)
	dec.DisallowUnknownFields()
	if err := dec.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendSim,
		Catalogs: []string{
			catalog.BuiltinPrefix + "aarch64",
			catalog.BuiltinPrefix + "bcm2837-aux",
		},
	}
}

// Validate checks that the settings can be used together.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSim, BackendDevMem, BackendCPU:
	default:
		return fmt.Errorf("unknown backend %q (want %s, %s or %s)", c.Backend, BackendSim, BackendDevMem, BackendCPU)
	}
	if len(c.Catalogs) == 0 {
		return fmt.Errorf("no catalogs configured")
	}
	builtins := catalog.BuiltinNames()
	for _, ref := range c.Catalogs {
		name, ok := strings.CutPrefix(ref, catalog.BuiltinPrefix)
		if ok && !slices.Contains(builtins, name) {
			return fmt.Errorf("unknown builtin catalog %q (have %s)", name, strings.Join(builtins, ", "))
		}
	}
	if len(c.Windows) > 0 && c.Backend != BackendDevMem {
		return fmt.Errorf("memory windows need the %s backend", BackendDevMem)
	}
	if c.Backend == BackendDevMem && len(c.Windows) == 0 && len(c.GPIO) == 0 {
		return fmt.Errorf("the %s backend needs at least one window or gpio bank", BackendDevMem)
	}
	for i, w := range c.Windows {
		if w.Size == 0 {
			return fmt.Errorf("window %d at %s is empty", i, w.Base)
		}
		if uint64(w.Base)+uint64(w.Size) < uint64(w.Base) {
			return fmt.Errorf("window %d at %s wraps the address space", i, w.Base)
		}
	}
	if len(c.GPIO) > 0 && c.Backend == BackendSim {
		return fmt.Errorf("gpio banks cannot be used with the %s backend", BackendSim)
	}
	for i, g := range c.GPIO {
		if g.Chip == "" {
			return fmt.Errorf("gpio bank %d has no chip", i)
		}
		if len(g.Lines) == 0 {
			return fmt.Errorf("gpio bank %d on %s has no lines", i, g.Chip)
		}
	}
	if len(c.Sim.Registers) > 0 && c.Backend != BackendSim {
		return fmt.Errorf("sim seed values need the %s backend", BackendSim)
	}
	return nil
}

