package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
	"github.com/oshokin/oneshot-layer/internal/domain/oneshot"
	"github.com/oshokin/oneshot-layer/internal/keymap"
	"github.com/oshokin/oneshot-layer/internal/logger"
)

// Behavior configures one one-shot layer behavior instance.
type Behavior struct {
	// Name is the behavior name referenced from bindings, e.g. "osl" in "&osl nav".
	Name string `yaml:"name"`
	// Config holds the timeout and the cancel policy.
	oneshot.Config `yaml:",inline"`
}

// Layer is one keymap layer in configuration form.
type Layer struct {
	// Name is the layer name referenced from bindings and status output.
	Name string `yaml:"name"`
	// Bindings holds the binding text for each position, in position order.
	Bindings []string `yaml:"bindings"`
}

// Config holds the settings shared by oneshotd and oneshotctl.
type Config struct {
	// ControlAddress is the gRPC control service address.
	ControlAddress string `yaml:"control_addr"`
	// MetricsAddress enables the Prometheus endpoint when set.
	MetricsAddress string `yaml:"metrics_addr,omitempty"`
	// StatusFile is the path of the JSON status file. Empty disables it.
	StatusFile string `yaml:"status_file,omitempty"`
	// Device is the evdev input device path. Empty disables physical input.
	Device string `yaml:"device,omitempty"`
	// Grab takes the input device exclusively.
	Grab bool `yaml:"grab,omitempty"`
	// LogLevel is the initial log level.
	LogLevel string `yaml:"log_level,omitempty"`
	// Timeout is the duration for RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// HistorySize bounds the emission history kept by the daemon.
	HistorySize int `yaml:"history_size,omitempty"`
	// Positions lists device key names in position order.
	// When empty the scan code itself is the position.
	Positions []string `yaml:"positions,omitempty"`
	// Behaviors lists the one-shot layer behavior instances.
	Behaviors []Behavior `yaml:"behaviors"`
	// Layers is the keymap, layer 0 first.
	Layers []Layer `yaml:"layers"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "oneshot-settings.yaml"

	// DefaultControlAddress is the default gRPC control address.
	DefaultControlAddress = "127.0.0.1:50061"

	// DefaultTimeout is the default duration for RPC calls.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNoLayers is returned when the keymap is empty.
	errNoLayers = errors.New("at least one layer must be configured")
	// errTooManyLayers is returned when the keymap exceeds keyboard.MaxLayers.
	errTooManyLayers = errors.New("too many layers")
	// errLayerName is returned for empty or duplicate layer names.
	errLayerName = errors.New("layer names must be unique and not empty")
	// errBehaviorName is returned for empty, duplicate or built-in behavior names.
	errBehaviorName = errors.New("behavior names must be unique, not empty and not built-in")
	// errNegativeHistory is returned for a negative history size.
	errNegativeHistory = errors.New("history size must not be negative")
	// errDuplicatePosition is returned when a key name is listed twice in positions.
	errDuplicatePosition = errors.New("duplicate key in positions")
)

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings, fills defaults and makes sure the keymap builds.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ControlAddress == "" {
		settings.ControlAddress = DefaultControlAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ControlAddress); err != nil {
		return fmt.Errorf("invalid control address: %w", err)
	}

	if settings.MetricsAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", settings.MetricsAddress); err != nil {
			return fmt.Errorf("invalid metrics address: %w", err)
		}
	}

	// Set default timeout if not specified.
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.HistorySize < 0 {
		return errNegativeHistory
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}

	if _, err := settings.PositionMap(); err != nil {
		return err
	}

	if err := validateBehaviors(settings.Behaviors); err != nil {
		return err
	}

	if err := validateLayers(settings.Layers); err != nil {
		return err
	}

	if _, err := settings.BuildLayers(); err != nil {
		return fmt.Errorf("invalid keymap: %w", err)
	}

	return nil
}

// BehaviorNames returns the set of configured behavior names.
func (c *Config) BehaviorNames() map[string]bool {
	names := make(map[string]bool, len(c.Behaviors))
	for _, b := range c.Behaviors {
		names[b.Name] = true
	}

	return names
}

// BuildLayers parses the configured bindings into keymap layers.
func (c *Config) BuildLayers() ([]keymap.Layer, error) {
	names := make([]string, len(c.Layers))
	bindings := make([][]string, len(c.Layers))

	for i, layer := range c.Layers {
		names[i] = layer.Name
		bindings[i] = layer.Bindings
	}

	return keymap.Build(names, bindings, c.BehaviorNames())
}

// PositionMap maps device keycodes to positions. It returns nil when no
// positions are configured, meaning the keycode is used as the position.
func (c *Config) PositionMap() (map[keyboard.Keycode]keyboard.Position, error) {
	if len(c.Positions) == 0 {
		return nil, nil //nolint:nilnil // A nil map means identity mapping.
	}

	out := make(map[keyboard.Keycode]keyboard.Position, len(c.Positions))

	for i, name := range c.Positions {
		code, err := keyboard.ParseKeycode(name)
		if err != nil {
			return nil, fmt.Errorf("positions[%d]: %w", i, err)
		}

		if _, ok := out[code]; ok {
			return nil, fmt.Errorf("%w: %s", errDuplicatePosition, name)
		}

		out[code] = keyboard.Position(i)
	}

	return out, nil
}

func validateBehaviors(behaviors []Behavior) error {
	seen := make(map[string]bool, len(behaviors))

	for _, b := range behaviors {
		if b.Name == "" || seen[b.Name] || keymap.IsBuiltin(b.Name) {
			return fmt.Errorf("%w: %q", errBehaviorName, b.Name)
		}

		seen[b.Name] = true

		if err := b.Validate(); err != nil {
			return fmt.Errorf("behavior %q: %w", b.Name, err)
		}
	}

	return nil
}

func validateLayers(layers []Layer) error {
	if len(layers) == 0 {
		return errNoLayers
	}

	if len(layers) > keyboard.MaxLayers {
		return fmt.Errorf("%w: %d > %d", errTooManyLayers, len(layers), keyboard.MaxLayers)
	}

	seen := make(map[string]bool, len(layers))

	for _, layer := range layers {
		if layer.Name == "" || seen[layer.Name] {
			return fmt.Errorf("%w: %q", errLayerName, layer.Name)
		}

		seen[layer.Name] = true
	}

	return nil
}
