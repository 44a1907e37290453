package bindings

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-bindings/internal/binding"
	"github.com/nerrad567/gray-logic-bindings/internal/entity"
)

const defaultHealthInterval = 30

// Config is the binding declaration file: hub settings, the bindings and
// the entities attached to them.
type Config struct {
	Hub      HubSettings     `yaml:"hub"`
	Bindings []BindingConfig `yaml:"bindings"`
	Entities []entity.Config `yaml:"entities"`
}

// HubSettings contains hub identity and reporting settings.
type HubSettings struct {
	// ID identifies this hub in health messages.
	ID string `yaml:"id"`

	// HealthInterval is how often health is published, in seconds.
	HealthInterval int `yaml:"health_interval"`
}

// BindingConfig declares one binding.
type BindingConfig struct {
	ID       string `yaml:"id"`
	Flavor   string `yaml:"flavor"`
	Location string `yaml:"location"`

	// Options holds flavor attributes such as channels-per-element,
	// colors-channel, color-property-names and attribute-name.
	Options map[string]string `yaml:"options"`
}

// ToBindingConfig converts the declaration to the binding package form.
func (b BindingConfig) ToBindingConfig() binding.Config {
	return binding.Config{
		ID:       b.ID,
		Location: b.Location,
		Flavor:   binding.Flavor(b.Flavor),
		Options:  b.Options,
	}
}

// LoadConfig reads the declaration file at path.
//
// Binding declarations with a missing id, missing location or unknown
// flavor are accepted here; those bindings refuse to activate and are
// reported as inert. Structural problems that would make entity wiring
// ambiguous (duplicate IDs, dangling or clashing entity references) fail
// the load.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Hub: HubSettings{
			ID:             "bindings",
			HealthInterval: defaultHealthInterval,
		},
	}
}

// applyEnvOverrides applies GRAYLOGIC_BINDINGS_HUB_* overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_BINDINGS_HUB_ID"); v != "" {
		cfg.Hub.ID = v
	}
	if v := os.Getenv("GRAYLOGIC_BINDINGS_HUB_HEALTH_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Hub.HealthInterval = n
		}
	}
}

// Validate checks the declaration and returns every problem found.
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, c.validateHub()...)
	declared, bindingErrs := c.validateBindings()
	errs = append(errs, bindingErrs...)
	errs = append(errs, c.validateEntities(declared)...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateHub() []string {
	var errs []string
	if c.Hub.ID == "" {
		errs = append(errs, "hub.id is required")
	}
	if c.Hub.HealthInterval < 0 {
		errs = append(errs, "hub.health_interval must not be negative")
	}
	return errs
}

func (c *Config) validateBindings() (map[string]bool, []string) {
	var errs []string
	declared := make(map[string]bool, len(c.Bindings))
	for i, b := range c.Bindings {
		if b.ID == "" {
			continue
		}
		if declared[b.ID] {
			errs = append(errs, fmt.Sprintf("bindings[%d]: duplicate id %q", i, b.ID))
			continue
		}
		declared[b.ID] = true
	}
	return declared, errs
}

func (c *Config) validateEntities(declared map[string]bool) []string {
	var errs []string
	seen := make(map[string]bool, len(c.Entities))
	channels := make(map[string]string)

	for i, e := range c.Entities {
		if e.ID == "" {
			errs = append(errs, fmt.Sprintf("entities[%d]: id is required", i))
			continue
		}
		if seen[e.ID] {
			errs = append(errs, fmt.Sprintf("entities[%d]: duplicate id %q", i, e.ID))
			continue
		}
		seen[e.ID] = true

		if e.Binding == "" {
			continue
		}
		ref, err := entity.ParseBindingRef(e.Binding)
		if err != nil {
			errs = append(errs, fmt.Sprintf("entities[%d]: %v", i, err))
			continue
		}
		if !declared[ref.BindingID] {
			errs = append(errs, fmt.Sprintf("entities[%d]: binding %q is not declared", i, ref.BindingID))
			continue
		}
		if owner, taken := channels[ref.String()]; taken {
			errs = append(errs, fmt.Sprintf("entities[%d]: channel %s already bound to %q", i, ref, owner))
			continue
		}
		channels[ref.String()] = e.ID
	}
	return errs
}

// GetHealthInterval returns the health reporting interval.
func (c *Config) GetHealthInterval() time.Duration {
	if c.Hub.HealthInterval <= 0 {
		return defaultHealthInterval * time.Second
	}
	return time.Duration(c.Hub.HealthInterval) * time.Second
}
