package bindings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-bindings/internal/binding"
	"github.com/nerrad567/gray-logic-bindings/internal/entity"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bindings.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const validConfig = `
hub:
  id: gallery
  health_interval: 15
bindings:
  - id: leds
    flavor: obits-color
    location: /dev/leds
    options:
      channels-per-element: "2"
      colors-channel: "white:0;blue:1"
  - id: lcd
    flavor: otext-message
    location: /dev/lcd
  - flavor: ibits-button
    location: /dev/buttons
entities:
  - id: led-a
    binding: leds.0
    style:
      color: white
  - id: screen
    binding: lcd
    attributes:
      message: welcome
  - id: floating
`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfigFile(t, validConfig))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Hub.ID != "gallery" {
		t.Errorf("Hub.ID = %q, want gallery", cfg.Hub.ID)
	}
	if got := cfg.GetHealthInterval(); got != 15*time.Second {
		t.Errorf("GetHealthInterval() = %v, want 15s", got)
	}
	if len(cfg.Bindings) != 3 {
		t.Fatalf("len(Bindings) = %d, want 3", len(cfg.Bindings))
	}

	leds := cfg.Bindings[0].ToBindingConfig()
	if leds.Flavor != binding.FlavorColor {
		t.Errorf("Flavor = %q, want %q", leds.Flavor, binding.FlavorColor)
	}
	if got := leds.Option(binding.OptChannelsPerElement); got != "2" {
		t.Errorf("channels-per-element = %q, want 2", got)
	}
	if got := leds.Option(binding.OptColorsChannel); got != "white:0;blue:1" {
		t.Errorf("colors-channel = %q", got)
	}

	if len(cfg.Entities) != 3 {
		t.Fatalf("len(Entities) = %d, want 3", len(cfg.Entities))
	}
	if cfg.Entities[0].Style["color"] != "white" {
		t.Errorf("led-a style = %v", cfg.Entities[0].Style)
	}
	if cfg.Entities[1].Attributes["message"] != "welcome" {
		t.Errorf("screen attributes = %v", cfg.Entities[1].Attributes)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfigFile(t, "bindings: []\n"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Hub.ID != "bindings" {
		t.Errorf("Hub.ID = %q, want bindings", cfg.Hub.ID)
	}
	if got := cfg.GetHealthInterval(); got != 30*time.Second {
		t.Errorf("GetHealthInterval() = %v, want 30s", got)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("GRAYLOGIC_BINDINGS_HUB_ID", "from-env")
	t.Setenv("GRAYLOGIC_BINDINGS_HUB_HEALTH_INTERVAL", "5")

	cfg, err := LoadConfig(writeConfigFile(t, validConfig))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Hub.ID != "from-env" {
		t.Errorf("Hub.ID = %q, want from-env", cfg.Hub.ID)
	}
	if got := cfg.GetHealthInterval(); got != 5*time.Second {
		t.Errorf("GetHealthInterval() = %v, want 5s", got)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadConfig(writeConfigFile(t, "hub: [unclosed")); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "inert declarations are accepted",
			cfg: Config{
				Hub: HubSettings{ID: "h"},
				Bindings: []BindingConfig{
					{ID: "no-location", Flavor: "ibits-button"},
					{ID: "odd", Flavor: "obits-sparkle", Location: "/dev/x"},
					{Flavor: "ibits-button", Location: "/dev/y"},
				},
			},
		},
		{
			name:    "missing hub id",
			cfg:     Config{},
			wantErr: "hub.id is required",
		},
		{
			name:    "negative health interval",
			cfg:     Config{Hub: HubSettings{ID: "h", HealthInterval: -1}},
			wantErr: "health_interval",
		},
		{
			name: "duplicate binding id",
			cfg: Config{
				Hub: HubSettings{ID: "h"},
				Bindings: []BindingConfig{
					{ID: "a", Flavor: "ibits-button", Location: "/dev/a"},
					{ID: "a", Flavor: "ibits-item", Location: "/dev/b"},
				},
			},
			wantErr: `duplicate id "a"`,
		},
		{
			name: "entity without id",
			cfg: Config{
				Hub:      HubSettings{ID: "h"},
				Entities: entitiesOf(""),
			},
			wantErr: "entities[0]: id is required",
		},
		{
			name: "duplicate entity id",
			cfg: Config{
				Hub:      HubSettings{ID: "h"},
				Entities: entitiesOf("e", "e"),
			},
			wantErr: `entities[1]: duplicate id "e"`,
		},
		{
			name: "undeclared binding",
			cfg: Config{
				Hub:      HubSettings{ID: "h"},
				Entities: boundEntities(map[string]string{"e": "ghost.0"}),
			},
			wantErr: `binding "ghost" is not declared`,
		},
		{
			name: "channel bound twice",
			cfg: Config{
				Hub:      HubSettings{ID: "h"},
				Bindings: []BindingConfig{{ID: "lcd", Flavor: "otext-message", Location: "/dev/lcd"}},
				Entities: boundEntities(map[string]string{"a": "lcd", "b": "lcd.0"}),
			},
			wantErr: "already bound",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func entitiesOf(ids ...string) []entity.Config {
	out := make([]entity.Config, 0, len(ids))
	for _, id := range ids {
		out = append(out, entity.Config{ID: id})
	}
	return out
}

func boundEntities(refs map[string]string) []entity.Config {
	out := make([]entity.Config, 0, len(refs))
	for id, ref := range refs {
		out = append(out, entity.Config{ID: id, Binding: ref})
	}
	return out
}
