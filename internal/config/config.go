// Package config loads facetview settings: an embedded default document
// overlaid with an optional user file in YAML or TOML.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/oakwood-commons/facetview/internal/widget"
	"github.com/oakwood-commons/facetview/pkg/settings"
)

//go:embed default_config.yaml
var defaultConfigYAML []byte

// DefaultConfigYAML returns the embedded default configuration.
func DefaultConfigYAML() []byte {
	return append([]byte(nil), defaultConfigYAML...)
}

// Duration is a time.Duration written as "250ms" in config files.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full facetview configuration.
type Config struct {
	HTTP      HTTPConfig       `yaml:"http" toml:"http"`
	Timing    TimingConfig     `yaml:"timing" toml:"timing"`
	Selectors widget.Selectors `yaml:"selectors" toml:"selectors"`
	UI        UIConfig         `yaml:"ui" toml:"ui"`
}

// HTTPConfig configures outbound requests.
type HTTPConfig struct {
	Timeout   Duration `yaml:"timeout" toml:"timeout"`
	UserAgent string   `yaml:"user_agent" toml:"user_agent"`
}

// TimingConfig holds the widget's debounce and grace delays.
type TimingConfig struct {
	AutocompleteDelay Duration `yaml:"autocomplete_delay" toml:"autocomplete_delay"`
	FilterDelay       Duration `yaml:"filter_delay" toml:"filter_delay"`
	BlurDelay         Duration `yaml:"blur_delay" toml:"blur_delay"`
}

// UIConfig configures the terminal front end.
type UIConfig struct {
	NoColor bool        `yaml:"no_color" toml:"no_color"`
	Theme   ThemeConfig `yaml:"theme" toml:"theme"`
}

// ThemeConfig holds lipgloss colors as hex strings.
type ThemeConfig struct {
	Accent string `yaml:"accent" toml:"accent"`
	Muted  string `yaml:"muted" toml:"muted"`
	Focus  string `yaml:"focus" toml:"focus"`
	Active string `yaml:"active" toml:"active"`
	Error  string `yaml:"error" toml:"error"`
	Hidden string `yaml:"hidden" toml:"hidden"`
}

// Default decodes the embedded configuration.
func Default() (*Config, error) {
	var cfg Config
	if len(defaultConfigYAML) == 0 {
		return nil, errors.New("embedded default config is empty")
	}
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		return nil, fmt.Errorf("decode default config: %w", err)
	}
	return &cfg, nil
}

// Load returns the defaults overlaid with the file at path. An empty path
// returns the defaults. Files ending in .toml are decoded as TOML, anything
// else as YAML.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks durations and compiles every selector.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Timeout < 0 {
		errs = append(errs, errors.New("http.timeout must not be negative"))
	}
	for name, d := range map[string]Duration{
		"timing.autocomplete_delay": c.Timing.AutocompleteDelay,
		"timing.filter_delay":       c.Timing.FilterDelay,
		"timing.blur_delay":         c.Timing.BlurDelay,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	s := c.Selectors
	for name, sel := range map[string]string{
		"root": s.Root, "form": s.Form, "box": s.Box, "rows": s.Rows, "label": s.Label,
		"show_more": s.ShowMore, "search_input": s.SearchInput, "preview_toggle": s.PreviewToggle,
		"preview_row": s.PreviewRow, "preview_container": s.PreviewContainer, "select": s.Select,
		"autocomplete": s.Autocomplete,
	} {
		if sel == "" {
			continue
		}
		if _, err := cascadia.Compile(sel); err != nil {
			errs = append(errs, fmt.Errorf("selectors.%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// WidgetTiming converts the timing section for widget.WithTiming.
func (c *Config) WidgetTiming() widget.Timing {
	return widget.Timing{
		AutocompleteDelay: c.Timing.AutocompleteDelay.Std(),
		FilterDelay:       c.Timing.FilterDelay.Std(),
		BlurDelay:         c.Timing.BlurDelay.Std(),
	}
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ResolvePath returns explicit when set, otherwise the first existing
// config.yaml, config.yml or config.toml under $XDG_CONFIG_HOME/facetview
// (or ~/.config/facetview). It returns "" when none exists.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	dir := ""
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dir = filepath.Join(xdg, settings.CliBinaryName)
	} else if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".config", settings.CliBinaryName)
	}
	if dir == "" {
		return ""
	}
	for _, name := range []string{"config.yaml", "config.yml", "config.toml"} {
		candidate := filepath.Join(dir, name)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate
		}
	}
	return ""
}
