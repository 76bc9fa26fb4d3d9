package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/cases"
)

const (
	inputPrefix  = "input_"
	scriptPrefix = "script_"
)

type Config struct {
	Video   VideoConfig   `toml:"Video"`
	Audio   AudioConfig   `toml:"Audio"`
	Engine  EngineConfig  `toml:"Engine"`
	Logging LoggingConfig `toml:"Logging"`

	// Inputs holds [Input_<controller>] binding entries keyed by controller
	// name; Scripts holds [Script_<name>] entries for script handlers.
	Inputs  map[string]map[string]string `toml:"-"`
	Scripts map[string]map[string]string `toml:"-"`

	// Unknown lists keys the file carried that nothing reads.
	Unknown []string `toml:"-"`
}

type VideoConfig struct {
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
	Fullscreen Switch `toml:"fullscreen"`
	CellWidth  int    `toml:"cell_width"`  // world pixels per terminal column
	CellHeight int    `toml:"cell_height"` // world pixels per terminal row
}

type AudioConfig struct {
	MasterVolume uint8  `toml:"master_volume"`
	BGMVolume    uint8  `toml:"bgm_volume"`
	SFXVolume    uint8  `toml:"sfx_volume"`
	Stereo       Switch `toml:"stereo"`
}

type EngineConfig struct {
	AssetRoot      string `toml:"asset_root"` // relative to the working directory
	FPSMin         int    `toml:"fps_min"`
	FPSMax         int    `toml:"fps_max"`
	Workers        int    `toml:"workers"` // 0 = one per CPU
	EntityCapacity int    `toml:"entity_capacity"`
	Seed           uint64 `toml:"seed"` // 0 = seeded from the clock
	MainScript     string `toml:"main_script"`
	StartupLevel   string `toml:"startup_level"`
	Controllers    string `toml:"controllers"`
	ColliderTypes  string `toml:"collider_types"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
	File   string `toml:"file"`   // empty logs to stderr
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a settings document over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, err
	}
	for name, v := range raw {
		section, ok := v.(map[string]any)
		if !ok {
			continue
		}
		lower := fold.String(name)
		switch {
		case strings.HasPrefix(lower, inputPrefix):
			cfg.Inputs[name[len(inputPrefix):]] = stringify(section)
		case strings.HasPrefix(lower, scriptPrefix):
			cfg.Scripts[name[len(scriptPrefix):]] = stringify(section)
		}
	}

	for _, key := range md.Undecoded() {
		top := fold.String(key[0])
		if strings.HasPrefix(top, inputPrefix) || strings.HasPrefix(top, scriptPrefix) {
			continue
		}
		cfg.Unknown = append(cfg.Unknown, key.String())
	}
	return cfg, cfg.Validate()
}

func stringify(section map[string]any) map[string]string {
	out := make(map[string]string, len(section))
	for k, v := range section {
		switch v := v.(type) {
		case string:
			out[k] = v
		case []any:
			parts := make([]string, len(v))
			for i, p := range v {
				parts[i] = fmt.Sprint(p)
			}
			out[k] = strings.Join(parts, ", ")
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

func (c *Config) Validate() error {
	e := c.Engine
	switch {
	case e.FPSMin < 1:
		return fmt.Errorf("fps_min must be at least 1, got %d", e.FPSMin)
	case e.FPSMax < e.FPSMin:
		return fmt.Errorf("fps_max (%d) is below fps_min (%d)", e.FPSMax, e.FPSMin)
	case e.Workers < 0:
		return fmt.Errorf("workers must not be negative, got %d", e.Workers)
	case e.EntityCapacity < 1:
		return fmt.Errorf("entity_capacity must be positive, got %d", e.EntityCapacity)
	case c.Video.CellWidth < 1 || c.Video.CellHeight < 1:
		return fmt.Errorf("cell size must be positive, got %dx%d", c.Video.CellWidth, c.Video.CellHeight)
	}
	return nil
}

// Save writes the settings, including controller bindings and script
// sections, to path.
func (c *Config) Save(path string) error {
	doc := map[string]any{
		"Video":   c.Video,
		"Audio":   c.Audio,
		"Engine":  c.Engine,
		"Logging": c.Logging,
	}
	for name, entries := range c.Inputs {
		doc["Input_"+name] = entries
	}
	for name, entries := range c.Scripts {
		doc["Script_"+name] = entries
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config %s: %w", path, err)
	}
	if err := toml.NewEncoder(f).Encode(doc); err != nil {
		f.Close()
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return f.Close()
}

func defaults() *Config {
	return &Config{
		Video: VideoConfig{
			Width:      640,
			Height:     360,
			Fullscreen: Inherit,
			CellWidth:  8,
			CellHeight: 16,
		},
		Audio: AudioConfig{
			MasterVolume: 255,
			BGMVolume:    255,
			SFXVolume:    255,
			Stereo:       Inherit,
		},
		Engine: EngineConfig{
			FPSMin:         30,
			FPSMax:         60,
			EntityCapacity: 4096,
			MainScript:     "scripts/main.lua",
			Controllers:    "controllers.yaml",
			ColliderTypes:  "colliders.yaml",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Inputs:  make(map[string]map[string]string),
		Scripts: make(map[string]map[string]string),
	}
}

var fold = cases.Fold()
