// Package config loads radarsweep settings from defaults, an optional
// config file, environment variables and command-line overrides, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"radarsweep/core"
)

// EnvPrefix prefixes every environment override, e.g. RADARSWEEP_WIDTH
const EnvPrefix = "RADARSWEEP"

// Settings is the effective configuration of one run
type Settings struct {
	Width         int     `mapstructure:"width" yaml:"width"`
	Height        int     `mapstructure:"height" yaml:"height"`
	AngleStep     float64 `mapstructure:"angle_step" yaml:"angle_step"`
	LinesPerSweep int     `mapstructure:"lines_per_sweep" yaml:"lines_per_sweep"`
	CellsPerLine  int     `mapstructure:"cells_per_line" yaml:"cells_per_line"`
	LineMode      string  `mapstructure:"line_mode" yaml:"line_mode"`
	QuadHistory   string  `mapstructure:"quad_history" yaml:"quad_history"`
	Overlay       bool    `mapstructure:"overlay" yaml:"overlay"`
	Seed          uint64  `mapstructure:"seed" yaml:"seed"`

	ShaderDir string `mapstructure:"shader_dir" yaml:"shader_dir"`
	VSync     bool   `mapstructure:"vsync" yaml:"vsync"`
	Hidden    bool   `mapstructure:"hidden" yaml:"hidden"`

	Readback      bool   `mapstructure:"readback" yaml:"readback"`
	ReadbackEvery int    `mapstructure:"readback_every" yaml:"readback_every"`
	ListenAddr    string `mapstructure:"listen_addr" yaml:"listen_addr"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("width", 800)
	v.SetDefault("height", 800)
	v.SetDefault("angle_step", math.Pi/180)
	v.SetDefault("lines_per_sweep", core.MaxLines)
	v.SetDefault("cells_per_line", core.MaxCells)
	v.SetDefault("line_mode", string(core.SectorLines))
	v.SetDefault("quad_history", string(core.HistoryRevolution))
	v.SetDefault("overlay", true)
	v.SetDefault("seed", 0)
	v.SetDefault("shader_dir", "")
	v.SetDefault("vsync", false)
	v.SetDefault("hidden", false)
	v.SetDefault("readback", true)
	v.SetDefault("readback_every", 1)
	v.SetDefault("listen_addr", "")
	v.SetDefault("log_level", "info")
}

// Load builds Settings. path names an explicit config file; when empty,
// radarsweep.{yaml,toml,json} is looked up in /etc/radarsweep and the
// working directory and may be absent. overrides win over everything else.
func Load(path string, overrides map[string]any) (Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the shader directory keeps its historical unprefixed name
	if err := v.BindEnv("shader_dir", "SHADER_DIR", EnvPrefix+"_SHADER_DIR"); err != nil {
		return Settings{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("radarsweep")
		v.AddConfigPath("/etc/radarsweep")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Settings{}, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	for key, val := range overrides {
		v.Set(key, val)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return s, nil
}

// Validate checks the settings can drive an engine. The shader directory
// is not checked here; the engine reports it as an init error.
func (s Settings) Validate() error {
	var errs []error
	if s.Width <= 0 || s.Height <= 0 {
		errs = append(errs, fmt.Errorf("%w: %dx%d", core.ErrInvalidSize, s.Width, s.Height))
	}
	if s.AngleStep <= 0 || math.IsNaN(s.AngleStep) || math.IsInf(s.AngleStep, 0) {
		errs = append(errs, fmt.Errorf("angle_step must be positive, got %v", s.AngleStep))
	} else if n := core.SlotsPerRevolution(s.AngleStep); n > core.MaxSlots {
		errs = append(errs, fmt.Errorf("%w: angle_step %v gives %d sectors per turn, at least %v needed",
			core.ErrTooManySlots, s.AngleStep, n, core.TwoPi/core.MaxSlots))
	}
	if s.LinesPerSweep <= 0 {
		errs = append(errs, fmt.Errorf("lines_per_sweep must be positive, got %d", s.LinesPerSweep))
	}
	if s.CellsPerLine <= 0 || s.CellsPerLine > core.MaxCells {
		errs = append(errs, fmt.Errorf("cells_per_line must be in 1..%d, got %d", core.MaxCells, s.CellsPerLine))
	}
	if _, err := core.ParseLineMode(s.LineMode); err != nil {
		errs = append(errs, err)
	}
	if _, err := core.ParseQuadHistory(s.QuadHistory); err != nil {
		errs = append(errs, err)
	}
	if s.Readback && s.ReadbackEvery < 1 {
		errs = append(errs, fmt.Errorf("readback_every must be at least 1, got %d", s.ReadbackEvery))
	}
	if _, err := s.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error")
func (s Settings) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q: %w", s.LogLevel, err)
	}
	return level, nil
}

// Dump writes the settings as YAML, in a form Load accepts back
func (s Settings) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}
