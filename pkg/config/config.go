// Package config provides configuration loading and management.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/user/av1session/pkg/player"
	"github.com/user/av1session/pkg/ports"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Engines lists the supported engine names.
var Engines = []string{"dav1d", "libaom"}

// Formats lists the supported output formats.
var Formats = []string{"y4m", "png", "sheet", "null"}

// Config represents the full configuration for av1dec.
type Config struct {
	Engine   string `yaml:"engine"`
	LogLevel string `yaml:"log_level"`

	Decoder  DecoderConfig  `yaml:"decoder"`
	Playback PlaybackConfig `yaml:"playback"`
	Output   OutputConfig   `yaml:"output"`
}

// DecoderConfig overrides engine settings. Zero values and nil pointers keep
// the engine's defaults.
type DecoderConfig struct {
	Threads               int    `yaml:"threads"`
	MaxFrameDelay         int    `yaml:"max_frame_delay"`
	ApplyGrain            *bool  `yaml:"apply_grain"`
	OperatingPoint        int    `yaml:"operating_point"`
	AllLayers             *bool  `yaml:"all_layers"`
	FrameSizeLimit        uint32 `yaml:"frame_size_limit"`
	StrictStdCompliance   *bool  `yaml:"strict_std_compliance"`
	OutputInvisibleFrames *bool  `yaml:"output_invisible_frames"`
}

// PlaybackConfig represents the player's error policy.
type PlaybackConfig struct {
	StopOnError  bool `yaml:"stop_on_error"`
	FlushOnFault bool `yaml:"flush_on_fault"`
	MaxPictures  int  `yaml:"max_pictures"`
}

// OutputConfig represents sink options.
type OutputConfig struct {
	Format string `yaml:"format"`

	// y4m
	FrameRateNum int `yaml:"frame_rate_num"`
	FrameRateDen int `yaml:"frame_rate_den"`

	// png
	Width int `yaml:"width"`

	// sheet
	Sheet SheetConfig `yaml:"sheet"`
}

// SheetConfig represents contact sheet options.
type SheetConfig struct {
	Every      int    `yaml:"every"`
	Columns    int    `yaml:"columns"`
	ThumbWidth int    `yaml:"thumb_width"`
	Background string `yaml:"background"`
	FontPath   string `yaml:"font_path"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Engine:   "dav1d",
		LogLevel: "info",

		Playback: PlaybackConfig{
			FlushOnFault: true,
		},

		Output: OutputConfig{
			Format:       "y4m",
			FrameRateNum: 30,
			FrameRateDen: 1,
			Sheet: SheetConfig{
				Every:      1,
				Columns:    4,
				ThumbWidth: 160,
				Background: "#202020",
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of Defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), err
	}
	return Parse(data)
}

// Parse decodes YAML on top of Defaults. Unknown keys are an error.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	if len(data) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if !contains(Engines, c.Engine) {
		return fmt.Errorf("%w: unknown engine %q", ErrInvalid, c.Engine)
	}
	if !contains(Formats, c.Output.Format) {
		return fmt.Errorf("%w: unknown output format %q", ErrInvalid, c.Output.Format)
	}

	d := c.Decoder
	switch {
	case d.Threads < 0:
		return fmt.Errorf("%w: threads must not be negative", ErrInvalid)
	case d.MaxFrameDelay < 0:
		return fmt.Errorf("%w: max_frame_delay must not be negative", ErrInvalid)
	case d.OperatingPoint < 0 || d.OperatingPoint > 31:
		return fmt.Errorf("%w: operating_point must be 0-31", ErrInvalid)
	case c.Playback.MaxPictures < 0:
		return fmt.Errorf("%w: max_pictures must not be negative", ErrInvalid)
	case c.Output.FrameRateNum <= 0 || c.Output.FrameRateDen <= 0:
		return fmt.Errorf("%w: frame rate must be positive", ErrInvalid)
	case c.Output.Width < 0:
		return fmt.Errorf("%w: width must not be negative", ErrInvalid)
	case c.Output.Sheet.Every < 1 || c.Output.Sheet.Columns < 1 || c.Output.Sheet.ThumbWidth < 1:
		return fmt.Errorf("%w: sheet every, columns and thumb_width must be positive", ErrInvalid)
	}
	if _, ok := ParseColor(c.Output.Sheet.Background); !ok {
		return fmt.Errorf("%w: bad sheet background %q", ErrInvalid, c.Output.Sheet.Background)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ApplyTo overrides the engine defaults in s with the configured values.
func (c Config) ApplyTo(s *ports.EngineSettings) {
	d := c.Decoder
	if d.Threads > 0 {
		s.Threads = d.Threads
	}
	if d.MaxFrameDelay > 0 {
		s.MaxFrameDelay = d.MaxFrameDelay
	}
	if d.OperatingPoint > 0 {
		s.OperatingPoint = d.OperatingPoint
	}
	if d.FrameSizeLimit > 0 {
		s.FrameSizeLimit = d.FrameSizeLimit
	}
	setBool(&s.ApplyGrain, d.ApplyGrain)
	setBool(&s.AllLayers, d.AllLayers)
	setBool(&s.StrictStdCompliance, d.StrictStdCompliance)
	setBool(&s.OutputInvisibleFrames, d.OutputInvisibleFrames)
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// PlayerConfig converts the playback section to player.Config.
func (c Config) PlayerConfig(input string) player.Config {
	return player.Config{
		Input:        input,
		StopOnError:  c.Playback.StopOnError,
		FlushOnFault: c.Playback.FlushOnFault,
		MaxPictures:  c.Playback.MaxPictures,
	}
}

// ParseColor parses a #rrggbb hex string.
func ParseColor(hex string) (color.Color, bool) {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return color.Black, false
	}

	var rgb [3]uint8
	for i := range rgb {
		hi, ok1 := hexValue(hex[2*i])
		lo, ok2 := hexValue(hex[2*i+1])
		if !ok1 || !ok2 {
			return color.Black, false
		}
		rgb[i] = hi<<4 | lo
	}
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}, true
}

func hexValue(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
