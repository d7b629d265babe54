// Package config loads labctl's YAML configuration.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      Log      `yaml:"log"`
	Audio    Audio    `yaml:"audio"`
	Feedback Feedback `yaml:"feedback"`
}

type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

type Audio struct {
	SampleRate int   `yaml:"sampleRate" validate:"min=1000,max=384000"`
	Channels   int   `yaml:"channels" validate:"min=1,max=8"`
	Seed       int64 `yaml:"seed"`
}

type Feedback struct {
	// MaxDepth bounds the feedback walk.
	MaxDepth int `yaml:"maxDepth" validate:"min=1"`
}

var validate = validator.New()

func Default() Config {
	return Config{
		Log:      Log{Level: "info", Format: "text"},
		Audio:    Audio{SampleRate: 44100, Channels: 1, Seed: 1},
		Feedback: Feedback{MaxDepth: 500},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func (c Config) Validate() error {
	return validate.Struct(c)
}
