// Package unit holds the per-voice processing units the backend runs.
package unit

import (
	"fmt"
	"math/rand"

	"github.com/go-audio/audio"
)

// A Unit processes one voice's signal, one sample at a time.
// in is the sum of everything connected to the voice's audio input and p holds
// the current value of each param.
type Unit interface {
	Init(Config)
	Process(in float64, p Params) float64
}

type Params map[string]float64

type Config struct {
	Format *audio.Format
	Rand   *rand.Rand
}

func (c *Config) GetRand() *rand.Rand {
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(1))
	}
	return c.Rand
}

func (c *Config) SampleRate() float64 {
	if c.Format == nil || c.Format.SampleRate == 0 {
		return 44100
	}
	return float64(c.Format.SampleRate)
}

// New returns a fresh unit by name.
func New(name string) (Unit, error) {
	switch name {
	case "noise":
		return &Noise{}, nil
	case "constant":
		return &Constant{}, nil
	case "sine":
		return &Sine{}, nil
	case "gain":
		return &Gain{}, nil
	case "lowpass":
		return &Lowpass{}, nil
	case "delay":
		return &Delay{}, nil
	case "pass":
		return Pass{}, nil
	}
	return nil, fmt.Errorf("unknown unit %q", name)
}
