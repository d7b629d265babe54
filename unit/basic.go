package unit

import "math"

// Constant outputs its value param.
type Constant struct{}

func (*Constant) Init(Config) {}

func (*Constant) Process(_ float64, p Params) float64 { return p["value"] }

// Sine is an oscillator. detune is in cents.
type Sine struct {
	phase, rate float64
}

func (s *Sine) Init(c Config) {
	s.phase = 0
	s.rate = c.SampleRate()
}

func (s *Sine) Process(_ float64, p Params) float64 {
	f := p["frequency"] * math.Exp2(p["detune"]/1200)
	out := math.Sin(2 * math.Pi * s.phase)
	s.phase += f / s.rate
	s.phase -= math.Floor(s.phase)
	return out
}

// Gain scales its input by the gain param, or by level if it has none.
type Gain struct{}

func (*Gain) Init(Config) {}

func (*Gain) Process(in float64, p Params) float64 {
	if g, ok := p["gain"]; ok {
		return in * g
	}
	return in * level(p)
}

// Lowpass is a one-pole lowpass filter with its cutoff in Hz.
type Lowpass struct {
	y, rate float64
}

func (l *Lowpass) Init(c Config) {
	l.y = 0
	l.rate = c.SampleRate()
}

func (l *Lowpass) Process(in float64, p Params) float64 {
	fc, ok := p["frequency"]
	if !ok || fc <= 0 {
		return in
	}
	a := 1 - math.Exp(-2*math.Pi*fc/l.rate)
	l.y += a * (in - l.y)
	return l.y
}

// Pass outputs its input unchanged.
type Pass struct{}

func (Pass) Init(Config) {}

func (Pass) Process(in float64, _ Params) float64 { return in }
