package unit

import "math"

// Delay is a delay line. Its time param is the delay in seconds.
type Delay struct {
	rate float64
	x    []float64
	i    int
}

func (d *Delay) Init(c Config) {
	d.rate = c.SampleRate()
	d.x = make([]float64, 4)
	d.i = 0
}

func (d *Delay) Process(in float64, p Params) float64 {
	d.Write(in)
	return d.Read(p["time"])
}

func (d *Delay) Write(x float64) {
	d.i++
	if d.i == len(d.x) {
		d.i = 0
	}
	d.x[d.i] = x
}

// Read returns the signal t seconds ago.
func (d *Delay) Read(t float64) float64 {
	i, f := math.Modf(max(t, 0) * d.rate)
	return d.read(int(i), f)
}

func (d *Delay) read(i int, f float64) float64 {
	if i == 0 {
		return interp3(f, d.ReadSample(0), d.ReadSample(0), d.ReadSample(1), d.ReadSample(2))
	}
	return interp3(f, d.ReadSample(i-1), d.ReadSample(i), d.ReadSample(i+1), d.ReadSample(i+2))
}

// ReadSample returns the sample written i writes ago, growing the line as
// needed.
func (d *Delay) ReadSample(i int) float64 {
	for 2*i >= len(d.x) {
		grown := make([]float64, 2*len(d.x))
		copy(grown, d.x[:d.i+1])
		copy(grown[len(grown)-(len(d.x)-d.i-1):], d.x[d.i+1:])
		d.x = grown
	}
	i = d.i - i
	if i < 0 {
		i += len(d.x)
	}
	return d.x[i]
}

// Hermite cubic interpolation between x1 and x2 (t=0..1).
func interp3(t, x0, x1, x2, x3 float64) float64 {
	c0 := x1
	c1 := (x2 - x0) / 2
	c2 := x0 - 2.5*x1 + 2*x2 - x3/2
	c3 := 1.5*(x1-x2) + (x3-x0)/2
	return c0 + t*(c1+t*(c2+t*c3))
}
