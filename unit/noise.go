package unit

import (
	"math/rand"
)

type Noise struct {
	rand *rand.Rand
}

func (n *Noise) Init(c Config) {
	n.rand = c.GetRand()
}

func (n *Noise) Process(_ float64, p Params) float64 {
	return level(p) * (2*n.rand.Float64() - 1)
}

func level(p Params) float64 {
	if l, ok := p["level"]; ok {
		return l
	}
	return 1
}
