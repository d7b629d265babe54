package patch

import "github.com/gordonklaus/lab"

// A Kind describes a type of node: its default mode, its ports and the unit
// its voices run.
type Kind struct {
	Name     string
	Unit     string
	Mode     lab.Mode
	AutoMono bool
	Audio    bool // has an audio input
	Params   []string
	Outputs  []string // defaults to a single "out"
}

type Kinds map[string]Kind

func (k Kinds) Add(kind Kind) { k[kind.Name] = kind }

// DefaultKinds returns a fresh copy of the built-in kinds.
func DefaultKinds() Kinds {
	k := Kinds{}
	k.Add(Kind{Name: "osc", Unit: "sine", Mode: lab.AutoPoly, Params: []string{"frequency", "detune"}})
	k.Add(Kind{Name: "noise", Unit: "noise", Mode: lab.AutoPoly, AutoMono: true, Params: []string{"level"}})
	k.Add(Kind{Name: "gain", Unit: "gain", Mode: lab.AutoPoly, Audio: true, Params: []string{"gain"}})
	k.Add(Kind{Name: "filter", Unit: "lowpass", Mode: lab.AutoPoly, Audio: true, Params: []string{"frequency"}})
	k.Add(Kind{Name: "delay", Unit: "delay", Mode: lab.AutoPoly, Audio: true, Params: []string{"time"}})
	k.Add(Kind{Name: "envelope", Unit: "gain", Mode: lab.AutoPoly, Audio: true, Params: []string{"level"}})
	k.Add(Kind{Name: "constant", Unit: "constant", Mode: lab.AutoPoly, AutoMono: true, Params: []string{"value"}})
	k.Add(Kind{Name: "poly", Unit: "constant", Mode: lab.StaticPoly(4), Params: []string{"value"}})
	k.Add(Kind{Name: "output", Unit: "pass", Mode: lab.Mono, Audio: true})
	return k
}
