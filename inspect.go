package lab

import (
	"errors"
	"fmt"
)

// Nodes returns the handles of all live nodes.
func (g *Graph) Nodes() []NodeID {
	var ids []NodeID
	for _, n := range g.nodes {
		if !n.disposed {
			ids = append(ids, n.id)
		}
	}
	return ids
}

// VoiceCount returns 0 for unknown or disposed nodes.
func (g *Graph) VoiceCount(id NodeID) int {
	n, err := g.node(id)
	if err != nil {
		return 0
	}
	return len(n.voices)
}

func (g *Graph) Voices(id NodeID) []Voice {
	n, err := g.node(id)
	if err != nil {
		return nil
	}
	return append([]Voice(nil), n.voices...)
}

func (g *Graph) Mode(id NodeID) Mode {
	n, err := g.node(id)
	if err != nil {
		return Mode{}
	}
	return n.mode
}

func (g *Graph) Name(id NodeID) string {
	if id < 0 || int(id) >= len(g.nodes) {
		return ""
	}
	return g.nodes[id].name
}

// Owner returns the node a target's voices belong to.
func (g *Graph) Owner(t Target) (NodeID, error) {
	n, err := g.owner(t)
	if err != nil {
		return 0, err
	}
	return n.id, nil
}

// Targets returns src's targets in connect order.
func (g *Graph) Targets(src NodeID) []Target {
	n, err := g.node(src)
	if err != nil {
		return nil
	}
	return append([]Target(nil), n.order...)
}

// Sources returns the nodes registered as feeding t.
func (g *Graph) Sources(t Target) []NodeID {
	if _, err := g.owner(t); err != nil {
		return nil
	}
	return append([]NodeID(nil), g.sourcesOf(t).ids...)
}

// Edges returns the voice-level edges recorded from src to t.
func (g *Graph) Edges(src NodeID, t Target) []Edge {
	n, err := g.node(src)
	if err != nil {
		return nil
	}
	p, ok := n.targets[t]
	if !ok {
		return nil
	}
	return append([]Edge(nil), p.edges...)
}

// Check verifies that every node has the voice count its mode resolves to and
// that every recorded pairing holds exactly the edges the pairing rule gives.
func (g *Graph) Check() error {
	var errs []error
	for _, n := range g.nodes {
		if n.disposed {
			continue
		}
		if want := g.required(n); len(n.voices) != want {
			errs = append(errs, fmt.Errorf("%v has %d voices, %v resolves to %d", n, len(n.voices), n.mode, want))
		}
		for _, t := range n.order {
			mode, eps := g.view(t)
			want := g.pair(n, mode, eps)
			have := n.targets[t].edges
			if !sameEdges(want, have) {
				errs = append(errs, fmt.Errorf("%v -> %v has %d edges, want %d", n, t, len(have), len(want)))
			}
			if !g.sourcesOf(t).has(n.id) {
				errs = append(errs, fmt.Errorf("%v -> %v is not registered on the target", n, t))
			}
		}
	}
	return errors.Join(errs...)
}

func sameEdges(a, b []Edge) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[Edge]int, len(a))
	for _, e := range a {
		set[e]++
	}
	for _, e := range b {
		if set[e] == 0 {
			return false
		}
		set[e]--
	}
	return true
}

// ParamValue returns the value last set on all voices of a param.
func (g *Graph) ParamValue(id ParamID) (float64, bool) {
	p, _, err := g.param(id)
	if err != nil {
		return 0, false
	}
	return p.value, p.hasValue
}
