package lab

import "fmt"

// required is the voice count a node's mode resolves to right now.
func (g *Graph) required(n *node) int {
	switch n.mode.Kind {
	case KindMono:
		return 1
	case KindStaticPoly:
		return n.mode.N
	case KindAutoPoly:
		c := 1
		for _, s := range n.sources.ids {
			c = max(c, len(g.nodes[s].voices))
		}
		for _, pid := range n.params {
			for _, s := range g.params[pid].sources.ids {
				c = max(c, len(g.nodes[s].voices))
			}
		}
		return c
	}
	panic(fmt.Sprintf("lab: %v has unknown mode kind %d", n, n.mode.Kind))
}

// recompute brings an AutoPoly node to its required voice count. trigger is
// the source whose change caused it and is not asked to re-pair.
// A recompute that arrives mid-resize is replayed once the resize is done.
func (g *Graph) recompute(n *node, trigger NodeID) {
	if n.mode.Kind != KindAutoPoly {
		return
	}
	if n.busy {
		n.pending = true
		return
	}
	for {
		n.pending = false
		if want := g.required(n); want != len(n.voices) {
			g.resize(n, want, trigger)
		}
		if !n.pending {
			return
		}
		trigger = noTrigger
	}
}

// resize grows or shrinks a node's voice list and re-pairs every edge that
// touches it. New voices take the next indices; trailing voices go first.
func (g *Graph) resize(n *node, want int, trigger NodeID) {
	old := len(n.voices)
	if want == old {
		return
	}
	n.busy = true
	defer func() { n.busy = false }()

	if want > old {
		for i := old; i < want; i++ {
			v := n.factory.MakeVoice(i)
			n.voices = append(n.voices, v)
			g.applyParams(n, v)
		}
		g.notifySources(n, trigger)
	} else {
		removed := append([]Voice(nil), n.voices[want:]...)
		n.voices = n.voices[:want]
		if n.active != AllVoices && int(n.active) >= want {
			n.active = g.clampVoice(n, n.active)
		}
		for _, t := range n.order {
			g.dropEdgesFrom(n, t, removed)
		}
		g.notifySources(n, trigger)
		for i := len(removed) - 1; i >= 0; i-- {
			n.factory.Dispose(removed[i])
		}
	}
	recordResize(old, want)
	g.log.Debug("voice count changed", "node", n.String(), "mode", n.mode.String(), "from", old, "to", want)
	if g.hook != nil {
		g.hook(n.id, old, want)
	}

	for _, t := range append([]Target(nil), n.order...) {
		if _, ok := n.targets[t]; !ok {
			continue
		}
		g.onSourceVoiceCountChange(t, n.id)
		g.rewire(n, t)
	}
}

// onSourceVoiceCountChange is the target side of a source resize.
func (g *Graph) onSourceVoiceCountChange(t Target, src NodeID) {
	n, err := g.owner(t)
	if err != nil {
		return
	}
	switch n.mode.Kind {
	case KindAutoPoly:
		g.recompute(n, src)
	case KindMono, KindStaticPoly:
	}
}

// notifySources asks every source of n and of n's params, except trigger, to
// re-pair against n's current voices.
func (g *Graph) notifySources(n *node, trigger NodeID) {
	for _, s := range append([]NodeID(nil), n.sources.ids...) {
		if s != trigger {
			g.rewire(g.nodes[s], n.id)
		}
	}
	for _, pid := range n.params {
		for _, s := range append([]NodeID(nil), g.params[pid].sources.ids...) {
			if s != trigger {
				g.rewire(g.nodes[s], pid)
			}
		}
	}
}

// fansOut reports whether n pairs its single voice with every target voice.
func fansOut(n *node) bool {
	switch n.mode.Kind {
	case KindMono:
		return true
	case KindAutoPoly:
		return n.autoMono && len(n.voices) == 1
	case KindStaticPoly:
		return false
	}
	return false
}

// pair applies the pairing rule: into a Mono target every source voice meets
// the single endpoint; from a fanning source the single voice meets every
// endpoint; otherwise voice i meets endpoint i up to the shorter list.
func (g *Graph) pair(src *node, mode Mode, eps []Endpoint) []Edge {
	if len(eps) == 0 || len(src.voices) == 0 {
		return nil
	}
	var edges []Edge
	switch {
	case mode.Kind == KindMono:
		for _, v := range src.voices {
			edges = append(edges, Edge{Src: v, Dst: eps[0]})
		}
	case fansOut(src):
		for _, ep := range eps {
			edges = append(edges, Edge{Src: src.voices[0], Dst: ep})
		}
	default:
		for i, k := 0, min(len(src.voices), len(eps)); i < k; i++ {
			edges = append(edges, Edge{Src: src.voices[i], Dst: eps[i]})
		}
	}
	return edges
}

// rewire rebuilds the pairing from n to t against t's current voices.
// Edges that survive are left alone; stale ones go highest first.
func (g *Graph) rewire(n *node, t Target) {
	p, ok := n.targets[t]
	if !ok {
		return
	}
	mode, eps := g.view(t)
	want := g.pair(n, mode, eps)

	wanted := make(map[Edge]bool, len(want))
	for _, e := range want {
		wanted[e] = true
	}
	have := make(map[Edge]bool, len(p.edges))
	dropped := 0
	for i := len(p.edges) - 1; i >= 0; i-- {
		e := p.edges[i]
		if wanted[e] {
			have[e] = true
			continue
		}
		g.disconnectEdge(n, e)
		dropped++
	}
	edges := make([]Edge, 0, len(want))
	added := 0
	for _, e := range want {
		if have[e] {
			edges = append(edges, e)
		} else if g.connectEdge(n, e) {
			edges = append(edges, e)
			added++
		}
	}
	p.mode, p.endpoints, p.edges = mode, eps, edges
	if added > 0 || dropped > 0 {
		recordRewire(added, dropped)
	}
}

// dropEdgesFrom disconnects the edges leaving removed voices, highest first.
func (g *Graph) dropEdgesFrom(n *node, t Target, removed []Voice) {
	p := n.targets[t]
	gone := make(map[Voice]bool, len(removed))
	for _, v := range removed {
		gone[v] = true
	}
	dropped := 0
	for i := len(removed) - 1; i >= 0; i-- {
		for j := len(p.edges) - 1; j >= 0; j-- {
			if p.edges[j].Src == removed[i] {
				g.disconnectEdge(n, p.edges[j])
				dropped++
			}
		}
	}
	if dropped > 0 {
		recordRewire(0, dropped)
	}
	kept := p.edges[:0]
	for _, e := range p.edges {
		if !gone[e.Src] {
			kept = append(kept, e)
		}
	}
	p.edges = kept
}

func (g *Graph) connectEdge(n *node, e Edge) bool {
	if err := n.factory.Connect(e.Src, e.Dst); err != nil {
		recordBackendFailure("connect")
		g.log.Warn("voice connect failed", "node", n.String(), "param", e.Dst.Param, "error", fmt.Errorf("%w: %w", ErrBackendConnect, err))
		return false
	}
	return true
}

// disconnectEdge never fails: errors and panics from the backend are logged
// and the pair is treated as severed.
func (g *Graph) disconnectEdge(n *node, e Edge) {
	defer func() {
		if r := recover(); r != nil {
			recordBackendFailure("disconnect")
			g.log.Warn("voice disconnect panicked", "node", n.String(), "param", e.Dst.Param, "error", fmt.Errorf("%w: %v", ErrBackendDisconnect, r))
		}
	}()
	if err := n.factory.Disconnect(e.Src, e.Dst); err != nil {
		recordBackendFailure("disconnect")
		g.log.Warn("voice disconnect failed", "node", n.String(), "param", e.Dst.Param, "error", fmt.Errorf("%w: %w", ErrBackendDisconnect, err))
	}
}
