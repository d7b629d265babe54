package lab

import (
	"errors"
	"fmt"
)

type node struct {
	id       NodeID
	name     string
	mode     Mode
	autoMono bool
	factory  VoiceFactory
	voices   []Voice

	// targets records, per target, what was paired the last time.
	// order keeps connect order so rewiring is deterministic.
	targets map[Target]*pairing
	order   []Target

	sources sourceSet
	params  []ParamID

	active   VoiceIndex
	activeAt float64

	busy     bool // resizing; re-entrant recomputes are deferred
	pending  bool
	disposed bool
}

func (n *node) String() string { return fmt.Sprintf("%v(%s)", n.id, n.name) }

type param struct {
	id       ParamID
	owner    NodeID
	name     string
	sources  sourceSet
	value    float64
	hasValue bool
}

type pairing struct {
	mode      Mode
	endpoints []Endpoint
	edges     []Edge
}

// sourceSet is an insertion-ordered set of node handles.
type sourceSet struct {
	ids []NodeID
}

func (s *sourceSet) add(id NodeID) bool {
	if s.has(id) {
		return false
	}
	s.ids = append(s.ids, id)
	return true
}

func (s *sourceSet) remove(id NodeID) bool {
	for i, x := range s.ids {
		if x == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			return true
		}
	}
	return false
}

func (s *sourceSet) has(id NodeID) bool {
	for _, x := range s.ids {
		if x == id {
			return true
		}
	}
	return false
}

// Connect pairs the voices of src with the voices of t and records the pairing.
// An AutoPoly target grows to src's voice count before pairing.
func (g *Graph) Connect(src NodeID, t Target) error {
	s, err := g.node(src)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if _, ok := s.targets[t]; ok {
		return fmt.Errorf("connect %v -> %v: %w", s, t, ErrAlreadyConnected)
	}
	mode, eps, err := g.onConnect(t, src)
	if err != nil {
		return fmt.Errorf("connect %v -> %v: %w", s, t, err)
	}
	p := &pairing{mode: mode, endpoints: eps}
	for _, e := range g.pair(s, mode, eps) {
		if g.connectEdge(s, e) {
			p.edges = append(p.edges, e)
		}
	}
	s.targets[t] = p
	s.order = append(s.order, t)
	recordRewire(len(p.edges), 0)
	g.log.Debug("connected", "src", s.String(), "target", t.String(), "edges", len(p.edges))
	return nil
}

// onConnect is the target side of Connect.
func (g *Graph) onConnect(t Target, src NodeID) (Mode, []Endpoint, error) {
	n, err := g.owner(t)
	if err != nil {
		return Mode{}, nil, err
	}
	switch n.mode.Kind {
	case KindStaticPoly:
		return Mode{}, nil, fmt.Errorf("%v: %w", n, ErrStaticPolyTarget)
	case KindMono:
		g.sourcesOf(t).add(src)
	case KindAutoPoly:
		g.sourcesOf(t).add(src)
		g.recompute(n, src)
	}
	mode, eps := g.view(t)
	return mode, eps, nil
}

// Disconnect undoes exactly the pairing recorded for t.
// Voice-level failures are logged and do not stop the rest.
func (g *Graph) Disconnect(src NodeID, t Target) error {
	s, err := g.node(src)
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	p, ok := s.targets[t]
	if !ok {
		return fmt.Errorf("disconnect %v -> %v: %w", s, t, ErrNotConnected)
	}
	for i := len(p.edges) - 1; i >= 0; i-- {
		g.disconnectEdge(s, p.edges[i])
	}
	recordRewire(0, len(p.edges))
	delete(s.targets, t)
	for i, x := range s.order {
		if x == t {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	g.onDisconnect(t, src)
	g.log.Debug("disconnected", "src", s.String(), "target", t.String(), "edges", len(p.edges))
	return nil
}

func (g *Graph) onDisconnect(t Target, src NodeID) {
	n, err := g.owner(t)
	if err != nil {
		return
	}
	g.sourcesOf(t).remove(src)
	switch n.mode.Kind {
	case KindAutoPoly:
		g.recompute(n, src)
	case KindMono, KindStaticPoly:
	}
}

// DisconnectAll disconnects src from every target.
func (g *Graph) DisconnectAll(src NodeID) error {
	s, err := g.node(src)
	if err != nil {
		return fmt.Errorf("disconnect all: %w", err)
	}
	var errs []error
	for _, t := range append([]Target(nil), s.order...) {
		errs = append(errs, g.Disconnect(src, t))
	}
	return errors.Join(errs...)
}

// Dispose tears down a node: its targets, its sources, then its voices.
func (g *Graph) Dispose(id NodeID) error {
	n, err := g.node(id)
	if err != nil {
		return fmt.Errorf("dispose: %w", err)
	}
	errs := []error{g.DisconnectAll(id)}

	// Sources disconnecting would shrink the node; hold that off.
	n.busy = true
	for _, s := range append([]NodeID(nil), n.sources.ids...) {
		errs = append(errs, g.Disconnect(s, id))
	}
	for _, pid := range n.params {
		for _, s := range append([]NodeID(nil), g.params[pid].sources.ids...) {
			errs = append(errs, g.Disconnect(s, pid))
		}
	}
	for i := len(n.voices) - 1; i >= 0; i-- {
		n.factory.Dispose(n.voices[i])
	}
	old := len(n.voices)
	n.voices = nil
	n.busy, n.pending = false, false
	n.disposed = true
	g.log.Debug("disposed", "node", n.String(), "voices", old)
	return errors.Join(errs...)
}

// SetVoiceCount sets the voice count of a StaticPoly node.
// A Mono node accepts only 1; an AutoPoly node rejects the call.
func (g *Graph) SetVoiceCount(id NodeID, count int) error {
	n, err := g.node(id)
	if err != nil {
		return fmt.Errorf("set voice count: %w", err)
	}
	switch n.mode.Kind {
	case KindMono:
		if count != 1 {
			return fmt.Errorf("%v mono voice count %d: %w", n, count, ErrInvalidVoiceCount)
		}
		return nil
	case KindStaticPoly:
		if count < 1 {
			return fmt.Errorf("%v voice count %d: %w", n, count, ErrInvalidVoiceCount)
		}
		n.mode.N = count
		g.resize(n, count, noTrigger)
		return nil
	case KindAutoPoly:
		return fmt.Errorf("%v: %w", n, ErrAutoPolyVoiceCount)
	}
	return fmt.Errorf("%v: %w", n, ErrInvalidMode)
}

// SetMode switches a node's mode live. Its sources re-pair against the new
// mode and its own targets re-pair against its new voice list.
func (g *Graph) SetMode(id NodeID, mode Mode) error {
	n, err := g.node(id)
	if err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	if err := mode.Validate(); err != nil {
		return fmt.Errorf("set mode %v: %w", n, err)
	}
	if mode.Kind == KindStaticPoly && g.hasSources(n) {
		return fmt.Errorf("set mode %v to %v: %w", n, mode, ErrStaticPolyTarget)
	}
	if mode == n.mode {
		return nil
	}
	old := n.mode
	n.mode = mode
	switch mode.Kind {
	case KindAutoPoly:
		g.recompute(n, noTrigger)
	case KindMono, KindStaticPoly:
		g.resize(n, g.required(n), noTrigger)
	}
	g.notifySources(n, noTrigger)
	for _, t := range append([]Target(nil), n.order...) {
		g.rewire(n, t)
	}
	g.log.Debug("mode changed", "node", n.String(), "from", old.String(), "to", mode.String())
	return nil
}

func (g *Graph) hasSources(n *node) bool {
	if len(n.sources.ids) > 0 {
		return true
	}
	for _, pid := range n.params {
		if len(g.params[pid].sources.ids) > 0 {
			return true
		}
	}
	return false
}

func (g *Graph) ActiveVoice(id NodeID) (VoiceIndex, error) {
	n, err := g.node(id)
	if err != nil {
		return AllVoices, err
	}
	return n.active, nil
}

// SetActiveVoice marks which voice matters for scheduling from time at on.
// An index past the last voice is clamped to it.
func (g *Graph) SetActiveVoice(id NodeID, v VoiceIndex, at float64) error {
	n, err := g.node(id)
	if err != nil {
		return fmt.Errorf("set active voice: %w", err)
	}
	v = g.clampVoice(n, v)
	n.active, n.activeAt = v, at
	act, ok := n.factory.(VoiceActivator)
	if !ok {
		return nil
	}
	if v == AllVoices {
		for _, voice := range n.voices {
			act.Activate(voice, at)
		}
		return nil
	}
	act.Activate(n.voices[v], at)
	return nil
}

func (g *Graph) clampVoice(n *node, v VoiceIndex) VoiceIndex {
	if v == AllVoices {
		return v
	}
	last := VoiceIndex(len(n.voices) - 1)
	switch {
	case v > last:
		g.log.Warn("clamping voice index", "node", n.String(), "index", int(v), "last", int(last), "error", ErrVoiceUnderflow)
		return last
	case v < 0:
		g.log.Warn("clamping voice index", "node", n.String(), "index", int(v), "error", ErrVoiceUnderflow)
		return 0
	}
	return v
}
