// Package lab routes polyphonic signals between logical nodes.
//
// A node owns 1..N voices, one concrete processing unit per voice, created by
// the node's VoiceFactory. Connecting a node to another node (or to one of its
// params) pairs voices one to one, or many to one when either side is mono.
// An AutoPoly node takes its voice count from the largest voice count feeding
// it, and every change is pushed to its immediate neighbours, which re-pair
// their edges without a global pass.
//
// Nodes and params live in a Graph and are addressed by integer handles. A
// Graph is not safe for concurrent use; all mutations run on one goroutine.
package lab

import (
	"fmt"
	"log/slog"
)

// Voice is one concrete processing unit owned by a VoiceFactory.
// Voices are opaque to the graph but must be comparable.
type Voice any

// Endpoint is the landing side of an edge: a voice's signal input, or the
// named param of that voice when Param is set.
type Endpoint struct {
	Voice Voice
	Param string
}

// Edge is one voice-level connection.
type Edge struct {
	Src Voice
	Dst Endpoint
}

// A VoiceFactory makes and wires the voices of one node.
// Disconnect should report an already severed pair as an error, not panic;
// the graph logs it and carries on either way.
type VoiceFactory interface {
	MakeVoice(index int) Voice
	Dispose(v Voice)
	Connect(v Voice, dst Endpoint) error
	Disconnect(v Voice, dst Endpoint) error
}

// ParamSetter is implemented by factories whose voices have automatable params.
type ParamSetter interface {
	SetParam(v Voice, param string, value float64)
	RampParam(v Voice, param string, value, at float64)
}

// ParamScheduler is implemented by factories that keep a timeline of param
// events per voice.
type ParamScheduler interface {
	SetParamAt(v Voice, param string, value, at float64)
	SetTargetAt(v Voice, param string, target, at, timeConstant float64)
	CancelScheduled(v Voice, param string, from float64)
}

// VoiceActivator is implemented by factories that schedule per-voice work.
type VoiceActivator interface {
	Activate(v Voice, at float64)
}

type NodeID int

type ParamID int

// A Target is what a node connects to: a NodeID or a ParamID.
type Target interface {
	fmt.Stringer
	target()
}

func (NodeID) target()  {}
func (ParamID) target() {}

func (id NodeID) String() string  { return fmt.Sprintf("node#%d", int(id)) }
func (id ParamID) String() string { return fmt.Sprintf("param#%d", int(id)) }

// VoiceIndex selects one voice, or all of them.
type VoiceIndex int

const AllVoices VoiceIndex = -1

const noTrigger NodeID = -1

type Graph struct {
	nodes  []*node
	params []*param

	log  *slog.Logger
	hook func(id NodeID, old, new int)
}

type Option func(*Graph)

// WithLogger sets the graph's logger. nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.log = l
		}
	}
}

// WithVoiceCountHook registers f to run after every voice count change.
func WithVoiceCountHook(f func(id NodeID, old, new int)) Option {
	return func(g *Graph) { g.hook = f }
}

func New(opts ...Option) *Graph {
	g := &Graph{log: slog.Default()}
	for _, o := range opts {
		o(g)
	}
	return g
}

type NodeOption func(*node)

// AutoMono makes an AutoPoly node pair like a Mono node while it has a single
// voice, fanning that voice out to every voice of its targets.
func AutoMono() NodeOption {
	return func(n *node) { n.autoMono = true }
}

// AddNode creates a node and its initial voices.
func (g *Graph) AddNode(name string, mode Mode, f VoiceFactory, opts ...NodeOption) (NodeID, error) {
	if err := mode.Validate(); err != nil {
		return 0, fmt.Errorf("add node %q: %w", name, err)
	}
	if f == nil {
		return 0, fmt.Errorf("add node %q: %w", name, ErrNilFactory)
	}
	n := &node{
		id:      NodeID(len(g.nodes)),
		name:    name,
		mode:    mode,
		factory: f,
		targets: map[Target]*pairing{},
		active:  AllVoices,
	}
	for _, o := range opts {
		o(n)
	}
	g.nodes = append(g.nodes, n)
	g.init(n)
	return n.id, nil
}

func (g *Graph) init(n *node) {
	g.resize(n, g.required(n), noTrigger)
}

// AddParam adds a named param to a node. The param mirrors the node's voices.
func (g *Graph) AddParam(owner NodeID, name string) (ParamID, error) {
	n, err := g.node(owner)
	if err != nil {
		return 0, err
	}
	for _, id := range n.params {
		if g.params[id].name == name {
			return 0, fmt.Errorf("%s param %q: %w", n, name, ErrDuplicateParam)
		}
	}
	p := &param{id: ParamID(len(g.params)), owner: owner, name: name}
	g.params = append(g.params, p)
	n.params = append(n.params, p.id)
	return p.id, nil
}

// Param looks up a node's param by name.
func (g *Graph) Param(owner NodeID, name string) (ParamID, error) {
	n, err := g.node(owner)
	if err != nil {
		return 0, err
	}
	for _, id := range n.params {
		if g.params[id].name == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%s param %q: %w", n, name, ErrParamNotFound)
}

func (g *Graph) node(id NodeID) (*node, error) {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil, fmt.Errorf("%v: %w", id, ErrNodeNotFound)
	}
	n := g.nodes[id]
	if n.disposed {
		return nil, fmt.Errorf("%v: %w", n, ErrDisposed)
	}
	return n, nil
}

func (g *Graph) param(id ParamID) (*param, *node, error) {
	if id < 0 || int(id) >= len(g.params) {
		return nil, nil, fmt.Errorf("%v: %w", id, ErrParamNotFound)
	}
	p := g.params[id]
	n, err := g.node(p.owner)
	if err != nil {
		return nil, nil, fmt.Errorf("%v: %w", id, err)
	}
	return p, n, nil
}

// owner resolves the node that owns the voices behind t.
func (g *Graph) owner(t Target) (*node, error) {
	switch t := t.(type) {
	case NodeID:
		return g.node(t)
	case ParamID:
		_, n, err := g.param(t)
		return n, err
	}
	return nil, fmt.Errorf("target %v: %w", t, ErrNodeNotFound)
}

// sourcesOf returns the source set registered for t.
func (g *Graph) sourcesOf(t Target) *sourceSet {
	switch t := t.(type) {
	case NodeID:
		return &g.nodes[t].sources
	case ParamID:
		return &g.params[t].sources
	}
	return nil
}

// view is what a target offers a source to pair against.
func (g *Graph) view(t Target) (Mode, []Endpoint) {
	var (
		n    *node
		name string
	)
	switch t := t.(type) {
	case NodeID:
		n = g.nodes[t]
	case ParamID:
		p := g.params[t]
		n, name = g.nodes[p.owner], p.name
	}
	eps := make([]Endpoint, len(n.voices))
	for i, v := range n.voices {
		eps[i] = Endpoint{Voice: v, Param: name}
	}
	return n.mode, eps
}
