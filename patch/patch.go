// Package patch is the port-level view of a lab graph. Nodes expose an audio
// input, one input per param and an output; connections between ports become
// lab connections once the feedback detector clears them.
package patch

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gordonklaus/lab"
)

type Patch struct {
	Name  string
	Nodes []*Node
	Conns []*Connection

	graph    *lab.Graph
	kinds    Kinds
	factory  FactoryFunc
	detector *Detector
	log      *slog.Logger

	edges map[labEdge]int
}

// FactoryFunc returns the voice factory for a new node.
type FactoryFunc func(kind Kind, name string) (lab.VoiceFactory, error)

type Node struct {
	ID       uuid.UUID
	Name     string
	Kind     string
	Lab      lab.NodeID
	InPorts  []*Port
	OutPorts []*Port

	removed bool
}

type PortKind uint8

const (
	PortAudio PortKind = iota
	PortParam
	PortOut
)

type Port struct {
	Kind  PortKind
	Name  string
	Node  *Node
	Conns []*Connection

	param lab.ParamID
}

func (p *Port) String() string { return p.Node.Name + "." + p.Name }

// target is what the port stands for in the lab graph.
func (p *Port) target() lab.Target {
	if p.Kind == PortParam {
		return p.param
	}
	return p.Node.Lab
}

type Connection struct {
	ID       uuid.UUID
	Src, Dst *Port

	// Live is set once the connection is made in the lab graph.
	// Feedback is set while the detector holds it back.
	Live     bool
	Feedback bool
}

func (c *Connection) String() string { return fmt.Sprintf("%v -> %v", c.Src, c.Dst) }

type labEdge struct {
	src lab.NodeID
	dst lab.Target
}

type config struct {
	log       *slog.Logger
	kinds     Kinds
	maxDepth  int
	graphOpts []lab.Option
}

type Option func(*config)

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

func WithKinds(k Kinds) Option { return func(c *config) { c.kinds = k } }

// WithMaxDepth sets the depth at which the feedback detector gives up and
// reports a cycle.
func WithMaxDepth(n int) Option { return func(c *config) { c.maxDepth = n } }

func WithGraphOptions(opts ...lab.Option) Option {
	return func(c *config) { c.graphOpts = append(c.graphOpts, opts...) }
}

func New(name string, factory FactoryFunc, opts ...Option) *Patch {
	c := config{log: slog.Default(), maxDepth: DefaultMaxDepth}
	for _, o := range opts {
		o(&c)
	}
	if c.kinds == nil {
		c.kinds = DefaultKinds()
	}
	return &Patch{
		Name:     name,
		graph:    lab.New(append([]lab.Option{lab.WithLogger(c.log)}, c.graphOpts...)...),
		kinds:    c.kinds,
		factory:  factory,
		detector: NewDetector(c.log, c.maxDepth),
		log:      c.log,
		edges:    map[labEdge]int{},
	}
}

func (p *Patch) Graph() *lab.Graph { return p.graph }

func (p *Patch) Detector() *Detector { return p.detector }

// AddNode adds a node of the given kind in the kind's default mode.
func (p *Patch) AddNode(kind, name string) (*Node, error) {
	k, ok := p.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("add node %q: %w: %q", name, ErrUnknownKind, kind)
	}
	if _, err := p.Node(name); err == nil {
		return nil, fmt.Errorf("add node %q: %w", name, ErrDuplicateNode)
	}
	f, err := p.factory(k, name)
	if err != nil {
		return nil, fmt.Errorf("add node %q: %w", name, err)
	}
	var opts []lab.NodeOption
	if k.AutoMono {
		opts = append(opts, lab.AutoMono())
	}
	id, err := p.graph.AddNode(name, k.Mode, f, opts...)
	if err != nil {
		return nil, err
	}
	n := &Node{ID: uuid.New(), Name: name, Kind: kind, Lab: id}
	if k.Audio {
		n.InPorts = append(n.InPorts, &Port{Kind: PortAudio, Name: "in", Node: n})
	}
	for _, pn := range k.Params {
		pid, err := p.graph.AddParam(id, pn)
		if err != nil {
			return nil, err
		}
		n.InPorts = append(n.InPorts, &Port{Kind: PortParam, Name: pn, Node: n, param: pid})
	}
	outs := k.Outputs
	if len(outs) == 0 {
		outs = []string{"out"}
	}
	for _, on := range outs {
		n.OutPorts = append(n.OutPorts, &Port{Kind: PortOut, Name: on, Node: n})
	}
	p.Nodes = append(p.Nodes, n)
	p.log.Debug("node added", "node", name, "kind", kind, "id", n.ID.String())
	return n, nil
}

// RemoveNode disconnects every connection touching n and disposes its voices.
func (p *Patch) RemoveNode(n *Node) error {
	if err := p.owns(n); err != nil {
		return err
	}
	for _, ports := range [][]*Port{n.InPorts, n.OutPorts} {
		for _, port := range ports {
			for _, c := range append([]*Connection(nil), port.Conns...) {
				if err := p.Disconnect(c); err != nil {
					return err
				}
			}
		}
	}
	if err := p.graph.Dispose(n.Lab); err != nil {
		return fmt.Errorf("remove node %q: %w", n.Name, err)
	}
	for i, x := range p.Nodes {
		if x == n {
			p.Nodes = append(p.Nodes[:i], p.Nodes[i+1:]...)
			break
		}
	}
	n.removed = true
	return nil
}

func (p *Patch) Node(name string) (*Node, error) {
	for _, n := range p.Nodes {
		if n.Name == name {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ErrNodeNotFound)
}

// InPort returns the audio input when name is empty or "in", else the param
// input of that name.
func (n *Node) InPort(name string) (*Port, error) {
	if name == "" {
		name = "in"
	}
	for _, p := range n.InPorts {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%s.%s: %w", n.Name, name, ErrPortNotFound)
}

// Out returns the first output port.
func (n *Node) Out() *Port { return n.OutPorts[0] }

func (n *Node) OutPort(name string) (*Port, error) {
	for _, p := range n.OutPorts {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%s.%s: %w", n.Name, name, ErrPortNotFound)
}

func (p *Patch) owns(n *Node) error {
	if n == nil || n.removed {
		return ErrForeignPort
	}
	for _, x := range p.Nodes {
		if x == n {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", n.Name, ErrForeignPort)
}
