package patch

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/gordonklaus/lab"
)

// File is the YAML form of a patch. Connections name nodes by index.
type File struct {
	Name   string     `yaml:"name"`
	Nodes  []NodeSpec `yaml:"nodes"`
	Conns  []ConnSpec `yaml:"connections,omitempty"`
	Script []Step     `yaml:"script,omitempty"`
}

type NodeSpec struct {
	Name   string             `yaml:"name"`
	Kind   string             `yaml:"kind"`
	Mode   *lab.Mode          `yaml:"mode,omitempty"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

// ConnSpec connects output SrcPort of node Src to input Port of node Dst.
// An empty SrcPort is the first output and an empty Port the audio input.
type ConnSpec struct {
	Src     int    `yaml:"src"`
	SrcPort string `yaml:"srcPort,omitempty"`
	Dst     int    `yaml:"dst"`
	Port    string `yaml:"port,omitempty"`
}

func WritePatch(w io.Writer, p *Patch) error {
	f := File{Name: p.Name}
	nodeIndex := map[*Node]int{}
	for i, n := range p.Nodes {
		nodeIndex[n] = i
	}
	for i, n := range p.Nodes {
		mode := p.graph.Mode(n.Lab)
		ns := NodeSpec{Name: n.Name, Kind: n.Kind}
		if k, ok := p.kinds[n.Kind]; !ok || k.Mode != mode {
			ns.Mode = &mode
		}
		for _, port := range n.InPorts {
			if port.Kind == PortParam {
				if v, ok := p.graph.ParamValue(port.param); ok {
					if ns.Params == nil {
						ns.Params = map[string]float64{}
					}
					ns.Params[port.Name] = v
				}
			}
			for _, c := range port.Conns {
				cs := ConnSpec{Src: nodeIndex[c.Src.Node], Dst: i}
				if port.Kind == PortParam {
					cs.Port = port.Name
				}
				if c.Src != c.Src.Node.Out() {
					cs.SrcPort = c.Src.Name
				}
				f.Conns = append(f.Conns, cs)
			}
		}
		f.Nodes = append(f.Nodes, ns)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return err
	}
	return enc.Close()
}

// DecodeFile parses a patch file. Unknown fields are rejected.
func DecodeFile(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	return &f, nil
}

// ReadPatch decodes a patch file and builds it. The file is returned so its
// script can be run.
func ReadPatch(r io.Reader, factory FactoryFunc, opts ...Option) (*Patch, *File, error) {
	f, err := DecodeFile(r)
	if err != nil {
		return nil, nil, err
	}
	p := New(f.Name, factory, opts...)
	if err := p.Load(f); err != nil {
		return nil, nil, err
	}
	return p, f, nil
}

// Load adds f's nodes and connections to p. Connections held back as
// feedback are kept and logged; any other failure stops the load.
func (p *Patch) Load(f *File) error {
	nodes := make([]*Node, len(f.Nodes))
	for i, ns := range f.Nodes {
		n, err := p.AddNode(ns.Kind, ns.Name)
		if err != nil {
			return err
		}
		nodes[i] = n
		if ns.Mode != nil {
			if err := p.graph.SetMode(n.Lab, *ns.Mode); err != nil {
				return fmt.Errorf("node %q: %w", ns.Name, err)
			}
		}
		for name, v := range ns.Params {
			port, err := n.InPort(name)
			if err != nil || port.Kind != PortParam {
				return fmt.Errorf("node %q param %q: %w", ns.Name, name, ErrPortNotFound)
			}
			if err := p.graph.SetParamValue(port.param, v); err != nil {
				return err
			}
		}
	}
	for _, c := range f.Conns {
		if c.Src < 0 || c.Dst < 0 || c.Src >= len(nodes) || c.Dst >= len(nodes) {
			return fmt.Errorf("src (%d) or dst (%d) out of range (%d)", c.Src, c.Dst, len(nodes))
		}
		src := nodes[c.Src].Out()
		if c.SrcPort != "" {
			var err error
			if src, err = nodes[c.Src].OutPort(c.SrcPort); err != nil {
				return err
			}
		}
		dst, err := nodes[c.Dst].InPort(c.Port)
		if err != nil {
			return err
		}
		conn, err := p.Connect(src, dst)
		if errors.Is(err, ErrFeedbackCycle) {
			p.log.Warn("connection held back", "conn", conn.String())
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
