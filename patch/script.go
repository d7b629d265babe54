package patch

import (
	"fmt"

	"github.com/gordonklaus/lab"
)

// A Step is one scripted operation on a patch.
//
// Connections are named by Src, Dst and Port. To is the new node for
// change-source and change-target, ToPort the new input for change-target.
type Step struct {
	Op     string  `yaml:"op"`
	Node   string  `yaml:"node,omitempty"`
	Kind   string  `yaml:"kind,omitempty"`
	Src    string  `yaml:"src,omitempty"`
	Dst    string  `yaml:"dst,omitempty"`
	Port   string  `yaml:"port,omitempty"`
	To     string  `yaml:"to,omitempty"`
	ToPort string  `yaml:"toPort,omitempty"`
	Count  int     `yaml:"count,omitempty"`
	Mode   string  `yaml:"mode,omitempty"`
	Value  float64 `yaml:"value,omitempty"`
	At     float64 `yaml:"at,omitempty"`
	Voice  *int    `yaml:"voice,omitempty"`

	// TimeConstant is the approach time of a target step, in seconds.
	TimeConstant float64 `yaml:"timeConstant,omitempty"`
}

func (s Step) String() string {
	switch s.Op {
	case "connect", "disconnect", "change-source", "change-target":
		return fmt.Sprintf("%s %s -> %s.%s", s.Op, s.Src, s.Dst, portName(s.Port))
	}
	return fmt.Sprintf("%s %s", s.Op, s.Node)
}

func portName(p string) string {
	if p == "" {
		return "in"
	}
	return p
}

// Apply runs one step. A connection held back as feedback reports
// ErrFeedbackCycle.
func (p *Patch) Apply(s Step) error {
	switch s.Op {
	case "add":
		_, err := p.AddNode(s.Kind, s.Node)
		return err
	case "remove":
		n, err := p.Node(s.Node)
		if err != nil {
			return err
		}
		return p.RemoveNode(n)
	case "connect":
		src, dst, err := p.ports(s.Src, s.Dst, s.Port)
		if err != nil {
			return err
		}
		_, err = p.Connect(src, dst)
		return err
	case "disconnect":
		c, err := p.Conn(s.Src, s.Dst, s.Port)
		if err != nil {
			return err
		}
		return p.Disconnect(c)
	case "change-source":
		c, err := p.Conn(s.Src, s.Dst, s.Port)
		if err != nil {
			return err
		}
		n, err := p.Node(s.To)
		if err != nil {
			return err
		}
		return p.ChangeSource(c, n.Out())
	case "change-target":
		c, err := p.Conn(s.Src, s.Dst, s.Port)
		if err != nil {
			return err
		}
		n, err := p.Node(s.To)
		if err != nil {
			return err
		}
		dst, err := n.InPort(s.ToPort)
		if err != nil {
			return err
		}
		return p.ChangeTarget(c, dst)
	case "recheck":
		return p.RecheckAll()
	case "voices":
		n, err := p.Node(s.Node)
		if err != nil {
			return err
		}
		return p.graph.SetVoiceCount(n.Lab, s.Count)
	case "mode":
		n, err := p.Node(s.Node)
		if err != nil {
			return err
		}
		m, err := lab.ParseMode(s.Mode)
		if err != nil {
			return err
		}
		return p.graph.SetMode(n.Lab, m)
	case "set", "ramp":
		param, err := p.param(s.Node, s.Port)
		if err != nil {
			return err
		}
		if s.Op == "set" {
			return p.graph.SetParamValue(param, s.Value)
		}
		return p.graph.RampParam(param, s.Value, s.At, voiceIndex(s.Voice))
	case "set-at", "target", "cancel":
		param, err := p.param(s.Node, s.Port)
		if err != nil {
			return err
		}
		switch s.Op {
		case "set-at":
			return p.graph.SetParamAt(param, s.Value, s.At, voiceIndex(s.Voice))
		case "target":
			return p.graph.SetParamTarget(param, s.Value, s.At, s.TimeConstant, voiceIndex(s.Voice))
		}
		return p.graph.CancelParam(param, s.At, voiceIndex(s.Voice))
	case "activate":
		n, err := p.Node(s.Node)
		if err != nil {
			return err
		}
		return p.graph.SetActiveVoice(n.Lab, voiceIndex(s.Voice), s.At)
	}
	return fmt.Errorf("%q: %w", s.Op, ErrUnknownOp)
}

func voiceIndex(v *int) lab.VoiceIndex {
	if v == nil {
		return lab.AllVoices
	}
	return lab.VoiceIndex(*v)
}

func (p *Patch) ports(src, dst, port string) (*Port, *Port, error) {
	s, err := p.Node(src)
	if err != nil {
		return nil, nil, err
	}
	d, err := p.Node(dst)
	if err != nil {
		return nil, nil, err
	}
	in, err := d.InPort(port)
	if err != nil {
		return nil, nil, err
	}
	return s.Out(), in, nil
}

// Conn finds the connection from src's output to dst's named input.
func (p *Patch) Conn(src, dst, port string) (*Connection, error) {
	s, in, err := p.ports(src, dst, port)
	if err != nil {
		return nil, err
	}
	for _, c := range s.Conns {
		if c.Dst == in {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%s -> %s.%s: %w", src, dst, portName(port), ErrConnNotFound)
}

func (p *Patch) param(node, name string) (lab.ParamID, error) {
	n, err := p.Node(node)
	if err != nil {
		return 0, err
	}
	port, err := n.InPort(name)
	if err != nil {
		return 0, err
	}
	if port.Kind != PortParam {
		return 0, fmt.Errorf("%v is not a param: %w", port, ErrPortNotFound)
	}
	return port.param, nil
}
