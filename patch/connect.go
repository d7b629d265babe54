package patch

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Connect connects an output port to an input port. A connection that would
// close a feedback loop is still returned, together with ErrFeedbackCycle,
// and stays held back until Recheck clears it.
func (p *Patch) Connect(src, dst *Port) (*Connection, error) {
	if err := p.checkPorts(src, dst); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	for _, c := range src.Conns {
		if c.Dst == dst {
			return nil, fmt.Errorf("connect %v -> %v: %w", src, dst, ErrDuplicateConnection)
		}
	}
	c := &Connection{ID: uuid.New(), Src: src, Dst: dst}
	err := p.activate(c)
	if err != nil && !errors.Is(err, ErrFeedbackCycle) {
		return nil, fmt.Errorf("connect %v: %w", c, err)
	}
	src.Conns = append(src.Conns, c)
	dst.Conns = append(dst.Conns, c)
	p.Conns = append(p.Conns, c)
	return c, err
}

// Disconnect removes a connection, and its lab edge once no other connection
// shares it.
func (p *Patch) Disconnect(c *Connection) error {
	if err := p.hasConn(c); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	p.deactivate(c)
	c.Src.Conns = removeConn(c.Src.Conns, c)
	c.Dst.Conns = removeConn(c.Dst.Conns, c)
	p.Conns = removeConn(p.Conns, c)
	c.Feedback = false
	return nil
}

// ChangeSource moves the source end of a connection and checks it again.
func (p *Patch) ChangeSource(c *Connection, src *Port) error {
	if err := p.hasConn(c); err != nil {
		return fmt.Errorf("change source: %w", err)
	}
	return p.move(c, src, c.Dst)
}

// ChangeTarget moves the target end of a connection and checks it again.
func (p *Patch) ChangeTarget(c *Connection, dst *Port) error {
	if err := p.hasConn(c); err != nil {
		return fmt.Errorf("change target: %w", err)
	}
	return p.move(c, c.Src, dst)
}

func (p *Patch) move(c *Connection, src, dst *Port) error {
	if err := p.checkPorts(src, dst); err != nil {
		return err
	}
	for _, x := range src.Conns {
		if x != c && x.Dst == dst {
			return fmt.Errorf("%v -> %v: %w", src, dst, ErrDuplicateConnection)
		}
	}
	p.deactivate(c)
	oldSrc, oldDst := c.Src, c.Dst
	c.Src.Conns = removeConn(c.Src.Conns, c)
	c.Dst.Conns = removeConn(c.Dst.Conns, c)
	c.Src, c.Dst = src, dst
	err := p.activate(c)
	if err != nil && !errors.Is(err, ErrFeedbackCycle) {
		c.Src, c.Dst = oldSrc, oldDst
		if rerr := p.activate(c); rerr != nil && !errors.Is(rerr, ErrFeedbackCycle) {
			p.log.Error("restoring connection failed", "conn", c.String(), "error", rerr)
		}
	}
	c.Src.Conns = append(c.Src.Conns, c)
	c.Dst.Conns = append(c.Dst.Conns, c)
	return err
}

// Recheck runs the feedback detector again on a held back connection and
// makes it live when the loop is gone.
func (p *Patch) Recheck(c *Connection) error {
	if err := p.hasConn(c); err != nil {
		return fmt.Errorf("recheck: %w", err)
	}
	if c.Live {
		return nil
	}
	return p.activate(c)
}

// RecheckAll rechecks every held back connection in connect order.
func (p *Patch) RecheckAll() error {
	var errs []error
	for _, c := range p.Conns {
		if !c.Live {
			errs = append(errs, p.Recheck(c))
		}
	}
	return errors.Join(errs...)
}

func (p *Patch) activate(c *Connection) error {
	if p.detector.WouldCreateCycle(c.Src.Node, c.Dst.Node) {
		c.Live, c.Feedback = false, true
		return fmt.Errorf("%v: %w", c, ErrFeedbackCycle)
	}
	e := labEdge{src: c.Src.Node.Lab, dst: c.Dst.target()}
	if p.edges[e] == 0 {
		if err := p.graph.Connect(e.src, e.dst); err != nil {
			c.Live = false
			return err
		}
	}
	p.edges[e]++
	c.Live, c.Feedback = true, false
	return nil
}

func (p *Patch) deactivate(c *Connection) {
	if !c.Live {
		return
	}
	c.Live = false
	e := labEdge{src: c.Src.Node.Lab, dst: c.Dst.target()}
	if p.edges[e]--; p.edges[e] > 0 {
		return
	}
	delete(p.edges, e)
	if err := p.graph.Disconnect(e.src, e.dst); err != nil {
		p.log.Warn("lab disconnect failed", "conn", c.String(), "error", err)
	}
}

func (p *Patch) checkPorts(src, dst *Port) error {
	if src == nil || dst == nil {
		return ErrPortNotFound
	}
	if src.Kind != PortOut || dst.Kind == PortOut {
		return fmt.Errorf("%v -> %v: %w", src, dst, ErrPortDirection)
	}
	if err := p.owns(src.Node); err != nil {
		return err
	}
	return p.owns(dst.Node)
}

func (p *Patch) hasConn(c *Connection) error {
	for _, x := range p.Conns {
		if x == c {
			return nil
		}
	}
	return ErrConnNotFound
}

func removeConn(cs []*Connection, c *Connection) []*Connection {
	for i, x := range cs {
		if x == c {
			return append(cs[:i], cs[i+1:]...)
		}
	}
	return cs
}
