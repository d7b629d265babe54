package backend

import (
	"fmt"

	"github.com/gordonklaus/lab"
	"github.com/gordonklaus/lab/unit"
)

// Factory makes the voices of one node.
// It implements lab.VoiceFactory, lab.ParamSetter and lab.VoiceActivator.
type Factory struct {
	e    *Engine
	node string
	unit string
}

var (
	_ lab.VoiceFactory   = (*Factory)(nil)
	_ lab.ParamSetter    = (*Factory)(nil)
	_ lab.ParamScheduler = (*Factory)(nil)
	_ lab.VoiceActivator = (*Factory)(nil)
)

func (f *Factory) MakeVoice(index int) lab.Voice {
	u, err := unit.New(f.unit)
	if err != nil {
		panic(err) // checked by Engine.Factory
	}
	cfg := unit.Config{Format: f.e.format, Rand: f.e.rand}
	u.Init(cfg)
	v := &Voice{
		Node:   f.node,
		Index:  index,
		unit:   u,
		params: map[string]*paramState{},
		mods:   map[string][]*Voice{},
	}
	f.e.voices[v] = true
	f.e.m.VoicesCreated.Inc()
	f.e.m.LiveVoices.Set(float64(len(f.e.voices)))
	return v
}

// Dispose retires a voice. Edges still touching it are dropped and logged.
func (f *Factory) Dispose(lv lab.Voice) {
	v, err := f.e.voice(lv)
	if err != nil {
		f.e.log.Warn("dispose", "node", f.node, "error", err)
		return
	}
	for ed := range f.e.live {
		if ed.src == v || ed.dst == v {
			f.e.log.Warn("disposing voice with live edge", "src", ed.src.String(), "dst", ed.dst.String(), "param", ed.param)
			f.e.unlink(ed)
		}
	}
	v.disposed = true
	delete(f.e.voices, v)
	f.e.m.VoicesDisposed.Inc()
	f.e.m.LiveVoices.Set(float64(len(f.e.voices)))
}

func (f *Factory) edge(lv lab.Voice, dst lab.Endpoint) (edge, error) {
	src, err := f.e.voice(lv)
	if err != nil {
		return edge{}, err
	}
	d, err := f.e.voice(dst.Voice)
	if err != nil {
		return edge{}, err
	}
	return edge{src: src, dst: d, param: dst.Param}, nil
}

func (f *Factory) Connect(lv lab.Voice, dst lab.Endpoint) error {
	ed, err := f.edge(lv, dst)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if f.e.live[ed] {
		return fmt.Errorf("connect %v -> %v: %w", ed.src, ed.dst, ErrEdgeExists)
	}
	f.e.live[ed] = true
	if ed.param == "" {
		ed.dst.inputs = append(ed.dst.inputs, ed.src)
	} else {
		ed.dst.mods[ed.param] = append(ed.dst.mods[ed.param], ed.src)
	}
	f.e.m.EdgesConnected.Inc()
	f.e.m.LiveEdges.Set(float64(len(f.e.live)))
	return nil
}

// Disconnect reports a pair that is not live as an error.
func (f *Factory) Disconnect(lv lab.Voice, dst lab.Endpoint) error {
	ed, err := f.edge(lv, dst)
	if err != nil {
		f.e.m.DisconnectFailures.WithLabelValues("disposed").Inc()
		return fmt.Errorf("disconnect: %w", err)
	}
	if !f.e.live[ed] {
		f.e.m.DisconnectFailures.WithLabelValues("not_live").Inc()
		return fmt.Errorf("disconnect %v -> %v: %w", ed.src, ed.dst, ErrEdgeNotLive)
	}
	f.e.unlink(ed)
	return nil
}

func (f *Factory) SetParam(lv lab.Voice, name string, value float64) {
	v, err := f.e.voice(lv)
	if err != nil {
		f.e.log.Warn("set param", "node", f.node, "param", name, "error", err)
		return
	}
	v.params[name] = &paramState{base: value}
}

// RampParam ramps linearly from the value at the engine's current time.
func (f *Factory) RampParam(lv lab.Voice, name string, value, at float64) {
	v, err := f.e.voice(lv)
	if err != nil {
		f.e.log.Warn("ramp param", "node", f.node, "param", name, "error", err)
		return
	}
	now := f.e.now
	v.param(name).insert(paramEvent{kind: eventLinear, start: now, end: at, from: v.Param(name, now), value: value})
}

// SetParamAt steps the param to value at time at.
func (f *Factory) SetParamAt(lv lab.Voice, name string, value, at float64) {
	v, err := f.e.voice(lv)
	if err != nil {
		f.e.log.Warn("set param at", "node", f.node, "param", name, "error", err)
		return
	}
	v.param(name).insert(paramEvent{kind: eventSet, start: at, value: value})
}

// SetTargetAt starts an exponential approach to target at time at.
func (f *Factory) SetTargetAt(lv lab.Voice, name string, target, at, timeConstant float64) {
	v, err := f.e.voice(lv)
	if err != nil {
		f.e.log.Warn("set param target", "node", f.node, "param", name, "error", err)
		return
	}
	v.param(name).insert(paramEvent{kind: eventTarget, start: at, value: target, tc: timeConstant})
}

// CancelScheduled drops the param's events at or after from.
func (f *Factory) CancelScheduled(lv lab.Voice, name string, from float64) {
	v, err := f.e.voice(lv)
	if err != nil {
		f.e.log.Warn("cancel param", "node", f.node, "param", name, "error", err)
		return
	}
	if p, ok := v.params[name]; ok {
		p.cancel(from)
	}
}

func (f *Factory) Activate(lv lab.Voice, at float64) {
	if v, err := f.e.voice(lv); err == nil {
		v.ActiveAt = at
	}
}
