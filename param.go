package lab

import "fmt"

// SetParamValue sets a param on every voice of its node. The value is kept
// and applied to voices created later.
func (g *Graph) SetParamValue(id ParamID, value float64) error {
	p, n, err := g.param(id)
	if err != nil {
		return fmt.Errorf("set param: %w", err)
	}
	p.value, p.hasValue = value, true
	ps, ok := n.factory.(ParamSetter)
	if !ok {
		return nil
	}
	for _, v := range n.voices {
		ps.SetParam(v, p.name, value)
	}
	return nil
}

// RampParam ramps a param linearly to value, reaching it at time at, on one
// voice or on all of them. A ramp on all voices also becomes the value new
// voices start from.
func (g *Graph) RampParam(id ParamID, value, at float64, voice VoiceIndex) error {
	p, n, err := g.param(id)
	if err != nil {
		return fmt.Errorf("ramp param: %w", err)
	}
	voice = g.clampVoice(n, voice)
	if voice == AllVoices {
		p.value, p.hasValue = value, true
	}
	ps, ok := n.factory.(ParamSetter)
	if !ok {
		return nil
	}
	if voice != AllVoices {
		ps.RampParam(n.voices[voice], p.name, value, at)
		return nil
	}
	for _, v := range n.voices {
		ps.RampParam(v, p.name, value, at)
	}
	return nil
}

func (g *Graph) applyParams(n *node, v Voice) {
	ps, ok := n.factory.(ParamSetter)
	if !ok {
		return
	}
	for _, pid := range n.params {
		if p := g.params[pid]; p.hasValue {
			ps.SetParam(v, p.name, p.value)
		}
	}
}

// scheduled returns the voices a timed param event applies to, with voice
// clamped. There are none when the factory keeps no timeline.
func (g *Graph) scheduled(id ParamID, voice VoiceIndex) (*param, ParamScheduler, []Voice, error) {
	p, n, err := g.param(id)
	if err != nil {
		return nil, nil, nil, err
	}
	ps, ok := n.factory.(ParamScheduler)
	if !ok {
		return p, nil, nil, nil
	}
	if voice = g.clampVoice(n, voice); voice != AllVoices {
		return p, ps, n.voices[voice : voice+1], nil
	}
	return p, ps, n.voices, nil
}

// SetParamAt schedules a step to value at time at.
func (g *Graph) SetParamAt(id ParamID, value, at float64, voice VoiceIndex) error {
	p, ps, voices, err := g.scheduled(id, voice)
	if err != nil {
		return fmt.Errorf("set param at: %w", err)
	}
	for _, v := range voices {
		ps.SetParamAt(v, p.name, value, at)
	}
	return nil
}

// SetParamTarget schedules an exponential approach to target starting at
// time at, with the given time constant in seconds.
func (g *Graph) SetParamTarget(id ParamID, target, at, timeConstant float64, voice VoiceIndex) error {
	if timeConstant < 0 {
		return fmt.Errorf("set param target: time constant %v: %w", timeConstant, ErrInvalidTimeConstant)
	}
	p, ps, voices, err := g.scheduled(id, voice)
	if err != nil {
		return fmt.Errorf("set param target: %w", err)
	}
	for _, v := range voices {
		ps.SetTargetAt(v, p.name, target, at, timeConstant)
	}
	return nil
}

// CancelParam drops events scheduled at or after from.
func (g *Graph) CancelParam(id ParamID, from float64, voice VoiceIndex) error {
	p, ps, voices, err := g.scheduled(id, voice)
	if err != nil {
		return fmt.Errorf("cancel param: %w", err)
	}
	for _, v := range voices {
		ps.CancelScheduled(v, p.name, from)
	}
	return nil
}
