package backend

import (
	"math"
	"sort"
)

type eventKind int

const (
	eventSet eventKind = iota
	eventLinear
	eventTarget
)

// A paramEvent takes effect at start. A linear ramp runs from start to end;
// a target curve approaches value with time constant tc until the next event.
type paramEvent struct {
	kind  eventKind
	start float64
	end   float64
	from  float64
	value float64
	tc    float64
}

// paramState is a param's automation timeline over a base value.
type paramState struct {
	base   float64
	events []paramEvent // by start
}

// insert keeps events ordered by start; among equal starts the newest wins.
func (p *paramState) insert(e paramEvent) {
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].start > e.start })
	p.events = append(p.events, paramEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
}

// cancel drops events at or after t. A ramp still running at t is dropped too.
func (p *paramState) cancel(t float64) {
	kept := p.events[:0]
	for _, e := range p.events {
		if e.start >= t || e.kind == eventLinear && e.end >= t {
			continue
		}
		kept = append(kept, e)
	}
	p.events = kept
}

func (p *paramState) at(t float64) float64 {
	return p.eval(len(p.events), t)
}

// eval gives the value at t using only the first n events.
func (p *paramState) eval(n int, t float64) float64 {
	for i := n - 1; i >= 0; i-- {
		e := p.events[i]
		if e.start > t {
			continue
		}
		switch e.kind {
		case eventSet:
			return e.value
		case eventLinear:
			if t >= e.end || e.end <= e.start {
				return e.value
			}
			return e.from + (e.value-e.from)*(t-e.start)/(e.end-e.start)
		case eventTarget:
			if e.tc <= 0 {
				return e.value
			}
			v0 := p.eval(i, e.start)
			return e.value + (v0-e.value)*math.Exp(-(t-e.start)/e.tc)
		}
	}
	return p.base
}
