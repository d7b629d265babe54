// Package backend is an in-memory audio backend for lab graphs. Each node gets
// a Factory whose voices run a unit, and the Engine tracks which voice-level
// edges are live so a misbehaving graph shows up as refused calls.
package backend

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/go-audio/audio"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gordonklaus/lab"
	"github.com/gordonklaus/lab/unit"
)

var (
	ErrEdgeExists     = errors.New("edge already live")
	ErrEdgeNotLive    = errors.New("edge not live")
	ErrVoiceDisposed  = errors.New("voice disposed")
	ErrForeignVoice   = errors.New("voice does not belong to this engine")
	ErrNegativeFrames = errors.New("negative frame count")
)

// A Voice is one running unit.
type Voice struct {
	Node     string
	Index    int
	ActiveAt float64

	unit     unit.Unit
	params   map[string]*paramState
	inputs   []*Voice
	mods     map[string][]*Voice
	disposed bool
}

func (v *Voice) String() string { return fmt.Sprintf("%s[%d]", v.Node, v.Index) }

// Param returns the value the param has at time t.
func (v *Voice) Param(name string, t float64) float64 {
	if p, ok := v.params[name]; ok {
		return p.at(t)
	}
	return 0
}

func (v *Voice) param(name string) *paramState {
	p, ok := v.params[name]
	if !ok {
		p = &paramState{}
		v.params[name] = p
	}
	return p
}

type edge struct {
	src   *Voice
	dst   *Voice
	param string
}

type Engine struct {
	format *audio.Format
	rand   *rand.Rand
	log    *slog.Logger
	m      *metrics

	live   map[edge]bool
	voices map[*Voice]bool
	now    float64
}

type Option func(*Engine)

func WithFormat(f *audio.Format) Option { return func(e *Engine) { e.format = f } }

func WithRegistry(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.m = newMetrics(reg) }
}

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rand = rand.New(rand.NewSource(seed)) }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		format: &audio.Format{NumChannels: 1, SampleRate: 44100},
		log:    slog.Default(),
		live:   map[edge]bool{},
		voices: map[*Voice]bool{},
	}
	for _, o := range opts {
		o(e)
	}
	if e.m == nil {
		e.m = newMetrics(prometheus.NewRegistry())
	}
	return e
}

func (e *Engine) Format() *audio.Format { return e.format }

// Now is the engine clock in seconds, advanced by Render.
func (e *Engine) Now() float64 { return e.now }

func (e *Engine) LiveEdges() int { return len(e.live) }

func (e *Engine) LiveVoices() int { return len(e.voices) }

// Factory returns a VoiceFactory for one node whose voices run the named unit.
func (e *Engine) Factory(node, unitName string) (*Factory, error) {
	if _, err := unit.New(unitName); err != nil {
		return nil, fmt.Errorf("node %q: %w", node, err)
	}
	return &Factory{e: e, node: node, unit: unitName}, nil
}

func (e *Engine) voice(v lab.Voice) (*Voice, error) {
	vv, ok := v.(*Voice)
	if !ok || vv == nil {
		return nil, fmt.Errorf("%v: %w", v, ErrForeignVoice)
	}
	if vv.disposed {
		return nil, fmt.Errorf("%v: %w", vv, ErrVoiceDisposed)
	}
	return vv, nil
}

func (e *Engine) unlink(ed edge) {
	delete(e.live, ed)
	if ed.param == "" {
		ed.dst.inputs = remove(ed.dst.inputs, ed.src)
	} else {
		ed.dst.mods[ed.param] = remove(ed.dst.mods[ed.param], ed.src)
	}
	e.m.EdgesDisconnected.Inc()
	e.m.LiveEdges.Set(float64(len(e.live)))
}

func remove(vs []*Voice, v *Voice) []*Voice {
	for i, x := range vs {
		if x == v {
			return append(vs[:i], vs[i+1:]...)
		}
	}
	return vs
}

// Render runs v and everything feeding it for frames samples and advances
// the clock. Feedback within the live edges reads the previous sample.
func (e *Engine) Render(v lab.Voice, frames int) (*audio.FloatBuffer, error) {
	if frames < 0 {
		return nil, fmt.Errorf("render %d frames: %w", frames, ErrNegativeFrames)
	}
	out, err := e.voice(v)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	buf := &audio.FloatBuffer{
		Format: e.format,
		Data:   make([]float64, frames*e.format.NumChannels),
	}
	dt := 1 / float64(e.format.SampleRate)
	last := map[*Voice]float64{}
	for i := 0; i < frames; i++ {
		r := renderer{t: e.now, done: map[*Voice]float64{}, busy: map[*Voice]bool{}, last: last}
		x := r.sample(out)
		for c := 0; c < e.format.NumChannels; c++ {
			buf.Data[i*e.format.NumChannels+c] = x
		}
		last = r.done
		e.now += dt
	}
	return buf, nil
}

type renderer struct {
	t    float64
	done map[*Voice]float64
	busy map[*Voice]bool
	last map[*Voice]float64
}

func (r *renderer) sample(v *Voice) float64 {
	if x, ok := r.done[v]; ok {
		return x
	}
	if r.busy[v] {
		return r.last[v]
	}
	r.busy[v] = true
	var in float64
	for _, s := range v.inputs {
		in += r.sample(s)
	}
	p := unit.Params{}
	for name, ps := range v.params {
		p[name] = ps.at(r.t)
	}
	for name, srcs := range v.mods {
		for _, s := range srcs {
			p[name] += r.sample(s)
		}
	}
	x := v.unit.Process(in, p)
	r.done[v] = x
	delete(r.busy, v)
	return x
}
