package lab_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gordonklaus/lab"
)

type fakeVoice struct {
	node   string
	index  int
	params map[string]float64
	ramps  map[string]float64
	events []string
	active float64
}

func (v *fakeVoice) String() string { return fmt.Sprintf("%s[%d]", v.node, v.index) }

// fakeBackend records the live voice-level edges across every factory built
// from it, and refuses to disconnect an edge that is not live.
type fakeBackend struct {
	live     map[lab.Edge]bool
	made     int
	disposed int

	connectErr        error
	disconnectErrors  int
	panicOnDisconnect bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{live: map[lab.Edge]bool{}}
}

func (b *fakeBackend) factory(name string) *fakeFactory {
	return &fakeFactory{b: b, name: name}
}

// edgesInto counts live edges landing on any voice of the named node.
func (b *fakeBackend) edgesInto(node, param string) int {
	c := 0
	for e := range b.live {
		if v := e.Dst.Voice.(*fakeVoice); v.node == node && e.Dst.Param == param {
			c++
		}
	}
	return c
}

type fakeFactory struct {
	b    *fakeBackend
	name string
}

func (f *fakeFactory) MakeVoice(i int) lab.Voice {
	f.b.made++
	return &fakeVoice{node: f.name, index: i, params: map[string]float64{}, ramps: map[string]float64{}}
}

func (f *fakeFactory) Dispose(lab.Voice) { f.b.disposed++ }

func (f *fakeFactory) Connect(v lab.Voice, dst lab.Endpoint) error {
	if f.b.connectErr != nil {
		return f.b.connectErr
	}
	f.b.live[lab.Edge{Src: v, Dst: dst}] = true
	return nil
}

func (f *fakeFactory) Disconnect(v lab.Voice, dst lab.Endpoint) error {
	if f.b.panicOnDisconnect {
		panic("node already disconnected")
	}
	e := lab.Edge{Src: v, Dst: dst}
	if !f.b.live[e] {
		f.b.disconnectErrors++
		return errors.New("edge not live")
	}
	delete(f.b.live, e)
	return nil
}

func (f *fakeFactory) SetParam(v lab.Voice, param string, value float64) {
	v.(*fakeVoice).params[param] = value
}

func (f *fakeFactory) RampParam(v lab.Voice, param string, value, _ float64) {
	v.(*fakeVoice).ramps[param] = value
}

func (f *fakeFactory) SetParamAt(v lab.Voice, param string, value, at float64) {
	fv := v.(*fakeVoice)
	fv.events = append(fv.events, fmt.Sprintf("set %s=%v@%v", param, value, at))
}

func (f *fakeFactory) SetTargetAt(v lab.Voice, param string, target, at, tc float64) {
	fv := v.(*fakeVoice)
	fv.events = append(fv.events, fmt.Sprintf("target %s=%v@%v/%v", param, target, at, tc))
}

func (f *fakeFactory) CancelScheduled(v lab.Voice, param string, from float64) {
	fv := v.(*fakeVoice)
	fv.events = append(fv.events, fmt.Sprintf("cancel %s@%v", param, from))
}

func (f *fakeFactory) Activate(v lab.Voice, at float64) {
	v.(*fakeVoice).active = at
}

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}
