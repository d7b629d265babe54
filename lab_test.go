package lab_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gordonklaus/lab"
)

func newGraph(t *testing.T) (*lab.Graph, *fakeBackend) {
	t.Helper()
	log, _ := testLogger()
	return lab.New(lab.WithLogger(log)), newFakeBackend()
}

func addNode(t *testing.T, g *lab.Graph, b *fakeBackend, name string, mode lab.Mode, opts ...lab.NodeOption) lab.NodeID {
	t.Helper()
	id, err := g.AddNode(name, mode, b.factory(name), opts...)
	require.NoError(t, err)
	return id
}

func addParam(t *testing.T, g *lab.Graph, owner lab.NodeID, name string) lab.ParamID {
	t.Helper()
	id, err := g.AddParam(owner, name)
	require.NoError(t, err)
	return id
}

func TestAddNode_InitialVoices(t *testing.T) {
	g, b := newGraph(t)

	mono := addNode(t, g, b, "mono", lab.Mono)
	poly := addNode(t, g, b, "poly", lab.StaticPoly(3))
	auto := addNode(t, g, b, "auto", lab.AutoPoly)

	assert.Equal(t, 1, g.VoiceCount(mono))
	assert.Equal(t, 3, g.VoiceCount(poly))
	assert.Equal(t, 1, g.VoiceCount(auto), "unconnected auto poly node resolves to one voice")
	assert.Equal(t, 5, b.made)
	require.NoError(t, g.Check())
}

func TestAddNode_Invalid(t *testing.T) {
	g, b := newGraph(t)

	_, err := g.AddNode("bad", lab.StaticPoly(0), b.factory("bad"))
	assert.ErrorIs(t, err, lab.ErrInvalidVoiceCount)

	_, err = g.AddNode("nil", lab.Mono, nil)
	assert.ErrorIs(t, err, lab.ErrNilFactory)

	id := addNode(t, g, b, "osc", lab.AutoPoly)
	addParam(t, g, id, "frequency")
	_, err = g.AddParam(id, "frequency")
	assert.ErrorIs(t, err, lab.ErrDuplicateParam)

	_, err = g.Param(id, "detune")
	assert.ErrorIs(t, err, lab.ErrParamNotFound)
}

func TestScenario_OscGainPoly(t *testing.T) {
	g, b := newGraph(t)
	osc := addNode(t, g, b, "osc", lab.AutoPoly)
	freq := addParam(t, g, osc, "frequency")
	gain := addNode(t, g, b, "gain", lab.Mono)
	poly := addNode(t, g, b, "poly", lab.StaticPoly(4))

	require.NoError(t, g.Connect(osc, gain))
	assert.Equal(t, 1, g.VoiceCount(gain))
	assert.Equal(t, 1, g.VoiceCount(osc))
	assert.Equal(t, 1, b.edgesInto("gain", ""))

	require.NoError(t, g.Connect(poly, freq))
	assert.Equal(t, 4, g.VoiceCount(osc))
	assert.Equal(t, 1, g.VoiceCount(gain), "mono target never grows")
	assert.Equal(t, 4, b.edgesInto("gain", ""), "every osc voice lands on the single gain voice")
	assert.Equal(t, 4, b.edgesInto("osc", "frequency"))
	assert.Len(t, g.Edges(osc, gain), 4)
	require.NoError(t, g.Check())

	require.NoError(t, g.Disconnect(poly, freq))
	assert.Equal(t, 1, g.VoiceCount(osc))
	assert.Equal(t, 1, b.edgesInto("gain", ""))
	assert.Equal(t, 0, b.edgesInto("osc", "frequency"))
	assert.Len(t, g.Edges(osc, gain), 1)
	require.NoError(t, g.Check())

	assert.Zero(t, b.disconnectErrors)
}

func TestConnect_Twice(t *testing.T) {
	g, b := newGraph(t)
	poly := addNode(t, g, b, "poly", lab.StaticPoly(2))
	auto := addNode(t, g, b, "auto", lab.AutoPoly)

	require.NoError(t, g.Connect(poly, auto))
	live := len(b.live)

	err := g.Connect(poly, auto)
	assert.ErrorIs(t, err, lab.ErrAlreadyConnected)
	assert.Len(t, b.live, live)
	assert.Equal(t, []lab.NodeID{poly}, g.Sources(auto))

	require.NoError(t, g.Disconnect(poly, auto))
	err = g.Disconnect(poly, auto)
	assert.ErrorIs(t, err, lab.ErrNotConnected)
	assert.Empty(t, b.live)
	assert.Zero(t, b.disconnectErrors)
}

func TestConnectDisconnect_RestoresState(t *testing.T) {
	g, b := newGraph(t)
	poly := addNode(t, g, b, "poly", lab.StaticPoly(3))
	a := addNode(t, g, b, "a", lab.AutoPoly)
	out := addNode(t, g, b, "out", lab.Mono)
	require.NoError(t, g.Connect(a, out))

	live := len(b.live)
	require.NoError(t, g.Connect(poly, a))
	assert.Equal(t, 3, g.VoiceCount(a))
	require.NoError(t, g.Disconnect(poly, a))

	assert.Equal(t, 1, g.VoiceCount(a))
	assert.Len(t, b.live, live)
	assert.Empty(t, g.Sources(a))
	require.NoError(t, g.Check())
}

// pairs lists an edge set as source and destination voice indices.
func pairs(edges []lab.Edge) [][2]int {
	var ps [][2]int
	for _, e := range edges {
		ps = append(ps, [2]int{e.Src.(*fakeVoice).index, e.Dst.Voice.(*fakeVoice).index})
	}
	return ps
}

func TestReconnect_SamePairing(t *testing.T) {
	g, b := newGraph(t)
	poly := addNode(t, g, b, "poly", lab.StaticPoly(3))
	a := addNode(t, g, b, "a", lab.AutoPoly)

	require.NoError(t, g.Connect(poly, a))
	first := pairs(g.Edges(poly, a))
	live := len(b.live)
	require.Len(t, first, 3)

	require.NoError(t, g.Disconnect(poly, a))
	require.NoError(t, g.Connect(poly, a))

	assert.ElementsMatch(t, first, pairs(g.Edges(poly, a)))
	assert.Len(t, b.live, live)
	assert.Equal(t, 3, g.VoiceCount(a))
	require.NoError(t, g.Check())
}

func TestNilLogger_FallsBackToDefault(t *testing.T) {
	g := lab.New(lab.WithLogger(nil))
	b := newFakeBackend()
	b.panicOnDisconnect = true
	poly := addNode(t, g, b, "poly", lab.StaticPoly(2))
	a := addNode(t, g, b, "a", lab.AutoPoly)

	require.NoError(t, g.Connect(poly, a))
	assert.NotPanics(t, func() {
		require.NoError(t, g.Disconnect(poly, a))
	})
	assert.Equal(t, 1, g.VoiceCount(a))
}

func TestAutoPoly_Chain(t *testing.T) {
	g, b := newGraph(t)
	poly := addNode(t, g, b, "poly", lab.StaticPoly(3))
	a := addNode(t, g, b, "a", lab.AutoPoly)
	c := addNode(t, g, b, "c", lab.AutoPoly)

	require.NoError(t, g.Connect(a, c))
	require.NoError(t, g.Connect(poly, a))
	assert.Equal(t, 3, g.VoiceCount(a))
	assert.Equal(t, 3, g.VoiceCount(c), "growth propagates downstream")
	assert.Equal(t, 3, b.edgesInto("c", ""))

	require.NoError(t, g.SetVoiceCount(poly, 5))
	assert.Equal(t, 5, g.VoiceCount(a))
	assert.Equal(t, 5, g.VoiceCount(c))
	assert.Equal(t, 5, b.edgesInto("a", ""))
	assert.Equal(t, 5, b.edgesInto("c", ""))
	require.NoError(t, g.Check())

	disposed := b.disposed
	require.NoError(t, g.SetVoiceCount(poly, 2))
	assert.Equal(t, 2, g.VoiceCount(a))
	assert.Equal(t, 2, g.VoiceCount(c))
	assert.Equal(t, 2, b.edgesInto("c", ""))
	assert.Equal(t, disposed+9, b.disposed, "three voices from each node")
	require.NoError(t, g.Check())
	assert.Zero(t, b.disconnectErrors)
}

func TestAutoPoly_MaxOverSources(t *testing.T) {
	g, b := newGraph(t)
	two := addNode(t, g, b, "two", lab.StaticPoly(2))
	five := addNode(t, g, b, "five", lab.StaticPoly(5))
	auto := addNode(t, g, b, "auto", lab.AutoPoly)
	cutoff := addParam(t, g, auto, "cutoff")

	require.NoError(t, g.Connect(two, auto))
	require.NoError(t, g.Connect(five, cutoff))
	assert.Equal(t, 5, g.VoiceCount(auto), "param sources count toward the max")
	assert.Equal(t, 2, b.edgesInto("auto", ""), "two voices pair 1:1 with the first two")
	assert.Equal(t, 5, b.edgesInto("auto", "cutoff"))

	require.NoError(t, g.Disconnect(five, cutoff))
	assert.Equal(t, 2, g.VoiceCount(auto))
	assert.Equal(t, 2, b.edgesInto("auto", ""))
	require.NoError(t, g.Check())
}

func TestAutoMono_FansOut(t *testing.T) {
	g, b := newGraph(t)
	poly := addNode(t, g, b, "poly", lab.StaticPoly(3))
	x := addNode(t, g, b, "x", lab.AutoPoly)
	level := addParam(t, g, x, "level")
	require.NoError(t, g.Connect(poly, x))

	constant := addNode(t, g, b, "constant", lab.AutoPoly, lab.AutoMono())
	require.NoError(t, g.Connect(constant, level))
	assert.Equal(t, 1, g.VoiceCount(constant))
	assert.Equal(t, 3, b.edgesInto("x", "level"), "a lone auto mono voice reaches every target voice")

	plain := addNode(t, g, b, "plain", lab.AutoPoly)
	bias := addParam(t, g, x, "bias")
	require.NoError(t, g.Connect(plain, bias))
	assert.Equal(t, 1, b.edgesInto("x", "bias"), "without auto mono voices pair by index")
	require.NoError(t, g.Check())
}

func TestMonoSource_FansOut(t *testing.T) {
	g, b := newGraph(t)
	poly := addNode(t, g, b, "poly", lab.StaticPoly(3))
	x := addNode(t, g, b, "x", lab.AutoPoly)
	require.NoError(t, g.Connect(poly, x))

	lfo := addNode(t, g, b, "lfo", lab.Mono)
	require.NoError(t, g.Connect(lfo, x))
	assert.Equal(t, 3, g.VoiceCount(x))
	assert.Len(t, g.Edges(lfo, x), 3)

	require.NoError(t, g.SetVoiceCount(poly, 4))
	assert.Len(t, g.Edges(lfo, x), 4, "mono source re-pairs when its target grows")
	require.NoError(t, g.Check())
}

func TestStaticPoly_RejectsTarget(t *testing.T) {
	g, b := newGraph(t)
	src := addNode(t, g, b, "src", lab.Mono)
	poly := addNode(t, g, b, "poly", lab.StaticPoly(2))
	gate := addParam(t, g, poly, "gate")

	assert.ErrorIs(t, g.Connect(src, poly), lab.ErrStaticPolyTarget)
	assert.ErrorIs(t, g.Connect(src, gate), lab.ErrStaticPolyTarget)
	assert.Empty(t, b.live)
	assert.Empty(t, g.Targets(src))
}

func TestSetVoiceCount(t *testing.T) {
	g, b := newGraph(t)
	mono := addNode(t, g, b, "mono", lab.Mono)
	auto := addNode(t, g, b, "auto", lab.AutoPoly)
	poly := addNode(t, g, b, "poly", lab.StaticPoly(2))

	assert.NoError(t, g.SetVoiceCount(mono, 1))
	assert.ErrorIs(t, g.SetVoiceCount(mono, 2), lab.ErrInvalidVoiceCount)
	assert.ErrorIs(t, g.SetVoiceCount(auto, 2), lab.ErrAutoPolyVoiceCount)
	assert.ErrorIs(t, g.SetVoiceCount(poly, 0), lab.ErrInvalidVoiceCount)

	require.NoError(t, g.SetVoiceCount(poly, 6))
	assert.Equal(t, 6, g.VoiceCount(poly))
	assert.Equal(t, lab.StaticPoly(6), g.Mode(poly))
}

func TestSetMode(t *testing.T) {
	g, b := newGraph(t)
	poly := addNode(t, g, b, "poly", lab.StaticPoly(4))
	gain := addNode(t, g, b, "gain", lab.Mono)
	require.NoError(t, g.Connect(poly, gain))
	assert.Equal(t, 4, b.edgesInto("gain", ""))

	require.NoError(t, g.SetMode(gain, lab.AutoPoly))
	assert.Equal(t, 4, g.VoiceCount(gain))
	assert.Equal(t, 4, b.edgesInto("gain", ""))
	for _, e := range g.Edges(poly, gain) {
		assert.Equal(t, e.Src.(*fakeVoice).index, e.Dst.Voice.(*fakeVoice).index)
	}
	require.NoError(t, g.Check())

	require.NoError(t, g.SetMode(gain, lab.Mono))
	assert.Equal(t, 1, g.VoiceCount(gain))
	assert.Equal(t, 4, b.edgesInto("gain", ""))
	require.NoError(t, g.Check())

	assert.ErrorIs(t, g.SetMode(gain, lab.StaticPoly(2)), lab.ErrStaticPolyTarget)
	assert.ErrorIs(t, g.SetMode(gain, lab.Mode{Kind: 9}), lab.ErrInvalidMode)
	assert.Zero(t, b.disconnectErrors)
}

func TestSetMode_SourceSide(t *testing.T) {
	g, b := newGraph(t)
	src := addNode(t, g, b, "src", lab.Mono)
	x := addNode(t, g, b, "x", lab.AutoPoly)
	require.NoError(t, g.Connect(src, x))

	require.NoError(t, g.SetMode(src, lab.StaticPoly(3)))
	assert.Equal(t, 3, g.VoiceCount(x))
	assert.Equal(t, 3, b.edgesInto("x", ""))
	require.NoError(t, g.Check())
}

func TestDispose(t *testing.T) {
	g, b := newGraph(t)
	poly := addNode(t, g, b, "poly", lab.StaticPoly(3))
	mid := addNode(t, g, b, "mid", lab.AutoPoly)
	out := addNode(t, g, b, "out", lab.AutoPoly)
	require.NoError(t, g.Connect(poly, mid))
	require.NoError(t, g.Connect(mid, out))
	assert.Equal(t, 3, g.VoiceCount(out))

	require.NoError(t, g.Dispose(mid))
	assert.Equal(t, 0, g.VoiceCount(mid))
	assert.Equal(t, 1, g.VoiceCount(out), "downstream shrinks once its source is gone")
	assert.Empty(t, b.live)
	assert.Empty(t, g.Targets(poly))
	assert.NotContains(t, g.Nodes(), mid)
	assert.ErrorIs(t, g.Connect(poly, mid), lab.ErrDisposed)
	assert.ErrorIs(t, g.Dispose(mid), lab.ErrDisposed)
	require.NoError(t, g.Check())
	assert.Zero(t, b.disconnectErrors)
}

func TestFeedbackMesh_Terminates(t *testing.T) {
	g, b := newGraph(t)
	poly := addNode(t, g, b, "poly", lab.StaticPoly(3))
	a := addNode(t, g, b, "a", lab.AutoPoly)
	c := addNode(t, g, b, "c", lab.AutoPoly)

	require.NoError(t, g.Connect(poly, a))
	require.NoError(t, g.Connect(a, c))
	require.NoError(t, g.Connect(c, a))
	assert.Equal(t, 3, g.VoiceCount(a))
	assert.Equal(t, 3, g.VoiceCount(c))

	require.NoError(t, g.SetVoiceCount(poly, 5))
	assert.Equal(t, 5, g.VoiceCount(a))
	assert.Equal(t, 5, g.VoiceCount(c))
	require.NoError(t, g.Check())
	assert.Zero(t, b.disconnectErrors)
}

func TestBackendDisconnectPanic_Logged(t *testing.T) {
	log, buf := testLogger()
	g := lab.New(lab.WithLogger(log))
	b := newFakeBackend()
	src := addNode(t, g, b, "src", lab.StaticPoly(2))
	dst := addNode(t, g, b, "dst", lab.AutoPoly)
	require.NoError(t, g.Connect(src, dst))

	b.panicOnDisconnect = true
	require.NoError(t, g.Disconnect(src, dst))
	assert.Contains(t, buf.String(), "voice disconnect panicked")
	assert.Empty(t, g.Targets(src))
	assert.Equal(t, 1, g.VoiceCount(dst))
}

func TestBackendDisconnectError_Logged(t *testing.T) {
	log, buf := testLogger()
	g := lab.New(lab.WithLogger(log))
	b := newFakeBackend()
	src := addNode(t, g, b, "src", lab.Mono)
	dst := addNode(t, g, b, "dst", lab.Mono)
	require.NoError(t, g.Connect(src, dst))

	clear(b.live)
	require.NoError(t, g.Disconnect(src, dst))
	assert.Equal(t, 1, b.disconnectErrors)
	assert.Contains(t, buf.String(), "voice disconnect failed")
}

func TestBackendConnectError_EdgeOmitted(t *testing.T) {
	log, buf := testLogger()
	g := lab.New(lab.WithLogger(log))
	b := newFakeBackend()
	src := addNode(t, g, b, "src", lab.Mono)
	dst := addNode(t, g, b, "dst", lab.Mono)

	b.connectErr = errors.New("no route")
	require.NoError(t, g.Connect(src, dst))
	assert.Empty(t, g.Edges(src, dst))
	assert.Contains(t, buf.String(), "voice connect failed")

	b.connectErr = nil
	require.NoError(t, g.Disconnect(src, dst))
	assert.Zero(t, b.disconnectErrors, "omitted edges are never disconnected")
}

func TestActiveVoice_Clamped(t *testing.T) {
	log, buf := testLogger()
	g := lab.New(lab.WithLogger(log))
	b := newFakeBackend()
	poly := addNode(t, g, b, "poly", lab.StaticPoly(4))

	v, err := g.ActiveVoice(poly)
	require.NoError(t, err)
	assert.Equal(t, lab.AllVoices, v)

	require.NoError(t, g.SetActiveVoice(poly, 3, 1.5))
	assert.Equal(t, 1.5, g.Voices(poly)[3].(*fakeVoice).active)

	require.NoError(t, g.SetVoiceCount(poly, 2))
	v, err = g.ActiveVoice(poly)
	require.NoError(t, err)
	assert.Equal(t, lab.VoiceIndex(1), v)
	assert.Contains(t, buf.String(), "clamping voice index")

	require.NoError(t, g.SetActiveVoice(poly, 10, 2))
	v, _ = g.ActiveVoice(poly)
	assert.Equal(t, lab.VoiceIndex(1), v)
}

func TestParamValue_AppliedToNewVoices(t *testing.T) {
	g, b := newGraph(t)
	poly := addNode(t, g, b, "poly", lab.StaticPoly(2))
	osc := addNode(t, g, b, "osc", lab.AutoPoly)
	freq := addParam(t, g, osc, "frequency")
	require.NoError(t, g.SetParamValue(freq, 440))

	require.NoError(t, g.Connect(poly, osc))
	require.Len(t, g.Voices(osc), 2)
	for _, v := range g.Voices(osc) {
		assert.Equal(t, 440.0, v.(*fakeVoice).params["frequency"])
	}

	require.NoError(t, g.RampParam(freq, 880, 1, 7))
	assert.Equal(t, 880.0, g.Voices(osc)[1].(*fakeVoice).ramps["frequency"], "out of range index clamps to the last voice")
	assert.NotContains(t, g.Voices(osc)[0].(*fakeVoice).ramps, "frequency")

	require.NoError(t, g.RampParam(freq, 220, 2, lab.AllVoices))
	require.NoError(t, g.SetVoiceCount(poly, 3))
	assert.Equal(t, 220.0, g.Voices(osc)[2].(*fakeVoice).params["frequency"])
}

func TestScheduledParams(t *testing.T) {
	g, b := newGraph(t)
	poly := addNode(t, g, b, "poly", lab.StaticPoly(2))
	osc := addNode(t, g, b, "osc", lab.AutoPoly)
	gain := addParam(t, g, osc, "gain")
	require.NoError(t, g.Connect(poly, osc))

	require.NoError(t, g.SetParamAt(gain, 1, 0.5, lab.AllVoices))
	require.NoError(t, g.SetParamTarget(gain, 0, 1, 0.1, 5))
	require.NoError(t, g.CancelParam(gain, 2, 0))

	voices := g.Voices(osc)
	assert.Equal(t, []string{"set gain=1@0.5", "cancel gain@2"}, voices[0].(*fakeVoice).events)
	assert.Equal(t, []string{"set gain=1@0.5", "target gain=0@1/0.1"}, voices[1].(*fakeVoice).events,
		"out of range index clamps to the last voice")

	_, ok := g.ParamValue(gain)
	assert.False(t, ok, "scheduled events do not change the stored value")

	err := g.SetParamTarget(gain, 0, 1, -1, lab.AllVoices)
	assert.ErrorIs(t, err, lab.ErrInvalidTimeConstant)
	assert.ErrorIs(t, g.CancelParam(lab.ParamID(99), 0, lab.AllVoices), lab.ErrParamNotFound)
}

func TestVoiceCountHook(t *testing.T) {
	type change struct {
		id       lab.NodeID
		old, new int
	}
	var changes []change
	log, _ := testLogger()
	g := lab.New(lab.WithLogger(log), lab.WithVoiceCountHook(func(id lab.NodeID, old, new int) {
		changes = append(changes, change{id, old, new})
	}))
	b := newFakeBackend()
	poly := addNode(t, g, b, "poly", lab.StaticPoly(2))
	auto := addNode(t, g, b, "auto", lab.AutoPoly)
	changes = nil

	require.NoError(t, g.Connect(poly, auto))
	assert.Equal(t, []change{{auto, 1, 2}}, changes)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    lab.Mode
		wantErr bool
	}{
		{"mono", lab.Mono, false},
		{"autoPoly", lab.AutoPoly, false},
		{"4", lab.StaticPoly(4), false},
		{"0", lab.Mode{}, true},
		{"-2", lab.Mode{}, true},
		{"lots", lab.Mode{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := lab.ParseMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, lab.ErrInvalidMode)
				assert.Equal(t, lab.Mode{}, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}
