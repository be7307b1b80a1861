package facade

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-facade/internal/graph"
)

func newTestDevice(t *testing.T, src *fakeSource, pub *recordingPublisher, opts ...Option) *Device {
	t.Helper()
	base := []Option{WithSource(src), WithPublishers(pub), WithNow(fixedNow)}
	return New("test/facade/1", append(base, opts...)...)
}

func TestDeviceProxyAndLogical(t *testing.T) {
	src := newFakeSource()
	pub := &recordingPublisher{}
	dev := newTestDevice(t, src, pub)

	require.NoError(t, dev.AddProxy("temperature", "sensors/hall/temperature"))
	require.NoError(t, dev.AddProxy("setpoint", "sensors/hall/setpoint"))
	require.NoError(t, dev.AddLogical("error", Rule{
		Bind: []string{"temperature", "setpoint"},
		Func: func(v ...any) (any, error) { return v[1].(float64) - v[0].(float64), nil },
	}))
	require.NoError(t, dev.Init(context.Background()))
	t.Cleanup(func() { _ = dev.Close() })

	assert.True(t, dev.Connected())
	assert.Equal(t, StateUnknown, dev.State())
	assert.Equal(t, []string{"sensors/hall/setpoint", "sensors/hall/temperature"}, src.subscribed())

	_, ok, err := dev.Read("error")
	require.NoError(t, err)
	assert.False(t, ok, "no value before the first event")

	src.emit("sensors/hall/temperature", 19.5, 10, graph.Valid)
	src.emit("sensors/hall/setpoint", 21.0, 12, graph.Warning)

	r, ok, err := dev.Read("error")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.5, r.Value)
	assert.Equal(t, graph.Warning, r.Quality)
	assert.Equal(t, int64(12), r.Time.Unix())

	last, ok := pub.last("error")
	require.True(t, ok)
	assert.Equal(t, "test/facade/1", last.Device)
	assert.Equal(t, 1.5, last.Value)
	assert.NoError(t, last.Err)

	_, _, err = dev.Read("missing")
	assert.ErrorIs(t, err, ErrUnknownAttribute)
}

func TestDeviceInitFailure(t *testing.T) {
	src := newFakeSource()
	pub := &recordingPublisher{}
	dev := newTestDevice(t, src, pub)
	require.NoError(t, dev.AddProxy("temperature", "   "))

	err := dev.Init(context.Background())
	require.ErrorIs(t, err, ErrEmptySource)
	assert.False(t, dev.Connected())
	assert.Equal(t, StateFault, dev.State())
	assert.Contains(t, dev.Status(), "Exception while initializing the device:")
	assert.Contains(t, dev.Status(), "Exception while configuring proxy attribute <temperature>")

	_, _, err = dev.Read("temperature")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, dev.AddLocal("late"), ErrAlreadyInitialised)

	states := pub.forAttribute(AttributeState)
	require.Len(t, states, 2)
	assert.Equal(t, "INIT", states[0].Value)
	assert.Equal(t, "FAULT", states[1].Value)

	info := dev.Info()
	assert.Contains(t, info, "The device is currently stopped because of:")
	assert.Contains(t, info, "Raised once")
}

func TestDeviceCyclicDefinition(t *testing.T) {
	dev := newTestDevice(t, newFakeSource(), &recordingPublisher{})
	identity := func(v ...any) (any, error) { return v[0], nil }
	require.NoError(t, dev.AddLogical("a", Rule{Bind: []string{"b"}, Func: identity}))
	require.NoError(t, dev.AddLogical("b", Rule{Bind: []string{"a"}, Func: identity}))

	err := dev.Init(context.Background())
	assert.ErrorIs(t, err, graph.ErrCyclicDependency)
	assert.Contains(t, dev.Status(), "Exception while building graph")
}

func TestDeviceDeclarationErrors(t *testing.T) {
	dev := New("x")
	assert.ErrorIs(t, dev.AddLogical("a", Rule{Bind: []string{"b"}}), ErrNoRule)
	assert.ErrorIs(t, dev.AddLogical("a", Rule{Func: sumValues}), ErrNoBinding)
	assert.ErrorIs(t, dev.AddState("s", Computed(Rule{Func: sumValues})), ErrNoBinding)
	assert.ErrorIs(t, dev.AddCombined("c", []string{"a/b"}, Rule{Func: sumValues}, Writable()), ErrNotWritable)
	assert.ErrorIs(t, dev.AddProxy("p", "a/b", Computed(Rule{})), ErrNoRule)
	require.NoError(t, dev.AddLocal("a"))
	assert.ErrorIs(t, dev.AddLocal("a"), ErrDuplicateAttribute)
	assert.ErrorIs(t, dev.AddLocal(""), ErrUnknownAttribute)
}

func TestDeviceLocalAttributes(t *testing.T) {
	pub := &recordingPublisher{}
	dev := newTestDevice(t, newFakeSource(), pub)
	boom := errors.New("no default")

	require.NoError(t, dev.AddLocal("gain", Writable(), Initial(func() (any, error) { return 2.0, nil })))
	require.NoError(t, dev.AddLocal("offset", Initial(func() (any, error) { return nil, boom })))
	require.NoError(t, dev.AddLocal("mode", Writable(), Zero("auto"), Hidden()))
	require.NoError(t, dev.Init(context.Background()))

	r, ok, err := dev.Read("gain")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, r.Value)

	_, _, err = dev.Read("offset")
	assert.ErrorIs(t, err, boom)

	require.NoError(t, dev.Write(context.Background(), "gain", 3.5))
	r, _, _ = dev.Read("gain")
	assert.Equal(t, 3.5, r.Value)
	assert.ErrorIs(t, dev.Write(context.Background(), "offset", 1.0), ErrNotWritable)

	require.NoError(t, dev.Write(context.Background(), "mode", graph.InvalidAt(5)))
	r, ok, err = dev.Read("mode")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "auto", r.Value, "invalid readings report the zero value")
	assert.Equal(t, graph.Invalid, r.Quality)
	assert.Empty(t, pub.forAttribute("mode"), "hidden attributes publish nothing")

	gains := pub.forAttribute("gain")
	require.Len(t, gains, 2)
	offsets := pub.forAttribute("offset")
	require.Len(t, offsets, 1)
	assert.ErrorIs(t, offsets[0].Err, boom)
}

func TestDeviceProxyLiteralAndWrites(t *testing.T) {
	src := newFakeSource()
	dev := newTestDevice(t, src, &recordingPublisher{})
	require.NoError(t, dev.AddProxy("limits", "[1, 2]"))
	require.NoError(t, dev.AddProxy("gain", "0.5", Writable()))
	require.NoError(t, dev.AddProxy("valve", "plant/valve/position", Writable()))
	require.NoError(t, dev.AddProxy("pressure", "plant/pressure", Computed(Rule{
		Func: func(v ...any) (any, error) { return v[0].(float64) * 1000, nil },
	})))
	require.NoError(t, dev.Init(context.Background()))

	r, ok, err := dev.Read("limits")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{1, 2}, r.Value)

	require.NoError(t, dev.Write(context.Background(), "gain", 0.75))
	r, _, _ = dev.Read("gain")
	assert.Equal(t, 0.75, r.Value)

	require.NoError(t, dev.Write(context.Background(), "valve", 40))
	assert.Equal(t, 40, src.writes["plant/valve/position"])

	assert.Equal(t, []string{"plant/pressure", "plant/valve/position"}, src.subscribed())
	src.emit("plant/pressure", 1.2, 3, graph.Valid)
	r, ok, _ = dev.Read("pressure")
	require.True(t, ok)
	assert.InDelta(t, 1200.0, r.Value, 1e-9)

	infos := dev.Attributes()
	require.Len(t, infos, 4)
	assert.Equal(t, KindProxy, infos[3].Kind)
	assert.Equal(t, []string{"pressure[0]"}, infos[3].Bind)
	assert.Equal(t, []string{"plant/pressure"}, infos[3].Remotes)
}

func TestDeviceProxyWriteWithoutWriter(t *testing.T) {
	dev := New("x", WithSource(sourceOnly{newFakeSource()}))
	require.NoError(t, dev.AddProxy("valve", "plant/valve", Writable()))
	err := dev.Init(context.Background())
	assert.ErrorIs(t, err, ErrNoWriter)
}

// sourceOnly hides the writer side of a fakeSource.
type sourceOnly struct{ src *fakeSource }

func (s sourceOnly) Subscribe(remote string, h EventHandler) error {
	return s.src.Subscribe(remote, h)
}

func (s sourceOnly) Unsubscribe(remote string) error {
	return s.src.Unsubscribe(remote)
}

func TestDeviceCombinedAttribute(t *testing.T) {
	src := newFakeSource("pumps/1/flow", "pumps/2/flow", "pumps/3/flow", "pumps/spare/flow")
	dev := newTestDevice(t, src, &recordingPublisher{})
	require.NoError(t, dev.AddCombined("total_flow", []string{"pumps/*/flow"}, Rule{Func: sumValues},
		Exclude("pumps/spare/*")))
	require.NoError(t, dev.AddCombined("listed", []string{"pumps/1/flow", "", "pumps/2/flow"}, Rule{Func: sumValues}))
	require.NoError(t, dev.AddCombined("constant", []string{"42"}, Rule{Func: sumValues}))
	require.NoError(t, dev.Init(context.Background()))

	for i, remote := range []string{"pumps/1/flow", "pumps/2/flow", "pumps/3/flow"} {
		src.emit(remote, float64(i+1), float64(i), graph.Valid)
	}

	r, ok, err := dev.Read("total_flow")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 6.0, r.Value)

	r, ok, _ = dev.Read("listed")
	require.True(t, ok)
	assert.Equal(t, 3.0, r.Value)

	r, ok, _ = dev.Read("constant")
	require.True(t, ok)
	assert.Equal(t, 42, r.Value)

	results, err := dev.CombinedResults("total_flow")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "pumps/1/flow", results[0].Remote)
	assert.True(t, results[2].Valid)
	assert.Equal(t, 3.0, results[2].Triplet.Value())

	var names []string
	dev.Inspect(func(g *graph.Graph) {
		subs, err := g.Subnodes("total_flow")
		require.NoError(t, err)
		for _, n := range subs {
			names = append(names, n.Name())
		}
	})
	assert.Equal(t, []string{"total_flow[0]", "total_flow[1]", "total_flow[2]"}, names)
}

func TestDeviceCombinedNoMatch(t *testing.T) {
	dev := newTestDevice(t, newFakeSource("pumps/1/flow"), &recordingPublisher{})
	require.NoError(t, dev.AddCombined("flow", []string{"valves/*"}, Rule{Func: sumValues}))
	assert.ErrorIs(t, dev.Init(context.Background()), ErrNoMatch)
}

func TestDeviceStateAttribute(t *testing.T) {
	src := newFakeSource()
	pub := &recordingPublisher{}
	dev := newTestDevice(t, src, pub)
	require.NoError(t, dev.AddProxy("running", "pump/running"))
	require.NoError(t, dev.AddState("state", Computed(Rule{
		Bind: []string{"running"},
		Func: func(v ...any) (any, error) {
			switch v[0] {
			case true:
				return StateStatus{State: StateRunning, Status: "Pump is running."}, nil
			case false:
				return StateOff, nil
			}
			return "BROKEN", nil
		},
	})))
	require.NoError(t, dev.Init(context.Background()))
	assert.Equal(t, StateUnknown, dev.State())

	src.emit("pump/running", true, 1, graph.Valid)
	assert.Equal(t, StateRunning, dev.State())
	assert.Equal(t, "Pump is running.", dev.Status())

	src.emit("pump/running", false, 2, graph.Valid)
	assert.Equal(t, StateOff, dev.State())
	assert.Equal(t, "The device is in OFF state.", dev.Status())
	assert.Empty(t, pub.forAttribute("state"), "state attributes drive State and Status only")

	src.emit("pump/running", nil, 3, graph.Invalid)
	assert.Equal(t, StateFault, dev.State())
	assert.Equal(t, "The state cannot be computed. Some values are invalid.", dev.Status())

	src.emit("pump/running", "stuck", 4, graph.Valid)
	assert.Equal(t, StateFault, dev.State())
	assert.Contains(t, dev.Status(), "Exception while setting state and status")

	src.emitError("pump/running", &EventError{Reason: "API_DeviceTimedOut", Desc: "pump timed out"})
	assert.Equal(t, StateFault, dev.State())
	assert.Contains(t, dev.Status(), "pump timed out")
	assert.Contains(t, dev.Status(), "Exception while updating node <state>")
}

func TestDeviceLocalState(t *testing.T) {
	dev := newTestDevice(t, newFakeSource(), &recordingPublisher{})
	require.NoError(t, dev.AddState("state", Writable()))
	require.NoError(t, dev.Init(context.Background()))

	require.NoError(t, dev.Write(context.Background(), "state", "standby"))
	assert.Equal(t, StateStandby, dev.State())

	require.NoError(t, dev.Write(context.Background(), "state", []any{"ALARM", "Too hot."}))
	assert.Equal(t, StateAlarm, dev.State())
	assert.Equal(t, "Too hot.", dev.Status())

	require.NoError(t, dev.Write(context.Background(), "state", nil))
	assert.Equal(t, StateFault, dev.State())
}

func TestDeviceEventErrors(t *testing.T) {
	src := newFakeSource()
	pub := &recordingPublisher{}
	dev := newTestDevice(t, src, pub)
	require.NoError(t, dev.AddProxy("level", "tank/level"))
	require.NoError(t, dev.Init(context.Background()))

	src.emit("tank/level", 3.0, 1, graph.Valid)
	src.emitError("tank/level", &EventError{Reason: "API_PollThreadOutOfSync", Desc: "out of sync"})
	r, ok, err := dev.Read("level")
	require.NoError(t, err, "ignored reasons keep the last value")
	require.True(t, ok)
	assert.Equal(t, 3.0, r.Value)

	failure := &EventError{Reason: "API_DeviceNotExported", Desc: "tank is gone"}
	src.emitError("tank/level", failure)
	src.emitError("tank/level", failure)
	_, _, err = dev.Read("level")
	assert.ErrorIs(t, err, failure)

	last, ok := pub.last("level")
	require.True(t, ok)
	assert.ErrorIs(t, last.Err, failure)
	assert.Equal(t, graph.Invalid, last.Quality)

	history := dev.ExceptionHistory()
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].Count)
	assert.Equal(t, 2, history[1].Count)
	assert.Contains(t, history[1].Status, "Received an event from tank/level that contains errors:\n  tank is gone")
	assert.Equal(t, StateUnknown, dev.State(), "event errors do not fault the device")

	info := dev.Info()
	assert.Contains(t, info, "The device is currently connected.")
	assert.Contains(t, info, "- tank/level")
	assert.Contains(t, info, "Raised 2 times")
}

func TestDeviceRuleFailure(t *testing.T) {
	src := newFakeSource()
	dev := newTestDevice(t, src, &recordingPublisher{})
	errDivide := errors.New("division by zero")
	require.NoError(t, dev.AddProxy("distance", "odometer/distance"))
	require.NoError(t, dev.AddProxy("duration", "odometer/duration"))
	require.NoError(t, dev.AddLogical("speed", Rule{
		Bind: []string{"distance", "duration"},
		Func: func(v ...any) (any, error) {
			if v[1].(float64) == 0 {
				return nil, errDivide
			}
			return v[0].(float64) / v[1].(float64), nil
		},
	}))
	require.NoError(t, dev.AddLogical("pace", Rule{
		Bind:   []string{"speed"},
		Custom: func(in ...*graph.Node) (any, error) { return in[0].Result() },
	}))
	require.NoError(t, dev.Init(context.Background()))

	src.emit("odometer/distance", 10.0, 1, graph.Valid)
	src.emit("odometer/duration", 0.0, 1, graph.Valid)

	_, _, err := dev.Read("speed")
	require.ErrorIs(t, err, errDivide)
	var ctxErr *ContextError
	require.ErrorAs(t, err, &ctxErr)
	assert.Equal(t, "updating", ctxErr.Action)
	assert.Equal(t, "Exception while updating node <speed>:\n  division by zero", err.Error())

	_, _, err = dev.Read("pace")
	assert.ErrorIs(t, err, errDivide)

	src.emit("odometer/duration", 2.0, 2, graph.Valid)
	r, ok, err := dev.Read("speed")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5.0, r.Value)
}

func TestDeviceHooks(t *testing.T) {
	src := newFakeSource()
	dev := newTestDevice(t, src, &recordingPublisher{})
	var seen []any
	require.NoError(t, dev.AddProxy("door", "hall/door", Notify(func(n *graph.Node) error {
		tr, _ := n.Triplet()
		seen = append(seen, tr.Value())
		return nil
	}), Notify(func(*graph.Node) error { panic("bad hook") })))
	require.NoError(t, dev.Init(context.Background()))

	src.emit("hall/door", "open", 1, graph.Valid)
	src.emit("hall/door", "open", 1, graph.Valid)
	src.emit("hall/door", "closed", 2, graph.Valid)

	assert.Equal(t, []any{"open", "closed"}, seen)
	history := dev.ExceptionHistory()
	require.Len(t, history, 1)
	assert.Equal(t, 2, history[0].Count)
	assert.Contains(t, history[0].Status, "Exception while running user callback for node <door>")
}

func TestDeviceClose(t *testing.T) {
	src := newFakeSource()
	dev := newTestDevice(t, src, &recordingPublisher{})
	require.NoError(t, dev.AddProxy("a", "remote/a"))
	require.NoError(t, dev.AddProxy("b", "remote/a"))
	require.NoError(t, dev.Init(context.Background()))
	assert.Equal(t, []string{"remote/a"}, src.subscribed(), "one subscription per remote")

	src.emit("remote/a", 1.0, 1, graph.Valid)
	rb, ok, _ := dev.Read("b")
	require.True(t, ok)
	assert.Equal(t, 1.0, rb.Value)

	stale := src.handler("remote/a")
	require.NoError(t, dev.Close())
	assert.False(t, dev.Connected())
	assert.Empty(t, src.subscribed())
	assert.Equal(t, []string{"remote/a"}, src.unsubs)

	assert.NotPanics(t, func() {
		stale(Event{Remote: "remote/a", Reading: testReading{value: 2.0, at: fixedNow()}})
	})

	require.NoError(t, dev.Init(context.Background()), "a closed device can be initialised again")
	assert.True(t, dev.Connected())
}

func TestDeviceClock(t *testing.T) {
	var ticks []float64
	dev := newTestDevice(t, newFakeSource(), &recordingPublisher{})
	require.NoError(t, dev.EnableClock(func(stamp float64) { ticks = append(ticks, stamp) }))
	assert.ErrorIs(t, dev.Tick(), ErrNotConnected)

	require.NoError(t, dev.Init(context.Background()))
	require.Len(t, ticks, 1)
	assert.Equal(t, 1700000000.0, ticks[0])

	r, ok, err := dev.Read(ClockAttribute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1700000000.0, r.Value)

	require.NoError(t, dev.Tick())
	assert.Len(t, ticks, 1, "same time, no change")
}

func TestDeviceNoSource(t *testing.T) {
	dev := New("x")
	require.NoError(t, dev.AddProxy("a", "remote/a"))
	assert.ErrorIs(t, dev.Init(context.Background()), ErrNoSource)
}

func TestDeviceBuildOnly(t *testing.T) {
	dev := New("x")
	require.NoError(t, dev.AddProxy("a", "remote/a"))
	require.NoError(t, dev.AddLogical("b", Rule{Bind: []string{"a"}, Func: sumValues}))
	require.NoError(t, dev.Build())

	var names []string
	dev.Inspect(func(g *graph.Graph) { names = g.Names() })
	assert.Equal(t, []string{"a", "b"}, names)
	assert.False(t, dev.Connected())
}
