// Package facade exposes a reactive graph as a device with attributes.
//
// A facade device aggregates readings from remote attributes (sensors,
// bridges, other devices) into its own attributes, and derives its state
// and status from them. Attributes are declared with an explicit builder:
//
//   - AddLocal: set by writes or by an initial value provider
//   - AddLogical: computed from other attributes by a Rule
//   - AddProxy: follows one remote attribute, or holds a literal default
//   - AddCombined: computed from a list or a wildcard of remote attributes
//   - AddState: drives the device State and Status
//
// # Lifecycle
//
//	dev := facade.New("hall/heating",
//	    facade.WithSource(src),
//	    facade.WithPublishers(pub),
//	    facade.WithLogger(log),
//	)
//	_ = dev.AddProxy("temperature", "sensors/hall/temperature")
//	_ = dev.AddLogical("too_hot", facade.Rule{
//	    Bind: []string{"temperature"},
//	    Func: func(v ...any) (any, error) { return v[0].(float64) > 26, nil },
//	})
//	if err := dev.Init(ctx); err != nil {
//	    // the device is in FAULT, dev.Status() holds the reason
//	}
//	defer dev.Close()
//
// Init moves the device from INIT to UNKNOWN (or to the state set by a
// state attribute), or to FAULT when configuring, building or connecting
// fails.
//
// # Errors
//
// Rule failures are stored as attribute faults, wrapped in a ContextError
// naming the node being updated, and counted in the exception history
// reported by Info. Event errors whose reason is listed in the ignored
// reasons are counted but never stored.
//
// # Thread Safety
//
// A Device is safe for concurrent use. Source handlers, writes, reads and
// clock ticks are serialised by a device lock held during propagation.
// Publishers and hooks run under that lock and must not call the device.
package facade
