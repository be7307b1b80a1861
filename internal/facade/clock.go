package facade

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/gray-logic-facade/internal/graph"
)

// ClockAttribute is the local attribute updated at every clock tick.
const ClockAttribute = "Time"

// EnableClock declares the Time attribute, a float number of seconds
// updated by Tick. hook, when not nil, runs at every tick with that value.
// Init performs a first tick.
func (d *Device) EnableClock(hook func(stamp float64)) error {
	opts := []AttrOption{Description("Time of the last clock tick."), Zero(0.0)}
	if hook != nil {
		opts = append(opts, Notify(func(n *graph.Node) error {
			if t, ok := n.Triplet(); ok {
				if v, ok := t.Value().(float64); ok {
					hook(v)
				}
			}
			return nil
		}))
	}
	if err := d.AddLocal(ClockAttribute, opts...); err != nil {
		return err
	}
	d.mu.Lock()
	d.clock = true
	d.mu.Unlock()
	return nil
}

// Tick sets the Time attribute to the current time.
func (d *Device) Tick() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return ErrNotConnected
	}
	d.tickLocked()
	return nil
}

func (d *Device) tickLocked() {
	node, ok := d.graph.Node(ClockAttribute)
	if !ok {
		return
	}
	now := d.now()
	stamp := float64(now.Unix()) + float64(now.Nanosecond())/1e9
	t, err := graph.NewTriplet(stamp, stamp, graph.Valid)
	if err != nil {
		_ = node.SetException(err)
		return
	}
	_ = node.SetResult(t)
}

// RunClock ticks every interval until ctx is cancelled.
// Ticks are skipped while the device is disconnected.
func (d *Device) RunClock(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := d.Tick(); err != nil && !errors.Is(err, ErrNotConnected) {
				d.logger.Warn("clock tick failed", "device", d.name, "error", err)
			}
		}
	}
}
