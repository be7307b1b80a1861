package main

import (
	"context"
	"sync"

	"github.com/nerrad567/gray-logic-facade/internal/definition"
	"github.com/nerrad567/gray-logic-facade/internal/facade"
	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-facade/internal/watcher"
)

// service owns the running device and replaces it when the definition
// changes.
type service struct {
	cfg      *config.Config
	log      *logging.Logger
	registry *definition.Registry
	options  []facade.Option
	reloads  chan struct{}

	mu      sync.RWMutex
	current *facade.Device
}

// Device returns the device being served, or nil before the first start.
func (s *service) Device() *facade.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *service) setCurrent(dev *facade.Device) {
	s.mu.Lock()
	s.current = dev
	s.mu.Unlock()
}

// running is a device with its clock goroutine.
type running struct {
	dev    *facade.Device
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (r *running) stop() {
	r.cancel()
	r.wg.Wait()
	_ = r.dev.Close()
}

// serve runs the device built from def until ctx is done. On reload a new
// definition replaces the device; an invalid one keeps the current device.
func (s *service) serve(ctx context.Context, def *definition.Definition) error {
	dev, err := definition.Build(s.cfg.Facade.Device, def, s.registry, s.options...)
	if err != nil {
		return err
	}
	current := s.start(ctx, dev, def)

	for {
		select {
		case <-ctx.Done():
			s.setCurrent(nil)
			current.stop()
			return nil
		case <-s.reloads:
			next, nextDef, err := s.reload()
			if err != nil {
				s.log.Error("definition reload rejected, keeping current device",
					"path", s.cfg.Facade.Definition, "error", err)
				continue
			}
			s.setCurrent(nil)
			current.stop()
			current = s.start(ctx, next, nextDef)
		}
	}
}

func (s *service) reload() (*facade.Device, *definition.Definition, error) {
	def, err := definition.Load(s.cfg.Facade.Definition)
	if err != nil {
		return nil, nil, err
	}
	dev, err := definition.Build(s.cfg.Facade.Device, def, s.registry, s.options...)
	if err != nil {
		return nil, nil, err
	}
	return dev, def, nil
}

// start initialises dev. A device failing to initialise stays in FAULT
// and is still served, so its state reports the failure.
func (s *service) start(ctx context.Context, dev *facade.Device, def *definition.Definition) *running {
	devCtx, cancel := context.WithCancel(ctx)
	r := &running{dev: dev, cancel: cancel}
	defer s.setCurrent(dev)

	if err := dev.Init(devCtx); err != nil {
		s.log.Error("device initialisation failed", "device", dev.Name(), "error", err)
		return r
	}
	s.log.Info("device started", "device", dev.Name(), "state", dev.State().String())

	if interval := s.cfg.GetClockInterval(); def.Clock && interval > 0 {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			_ = dev.RunClock(devCtx, interval)
		}()
	}
	return r
}

func (s *service) onDefinitionChange(c watcher.Change) {
	if c.Removed {
		s.log.Warn("definition file removed, keeping current device", "path", c.File)
		return
	}
	s.log.Info("definition changed, reloading", "path", c.File)
	select {
	case s.reloads <- struct{}{}:
	default:
	}
}
