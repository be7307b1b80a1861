package main

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/nerrad567/gray-logic-facade/internal/bridge"
	"github.com/nerrad567/gray-logic-facade/internal/definition"
	"github.com/nerrad567/gray-logic-facade/internal/facade"
	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/mqtt"
)

var errOffline = errors.New("facaded: no broker connection in offline mode")

// loadConfig loads the service configuration named by the config flag and
// applies the definition flag on top of it.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if path := v.GetString("definition"); path != "" {
		cfg.Facade.Definition = path
	}
	return cfg, nil
}

// offlineClient stands in for the broker when a definition is inspected
// without running it.
type offlineClient struct{}

func (offlineClient) Publish(string, []byte, byte, bool) error          { return errOffline }
func (offlineClient) Subscribe(string, byte, mqtt.MessageHandler) error { return errOffline }
func (offlineClient) Unsubscribe(string) error                          { return errOffline }

// buildOffline loads a definition and builds its graph without connecting
// it. Wildcard sources resolve against the definition catalog.
func buildOffline(cfg *config.Config) (*facade.Device, *definition.Definition, error) {
	def, err := definition.Load(cfg.Facade.Definition)
	if err != nil {
		return nil, nil, err
	}
	source := bridge.NewSource(offlineClient{}, bridge.WithCatalog(def.Catalog...))
	dev, err := definition.Build(cfg.Facade.Device, def, definition.NewRegistry(), facade.WithSource(source))
	if err != nil {
		return nil, def, err
	}
	if err := dev.Build(); err != nil {
		return nil, def, err
	}
	return dev, def, nil
}
