// Package definition describes facade devices in YAML or TOML files and
// declares them through the facade builder.
//
// A definition lists attributes by kind. Computed attributes name a rule
// from a Registry instead of carrying code:
//
//	device: boiler
//	clock: true
//	attributes:
//	  - name: temperature
//	    kind: proxy
//	    source: plant/boiler/temperature_raw
//	    rule: scale
//	    args: {factor: 0.5}
//	  - name: state
//	    kind: state
//	    rule: threshold
//	    bind: [temperature]
//	    args: {limit: 90, above: ALARM}
//
// Usage:
//
//	def, err := definition.Load("configs/boiler.yaml")
//	if err != nil {
//	    return err
//	}
//	dev, err := definition.Build(cfg.Facade.Device, def, definition.NewRegistry(),
//	    facade.WithSource(src), facade.WithPublishers(pub))
//
// Validate reports every problem at once; Apply and Build refuse an
// invalid definition before declaring anything.
package definition
