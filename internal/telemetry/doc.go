// Package telemetry exports facade metrics through OpenTelemetry.
//
// A Recorder is a facade.Publisher: attach it to a device and every
// change it publishes is counted.
//
//	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
//
//	rec, err := telemetry.NewRecorder(otel.Meter(cfg.Telemetry.Meter))
//	dev := facade.New("boiler", facade.WithPublishers(rec))
//
// Instruments:
//
//	facade.changes        counter   {device, attribute, quality}
//	facade.faults         counter   {device, attribute}
//	facade.state.changes  counter   {device, state}
//	facade.change.lag     histogram seconds between value stamp and publication
package telemetry
