// Package influxdb archives facade attribute changes to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, health checks, and an Archiver that implements
// facade.Publisher.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	dev := facade.New("boiler", facade.WithPublishers(client.Archiver()))
//
// Every change becomes one point of the facade_attribute measurement,
// tagged with device, attribute and quality. The field is "value" for a
// valid change and "error" for a faulted one.
//
// # Thread Safety
//
// All methods are safe for concurrent use. The underlying write API
// uses non-blocking batched writes; batch errors reach the callback set
// with SetOnError.
package influxdb
