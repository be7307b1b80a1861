// Package api implements the HTTP REST API and WebSocket change stream of
// the facade service.
//
// This package provides:
//   - REST endpoints to inspect the device, read and write attributes
//   - attribute history backed by the SQLite history repository
//   - an audit trail of attribute writes
//   - a WebSocket hub broadcasting attribute and state changes
//   - middleware (request ID, logging, recovery, CORS, body limit, auth)
//
// # Architecture
//
// The server never owns the device. It asks a DeviceProvider for the
// current one on every request, so a definition reload is picked up
// without restarting the listener. The Hub is a facade.Publisher and is
// attached to the device like the MQTT publisher.
//
// # Authentication
//
// With api.auth enabled every endpoint but /health needs a bearer token
// issued by package auth. Viewers read; operators also write. WebSocket
// clients may pass the token as ?token=.
//
// # Endpoints
//
//	GET  /api/v1/health
//	GET  /api/v1/device
//	GET  /api/v1/device/info
//	GET  /api/v1/attributes
//	GET  /api/v1/attributes/{name}
//	PUT  /api/v1/attributes/{name}          {"value": ...}
//	GET  /api/v1/attributes/{name}/inputs
//	GET  /api/v1/attributes/{name}/history  ?limit=50&since=1h
//	GET  /api/v1/audit                      ?attribute=&limit=&offset=
//	GET  /api/v1/ws
package api
