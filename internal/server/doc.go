// Package server is the HTTP layer of the document gateway.
//
// Handlers validate request shape, call one to three backing gateways in a
// fixed order, record Prometheus metrics and shape the JSON response. The
// gateways are injected through the interfaces in ports.go, so nothing here
// touches a driver directly.
//
// Middleware order, outermost first: request id, access log and metrics,
// security headers, CORS, gzip, router.
package server
