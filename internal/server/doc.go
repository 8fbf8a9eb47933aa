// Package server implements the HTTP and WebSocket transport of the relay.
//
// The implementation is organized into specialized files for configuration,
// connection tracking (Hub), per-connection pumps (Client), origin checks,
// rate limiting, routing and HTTP handlers. Protocol decisions are delegated
// to the presence package.
package server
