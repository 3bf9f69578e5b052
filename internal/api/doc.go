// Package api implements the local HTTP API for Ghost Gateway.
//
// This package provides:
//   - REST endpoints for arming, disarming and panic
//   - Sensor registry inspection and pruning
//   - Boot mode inspection and changes
//   - Pairing (link-code) management
//   - Middleware stack (request ID, logging, recovery, body limits)
//
// # Architecture
//
// The API server binds to the local interface only; it is the
// installer's and on-site panel's view of the gateway. Remote control
// arrives over the realtime channel instead and both paths converge on
// the security controller, which owns all state decisions.
//
// # Graceful Degradation
//
// The server operates without the cloud client — pairing endpoints
// return 503 but local control keeps working. This matches the
// gateway's offline-first design.
package api
