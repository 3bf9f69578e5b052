// Package transport adapts the sensor radio network onto an MQTT broker.
//
// The gateway treats the radio as an opaque frame transport: a receive
// callback for inbound frames and a send primitive for downlink broadcasts.
// In this deployment the radio head end bridges frames onto MQTT, so the
// adapter is a thin client over eclipse/paho with:
//
//   - automatic reconnection and subscription restore
//   - a Last Will so the head end can detect a dead gateway
//   - topic helpers encoding gateway id, frame source, and signal strength
//
// Topic layout:
//
//	ghost/{gateway_id}/frames/{source}/{rssi}   inbound sensor frames
//	ghost/{gateway_id}/downlink                 gateway-to-sensor broadcast
//	ghost/{gateway_id}/status                   online/offline (retained + LWT)
//
// Frame handlers receive the already-unwrapped raw frame bytes; decoding is
// the bridge package's job.
package transport
