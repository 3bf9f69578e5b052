// Package message defines the typed messages that flow through the gateway's
// single controller queue, and the wire envelope used by wireless sensors.
//
// Every producer (transport bridge, command router, local API) builds a
// Message value and hands it to the controller by value — messages are never
// referenced by the producer after enqueue, so no locking is needed on the
// message itself.
//
// The wire envelope is a small JSON document:
//
//	{
//	  "header":  {"ver": 1, "src_id": "SENSOR_01", "src_type": "SEC_SENSOR"},
//	  "payload": {"type": "EVENT", "action": "OPEN", "battery": 87}
//	}
//
// Unknown enum strings in the envelope are ignored field-by-field (the field
// keeps its zero value); only structurally invalid JSON is a decode error.
package message
