package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/ghost-gateway/internal/message"
)

// WriteSensorReading records one decoded sensor frame.
//
// This is the primary telemetry path: every frame that reaches the
// controller also lands here, giving a per-sensor history of signal
// strength, battery level and reported action. The write is
// non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - msg: the decoded sensor message
//
// Example:
//
//	client.WriteSensorReading(msg) // after message.Decode
func (c *Client) WriteSensorReading(msg message.Message) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"rssi": msg.RSSI,
	}
	if msg.Payload.Value > 0 {
		fields["battery_pct"] = msg.Payload.Value
	}
	if msg.Payload.Type == message.TypeSensorEvent {
		fields["open"] = msg.Payload.Action == message.ActionOpen
	}

	point := write.NewPoint(
		"sensor_readings",
		map[string]string{
			"gateway_id":  c.gatewayID,
			"device_id":   msg.Header.SourceID,
			"device_type": msg.Header.SourceType.Name(),
			"msg_type":    msg.Payload.Type.Name(),
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteStateTransition records a security state change.
//
// Used for plotting armed/alarm periods against sensor activity.
//
// Parameters:
//   - previous: state before the transition
//   - current: state after the transition
func (c *Client) WriteStateTransition(previous, current message.SystemState) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"state_transitions",
		map[string]string{
			"gateway_id": c.gatewayID,
			"from":       previous.Name(),
			"to":         current.Name(),
		},
		map[string]interface{}{
			"from_code": int(previous),
			"to_code":   int(current),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteGatewayStats records gateway-level counters.
//
// Called periodically so the counters become rates in queries.
//
// Parameters:
//   - droppedFrames: frames discarded by the transport bridge
//   - decodeErrors: frames that failed envelope decoding
//   - droppedMessages: messages rejected by the controller queue
func (c *Client) WriteGatewayStats(droppedFrames, decodeErrors, droppedMessages uint64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"gateway_stats",
		map[string]string{
			"gateway_id": c.gatewayID,
		},
		map[string]interface{}{
			"dropped_frames":   int64(droppedFrames),   // #nosec G115 -- counters never approach int64 range
			"decode_errors":    int64(decodeErrors),    // #nosec G115
			"dropped_messages": int64(droppedMessages), // #nosec G115
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods. The
// gateway_id tag is added automatically.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g. journalled data
// flushed after an outage).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	merged := map[string]string{"gateway_id": c.gatewayID}
	for k, v := range tags {
		merged[k] = v
	}

	point := write.NewPoint(measurement, merged, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
