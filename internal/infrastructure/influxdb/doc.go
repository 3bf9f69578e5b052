// Package influxdb provides the time-series telemetry sink for Ghost Gateway.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring. The sink
// is optional: when disabled in config the gateway runs without it.
//
// # Purpose
//
// This package records histories the relational store does not keep:
//   - Per-sensor readings (signal strength, battery level, open state)
//   - Security state transitions (armed/alarm periods)
//   - Gateway counters (dropped frames, decode errors)
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "ghostgw",
//	    Bucket:  "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg, "GW-1A2B3C4D")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteSensorReading(msg)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback set with SetOnError. Connection and health check errors are
// returned directly.
package influxdb
