// Package telemetry feeds runtime data into the time-series sink.
//
// It sits beside the main processing path rather than inside it: a Tap
// decorates the controller queue so every accepted sensor message is also
// recorded, a Recorder observes state transitions, and a Reporter samples
// gateway counters on a timer. All writes go through the influxdb package
// and are non-blocking; telemetry never delays or fails security
// processing.
//
// When the sink is disabled the components are simply not constructed and
// the rest of the gateway is unaffected.
package telemetry
