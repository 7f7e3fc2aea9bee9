// Package telemetry hosts the output-port sinks of the engine.
//
// Each sink consumes its own broadcaster subscription, so a slow sink only
// loses its own snapshots:
//
//	InfluxSink   status points in InfluxDB (device_status measurement)
//	StatusCache  last status per device in Redis
//	Metrics      Prometheus counters fed by the device and engine observers
//
// Sinks never feed anything back into a device actor.
package telemetry
