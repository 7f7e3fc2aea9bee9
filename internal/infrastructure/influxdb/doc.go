// Package influxdb wraps influxdb-client-go v2 for status telemetry.
//
// Points are written through the non-blocking batched write API, so a slow
// or absent server never holds up a device actor. Write failures are
// reported asynchronously to the SetOnError callback.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePoint("device_status", tags, fields)
package influxdb
