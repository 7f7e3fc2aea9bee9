// Package engine connects the device registry to the MQTT broker.
//
// Inbound, it subscribes to every command topic of the configured namespace,
// turns each message into a command with rcp.Router and hands it to the
// registry. Inbound traffic never blocks on device work: Dispatch only
// queues.
//
// Outbound, StatusTransport implements device.Transport: it encodes each
// snapshot as JSON and publishes it on the device's status topic.
//
//	broker ──cmd──▶ Engine.HandleMessage ──▶ Router ──▶ Registry.Dispatch
//	broker ◀─status── StatusTransport ◀── device.Publisher
package engine
