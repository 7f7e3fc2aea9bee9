// Package api provides the supervisory HTTP surface of the RCP engine.
//
// It exposes read access to device status and history, operator triggers
// that have no MQTT command (fault injection, fault clearing, completing a
// job), the same command table the MQTT router accepts, Prometheus metrics,
// and a WebSocket stream of status snapshots.
//
// The server follows the same lifecycle pattern as the infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Operator endpoints require a bearer JWT when security.jwt.secret is set.
package api
