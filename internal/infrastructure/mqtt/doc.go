// Package mqtt provides MQTT client connectivity for the RCP engine.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Supervisory controllers and the engine never talk directly. Commands and
// status snapshots travel through the broker:
//
//	Controller ↔ MQTT Broker ↔ RCP engine (one actor per device)
//
// Topic layout lives in package rcp; this package is topic-agnostic apart
// from the presence topic handed to Connect.
//
// # Message Ordering
//
// Incoming messages are delivered to handlers one at a time in arrival
// order. Handlers must not block; the engine's handler only routes and
// queues.
//
// # Security Considerations
//
//   - TLS should be enabled outside the lab (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	topics := rcp.NewTopics(cfg.Protocol.Prefix, cfg.Protocol.ID, cfg.Protocol.Version)
//	client, err := mqtt.Connect(cfg.MQTT, topics.EngineState())
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        return engine.HandleMessage(topic, payload)
//	    })
package mqtt
