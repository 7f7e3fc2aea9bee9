// Package device runs one actor per automation device.
//
// An Actor owns a device's rcp.Status and is its only writer. Commands
// arrive from any goroutine through Submit and are applied one at a time in
// arrival order by the actor goroutine:
//
//	Submit ──▶ inbox (FIFO) ──▶ Authorize ──▶ class behavior ──▶ emit
//	                                                              │
//	                              ┌───────────────────────────────┤
//	                              ▼                               ▼
//	                     Publisher (per device)            Broadcaster
//	                     single-flight drain               (history, cache,
//	                     ──▶ Transport                      metrics, websocket)
//
// Authorize implements sequence reconciliation: stale task commands
// (RefSeq != EventSeq), outdated syncs and task commands outside Auto mode
// are dropped without a trace on the wire.
//
// Timed operations (pause, resume, abort, motion) emit a transitional state
// at once and a settled state after a delay. Each runs under its own
// cancellation scope; InjectFault cancels it and overtakes queued work.
//
// # Usage
//
//	reg := device.NewRegistry(transport, device.DefaultOptions())
//	reg.SetLogger(log)
//
//	if _, err := reg.Create(device.Spec{ID: "robot-1", Class: device.ClassProcessor}); err != nil {
//	    return err
//	}
//	_ = reg.Dispatch("robot-1", rcp.ModeChange{Target: rcp.ModeAuto})
//
//	defer reg.Shutdown(ctx)
//
// # Thread Safety
//
// Registry, Actor, Publisher and Broadcaster are safe for concurrent use.
package device
