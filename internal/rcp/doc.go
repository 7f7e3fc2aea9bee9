// Package rcp defines the robot control protocol spoken between a
// supervisory controller and the devices it drives.
//
// It contains the wire model only: the Status record, the closed set of
// Command variants, the topic layout and the Router that turns a transport
// envelope into a typed command. Nothing here touches device state.
//
// # Topics
//
//	{prefix}/{protocol}/{version}/{targetId}/status
//	{prefix}/{protocol}/{version}/{targetId}/cmd/{commandName}
//
// The target "*" addresses every device.
//
// # Payloads
//
// JSON with camelCase fields, enums as strings and absent optional fields
// omitted. Command payloads are checked against the schemas embedded from
// schemas/ before decoding; a failure yields ErrMalformedPayload.
//
// # Usage
//
//	router, err := rcp.NewRouter(rcp.NewTopics("", "", ""))
//	env, err := router.Route("xflow/rcp/v1/robot-2/cmd/start", []byte(`{"refSeq":1,"jobId":"J1"}`))
//	// env.Target == "robot-2", env.Command == rcp.Start{...}
package rcp
