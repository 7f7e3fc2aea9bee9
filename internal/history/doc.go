// Package history keeps an audit log of published device status.
//
// Every snapshot a device emits is appended to the status_history table by
// a Recorder subscribed to the registry's broadcaster. The log answers
// "what did robot-1 report in the last hour" for operators; it is never
// read back into a device actor.
package history
