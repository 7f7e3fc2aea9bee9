package rcp

import (
	"fmt"
	"strings"
)

// Topic namespace defaults.
const (
	DefaultPrefix   = "xflow"
	DefaultProtocol = "rcp"
	DefaultVersion  = "v1"

	// BroadcastID addresses every device.
	BroadcastID = "*"

	// Wildcard is the MQTT single-level wildcard.
	Wildcard = "+"

	TypeStatus = "status"
	TypeCmd    = "cmd"
)

// Topics builds and parses topics in one protocol namespace:
//
//	{prefix}/{protocol}/{version}/{targetId}/status
//	{prefix}/{protocol}/{version}/{targetId}/cmd/{commandName}
type Topics struct {
	Prefix   string
	Protocol string
	Version  string
}

// NewTopics fills empty segments with the defaults.
func NewTopics(prefix, protocol, version string) Topics {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if protocol == "" {
		protocol = DefaultProtocol
	}
	if version == "" {
		version = DefaultVersion
	}
	return Topics{Prefix: prefix, Protocol: protocol, Version: version}
}

func (t Topics) base() string {
	return t.Prefix + "/" + t.Protocol + "/" + t.Version
}

// =============================================================================
// Builders
// =============================================================================

// Status returns the status topic of a device.
func (t Topics) Status(targetID string) string {
	return t.base() + "/" + targetID + "/" + TypeStatus
}

// Command returns the topic a command is sent on.
func (t Topics) Command(targetID, name string) string {
	return t.base() + "/" + targetID + "/" + TypeCmd + "/" + name
}

// AllCommands matches every command for every target, broadcast included.
func (t Topics) AllCommands() string {
	return t.Command(Wildcard, Wildcard)
}

// Commands matches every command for one target.
func (t Topics) Commands(targetID string) string {
	return t.Command(targetID, Wildcard)
}

// AllStatus matches the status topic of every device.
func (t Topics) AllStatus() string {
	return t.Status(Wildcard)
}

// EngineState is where the engine announces itself online or offline
// (retained, also used as the MQTT last will).
func (t Topics) EngineState() string {
	return t.base() + "/$engine/state"
}

// =============================================================================
// Parsing
// =============================================================================

// Address is a parsed topic.
type Address struct {
	Target string
	Type   string // TypeStatus or TypeCmd
	Name   string // command name; empty for status topics
}

// Parse splits a topic in this namespace into its address. It checks shape
// only; unknown message types are left to the router.
func (t Topics) Parse(topic string) (Address, error) {
	rest, ok := strings.CutPrefix(topic, t.base()+"/")
	if !ok {
		return Address{}, fmt.Errorf("%w: %q is outside %s", ErrInvalidTopic, topic, t.base())
	}

	parts := strings.Split(rest, "/")
	for _, p := range parts {
		if p == "" {
			return Address{}, fmt.Errorf("%w: empty segment in %q", ErrInvalidTopic, topic)
		}
	}

	switch len(parts) {
	case 2:
		return Address{Target: parts[0], Type: parts[1]}, nil
	case 3:
		return Address{Target: parts[0], Type: parts[1], Name: parts[2]}, nil
	default:
		return Address{}, fmt.Errorf("%w: unexpected segment count in %q", ErrInvalidTopic, topic)
	}
}
