package mqtt

import (
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps a single message. Status snapshots are a few hundred
// bytes; anything near this is a bug upstream.
const maxPayloadSize = 1 << 20

// maxTopicLength is the MQTT limit on an encoded topic string.
const maxTopicLength = 65535

// Publish sends payload on topic and waits for the broker to acknowledge it.
//
// Device status goes out retained at the configured QoS so a controller that
// subscribes late still sees the latest snapshot of every device:
//
//	topic := rcp.NewTopics("xflow", "rcp", "v1").Status("robot-1")
//	err := client.Publish(topic, payload, 1, true)
//
// A topic name must not contain the + or # wildcards.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkTopicName(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes on %s, limit %d", ErrPayloadTooLarge, len(payload), topic, maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := await(c.client.Publish(topic, qos, retained, payload), defaultPublishTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// await waits for a paho token.
func await(token pahomqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("no acknowledgement after %v", timeout)
	}
	return token.Error()
}

// checkTopicName validates a topic a message is published on.
func checkTopicName(topic string) error {
	if err := checkTopic(topic); err != nil {
		return err
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcard in topic name %q", ErrInvalidTopic, topic)
	}
	return nil
}

// checkTopicFilter validates a subscription filter. + must fill a whole
// level and # must be the last level.
func checkTopicFilter(filter string) error {
	if err := checkTopic(filter); err != nil {
		return err
	}
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case level == "#" && i != len(levels)-1:
			return fmt.Errorf("%w: # before the last level in %q", ErrInvalidTopic, filter)
		case level != "+" && level != "#" && strings.ContainsAny(level, "+#"):
			return fmt.Errorf("%w: wildcard inside level %q of %q", ErrInvalidTopic, level, filter)
		}
	}
	return nil
}

func checkTopic(topic string) error {
	switch {
	case topic == "":
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	case len(topic) > maxTopicLength:
		return fmt.Errorf("%w: %d bytes", ErrInvalidTopic, len(topic))
	case strings.ContainsRune(topic, 0):
		return fmt.Errorf("%w: NUL in %q", ErrInvalidTopic, topic)
	}
	return nil
}
