package mqtt

import "errors"

// Errors returned by the client. Callers match them with errors.Is.
var (
	// ErrNotConnected means the broker session is down.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed wraps a failed initial connect.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed wraps a publish the broker did not acknowledge.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps a subscribe or unsubscribe the broker refused.
	ErrSubscribeFailed = errors.New("mqtt: subscription failed")

	// ErrInvalidQoS is a QoS above 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level")

	// ErrInvalidTopic is an empty or malformed topic name or filter.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrPayloadTooLarge is a payload over maxPayloadSize.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")
)
