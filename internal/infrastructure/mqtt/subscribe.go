package mqtt

import "fmt"

// Subscribe routes messages matching filter to handler. The engine uses one
// filter for the whole command namespace, e.g. "xflow/rcp/v1/+/cmd/+".
//
// The subscription is remembered only once the broker accepts it, and is
// replayed after every reconnect.
func (c *Client) Subscribe(filter string, qos byte, handler MessageHandler) error {
	if err := checkTopicFilter(filter); err != nil {
		return err
	}
	if qos > maxQoS {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, filter)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := await(c.client.Subscribe(filter, qos, c.wrapHandler(handler)), defaultPublishTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, filter, err)
	}

	c.subMu.Lock()
	c.subscriptions[filter] = subscription{topic: filter, qos: qos, handler: handler}
	c.subMu.Unlock()
	return nil
}

// Unsubscribe drops filter. It is forgotten locally even if the broker call
// fails, so a reconnect does not bring it back.
func (c *Client) Unsubscribe(filter string) error {
	if err := checkTopicFilter(filter); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	delete(c.subscriptions, filter)
	c.subMu.Unlock()

	if err := await(c.client.Unsubscribe(filter), defaultPublishTimeout); err != nil {
		return fmt.Errorf("%w: unsubscribe %s: %w", ErrSubscribeFailed, filter, err)
	}
	return nil
}

// SubscriptionCount reports how many filters are replayed on reconnect.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription reports whether filter, compared as an exact string, is held.
func (c *Client) HasSubscription(filter string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[filter]
	return ok
}
