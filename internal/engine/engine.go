package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/rcp-core/internal/device"
	"github.com/nerrad567/rcp-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/rcp-core/internal/rcp"
)

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests; *mqtt.Client satisfies it.
type MQTTClient interface {
	Publisher

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// Unsubscribe removes a subscription.
	Unsubscribe(topic string) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Dispatcher accepts routed commands. *device.Registry satisfies it.
type Dispatcher interface {
	Dispatch(target string, cmd rcp.Command) error
}

// Logger defines the logging interface used by the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer is told about every inbound message, for metrics.
type Observer interface {
	// MessageRouted is called for a message that reached a device.
	MessageRouted(command string)
	// MessageDropped is called for a message that did not; reason is one of
	// the Reason constants.
	MessageDropped(reason string)
}

type noopObserver struct{}

func (noopObserver) MessageRouted(string)  {}
func (noopObserver) MessageDropped(string) {}

// Reasons reported to Observer.MessageDropped.
const (
	ReasonInvalidTopic  = "invalid_topic"
	ReasonUnsupported   = "unsupported_command"
	ReasonMalformed     = "malformed_payload"
	ReasonUnknownTarget = "unknown_device"
	ReasonStopped       = "actor_stopped"
)

// Engine routes inbound MQTT commands to device actors.
type Engine struct {
	client   MQTTClient
	router   *rcp.Router
	devices  Dispatcher
	qos      byte
	logger   Logger
	observer Observer

	mu      sync.Mutex
	started bool
}

// New creates an engine. Call Start to subscribe.
func New(client MQTTClient, router *rcp.Router, devices Dispatcher, qos byte) *Engine {
	return &Engine{
		client:   client,
		router:   router,
		devices:  devices,
		qos:      qos,
		logger:   noopLogger{},
		observer: noopObserver{},
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	e.logger = logger
}

// SetObserver sets the routing observer for the engine.
func (e *Engine) SetObserver(observer Observer) {
	if observer == nil {
		observer = noopObserver{}
	}
	e.observer = observer
}

// Start subscribes to the command topics of every device in the namespace.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}

	topic := e.router.Topics().AllCommands()
	if err := e.client.Subscribe(topic, e.qos, e.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	e.started = true

	e.logger.Info("engine subscribed", "topic", topic)
	return nil
}

// Stop removes the command subscription.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return ErrNotStarted
	}
	e.started = false

	topic := e.router.Topics().AllCommands()
	if err := e.client.Unsubscribe(topic); err != nil {
		return fmt.Errorf("unsubscribing from %s: %w", topic, err)
	}
	return nil
}

// HandleMessage routes one inbound message. Routing problems are logged
// and counted; they never reach the broker client as errors.
func (e *Engine) HandleMessage(topic string, payload []byte) error {
	env, err := e.router.Route(topic, payload)
	if err != nil {
		reason := dropReason(err)
		e.observer.MessageDropped(reason)
		e.logger.Warn("command rejected by router",
			"topic", topic,
			"reason", reason,
			"error", err,
		)
		return nil
	}

	e.dispatch(env.Target, env.Command)
	return nil
}

// Submit decodes a command the same way MQTT commands are decoded and
// dispatches it. It is used by the HTTP API.
func (e *Engine) Submit(target, name string, payload []byte) error {
	cmd, err := e.router.Decode(name, payload)
	if err != nil {
		e.observer.MessageDropped(dropReason(err))
		return err
	}
	return e.devices.Dispatch(target, cmd)
}

func (e *Engine) dispatch(target string, cmd rcp.Command) {
	err := e.devices.Dispatch(target, cmd)
	switch {
	case err == nil:
		e.observer.MessageRouted(cmd.Name())
	case errors.Is(err, device.ErrDeviceNotFound):
		// Several engines may share a namespace; another one owns this device.
		e.observer.MessageDropped(ReasonUnknownTarget)
		e.logger.Debug("command for unknown device", "target", target, "command", cmd.Name())
	default:
		e.observer.MessageDropped(ReasonStopped)
		e.logger.Warn("command dispatch failed",
			"target", target,
			"command", cmd.Name(),
			"error", err,
		)
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, rcp.ErrInvalidTopic):
		return ReasonInvalidTopic
	case errors.Is(err, rcp.ErrMalformedPayload):
		return ReasonMalformed
	case errors.Is(err, device.ErrDeviceNotFound):
		return ReasonUnknownTarget
	default:
		return ReasonUnsupported
	}
}
