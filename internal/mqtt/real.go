package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/garage-opener/internal/notify"
)

// Defaults for Options.
const (
	DefaultClientID   = "garage-opener"
	DefaultBufferSize = 64
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Prefix     string
	BufferSize int // messages kept while disconnected

	// OnCommand, if set, subscribes to the command topic and is called
	// from the MQTT client goroutine for every recognised command.
	OnCommand func(Command)
}

// RealPublisher publishes to an actual MQTT broker.
// Messages published while the connection is down are queued and replayed
// on reconnect.
type RealPublisher struct {
	client    paho.Client
	topics    Topics
	onCommand func(Command)

	mu        sync.Mutex
	queue     *offlineQueue
	replaying bool // live messages queue behind the replay while set
}

// NewRealPublisher creates a publisher for the given broker. An unreachable
// broker is not an error: the client keeps retrying in the background.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	if opts.ClientID == "" {
		opts.ClientID = DefaultClientID
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	p := newPublisher(opts)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "CONNECTION_LOST",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(p.topics.System, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(co)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", opts.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func newPublisher(opts Options) *RealPublisher {
	return &RealPublisher{
		topics:    TopicsFor(opts.Prefix),
		onCommand: opts.OnCommand,
		queue:     newOfflineQueue(opts.BufferSize),
	}
}

func (p *RealPublisher) onConnect(c paho.Client) {
	log.Printf("mqtt: connected")

	if p.onCommand != nil {
		t := c.Subscribe(p.topics.Command, 1, p.handleCommand)
		if t.WaitTimeout(publishTimeout) && t.Error() != nil {
			log.Printf("mqtt: subscribe %s: %v", p.topics.Command, t.Error())
		}
	}

	// Drain until empty; anything published meanwhile is queued behind
	// the replay so the broker sees messages in publish order.
	for {
		p.mu.Lock()
		msgs := p.queue.drain()
		p.replaying = len(msgs) > 0
		p.mu.Unlock()

		if len(msgs) == 0 {
			return
		}
		log.Printf("mqtt: replaying %d queued messages", len(msgs))
		for _, m := range msgs {
			if err := p.send(m); err != nil {
				log.Printf("mqtt: replay to %s: %v", m.topic, err)
			}
		}
	}
}

func (p *RealPublisher) handleCommand(_ paho.Client, msg paho.Message) {
	cmd, err := ParseCommand(msg.Payload())
	if err != nil {
		log.Printf("mqtt: ignoring message on %s: %v", msg.Topic(), err)
		return
	}
	p.onCommand(cmd)
}

// publish sends the message, or queues it if the connection is down or
// older messages are still waiting to be replayed.
func (p *RealPublisher) publish(m queuedMsg) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() || p.replaying || p.queue.len() > 0 {
		p.queue.push(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.send(m)
}

func (p *RealPublisher) send(m queuedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Publish sends a state change (retained) or an alert to the broker.
func (p *RealPublisher) Publish(event notify.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	m := queuedMsg{topic: p.topics.State, payload: payload, qos: 1, retained: true}
	if event.IsAlert() {
		m.topic, m.retained = p.topics.Alert, false
	}
	return p.publish(m)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) - lifecycle events should not be lost
	return p.publish(queuedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Queued returns the number of messages waiting for a connection.
func (p *RealPublisher) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
