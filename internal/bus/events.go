// Package bus publishes and subscribes to connection-lifecycle events
// (opened/closed, with the peer address and an optional close cause, plus
// a server's announcement of its own listen address) over NSQ, so an
// operator can watch czrpc connection churn across a fleet of server
// processes without instrumenting every handler. Grounded on the
// teacher's infra/nsq client.
package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/phuhao00/czrpc/config"
)

// EventKind distinguishes the published events: opened/closed for each
// served connection, and announced once when a server starts listening.
type EventKind string

const (
	EventOpened    EventKind = "opened"
	EventClosed    EventKind = "closed"
	EventAnnounced EventKind = "announced"
)

// ConnectionEvent is the JSON body published for every lifecycle
// transition.
type ConnectionEvent struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"session_id"`
	Peer      string    `json:"peer"`
	Cause     string    `json:"cause,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher publishes ConnectionEvents to one NSQ topic.
type Publisher struct {
	producer *nsq.Producer
	topic    string
}

// NewPublisher dials nsqd the way the teacher's nsqx.NewProducer does,
// narrowed to a single nsqd address (the sample server has no need for
// the teacher's NSQDAddresses failover list).
func NewPublisher(cfg config.NSQConfig) (*Publisher, error) {
	if cfg.NSQDAddr == "" {
		return nil, fmt.Errorf("bus: nsqd_addr is not configured")
	}
	p, err := nsq.NewProducer(cfg.NSQDAddr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("bus: new nsq producer: %w", err)
	}
	topic := cfg.Topic
	if topic == "" {
		topic = "czrpc.connection_events"
	}
	return &Publisher{producer: p, topic: topic}, nil
}

// Publish serializes and publishes one ConnectionEvent.
func (p *Publisher) Publish(ev ConnectionEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("bus: marshal connection event: %w", err)
	}
	if err := p.producer.Publish(p.topic, body); err != nil {
		return fmt.Errorf("bus: publish connection event: %w", err)
	}
	return nil
}

// Stop releases the underlying nsqd connection.
func (p *Publisher) Stop() {
	p.producer.Stop()
}

// EventHandler is called for every ConnectionEvent a Subscriber
// delivers.
type EventHandler func(ConnectionEvent)

// subscriberHandler adapts an EventHandler to nsq.Handler.
type subscriberHandler struct {
	handle EventHandler
}

func (h *subscriberHandler) HandleMessage(m *nsq.Message) error {
	var ev ConnectionEvent
	if err := json.Unmarshal(m.Body, &ev); err != nil {
		return fmt.Errorf("bus: unmarshal connection event: %w", err)
	}
	h.handle(ev)
	return nil
}

// Subscriber consumes ConnectionEvents published by one or more
// Publishers sharing the same topic/channel.
type Subscriber struct {
	consumer *nsq.Consumer
}

// NewSubscriber creates a consumer for cfg.Topic/channel and connects it
// to nsqd directly or via nsqlookupd, whichever cfg provides — mirroring
// the teacher's nsqx.NewConsumer plus its two Connect* variants.
func NewSubscriber(cfg config.NSQConfig, channel string, handle EventHandler) (*Subscriber, error) {
	topic := cfg.Topic
	if topic == "" {
		topic = "czrpc.connection_events"
	}
	c, err := nsq.NewConsumer(topic, channel, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("bus: new nsq consumer: %w", err)
	}
	c.AddHandler(&subscriberHandler{handle: handle})

	switch {
	case cfg.NSQLookupdHTTPAddress != "":
		if err := c.ConnectToNSQLookupd(cfg.NSQLookupdHTTPAddress); err != nil {
			return nil, fmt.Errorf("bus: connect to nsqlookupd: %w", err)
		}
	case cfg.NSQDAddr != "":
		if err := c.ConnectToNSQD(cfg.NSQDAddr); err != nil {
			return nil, fmt.Errorf("bus: connect to nsqd: %w", err)
		}
	default:
		return nil, fmt.Errorf("bus: neither nsqd_addr nor nsqlookupd_http_address configured")
	}
	return &Subscriber{consumer: c}, nil
}

// Stop disconnects the consumer.
func (s *Subscriber) Stop() {
	s.consumer.Stop()
}
