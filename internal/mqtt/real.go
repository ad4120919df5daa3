package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/sweeney/gaslog-controller/internal/logic"
)

var (
	errConnectTimeout = errors.New("connection timeout")
	errPublishTimeout = errors.New("publish timeout")
)

// Options configures a RealPublisher.
type Options struct {
	Broker    string
	Username  string
	Password  string
	BufferLen int

	// OnCommand receives parsed messages from the command topics. It runs
	// on a paho goroutine.
	OnCommand func(Command)
}

// ClientID returns a unique client id so a restarted daemon never collides
// with its own stale session.
func ClientID() string {
	return "gaslog-controller-" + uuid.NewString()[:8]
}

// RealPublisher publishes to an actual MQTT broker. Messages sent while the
// broker is unreachable are buffered and replayed after (re)connection.
type RealPublisher struct {
	client  paho.Client
	breaker *gobreaker.CircuitBreaker
	cancel  context.CancelFunc
	done    chan struct{}

	onCommand func(Command)

	mu   sync.Mutex
	buf  *ringBuffer
	last map[string]string // last payload per state topic
}

// NewRealPublisher starts connecting to the broker in the background and
// returns immediately.
func NewRealPublisher(o Options) *RealPublisher {
	p := &RealPublisher{
		onCommand: o.OnCommand,
		buf:       newRingBuffer(o.BufferLen),
		last:      make(map[string]string),
		done:      make(chan struct{}),
	}

	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "mqtt-publish",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("mqtt: breaker %s %s -> %s", name, from, to)
		},
	})

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(ClientID()).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(time.Minute).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})
	p.client = paho.NewClient(opts)

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.connect(ctx, o.Broker)
	return p
}

// connect retries the initial connection with exponential backoff. Paho
// handles reconnection after the first success.
func (p *RealPublisher) connect(ctx context.Context, broker string) {
	defer close(p.done)

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		token := p.client.Connect()
		if !token.WaitTimeout(10 * time.Second) {
			return errConnectTimeout
		}
		return token.Error()
	}, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		log.Printf("mqtt: connect to %s failed: %v (retry in %v)", broker, err, next.Round(time.Second))
	})
	if err != nil {
		log.Printf("mqtt: gave up connecting: %v", err)
	}
}

func (p *RealPublisher) onConnect(c paho.Client) {
	log.Printf("mqtt: connected")
	for _, topic := range []string{TopicSetMode, TopicSetSetpoint} {
		token := c.Subscribe(topic, 1, p.handleMessage)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("mqtt: subscribe %s: %v", topic, token.Error())
		}
	}
	go p.replay()
}

func (p *RealPublisher) handleMessage(_ paho.Client, m paho.Message) {
	cmd, ok := ParseCommand(m.Topic(), m.Payload())
	if !ok {
		log.Printf("mqtt: ignoring %q on %s", m.Payload(), m.Topic())
		return
	}
	log.Printf("mqtt: command %s=%s", cmd.Kind, cmd.Value)
	if p.onCommand != nil {
		p.onCommand(cmd)
	}
}

func (p *RealPublisher) replay() {
	p.mu.Lock()
	msgs, dropped := p.buf.drainAll()
	p.mu.Unlock()
	if len(msgs) == 0 {
		return
	}
	log.Printf("mqtt: replaying %d buffered messages (%d dropped)", len(msgs), dropped)
	for _, m := range msgs {
		if err := p.send(m); err != nil {
			log.Printf("mqtt: replay: %v", err)
		}
	}
}

// send publishes m through the circuit breaker, buffering it on failure.
func (p *RealPublisher) send(m Message) error {
	if !p.client.IsConnectionOpen() {
		p.enqueue(m)
		return nil
	}
	_, err := p.breaker.Execute(func() (interface{}, error) {
		token := p.client.Publish(m.Topic, m.QoS, m.Retained, m.Payload)
		if !token.WaitTimeout(5 * time.Second) {
			return nil, errPublishTimeout
		}
		return nil, token.Error()
	})
	if err != nil {
		p.enqueue(m)
		return fmt.Errorf("publish %s: %w", m.Topic, err)
	}
	return nil
}

func (p *RealPublisher) enqueue(m Message) {
	p.mu.Lock()
	p.buf.push(m)
	p.mu.Unlock()
}

// PublishState sends the state topics whose value changed since the last call.
func (p *RealPublisher) PublishState(s State) error {
	var errs []error
	for _, m := range StateMessages(s) {
		p.mu.Lock()
		unchanged := p.last[m.Topic] == string(m.Payload)
		p.last[m.Topic] = string(m.Payload)
		p.mu.Unlock()
		if unchanged {
			continue
		}
		if err := p.send(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishStatus sends a notice to the status topic.
func (p *RealPublisher) PublishStatus(n logic.Notice) error {
	return p.send(StatusMessage(n))
}

// PublishSystem sends a system lifecycle event with QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(Message{Topic: TopicSystem, Payload: payload, QoS: 1, Retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close stops connection attempts and disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.cancel()
	<-p.done
	p.client.Disconnect(1000)
	return nil
}
