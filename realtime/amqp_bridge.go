package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-booking/utils"
)

var ErrBridgeDisconnected = errors.New("realtime: broker not connected")

// Envelope is one emit relayed between server processes.
type Envelope struct {
	ID     string          `json:"id"`
	Origin string          `json:"origin"`
	Room   string          `json:"room"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// AMQPBridge emits locally and republishes every emit on a fanout exchange so
// that clients connected to other processes receive it too. Envelopes coming
// back from the broker with this node's origin are ignored.
type AMQPBridge struct {
	local    Broadcaster
	url      string
	exchange string
	NodeID   string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewAMQPBridge(local Broadcaster, url, exchange string) *AMQPBridge {
	return &AMQPBridge{
		local:    local,
		url:      url,
		exchange: exchange,
		NodeID:   uuid.NewString(),
	}
}

// EmitToRoom delivers locally first; a publish failure is returned but local
// clients have already been served.
func (b *AMQPBridge) EmitToRoom(room, event string, payload interface{}) error {
	localErr := b.local.EmitToRoom(room, event, payload)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	body, err := json.Marshal(Envelope{
		ID:     uuid.NewString(),
		Origin: b.NodeID,
		Room:   room,
		Event:  event,
		Data:   data,
	})
	if err != nil {
		return err
	}

	b.mu.Lock()
	ch := b.ch
	b.mu.Unlock()
	if ch == nil {
		return errors.Join(localErr, ErrBridgeDisconnected)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pubErr := ch.PublishWithContext(ctx, b.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now().UTC(),
		Body:        body,
	})
	return errors.Join(localErr, pubErr)
}

// Run keeps a consumer attached to the exchange until ctx is cancelled,
// reconnecting with backoff.
func (b *AMQPBridge) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(b.url)
		if err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{"error": err, "retry_in": backoff}).Warn("realtime-bridge: dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := b.consume(ctx, conn); err != nil {
			utils.ErrorLogger.WithField("error", err).Warn("realtime-bridge: consume loop ended; reconnecting")
		}
		b.setChannel(nil)
		_ = conn.Close()
	}
}

func (b *AMQPBridge) setChannel(ch *amqp.Channel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ch = ch
}

func (b *AMQPBridge) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.ExchangeDeclare(b.exchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", b.exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	b.setChannel(ch)
	utils.InfoLogger.WithField("node", b.NodeID).Info("realtime-bridge: connected")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := b.HandleDelivery(d.Body); err != nil {
				utils.ErrorLogger.WithField("error", err).Warn("realtime-bridge: dropping delivery")
			}
		}
	}
}

// HandleDelivery relays an envelope from another node to local clients.
func (b *AMQPBridge) HandleDelivery(body []byte) error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if env.Origin == b.NodeID {
		return nil
	}
	if env.Room == "" || env.Event == "" {
		return errors.New("envelope missing room or event")
	}
	return b.local.EmitToRoom(env.Room, env.Event, env.Data)
}
