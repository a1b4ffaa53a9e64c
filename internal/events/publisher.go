// Package events relays committed automation events from the outbox to the
// configured message bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"drayage-tms/internal/config"
	"drayage-tms/internal/domain/event"
	"drayage-tms/internal/logger"
	pkgmqtt "drayage-tms/pkg/mqtt"

	"github.com/go-redis/redis/v8"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

//go:generate mockgen -source=publisher.go -destination=mocks/publisher_mock.go -package=mocks

// Publisher delivers one event to the bus. Delivery is at-least-once, so
// consumers dedupe on the event id.
type Publisher interface {
	Publish(ctx context.Context, e event.Event) error
	Close() error
}

func encode(e event.Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", e.ID, err)
	}
	return b, nil
}

// LogPublisher writes events to the structured log. It is the default when
// no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{log: logger.Named("events")}
}

func (p *LogPublisher) Publish(_ context.Context, e event.Event) error {
	p.log.Info("Automation event",
		zap.String("event_id", e.ID.String()),
		zap.String("entity_type", string(e.EntityType)),
		zap.String("entity_id", e.EntityID.String()),
		zap.String("action", string(e.Action)),
		zap.String("new_status", e.NewStatus),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// MQTTPublisher publishes on <topic>/<entity_type>.
type MQTTPublisher struct {
	client *pkgmqtt.Client
	topic  string
	qos    byte
}

func NewMQTTPublisher(client *pkgmqtt.Client, topic string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, qos: qos}
}

func (p *MQTTPublisher) Publish(_ context.Context, e event.Event) error {
	b, err := encode(e)
	if err != nil {
		return err
	}
	topic := p.topic + "/" + strings.ToLower(string(e.EntityType))
	if err := p.client.Publish(topic, p.qos, false, b); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", topic, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect()
	return nil
}

// Writer is the subset of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher keys messages by entity id so one entity's events stay on
// one partition and keep their order.
type KafkaPublisher struct {
	writer Writer
}

func NewKafkaPublisher(brokerURL, topic string) *KafkaPublisher {
	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:     kafka.TCP(brokerURL),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	})
}

func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e event.Event) error {
	b, err := encode(e)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(e.EntityID.String()),
		Value: b,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.ID.String())},
			{Key: "entity_type", Value: []byte(e.EntityType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// RedisPublisher fans events out on a pub/sub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(ctx context.Context, redisURL, channel string) (*RedisPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisPublisher{rdb: rdb, channel: channel}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, e event.Event) error {
	b, err := encode(e)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

// RabbitMQPublisher sends persistent messages to a durable queue.
type RabbitMQPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewRabbitMQPublisher(url, queue string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return &RabbitMQPublisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, e event.Event) error {
	b, err := encode(e)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID.String(),
		Timestamp:    e.OccurredAt,
		Body:         b,
	})
}

func (p *RabbitMQPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}

// NewPublisher builds the publisher named by EVENTS_BROKER.
func NewPublisher(ctx context.Context, cfg *config.Config) (Publisher, error) {
	ec := cfg.Events
	switch strings.ToLower(ec.Broker) {
	case "", "log":
		return NewLogPublisher(), nil
	case "mqtt":
		if cfg.MQTT.Broker == "" {
			return nil, fmt.Errorf("events broker mqtt requires MQTT_BROKER")
		}
		mc := pkgmqtt.DefaultConfig(cfg.MQTT.Broker, cfg.MQTT.ClientID+"-relay", cfg.MQTT.Username, cfg.MQTT.Password)
		client := pkgmqtt.NewClient(mc)
		if err := client.Connect(); err != nil {
			return nil, err
		}
		return NewMQTTPublisher(client, ec.Topic, byte(cfg.MQTT.QoS)), nil
	case "kafka":
		if ec.KafkaBroker == "" {
			return nil, fmt.Errorf("events broker kafka requires KAFKA_BROKER")
		}
		return NewKafkaPublisher(ec.KafkaBroker, ec.Topic), nil
	case "redis":
		if ec.RedisURL == "" {
			return nil, fmt.Errorf("events broker redis requires REDIS_URL")
		}
		return NewRedisPublisher(ctx, ec.RedisURL, ec.Topic)
	case "rabbitmq":
		if ec.RabbitMQURL == "" {
			return nil, fmt.Errorf("events broker rabbitmq requires RABBITMQ_URL")
		}
		return NewRabbitMQPublisher(ec.RabbitMQURL, ec.Topic)
	default:
		return nil, fmt.Errorf("unknown events broker %q", ec.Broker)
	}
}
