package ingestion

import (
	"errors"
	"fmt"
	"sync"

	"drayage-tms/internal/logger"
	"drayage-tms/internal/usecase/automation"
	pkgmqtt "drayage-tms/pkg/mqtt"

	"go.uber.org/zap"
)

// MQTTIngestionConfig describes the topics and MQTT connection parameters.
type MQTTIngestionConfig struct {
	ClientConfig *pkgmqtt.Config
	OrderTopic   string
	TripTopic    string
	GateTopic    string
	QoS          byte
}

// MQTTIngestionClient wires MQTT messages into the ingestion processor.
type MQTTIngestionClient struct {
	cfg       *MQTTIngestionConfig
	client    *pkgmqtt.Client
	processor *Processor

	mu            sync.Mutex
	started       bool
	subscriptions []string
}

func NewMQTTIngestionClient(cfg *MQTTIngestionConfig, processor *Processor) (*MQTTIngestionClient, error) {
	if cfg == nil || cfg.ClientConfig == nil {
		return nil, errors.New("mqtt ingestion config is not configured")
	}
	if processor == nil {
		return nil, errors.New("processor is required")
	}

	return &MQTTIngestionClient{
		cfg:       cfg,
		client:    pkgmqtt.NewClient(cfg.ClientConfig),
		processor: processor,
	}, nil
}

// Start establishes the MQTT connection and subscribes to the topics.
func (c *MQTTIngestionClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	type subscription struct {
		topic   string
		handler pkgmqtt.MessageHandler
	}

	var subs []subscription
	if c.cfg.OrderTopic != "" {
		subs = append(subs, subscription{topic: c.cfg.OrderTopic, handler: c.HandleOrderMessage})
	}
	if c.cfg.TripTopic != "" {
		subs = append(subs, subscription{topic: c.cfg.TripTopic, handler: c.HandleTripMessage})
	}
	if c.cfg.GateTopic != "" {
		subs = append(subs, subscription{topic: c.cfg.GateTopic, handler: c.HandleGateMessage})
	}

	if len(subs) == 0 {
		c.client.Disconnect()
		return errors.New("no MQTT topics configured for ingestion")
	}

	for _, sub := range subs {
		if err := c.client.Subscribe(sub.topic, c.cfg.QoS, sub.handler); err != nil {
			c.client.Disconnect()
			return fmt.Errorf("subscribe failed for topic %s: %w", sub.topic, err)
		}
		c.subscriptions = append(c.subscriptions, sub.topic)
	}

	c.started = true
	return nil
}

// Stop unsubscribes and disconnects from the broker.
func (c *MQTTIngestionClient) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return
	}

	if len(c.subscriptions) > 0 {
		if err := c.client.Unsubscribe(c.subscriptions...); err != nil {
			logger.Warn("Failed to unsubscribe from MQTT topics", zap.Error(err))
		}
	}

	c.client.Disconnect()
	c.started = false
	c.subscriptions = nil
}

func (c *MQTTIngestionClient) HandleOrderMessage(topic string, payload []byte) {
	msg, err := ParseOrderMessage(payload)
	if err == nil {
		err = ValidateOrderMessage(msg)
	}
	c.submit(topic, err, func() automation.MutationEvent { return msg.ToMutation() })
}

func (c *MQTTIngestionClient) HandleTripMessage(topic string, payload []byte) {
	msg, err := ParseTripMessage(payload)
	if err == nil {
		err = ValidateTripMessage(msg)
	}
	c.submit(topic, err, func() automation.MutationEvent { return msg.ToMutation() })
}

func (c *MQTTIngestionClient) HandleGateMessage(topic string, payload []byte) {
	msg, err := ParseGateMessage(payload)
	if err == nil {
		err = ValidateGateMessage(msg)
	}
	c.submit(topic, err, func() automation.MutationEvent { return msg.ToMutation() })
}

func (c *MQTTIngestionClient) submit(topic string, err error, build func() automation.MutationEvent) {
	if err != nil {
		c.processor.Reject(topic, err)
		return
	}
	// Drops are logged and counted by the processor.
	_ = c.processor.Submit(build())
}
