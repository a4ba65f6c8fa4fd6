package messaging

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"nodefleet/config"
	"nodefleet/log"
)

// Publisher delivers one message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

type Client struct {
	mu     sync.RWMutex
	cfg    *config.MessagingConfig
	writer *kafka.Writer
	log    zerolog.Logger
}

func NewClient(cfg *config.MessagingConfig) *Client {
	return &Client{cfg: cfg, log: log.WithComponent("messaging")}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	// Verify at least one broker is reachable
	var conn *kafka.Conn
	var connErr error
	for _, broker := range c.cfg.Kafka.Brokers {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		conn, connErr = kafka.DialContext(dialCtx, "tcp", broker)
		cancel()
		if connErr == nil {
			c.log.Info().Str("broker", broker).Msg("kafka connected")
			break
		}
	}
	if connErr != nil {
		return fmt.Errorf("kafka connect: %w", connErr)
	}

	c.ensureTopics(conn, c.cfg.OperationsTopic)
	conn.Close()

	c.writer = &kafka.Writer{
		Addr:         kafka.TCP(c.cfg.Kafka.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return nil
}

// Publish writes payload to topic. Messages with the same key land on the
// same partition, so one node's events stay ordered.
func (c *Client) Publish(ctx context.Context, topic, key string, payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.writer == nil {
		return fmt.Errorf("kafka not connected")
	}
	msg := kafka.Message{Topic: topic, Value: payload}
	if key != "" {
		msg.Key = []byte(key)
	}
	return c.writer.WriteMessages(ctx, msg)
}

// ensureTopics creates Kafka topics if they don't already exist.
// Errors are logged but not fatal since the broker may have
// auto.create.topics.enable=true anyway.
func (c *Client) ensureTopics(conn *kafka.Conn, topics ...string) {
	if len(topics) == 0 {
		return
	}

	controller, err := conn.Controller()
	if err != nil {
		c.log.Warn().Err(err).Msg("cannot find controller for topic creation")
		return
	}

	controllerAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	controllerConn, err := kafka.Dial("tcp", controllerAddr)
	if err != nil {
		c.log.Warn().Err(err).Msg("cannot connect to controller")
		return
	}
	defer controllerConn.Close()

	configs := make([]kafka.TopicConfig, len(topics))
	for i, t := range topics {
		configs[i] = kafka.TopicConfig{
			Topic:             t,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}

	if err := controllerConn.CreateTopics(configs...); err != nil {
		c.log.Warn().Err(err).Msg("topic auto-create")
	} else {
		c.log.Info().Strs("topics", topics).Msg("ensured topics exist")
	}
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.writer != nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writer != nil {
		if err := c.writer.Close(); err != nil {
			c.log.Warn().Err(err).Msg("close kafka writer")
		}
		c.writer = nil
	}
}
