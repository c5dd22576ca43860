package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/larsks/gpiocdev/internal/cdev"
)

const DefaultTopicPrefix = "gpiocdev"

// publisher is the subset of mqtt.Client used here.
type publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Client publishes GPIO line events to an MQTT broker
type Client struct {
	client      publisher
	topicPrefix string
}

// Config holds MQTT client configuration
type Config struct {
	ServerURL         string        `mapstructure:"server-url"`
	ClientID          string        `mapstructure:"client-id"`
	TopicPrefix       string        `mapstructure:"topic-prefix"`
	MaxRetries        int           `mapstructure:"max-retries"` // 0 = retry forever
	InitialRetryDelay time.Duration `mapstructure:"initial-retry-delay"`
	MaxRetryDelay     time.Duration `mapstructure:"max-retry-delay"`
}

// LineEvent is the JSON payload published for each edge
type LineEvent struct {
	Chip        string `json:"chip"`
	Offset      uint32 `json:"offset"`
	Edge        string `json:"edge"`
	TimestampNS int64  `json:"timestamp_ns"`
	Time        string `json:"time"`
}

// NewClient creates a new MQTT client with the given configuration.
// The client connects asynchronously and retries with exponential backoff
// if the initial connection fails.
func NewClient(config Config) (*Client, error) {
	parsedURL, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServerURL, err)
	}

	if parsedURL.Scheme != "mqtt" {
		return nil, fmt.Errorf("%w: %s must use mqtt:// scheme", ErrInvalidServerURL, config.ServerURL)
	}

	initialDelay := config.InitialRetryDelay
	if initialDelay == 0 {
		initialDelay = time.Second
	}
	maxDelay := config.MaxRetryDelay
	if maxDelay == 0 {
		maxDelay = 30 * time.Second
	}

	// paho expects tcp:// rather than mqtt://
	broker := "tcp://" + parsedURL.Host

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(config.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(maxDelay)
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("mqtt connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Printf("connected to mqtt broker at %s", config.ServerURL)
	})

	client := mqtt.NewClient(opts)

	go func() {
		delay := initialDelay
		for attempt := 1; ; attempt++ {
			token := client.Connect()
			if token.Wait() && token.Error() == nil {
				return
			}

			if config.MaxRetries > 0 && attempt >= config.MaxRetries {
				log.Printf("failed to connect to mqtt broker after %d attempts, giving up: %v", attempt, token.Error())
				return
			}

			log.Printf("failed to connect to mqtt broker (attempt %d): %v; retrying in %v", attempt, token.Error(), delay)
			time.Sleep(delay)

			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		}
	}()

	return newClient(client, config.TopicPrefix), nil
}

func newClient(p publisher, topicPrefix string) *Client {
	if topicPrefix == "" {
		topicPrefix = DefaultTopicPrefix
	}
	return &Client{client: p, topicPrefix: strings.TrimSuffix(topicPrefix, "/")}
}

// Publish publishes a message to the specified topic
func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	if c.client == nil || !c.client.IsConnected() {
		return ErrNotConnected
	}

	if token := c.client.Publish(topic, qos, retained, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("%w: %v", ErrPublish, token.Error())
	}

	return nil
}

// EventTopic returns the topic for an edge on a line, e.g.
// "gpiocdev/gpiochip0/17/rising".
func (c *Client) EventTopic(chipPath string, offset uint32, edge string) string {
	return strings.Join([]string{c.topicPrefix, path.Base(chipPath), strconv.FormatUint(uint64(offset), 10), edge}, "/")
}

// NewLineEvent builds the payload for ev observed on chipPath at now.
func NewLineEvent(chipPath string, ev cdev.LineEvent, now time.Time) LineEvent {
	return LineEvent{
		Chip:        path.Base(chipPath),
		Offset:      ev.Offset,
		Edge:        ev.Type.String(),
		TimestampNS: ev.Timestamp.Nanoseconds(),
		Time:        now.Format(time.RFC3339Nano),
	}
}

// PublishLineEvent publishes ev to its event topic
func (c *Client) PublishLineEvent(chipPath string, ev cdev.LineEvent) error {
	payload, err := json.Marshal(NewLineEvent(chipPath, ev, time.Now()))
	if err != nil {
		return fmt.Errorf("failed to marshal event to JSON: %w", err)
	}

	return c.Publish(c.EventTopic(chipPath, ev.Offset, ev.Type.String()), 0, false, payload)
}

// IsConnected returns true if the client is connected to the MQTT broker
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Disconnect disconnects from the MQTT broker
func (c *Client) Disconnect(quiesce uint) {
	if c.IsConnected() {
		c.client.Disconnect(quiesce)
		log.Printf("disconnected from mqtt broker")
	}
}
