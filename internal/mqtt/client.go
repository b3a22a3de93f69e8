package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/prite36/farm-monitor/internal/config"
	"github.com/prite36/farm-monitor/internal/models"
)

const (
	actionWatered = "watered"
	actionProblem = "problem"

	publishTimeout = 5 * time.Second
	handleTimeout  = 10 * time.Second
)

// Commands is the part of the plant registry that field devices can drive.
type Commands interface {
	Water(ctx context.Context, id string) (bool, error)
	SetProblem(ctx context.Context, id string, problem bool) (bool, error)
}

// Client listens for device reports about plants and publishes committed plant events.
type Client struct {
	client   mqtt.Client
	prefix   string
	commands Commands
}

// NewClient creates and connects a new MQTT Client.
func NewClient(cfg config.MQTTConfig, commands Commands) (*Client, error) {
	c := &Client{
		prefix:   strings.TrimSuffix(cfg.TopicPrefix, "/"),
		commands: commands,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	// Handlers publish the resulting events, which must not block the router goroutine.
	opts.SetOrderMatters(false)
	opts.SetDefaultPublishHandler(c.messageHandler)
	opts.OnConnect = c.connectHandler
	opts.OnConnectionLost = c.connectionLostHandler

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(func() error {
		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("[WARN] Failed to connect to MQTT broker: %v", token.Error())
			return token.Error()
		}
		c.client = client
		return nil
	}, backoff.WithMaxRetries(bo, 4))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return c, nil
}

// connectHandler subscribes on every (re)connection so subscriptions survive broker restarts.
func (c *Client) connectHandler(client mqtt.Client) {
	log.Println("Connected to MQTT broker")
	topics := map[string]byte{
		fmt.Sprintf("%s/plants/+/%s", c.prefix, actionWatered): 1,
		fmt.Sprintf("%s/plants/+/%s", c.prefix, actionProblem): 1,
	}
	if token := client.SubscribeMultiple(topics, c.messageHandler); token.Wait() && token.Error() != nil {
		log.Printf("[ERROR] Failed to subscribe to plant topics: %v", token.Error())
		return
	}
	log.Printf("Subscribed to plant topics under %s/plants", c.prefix)
}

func (c *Client) connectionLostHandler(client mqtt.Client, err error) {
	log.Printf("Connection to MQTT broker lost: %v", err)
}

func (c *Client) messageHandler(client mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	c.handle(ctx, msg.Topic(), msg.Payload())
}

func (c *Client) handle(ctx context.Context, topic string, payload []byte) {
	log.Printf("Received message: '%s' from topic: %s", payload, topic)

	id, action, ok := parseTopic(c.prefix, topic)
	if !ok {
		log.Printf("Ignoring message from unexpected topic: %s", topic)
		return
	}

	var (
		found bool
		err   error
	)
	switch action {
	case actionWatered:
		found, err = c.commands.Water(ctx, id)
	case actionProblem:
		problem, perr := strconv.ParseBool(strings.TrimSpace(string(payload)))
		if perr != nil {
			log.Printf("[WARN] Ignoring problem report for plant %s with payload %q", id, payload)
			return
		}
		found, err = c.commands.SetProblem(ctx, id, problem)
	default:
		log.Printf("No handler for topic: %s", topic)
		return
	}

	if err != nil {
		log.Printf("[ERROR] Failed to apply %s report for plant %s: %v", action, id, err)
	}
	if !found {
		log.Printf("[WARN] Device reported %s for unknown plant %s", action, id)
	}
}

// parseTopic splits "<prefix>/plants/<id>/<action>".
func parseTopic(prefix, topic string) (id, action string, ok bool) {
	rest, found := strings.CutPrefix(topic, prefix+"/plants/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func eventTopic(prefix string, typ models.EventType) string {
	return fmt.Sprintf("%s/events/%s", prefix, typ)
}

// Observe publishes a committed event as JSON.
func (c *Client) Observe(ctx context.Context, entry models.EventEntry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		log.Printf("[ERROR] Failed to encode event %d: %v", entry.Seq, err)
		return
	}
	topic := eventTopic(c.prefix, entry.Type)
	token := c.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Printf("[WARN] Timeout publishing to topic %s", topic)
		return
	}
	if token.Error() != nil {
		log.Printf("[ERROR] Error publishing to topic %s: %v", topic, token.Error())
	}
}

// Close disconnects the MQTT client.
func (c *Client) Close() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}
