package montage

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ObservationHandler is called for each decoded fiducial pose message
type ObservationHandler func(id int, position Vec3, orientation Quat)

// ViewerHandler is called for each decoded viewer (headset) pose message
type ViewerHandler func(position Vec3)

// fiducialPayload is the wire format published by the tracking rig
type fiducialPayload struct {
	ID          int  `json:"id"`
	Position    Vec3 `json:"position"`
	Orientation Quat `json:"orientation"`
}

// viewerPayload is the wire format for the viewer pose stream
type viewerPayload struct {
	Position Vec3 `json:"position"`
}

// MQTTClient manages the MQTT connection and subscriptions for the fiducial
// and viewer pose streams
type MQTTClient struct {
	client             mqtt.Client
	config             *Config
	observationHandler ObservationHandler
	viewerHandler      ViewerHandler
	isConnected        bool
	mu                 sync.RWMutex
}

// InitMQTT builds the MQTT client from the provided configuration and starts
// the background connect loop. If neither MQTT_BROKER nor config.MQTT.Broker
// is set, MQTT is disabled and this returns nil
func InitMQTT(config *Config, observations ObservationHandler, viewer ViewerHandler) (*MQTTClient, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil && config.MQTT.Broker != "" {
		broker = config.MQTT.Broker
	}

	if broker == "" {
		log.Println("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}

	client := &MQTTClient{
		config:             config,
		observationHandler: observations,
		viewerHandler:      viewer,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" && config.MQTT.ClientID != "" {
		clientID = config.MQTT.ClientID
	}
	if clientID == "" {
		clientID = "capmesh"
	}
	opts.SetClientID(clientID)

	username := os.Getenv("MQTT_USERNAME")
	if username == "" && config.MQTT.Username != "" {
		username = config.MQTT.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" && config.MQTT.Password != "" {
			password = config.MQTT.Password
		}
		opts.SetPassword(password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false) // Preserve subscriptions on reconnect
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(client.onReconnecting)

	client.client = mqtt.NewClient(opts)

	// Connect asynchronously with retry
	go client.connectWithRetry()

	return client, nil
}

// connectWithRetry attempts to connect to the MQTT broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("Connecting to MQTT broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("Successfully connected to MQTT broker")
				c.setConnected(true)
				return
			}
			log.Printf("MQTT connection failed: %v", token.Error())
		} else {
			log.Println("MQTT connection timeout")
		}

		log.Printf("Retrying MQTT connection in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect is called when the MQTT connection is established
func (c *MQTTClient) onConnect(client mqtt.Client) {
	log.Println("MQTT connected, subscribing to pose topics...")
	c.setConnected(true)

	if topic := c.config.MQTT.FiducialTopic; topic != "" {
		log.Printf("Subscribing to %s for fiducial poses", topic)
		token := client.Subscribe(topic, 0, c.handleFiducialMessage)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("Error subscribing to %s: %v", topic, token.Error())
		} else {
			log.Printf("Successfully subscribed to %s", topic)
		}
	}

	if topic := c.config.MQTT.ViewerTopic; topic != "" {
		log.Printf("Subscribing to %s for viewer pose", topic)
		token := client.Subscribe(topic, 0, c.handleViewerMessage)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("Error subscribing to %s: %v", topic, token.Error())
		} else {
			log.Printf("Successfully subscribed to %s", topic)
		}
	}
}

// onConnectionLost is called when the MQTT connection is lost
// Auto-reconnect is enabled, so this is typically a transient event
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("MQTT connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

// onReconnecting is called when the client attempts to reconnect
func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("MQTT reconnecting...")
}

// handleFiducialMessage decodes a fiducial pose message and forwards it to
// the observation handler. The marker id comes from the payload; when the
// payload omits it the trailing topic segment is used instead.
func (c *MQTTClient) handleFiducialMessage(client mqtt.Client, msg mqtt.Message) {
	payload := msg.Payload()

	var fiducial fiducialPayload
	if err := json.Unmarshal(payload, &fiducial); err != nil {
		log.Printf("Error decoding fiducial payload on %s: %v", msg.Topic(), err)
		return
	}

	if fiducial.ID == 0 {
		if id, ok := idFromTopic(msg.Topic()); ok {
			fiducial.ID = id
		} else {
			log.Printf("Fiducial message on %s carries no marker id, skipping", msg.Topic())
			return
		}
	}

	if c.observationHandler != nil {
		c.observationHandler(fiducial.ID, fiducial.Position, fiducial.Orientation)
	}
}

// handleViewerMessage decodes a viewer pose message
func (c *MQTTClient) handleViewerMessage(client mqtt.Client, msg mqtt.Message) {
	var viewer viewerPayload
	if err := json.Unmarshal(msg.Payload(), &viewer); err != nil {
		log.Printf("Error decoding viewer payload on %s: %v", msg.Topic(), err)
		return
	}

	if c.viewerHandler != nil {
		c.viewerHandler(viewer.Position)
	}
}

// idFromTopic parses the trailing topic segment as a marker id.
// Example: "capmesh/fiducial/3" -> 3
func idFromTopic(topic string) (int, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) == 0 {
		return 0, false
	}
	id, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

// setConnected updates the connection status
func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("Disconnecting from MQTT broker...")
		c.client.Disconnect(250) // 250ms quiesce time
		c.setConnected(false)
	}
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock creates an MQTTClient with a provided mqtt.Client
// This is used for testing with mock clients
func newMQTTClientWithMock(client mqtt.Client, config *Config, observations ObservationHandler, viewer ViewerHandler) *MQTTClient {
	return &MQTTClient{
		client:             client,
		config:             config,
		observationHandler: observations,
		viewerHandler:      viewer,
	}
}
