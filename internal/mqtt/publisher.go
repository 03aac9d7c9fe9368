package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"meters-poller/internal/config"
	"meters-poller/internal/errors"
	"meters-poller/internal/logger"
	"meters-poller/internal/meter"
)

// Status payloads
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Publisher publishes meter records, availability, diagnostics and discovery
type Publisher struct {
	client   paho.Client
	settings config.MQTTSettings
	ha       config.HASettings
	topics   Topics
	broker   string
	listener func(online bool)
}

// NewPublisher creates a publisher with a paho client configured from settings
func NewPublisher(settings config.MQTTSettings, ha config.HASettings) (*Publisher, error) {
	scheme := "tcp"
	if settings.TLS.Enabled {
		scheme = "ssl"
	}
	broker := fmt.Sprintf("%s://%s:%d", scheme, settings.Host, settings.Port)

	p := &Publisher{
		settings: settings,
		ha:       ha,
		topics:   NewTopics(settings.BaseTopic, settings.TopicStyle, ha.DiscoveryPrefix),
		broker:   broker,
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID(settings.ClientID))
	if settings.Username != "" {
		opts.SetUsername(settings.Username)
		opts.SetPassword(settings.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	keepAlive := settings.KeepAlive
	if keepAlive == 0 {
		keepAlive = 60 * time.Second
	}
	opts.SetKeepAlive(keepAlive)
	opts.SetPingTimeout(10 * time.Second)

	if settings.TLS.Enabled {
		tlsConfig, err := NewTLSConfig(settings.TLS)
		if err != nil {
			return nil, errors.NewMQTTError("tls setup", err, broker)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	// Last will marks the poller offline if the connection drops
	opts.SetWill(p.topics.Status(), StatusOffline, settings.QoS, true)

	opts.SetOnConnectHandler(func(client paho.Client) {
		logger.LogInfo("Connected to MQTT broker %s", broker)
		p.notify(true)
		token := client.Publish(p.topics.Status(), settings.QoS, true, StatusOnline)
		if token.Wait() && token.Error() != nil {
			logger.LogWarn("Error publishing online status on connect: %v", token.Error())
		}
	})

	opts.SetConnectionLostHandler(func(client paho.Client, err error) {
		logger.LogError("MQTT connection lost: %v", err)
		p.notify(false)
	})

	p.client = paho.NewClient(opts)
	return p, nil
}

// NewPublisherWithClient wraps an existing client (used by tests)
func NewPublisherWithClient(client paho.Client, settings config.MQTTSettings, ha config.HASettings) *Publisher {
	return &Publisher{
		client:   client,
		settings: settings,
		ha:       ha,
		topics:   NewTopics(settings.BaseTopic, settings.TopicStyle, ha.DiscoveryPrefix),
		broker:   fmt.Sprintf("%s:%d", settings.Host, settings.Port),
	}
}

func clientID(configured string) string {
	if configured != "" {
		return configured
	}
	return "meters-poller-" + uuid.NewString()[:8]
}

// NewTLSConfig builds the broker TLS configuration. Empty paths use system defaults.
func NewTLSConfig(cfg config.TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		// #nosec G402 - opt-in for brokers with self-signed certificates
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.CACerts != "" {
		pem, err := os.ReadFile(cfg.CACerts)
		if err != nil {
			return nil, fmt.Errorf("read ca_certs: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CACerts)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.CertFile != "" || cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// SetConnectionListener registers fn for broker connect and connection-lost events.
// Call it before Connect.
func (p *Publisher) SetConnectionListener(fn func(online bool)) {
	p.listener = fn
}

func (p *Publisher) notify(online bool) {
	if p.listener != nil {
		p.listener(online)
	}
}

// Topics returns the publisher's topic builder
func (p *Publisher) Topics() Topics {
	return p.topics
}

// Connect connects to the broker, retrying until ctx is cancelled
func (p *Publisher) Connect(ctx context.Context) error {
	retryDelay := p.settings.RetryDelay
	if retryDelay == 0 {
		retryDelay = 5 * time.Second
	}

	attempt := 1
	for {
		logger.LogDebug("🔄 Attempting to connect to MQTT broker %s (attempt %d)...", p.broker, attempt)

		token := p.client.Connect()
		if token.Wait() && token.Error() == nil {
			logger.LogInfo("✅ Connected to MQTT broker after %d attempts", attempt)
			return nil
		}

		logger.LogError("❌ MQTT connection failed (attempt %d): %v", attempt, token.Error())
		logger.LogInfo("⏳ Retrying in %.0f seconds...", retryDelay.Seconds())

		select {
		case <-ctx.Done():
			return errors.NewMQTTError("connect", ctx.Err(), p.broker)
		case <-time.After(retryDelay):
			attempt++
		}
	}
}

// Disconnect disconnects from the broker
func (p *Publisher) Disconnect() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

// IsConnected reports the client connection state
func (p *Publisher) IsConnected() bool {
	return p.client.IsConnected()
}

func (p *Publisher) publish(ctx context.Context, topic string, retain bool, payload interface{}) error {
	if ctx.Err() != nil {
		err := errors.NewMQTTError("publish", ctx.Err(), p.broker)
		err.Topic = topic
		return err
	}
	if !p.client.IsConnected() {
		err := errors.NewMQTTError("publish", fmt.Errorf("client is not connected"), p.broker)
		err.Topic = topic
		return err
	}

	token := p.client.Publish(topic, p.settings.QoS, retain, payload)
	select {
	case <-ctx.Done():
		err := errors.NewMQTTError("publish", ctx.Err(), p.broker)
		err.Topic = topic
		return err
	case <-token.Done():
		if token.Error() != nil {
			err := errors.NewMQTTError("publish", token.Error(), p.broker)
			err.Topic = topic
			return err
		}
	}
	return nil
}

// PublishRecord publishes one device's measurements under its topic key
func (p *Publisher) PublishRecord(ctx context.Context, rec meter.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("error serializing record for device %d: %w", rec.DeviceID, err)
	}
	topic := p.topics.State(TopicKey(rec.Name, rec.DeviceID))

	logger.LogDebug("📤 Publishing device %d → %s", rec.DeviceID, topic)
	return p.publish(ctx, topic, p.settings.Retain, payload)
}

// PublishStatusOnline publishes the retained "online" status
func (p *Publisher) PublishStatusOnline(ctx context.Context) error {
	return p.publish(ctx, p.topics.Status(), true, StatusOnline)
}

// PublishStatusOffline publishes the retained "offline" status
func (p *Publisher) PublishStatusOffline(ctx context.Context) error {
	return p.publish(ctx, p.topics.Status(), true, StatusOffline)
}

// PublishDiagnostic publishes diagnostic information with code and message
func (p *Publisher) PublishDiagnostic(ctx context.Context, code int, message string) error {
	diagnostic := map[string]interface{}{
		"code":      code,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(diagnostic)
	if err != nil {
		return fmt.Errorf("error marshaling diagnostic: %w", err)
	}

	logger.LogDebug("🔧 Publishing diagnostic [%d] %s", code, message)
	return p.publish(ctx, p.topics.Diagnostic(), false, payload)
}

// PublishDiscovery announces every sensor of every device to Home Assistant.
// It does nothing when discovery is disabled. Failures are logged and the rest still go out.
func (p *Publisher) PublishDiscovery(ctx context.Context, devices []config.Device) error {
	if !p.ha.Enabled {
		return nil
	}

	var failed int
	for _, d := range devices {
		for _, msg := range BuildDiscovery(p.topics, p.ha.Area, d) {
			payload, err := json.Marshal(msg.Payload)
			if err != nil {
				return fmt.Errorf("error serializing discovery for %s: %w", msg.Payload.UniqueID, err)
			}
			if err := p.publish(ctx, msg.Topic, p.settings.Retain, payload); err != nil {
				logger.LogError("❌ Error publishing discovery for %s: %v", msg.Payload.UniqueID, err)
				failed++
			}
		}
	}

	if failed > 0 {
		return errors.NewMQTTError("publish discovery", fmt.Errorf("%d discovery messages failed", failed), p.broker)
	}
	logger.LogInfo("📡 Published Home Assistant discovery for %d devices", len(devices))
	return nil
}
