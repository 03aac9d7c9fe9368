package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload string
}

// fakeClient records publishes instead of talking to a broker
type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	connectErrs  []error // consumed one per Connect call
	publishErr   map[string]error
	messages     []published
	connectCalls int
}

func newFakeClient() *fakeClient {
	return &fakeClient{connected: true, publishErr: map[string]error{}}
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *fakeClient) Connect() paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectCalls++
	if len(c.connectErrs) > 0 {
		err := c.connectErrs[0]
		c.connectErrs = c.connectErrs[1:]
		if err != nil {
			return newFakeToken(err)
		}
	}
	c.connected = true
	return newFakeToken(nil)
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.publishErr[topic]; err != nil {
		return newFakeToken(err)
	}
	var body string
	switch v := payload.(type) {
	case string:
		body = v
	case []byte:
		body = string(v)
	default:
		body = fmt.Sprint(v)
	}
	c.messages = append(c.messages, published{topic: topic, qos: qos, retain: retained, payload: body})
	return newFakeToken(nil)
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	return newFakeToken(nil)
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token {
	return newFakeToken(nil)
}

func (c *fakeClient) Unsubscribe(topics ...string) paho.Token {
	return newFakeToken(nil)
}

func (c *fakeClient) AddRoute(topic string, callback paho.MessageHandler) {}

func (c *fakeClient) OptionsReader() paho.ClientOptionsReader {
	return paho.ClientOptionsReader{}
}

func (c *fakeClient) last() published {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return published{}
	}
	return c.messages[len(c.messages)-1]
}
