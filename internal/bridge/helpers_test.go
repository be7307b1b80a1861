package bridge

import (
	"errors"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/mqtt"
)

// fakeClient records MQTT traffic and lets tests inject messages.
type fakeClient struct {
	mu         sync.Mutex
	handlers   map[string]mqtt.MessageHandler
	published  []message
	unsubs     []string
	publishErr error
	subErr     error
}

type message struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (c *fakeClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, message{topic: topic, payload: payload, qos: qos, retained: retained})
	return nil
}

func (c *fakeClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subErr != nil {
		return c.subErr
	}
	c.handlers[topic] = handler
	return nil
}

func (c *fakeClient) Unsubscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, topic)
	c.unsubs = append(c.unsubs, topic)
	return nil
}

// deliver routes a message like a broker would, honouring the # wildcard.
func (c *fakeClient) deliver(topic string, payload string) error {
	c.mu.Lock()
	var matched []mqtt.MessageHandler
	for pattern, h := range c.handlers {
		if pattern == topic || (strings.HasSuffix(pattern, "/#") && strings.HasPrefix(topic, strings.TrimSuffix(pattern, "#"))) {
			matched = append(matched, h)
		}
	}
	c.mu.Unlock()
	var errs []error
	for _, h := range matched {
		errs = append(errs, h(topic, []byte(payload)))
	}
	return errors.Join(errs...)
}

func (c *fakeClient) subscribedTo(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[topic]
	return ok
}

func (c *fakeClient) messages() []message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message(nil), c.published...)
}
