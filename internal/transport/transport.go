// Package transport is the pubsub adapter over the IPFS daemon API. All topic
// subscriptions drain into a single receive queue so the router observes one
// total order; per-topic order is preserved by the per-subscription readers.
package transport

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"swarmpool/internal/utils"

	shell "github.com/ipfs/go-ipfs-api"
	"go.uber.org/zap"
)

type Message struct {
	Topic string
	Data  []byte
}

type Transport struct {
	sh  *shell.Shell
	log *zap.SugaredLogger

	mu     sync.Mutex
	subs   []*shell.PubSubSubscription
	queue  chan *Message
	closed chan struct{}
	once   sync.Once
}

func New(apiAddr string, log *zap.SugaredLogger) *Transport {
	return &Transport{
		sh:     shell.NewShell(apiAddr),
		log:    log,
		queue:  make(chan *Message, 1024),
		closed: make(chan struct{}),
	}
}

// Subscribe starts a reader per topic. Messages land on the shared queue in
// arrival order within each topic.
func (t *Transport) Subscribe(topics ...string) error {
	for _, topic := range topics {
		sub, err := t.sh.PubSubSubscribe(topic)
		if err != nil {
			return utils.Wrap("failed subscribing to topic", err)
		}
		t.mu.Lock()
		t.subs = append(t.subs, sub)
		t.mu.Unlock()
		go t.drain(topic, sub)
	}
	return nil
}

func (t *Transport) drain(topic string, sub *shell.PubSubSubscription) {
	for {
		msg, err := sub.Next()
		if err != nil {
			select {
			case <-t.closed:
				return
			default:
			}
			t.log.Warnw("transport read error", "topic", topic, "error", err)
			time.Sleep(1 * time.Second)
			continue
		}
		select {
		case t.queue <- &Message{Topic: topic, Data: msg.Data}:
		case <-t.closed:
			return
		}
	}
}

// GetMessage dequeues the next message, or returns nil after timeout.
func (t *Transport) GetMessage(timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-t.queue:
		return msg, nil
	case <-timer.C:
		return nil, nil
	case <-t.closed:
		return nil, utils.Wrap("transport closed")
	}
}

// Publish serializes payload as JSON and publishes it on topic.
func (t *Transport) Publish(topic string, payload any) error {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return utils.Wrap("failed encoding message", err)
	}
	if err := t.sh.PubSubPublish(topic, buf.String()); err != nil {
		return utils.Wrap("failed publishing message", err)
	}
	return nil
}

func (t *Transport) Close() {
	t.once.Do(func() {
		close(t.closed)
		t.mu.Lock()
		defer t.mu.Unlock()
		for _, sub := range t.subs {
			_ = sub.Cancel()
		}
	})
}
