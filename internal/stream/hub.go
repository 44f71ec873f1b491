// Package stream pushes freshly created posts to websocket subscribers of
// their author.
package stream

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"backend-yatube/internal/blog"
)

const (
	channelPrefix  = "posts:"
	channelSuffix  = ":created"
	channelPattern = channelPrefix + "*" + channelSuffix
)

// Notification is the message sent to subscribers when a post is created.
type Notification struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	cancel  context.CancelFunc
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	Username string
	Send     chan []byte
}

// NewHub delivers locally, or through Redis pub/sub when a client is given so
// that every instance reaches its own subscribers.
func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		clients: map[string]map[*Client]struct{}{},
	}
	if redisClient == nil {
		return h
	}

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := redisClient.PSubscribe(ctx, channelPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		log.WithError(err).Warn("[stream] redis subscribe failed, delivering locally")
		_ = pubsub.Close()
		cancel()
		return h
	}

	h.redis = redisClient
	h.pubsub = pubsub
	h.cancel = cancel
	go h.subscribeRedis(pubsub)
	return h
}

func (h *Hub) Register(username string) *Client {
	client := &Client{
		Username: username,
		Send:     make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[username] == nil {
		h.clients[username] = map[*Client]struct{}{}
	}
	h.clients[username][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if authorClients, ok := h.clients[client.Username]; ok {
		if _, ok := authorClients[client]; !ok {
			return
		}
		delete(authorClients, client)
		if len(authorClients) == 0 {
			delete(h.clients, client.Username)
		}
		close(client.Send)
	}
}

// Subscribers reports how many connections follow username.
func (h *Hub) Subscribers(username string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[username])
}

// Broadcast sends payload to the subscribers of username.
func (h *Hub) Broadcast(ctx context.Context, username string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(ctx, redisChannel(username), payload).Err()
		if err == nil {
			return
		}
		log.WithError(err).WithField("author", username).Warn("[stream] redis publish failed, delivering locally")
	}
	h.deliver(username, payload)
}

// PostCreated announces post to its author's subscribers.
func (h *Hub) PostCreated(ctx context.Context, post blog.Post) {
	payload, err := json.Marshal(Notification{
		ID:        post.ID,
		Author:    post.Author.Username,
		Text:      post.Text,
		CreatedAt: post.CreatedAt,
	})
	if err != nil {
		log.WithError(err).Error("[stream] encode notification")
		return
	}
	h.Broadcast(ctx, post.Author.Username, payload)
}

func (h *Hub) Close() error {
	if h.cancel == nil {
		return nil
	}
	h.cancel()
	return h.pubsub.Close()
}

func (h *Hub) deliver(username string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[username] {
		select {
		case client.Send <- payload:
		default:
			log.WithField("author", username).Debug("[stream] subscriber too slow, message dropped")
		}
	}
}

func (h *Hub) subscribeRedis(pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		username := usernameFromChannel(msg.Channel)
		if username == "" {
			continue
		}
		h.deliver(username, []byte(msg.Payload))
	}
}

func redisChannel(username string) string {
	return channelPrefix + username + channelSuffix
}

func usernameFromChannel(ch string) string {
	// posts:{username}:created
	if len(ch) <= len(channelPrefix)+len(channelSuffix) ||
		!strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
