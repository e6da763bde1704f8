package messaging

import (
	"sync"

	"greencity/internal/model"

	"github.com/apex/log"
)

type SSEClient struct {
	UserID  string
	Channel chan *model.Notification
}

// SSEHub fans notifications out to the open event streams of each user.
type SSEHub struct {
	clients    map[string][]*SSEClient
	register   chan *SSEClient
	unregister chan *SSEClient
	broadcast  chan *model.Notification
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients:    make(map[string][]*SSEClient),
		register:   make(chan *SSEClient),
		unregister: make(chan *SSEClient),
		broadcast:  make(chan *model.Notification, 100),
		done:       make(chan struct{}),
	}
}

func (h *SSEHub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for _, userClients := range h.clients {
				for _, c := range userClients {
					close(c.Channel)
				}
			}
			h.clients = make(map[string][]*SSEClient)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			log.WithField("user", client.UserID).Debug("sse: client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			userClients := h.clients[client.UserID]
			for i, c := range userClients {
				if c == client {
					h.clients[client.UserID] = append(userClients[:i], userClients[i+1:]...)
					close(client.Channel)
					break
				}
			}
			if len(h.clients[client.UserID]) == 0 {
				delete(h.clients, client.UserID)
			}
			h.mu.Unlock()
			log.WithField("user", client.UserID).Debug("sse: client unregistered")

		case notification := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients[notification.UserID] {
				select {
				case client.Channel <- notification:
				default:
					// slow reader, drop
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *SSEHub) RegisterClient(userID string) *SSEClient {
	client := &SSEClient{
		UserID:  userID,
		Channel: make(chan *model.Notification, 10),
	}
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Channel)
	}
	return client
}

func (h *SSEHub) UnregisterClient(client *SSEClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *SSEHub) SendToUser(notification *model.Notification) {
	select {
	case h.broadcast <- notification:
	case <-h.done:
	}
}

// ClientCount returns the number of open streams for a user.
func (h *SSEHub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Stop closes every open stream. It is safe to call more than once.
func (h *SSEHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}
