package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gopher0727/Eiga/config"
	"github.com/Gopher0727/Eiga/internal/pkg/redis"
	logger "github.com/Gopher0727/Eiga/middleware/log"
)

type delivery struct {
	subjectID string
	payload   []byte
}

// Hub 维护当前节点上的 WebSocket 连接，按讨论对象分房间
// 事件来自 Redis PSUBSCRIBE discussion:*，因此任何节点发布的事件都会到达所有节点
type Hub struct {
	client redis.PubSubClient
	log    *logger.Logger

	// subjectID -> clients
	rooms map[string]map[*Client]struct{}
	mu    sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan delivery
	done       chan struct{}

	sendBuffer int
	pongWait   time.Duration
}

func NewHub(client redis.PubSubClient, cfg config.WebsocketConfig, log *logger.Logger) *Hub {
	sendBuffer := cfg.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	pongWait := time.Duration(cfg.PongWaitSeconds) * time.Second
	if pongWait <= 0 {
		pongWait = 60 * time.Second
	}
	return &Hub{
		client:     client,
		log:        log.Named("hub"),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan delivery, 256),
		done:       make(chan struct{}),
		sendBuffer: sendBuffer,
		pongWait:   pongWait,
	}
}

// Start subscribes to every discussion topic and begins dispatching. It
// returns once Redis has confirmed the subscription; both loops stop when
// ctx is cancelled.
func (h *Hub) Start(ctx context.Context) error {
	pubsub, err := h.client.PSubscribe(ctx, topicPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to subscribe hub: %w", err)
	}
	go h.run(ctx)
	go func() {
		defer pubsub.Close()
		h.forward(ctx, pubsub.Channel())
	}()
	h.log.Info("hub started")
	return nil
}

func (h *Hub) forward(ctx context.Context, messages <-chan *goredis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				h.log.Warn("hub subscription closed")
				return
			}
			subjectID, ok := SubjectFromTopic(msg.Channel)
			if !ok {
				continue
			}
			select {
			case h.broadcast <- delivery{subjectID: subjectID, payload: []byte(msg.Payload)}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			room, ok := h.rooms[client.subjectID]
			if !ok {
				room = make(map[*Client]struct{})
				h.rooms[client.subjectID] = room
			}
			room[client] = struct{}{}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case d := <-h.broadcast:
			h.mu.RLock()
			// 收集发送缓冲区已满的客户端，避免在读锁内修改 map
			var slow []*Client
			for client := range h.rooms[d.subjectID] {
				select {
				case client.send <- d.payload:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			if len(slow) > 0 {
				h.mu.Lock()
				for _, client := range slow {
					h.log.Warn("dropping slow subscriber", zap.String("subject_id", client.subjectID), zap.String("user_id", client.userID))
					h.remove(client)
				}
				h.mu.Unlock()
			}
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	room, ok := h.rooms[client.subjectID]
	if !ok {
		return
	}
	if _, ok := room[client]; !ok {
		return
	}
	delete(room, client)
	close(client.send)
	if len(room) == 0 {
		delete(h.rooms, client.subjectID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for subjectID, room := range h.rooms {
		for client := range room {
			close(client.send)
		}
		delete(h.rooms, subjectID)
	}
}

// Subscribers returns how many local connections watch subjectID.
func (h *Hub) Subscribers(subjectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[subjectID])
}
