package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"anon_chat/middleware"
	"anon_chat/service"
	"anon_chat/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: 生产环境需要检查 Origin
		return true
	},
}

// Client WebSocket 客户端
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub
	mu     sync.Mutex
	closed bool // Send channel 是否已关闭
}

// Hub WebSocket 连接管理中心，同时是会话核心的消息投递实现（service.Relay）
type Hub struct {
	// 在线用户 map[userID]map[clientID]*Client（支持多设备）
	Clients map[uuid.UUID]map[uuid.UUID]*Client
	mu      sync.RWMutex

	// 每个用户的最大连接数
	MaxConnectionsPerUser int

	rdb *redis.Client

	sessionSvc *service.SessionService

	// Pod ID（跨 Pod 广播去重用）
	podID string

	stopPubSub chan struct{}
}

// Redis Pub/Sub 跨 Pod 广播频道
const redisBroadcastChannel = "ws:broadcast"

// BroadcastMessage 跨 Pod 广播消息格式
type BroadcastMessage struct {
	UserID  string `json:"user_id"`
	PodID   string `json:"pod_id"` // 发送方 Pod ID，用于去重
	Payload []byte `json:"payload"`
}

// NewHub 创建 Hub
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		Clients:               make(map[uuid.UUID]map[uuid.UUID]*Client),
		MaxConnectionsPerUser: 8,
		rdb:                   rdb,
		podID:                 uuid.New().String(),
		stopPubSub:            make(chan struct{}),
	}
}

// SetSessionService 注入会话服务（入站聊天帧的处理方）
func (h *Hub) SetSessionService(sessionSvc *service.SessionService) {
	h.sessionSvc = sessionSvc
}

// Register 注册客户端（支持多设备，超出上限拒绝）
func (h *Hub) Register(client *Client) {
	h.mu.Lock()

	if h.Clients[client.UserID] == nil {
		h.Clients[client.UserID] = make(map[uuid.UUID]*Client)
	}

	if len(h.Clients[client.UserID]) >= h.MaxConnectionsPerUser {
		h.mu.Unlock() // 先放锁再做网络操作

		log.Printf("[ERROR] User %s exceeds max connections (%d), rejecting client %s",
			client.UserID, h.MaxConnectionsPerUser, client.ID)
		client.Conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "too many devices"))
		client.Conn.Close()
		return
	}

	h.Clients[client.UserID][client.ID] = client
	deviceCount := len(h.Clients[client.UserID])
	h.mu.Unlock()

	// 在线标记，供其他 Pod 判断可达性
	ctx := context.Background()
	h.rdb.Set(ctx, onlineKey(client.UserID), "1", 45*time.Second)

	log.Printf("User %s connected (client: %s), devices: %d", client.UserID, client.ID, deviceCount)
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if userClients, exists := h.Clients[client.UserID]; exists {
		if _, found := userClients[client.ID]; found {
			delete(userClients, client.ID)
			if len(userClients) == 0 {
				delete(h.Clients, client.UserID)

				ctx := context.Background()
				h.rdb.Del(ctx, onlineKey(client.UserID))
				log.Printf("User %s disconnected (client: %s), all devices offline", client.UserID, client.ID)
			}
		}
	}
	h.mu.Unlock()

	// 安全关闭 Send channel
	client.mu.Lock()
	if !client.closed {
		close(client.Send)
		client.closed = true
	}
	client.mu.Unlock()
}

func onlineKey(userID uuid.UUID) string {
	return "online:" + userID.String()
}

// sendLocal 发送给本 Pod 上该用户的所有设备
func (h *Hub) sendLocal(userID uuid.UUID, message []byte) bool {
	h.mu.RLock()
	userClients, exists := h.Clients[userID]
	if !exists || len(userClients) == 0 {
		h.mu.RUnlock()
		return false
	}

	// 复制 client 列表，避免遍历时并发修改
	clientsCopy := make([]*Client, 0, len(userClients))
	for _, client := range userClients {
		clientsCopy = append(clientsCopy, client)
	}
	h.mu.RUnlock()

	sentToAny := false
	for _, client := range clientsCopy {
		select {
		case client.Send <- message:
			sentToAny = true
		default:
			// 发送通道满，断开该设备
			log.Printf("[ERROR] Send channel FULL: user=%s, client=%s, closing", userID, client.ID)
			go h.Unregister(client)
		}
	}
	return sentToAny
}

// Send 实现 service.Relay
// 本地送达即成功；本地不在线但别的 Pod 标记了在线，则转投广播频道；
// 两者都不行返回 false，调用方按"对端掉线"处理
func (h *Hub) Send(userID uuid.UUID, payload []byte) bool {
	if h.sendLocal(userID, payload) {
		return true
	}

	ctx := context.Background()
	online, err := h.rdb.Exists(ctx, onlineKey(userID)).Result()
	if err != nil || online == 0 {
		return false
	}

	broadcastMsg := BroadcastMessage{
		UserID:  userID.String(),
		PodID:   h.podID,
		Payload: payload,
	}
	msgBytes, err := json.Marshal(broadcastMsg)
	if err != nil {
		log.Printf("[ERROR] Failed to marshal broadcast message: %v", err)
		return false
	}
	if err := h.rdb.Publish(ctx, redisBroadcastChannel, msgBytes).Err(); err != nil {
		log.Printf("[ERROR] Failed to publish to Redis: %v", err)
		return false
	}
	return true
}

// NotifyTyping 实现 service.Relay，尽力而为
func (h *Hub) NotifyTyping(userID uuid.UUID) {
	payload, err := json.Marshal(map[string]interface{}{
		"type": "typing",
		"data": nil,
	})
	if err != nil {
		return
	}
	h.Send(userID, payload)
}

// StartPubSub 启动 Redis Pub/Sub 订阅（跨 Pod 消息投递）
func (h *Hub) StartPubSub() {
	go func() {
		ctx := context.Background()
		pubsub := h.rdb.Subscribe(ctx, redisBroadcastChannel)
		defer pubsub.Close()

		log.Printf("[INFO] Pod %s started Redis Pub/Sub subscription", h.podID[:8])

		ch := pubsub.Channel()
		for {
			select {
			case <-h.stopPubSub:
				log.Printf("[INFO] Pod %s stopping Redis Pub/Sub subscription", h.podID[:8])
				return
			case msg := <-ch:
				if msg == nil {
					continue
				}
				h.handleBroadcastMessage([]byte(msg.Payload))
			}
		}
	}()
}

// StopPubSub 停止 Redis Pub/Sub 订阅
func (h *Hub) StopPubSub() {
	close(h.stopPubSub)
}

// handleBroadcastMessage 处理来自其他 Pod 的广播消息
func (h *Hub) handleBroadcastMessage(data []byte) {
	var msg BroadcastMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[ERROR] Failed to unmarshal broadcast message: %v", err)
		return
	}

	// 忽略自己发的，避免重复投递
	if msg.PodID == h.podID {
		return
	}

	userID, err := uuid.Parse(msg.UserID)
	if err != nil {
		log.Printf("[ERROR] Invalid user ID in broadcast message: %v", err)
		return
	}
	h.sendLocal(userID, msg.Payload)
}

// WSMessage WebSocket 入站消息格式
type WSMessage struct {
	Type string          `json:"type"` // 'chat' | 'typing' | 'heartbeat'
	Data json.RawMessage `json:"data"`
}

// HandleWebSocket 处理 WebSocket 连接
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从 query 参数获取 token
		tokenString := c.Query("token")
		if tokenString == "" {
			utils.Unauthorized(c, "missing token")
			return
		}

		userID, err := middleware.ValidateToken(tokenString)
		if err != nil {
			utils.Unauthorized(c, "invalid token")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[ERROR] WebSocket upgrade failed for user %s: %v", userID, err)
			return
		}

		client := &Client{
			ID:     uuid.New(),
			UserID: userID,
			Conn:   conn,
			Send:   make(chan []byte, 256),
			Hub:    hub,
		}

		hub.Register(client)

		go client.readPump()
		go client.writePump()
	}
}

// readPump 从 WebSocket 读取消息
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure) {
				log.Printf("[ERROR] User %s WebSocket unexpected close error: %v", c.UserID, err)
			}
			break
		}

		var wsMsg WSMessage
		if err := json.Unmarshal(message, &wsMsg); err != nil {
			c.sendError("Invalid JSON format")
			continue
		}

		switch wsMsg.Type {
		case "heartbeat":
			// 心跳刷新在线标记
			ctx := context.Background()
			c.Hub.rdb.Set(ctx, onlineKey(c.UserID), "1", 45*time.Second)

		case "chat":
			c.handleChat(wsMsg.Data)

		case "typing":
			c.handleTyping()
		}
	}
}

// writePump 向 WebSocket 写入消息
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub 关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			// 发送 ping 保持连接
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleChat 处理入站聊天帧
func (c *Client) handleChat(data json.RawMessage) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError("Invalid message format")
		return
	}

	delivered, err := c.Hub.sessionSvc.Relay(c.UserID, req.Content)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	if !delivered {
		// 会话已被隐式拆除，session_ended 事件已由服务层推送
		return
	}
}

// handleTyping 处理"正在输入"帧
func (c *Client) handleTyping() {
	if err := c.Hub.sessionSvc.NotifyTyping(c.UserID); err != nil {
		// 不在会话中的 typing 帧直接丢弃
		return
	}
}

// sendError 向客户端回送错误事件
func (c *Client) sendError(message string) {
	response := map[string]interface{}{
		"type": "error",
		"data": map[string]interface{}{
			"message": message,
		},
	}
	if responseData, err := json.Marshal(response); err == nil {
		c.mu.Lock()
		if !c.closed {
			select {
			case c.Send <- responseData:
			default:
			}
		}
		c.mu.Unlock()
	}
}
