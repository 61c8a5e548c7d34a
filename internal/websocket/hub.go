// Package websocket 向在线客户端推送账户的实时转发事件。
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"datavault/backend/internal/domain"
	"datavault/backend/internal/middleware"
	"datavault/backend/internal/monitoring"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// ErrHubBusy 广播队列已满
var ErrHubBusy = errors.New("websocket hub busy")

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				return true
			}
			for _, origin := range allowedOrigins {
				if origin == "*" || origin == requestOrigin {
					return true
				}
			}
			return false
		},
	}
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeDelivery MessageType = "delivery"
	MessageTypePing     MessageType = "ping"
	MessageTypePong     MessageType = "pong"
	MessageTypeError    MessageType = "error"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 代表一个WebSocket客户端连接
type Client struct {
	ID        string
	AccountID string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
}

// Hub 管理所有WebSocket连接，按账户分组
type Hub struct {
	clients        map[string]*Client
	accounts       map[string]map[string]*Client // accountID -> clientID -> Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan domain.DeliveryEvent
	done           chan struct{}
	mu             sync.RWMutex
	log            *zap.Logger
	metrics        *monitoring.Metrics
	allowedOrigins []string
}

// NewHub 创建WebSocket Hub，未配置 Origin 时允许所有来源
func NewHub(allowedOrigins []string, metrics *monitoring.Metrics, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return &Hub{
		clients:        make(map[string]*Client),
		accounts:       make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan domain.DeliveryEvent, 256),
		done:           make(chan struct{}),
		log:            log,
		metrics:        metrics,
		allowedOrigins: allowedOrigins,
	}
}

// Run 启动Hub，ctx 结束时关闭所有连接
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.log.Info("Websocket hub stopped")
			h.closeAllClients()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			if h.accounts[client.AccountID] == nil {
				h.accounts[client.AccountID] = make(map[string]*Client)
			}
			h.accounts[client.AccountID][client.ID] = client
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetWebsocketClients(count)
			h.log.Debug("Client registered", zap.String("id", client.ID), zap.String("account_id", client.AccountID))

		case client := <-h.unregister:
			h.remove(client)

		case event := <-h.broadcast:
			h.broadcastToAccount(event)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// PublishDelivery 将转发事件放入广播队列，队列满时丢弃
func (h *Hub) PublishDelivery(_ context.Context, event domain.DeliveryEvent) error {
	select {
	case h.broadcast <- event:
		return nil
	default:
		return ErrHubBusy
	}
}

// Deliver 用作 Redis 订阅回调
func (h *Hub) Deliver(event domain.DeliveryEvent) {
	if err := h.PublishDelivery(context.Background(), event); err != nil {
		h.log.Warn("Dropped delivery event", zap.String("account_id", event.AccountID), zap.Error(err))
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	if clients, exists := h.accounts[client.AccountID]; exists {
		delete(clients, client.ID)
		if len(clients) == 0 {
			delete(h.accounts, client.AccountID)
		}
	}
	delete(h.clients, client.ID)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetWebsocketClients(count)
	h.log.Debug("Client unregistered", zap.String("id", client.ID))
}

// broadcastToAccount 向账户的所有连接推送事件
func (h *Hub) broadcastToAccount(event domain.DeliveryEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.accounts[event.AccountID]
	if len(clients) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("Failed to marshal delivery event", zap.Error(err))
		return
	}
	data, err := json.Marshal(&Message{Type: MessageTypeDelivery, Data: payload, Timestamp: time.Now()})
	if err != nil {
		h.log.Error("Failed to marshal message", zap.Error(err))
		return
	}

	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			// 客户端阻塞，跳过
			h.log.Warn("Client channel blocked, skipping", zap.String("client_id", client.ID))
		}
	}
}

// pingAllClients 向所有客户端发送应用层 ping
func (h *Hub) pingAllClients() {
	data, err := json.Marshal(&Message{Type: MessageTypePing, Timestamp: time.Now()})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.accounts = make(map[string]map[string]*Client)
	h.metrics.SetWebsocketClients(0)
}

// HandleWebSocket 处理WebSocket连接，需在 JWT 认证之后挂载
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		accountID := middleware.AccountID(c)
		if accountID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized", "message": "Access token required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("Failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client := &Client{
			ID:        uuid.NewString(),
			AccountID: accountID,
			conn:      conn,
			hub:       hub,
			send:      make(chan []byte, sendBuffer),
		}
		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// readPump 读取客户端消息直到连接断开
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("Websocket closed unexpectedly", zap.Error(err))
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息，客户端只需要应答 ping
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypePing:
		c.sendMessage(&Message{Type: MessageTypePong, Timestamp: time.Now()})
	case MessageTypePong:
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	default:
		c.sendMessage(&Message{Type: MessageTypeError, Error: "unsupported message type", Timestamp: time.Now()})
	}
}

// sendMessage 发送消息给客户端
func (c *Client) sendMessage(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.ID]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
