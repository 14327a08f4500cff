package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"chatbridge/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wsFrame is the wire protocol for webchat connections. Outbound frames
// carry the full canonical message; inbound frames are a thin envelope the
// adapter normalizes.
type wsFrame struct {
	Type    string          `json:"type"` // "message" | "typing" | "status"
	Content string          `json:"content,omitempty"`
	UserID  string          `json:"userId,omitempty"`
	Message *domain.Message `json:"message,omitempty"`
}

var webchatUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins (configure CORS for production)
	},
}

// Webchat implements the adapter for browser clients over WebSocket. Each
// connection belongs to one conversation, keyed by the chat_id query
// parameter; Send fans out to every connection in the conversation.
type Webchat struct {
	caps   domain.Capabilities
	logger *slog.Logger
	onMsg  func(domain.Message)

	mu      sync.RWMutex
	clients map[string]*webchatClient
}

type webchatClient struct {
	conn           *websocket.Conn
	conversationID string
	mu             sync.Mutex
}

// NewWebchat builds a webchat adapter.
func NewWebchat(cfg domain.PlatformConfig, logger *slog.Logger) *Webchat {
	if cfg.Platform == "" {
		cfg.Platform = domain.PlatformWebchat
	}
	return &Webchat{
		caps:    resolveCapabilities(cfg),
		logger:  logger,
		clients: make(map[string]*webchatClient),
	}
}

func (w *Webchat) Platform() domain.Platform         { return domain.PlatformWebchat }
func (w *Webchat) Capabilities() domain.Capabilities { return w.caps }

// OnMessage registers the inbound message handler. Must be called before
// the handler is mounted.
func (w *Webchat) OnMessage(fn func(domain.Message)) { w.onMsg = fn }

// Send delivers msg to every client connected to the conversation.
func (w *Webchat) Send(_ context.Context, msg domain.Message) (string, error) {
	if err := domain.ValidateMessage(&msg); err != nil {
		return "", err
	}
	if msg.Platform != domain.PlatformWebchat {
		return "", fmt.Errorf("webchat adapter: message platform %q", msg.Platform)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	w.broadcast(msg.ConversationID, wsFrame{Type: "message", Message: &msg})
	return msg.ID, nil
}

// SendTyping shows a typing indicator to the conversation's clients.
func (w *Webchat) SendTyping(_ context.Context, conversationID string) error {
	w.broadcast(conversationID, wsFrame{Type: "typing"})
	return nil
}

// MarkRead has no webchat equivalent.
func (w *Webchat) MarkRead(context.Context, string, string) error { return ErrUnsupported }

// Handler returns the WebSocket upgrade handler, to be mounted on the
// gateway mux.
func (w *Webchat) Handler() http.Handler {
	return http.HandlerFunc(w.handleUpgrade)
}

func (w *Webchat) handleUpgrade(rw http.ResponseWriter, r *http.Request) {
	conn, err := webchatUpgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Error("webchat upgrade failed", "error", err)
		return
	}

	conversationID := r.URL.Query().Get("chat_id")
	if conversationID == "" {
		conversationID = "web-" + uuid.NewString()
	}

	client := &webchatClient{conn: conn, conversationID: conversationID}
	clientID := fmt.Sprintf("%s-%p", conversationID, conn)

	w.mu.Lock()
	w.clients[clientID] = client
	w.mu.Unlock()
	w.logger.Info("webchat client connected", "client_id", clientID, "chat", conversationID)

	client.write(wsFrame{Type: "status", Content: "connected"})

	defer func() {
		w.mu.Lock()
		delete(w.clients, clientID)
		w.mu.Unlock()
		conn.Close()
		w.logger.Info("webchat client disconnected", "client_id", clientID)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.logger.Error("webchat read error", "error", err)
			}
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			w.logger.Warn("webchat invalid frame", "error", err)
			continue
		}
		if frame.Type != "message" || frame.Content == "" || w.onMsg == nil {
			continue
		}

		userID := frame.UserID
		if userID == "" {
			userID = conversationID
		}
		w.onMsg(domain.Message{
			ID:             uuid.NewString(),
			Platform:       domain.PlatformWebchat,
			ConversationID: conversationID,
			UserID:         userID,
			Type:           domain.MessageText,
			Role:           domain.RoleUser,
			Content:        frame.Content,
			Timestamp:      time.Now().UTC(),
		})
	}
}

func (w *Webchat) broadcast(conversationID string, frame wsFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, client := range w.clients {
		if client.conversationID != conversationID && conversationID != "" {
			continue
		}
		client.mu.Lock()
		writeErr := client.conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()
		if writeErr != nil {
			w.logger.Debug("webchat write failed", "error", writeErr)
		}
	}
}

// CloseAll tears down every open connection, used on gateway shutdown.
func (w *Webchat) CloseAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, client := range w.clients {
		client.conn.Close()
		delete(w.clients, id)
	}
}

func (c *webchatClient) write(frame wsFrame) {
	data, _ := json.Marshal(frame)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteMessage(websocket.TextMessage, data)
}
