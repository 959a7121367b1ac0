package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"naskahsync/internal/access"
	"naskahsync/internal/document/model"
	"naskahsync/pkg/apperr"
	"naskahsync/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	// Client -> server
	UpdateType     = "UPDATE"      // Full content replacement, also counts as typing
	TypingType     = "TYPING"      // Keystroke-equivalent activity without a content change
	StopTypingType = "STOP_TYPING" // Explicit end of typing
	ChatType       = "CHAT"        // Send a chat message
	ShareType      = "SHARE"       // Grant another email access

	// Server -> client
	ErrorType = "ERROR"
	// Request tag of an ERROR reply to a frame that was not valid JSON.
	InvalidType = "INVALID"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	opTimeout  = 10 * time.Second
)

type WSMessage struct {
	Type    string          `json:"type"`
	DocID   string          `json:"document_id"`
	UserID  string          `json:"user_id,omitempty"`
	Seq     uint64          `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Backend is the set of document operations a session may issue. The
// document service implements it.
type Backend interface {
	Subscribe(ctx context.Context, user access.User, docID string) (*Subscription, error)
	UpdateContent(ctx context.Context, user access.User, docID string, content json.RawMessage) (*model.Document, error)
	AddShare(ctx context.Context, user access.User, docID, email string) (*model.Document, error)
	SendChat(ctx context.Context, user access.User, docID, body string) (*model.ChatMessage, error)
	Touch(ctx context.Context, user access.User, docID string) error
	ClearTyping(ctx context.Context, user access.User, docID string) error
}

// Options tunes a session.
type Options struct {
	MaxMessageBytes int64
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers connect from the editor's own origin; the token is the gate.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one connected session: the user, the open document subscription
// and the socket carrying both directions.
type Client struct {
	Backend Backend
	Conn    *websocket.Conn
	Sub     *Subscription
	User    access.User
	DocID   string
	replies chan []byte
}

// ServeWs authorizes and subscribes before upgrading, so an unauthorized
// caller gets the same plain HTTP error whether or not the document exists.
func ServeWs(backend Backend, w http.ResponseWriter, r *http.Request, user access.User, opts Options) {
	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	sub, err := backend.Subscribe(ctx, user, docID)
	cancel()
	if err != nil {
		status, msg := apperr.HTTPStatus(err)
		logger.Sugar.Warnf("Connection rejected: user %s on doc %s: %v", user.ID, docID, err)
		http.Error(w, msg, status)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		sub.Close()
		return
	}
	if opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(opts.MaxMessageBytes)
	}

	client := &Client{
		Backend: backend,
		Conn:    conn,
		Sub:     sub,
		User:    user,
		DocID:   docID,
		replies: make(chan []byte, 16),
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		// Unsubscribe synchronously so nothing more is queued for this session.
		c.Sub.Close()
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(rawMessage, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			c.reply(InvalidType, apperr.ErrValidation)
			continue
		}

		if err := c.handle(msg); err != nil {
			logger.Sugar.Warnf("User %s %s on doc %s failed: %v", c.User.ID, msg.Type, c.DocID, err)
			c.reply(msg.Type, err)
		}
	}
}

// handle applies one client message. Operations run on their own context so
// an accepted write still commits and fans out if the socket drops meanwhile.
func (c *Client) handle(msg WSMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch msg.Type {
	case UpdateType:
		if _, err := c.Backend.UpdateContent(ctx, c.User, c.DocID, msg.Payload); err != nil {
			return err
		}
		return c.Backend.Touch(ctx, c.User, c.DocID)
	case TypingType:
		return c.Backend.Touch(ctx, c.User, c.DocID)
	case StopTypingType:
		return c.Backend.ClearTyping(ctx, c.User, c.DocID)
	case ChatType:
		var req model.ChatRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return apperr.ErrValidation
		}
		_, err := c.Backend.SendChat(ctx, c.User, c.DocID, req.Body)
		return err
	case ShareType:
		var req model.ShareRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return apperr.ErrValidation
		}
		_, err := c.Backend.AddShare(ctx, c.User, c.DocID, req.Email)
		return err
	}
	return fmt.Errorf("%w: unknown message type %q", apperr.ErrValidation, msg.Type)
}

func (c *Client) reply(requestType string, err error) {
	_, text := apperr.HTTPStatus(err)
	payload, _ := json.Marshal(map[string]string{"request": requestType, "error": text})
	b, _ := json.Marshal(WSMessage{Type: ErrorType, DocID: c.DocID, Payload: payload})
	select {
	case c.replies <- b:
	default:
		logger.Sugar.Warnf("Dropping error reply for user %s: reply buffer full", c.User.ID)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Sub.Events():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				code, reason := websocket.CloseNormalClosure, ""
				if err := c.Sub.Err(); err != nil {
					code, reason = websocket.CloseTryAgainLater, err.Error()
				}
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
				return
			}
			b, err := EncodeEvent(ev)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling %s event: %v", ev.Type, err)
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case b := <-c.replies:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// EncodeEvent renders a change event in the wire envelope.
func EncodeEvent(ev model.ChangeEvent) ([]byte, error) {
	var payload any
	switch ev.Type {
	case model.EventSnapshot:
		payload = ev.Snapshot
	case model.EventDocumentUpdated:
		payload = ev.Document
	case model.EventChatAppended:
		payload = ev.Message
	case model.EventPresenceChanged:
		payload = ev.Presence
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{
		Type:    string(ev.Type),
		DocID:   ev.DocumentID,
		UserID:  ev.ActorID,
		Seq:     ev.Seq,
		Payload: raw,
	})
}
