package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"heartline/client/internal/auth"
	"heartline/client/internal/models"
	"heartline/client/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one connected session on the server side.
type Client struct {
	UserID   int64
	Nickname string
	send     chan []byte
}

func (c *Client) trySend(raw []byte) {
	select {
	case c.send <- raw:
	default:
	}
}

func ServeWS(w http.ResponseWriter, r *http.Request, hub *Hub, identity auth.Identity) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{UserID: identity.UserID, Nickname: identity.Nickname, send: make(chan []byte, 64)}
	hub.Register(client)

	go writePump(conn, client)
	readPump(conn, client, hub)
}

func readPump(conn *websocket.Conn, client *Client, hub *Hub) {
	defer func() {
		hub.Unregister(client)
		_ = conn.Close()
	}()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := wire.DecodeEnvelope(raw)
		if err != nil {
			log.Printf("realtime: client %d sent malformed frame: %v", client.UserID, err)
			continue
		}
		handleEvent(hub, client, env)
	}
}

func writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func handleEvent(hub *Hub, client *Client, env wire.Envelope) {
	switch env.Event {
	case wire.EvJoinRoom:
		var p wire.RoomPayload
		if decode(env.Data, &p, client) {
			hub.Join(client, RoomKey("chat", p.RoomID))
		}
	case wire.EvLeaveRoom:
		var p wire.RoomPayload
		if decode(env.Data, &p, client) {
			hub.Leave(client, RoomKey("chat", p.RoomID))
		}
	case wire.EvJoinPost:
		var p wire.PostRoomPayload
		if decode(env.Data, &p, client) {
			hub.Join(client, RoomKey("post", strconv.FormatInt(p.PostID, 10)))
		}
	case wire.EvLeavePost:
		var p wire.PostRoomPayload
		if decode(env.Data, &p, client) {
			hub.Leave(client, RoomKey("post", strconv.FormatInt(p.PostID, 10)))
		}
	case wire.EvJoinBlog:
		hub.Join(client, RoomKey("blog", "blog"))
	case wire.EvLeaveBlog:
		hub.Leave(client, RoomKey("blog", "blog"))
	case wire.EvJoinDocument:
		var p wire.DocumentRoomPayload
		if decode(env.Data, &p, client) {
			hub.Join(client, RoomKey("document", p.DocumentID))
		}
	case wire.EvLeaveDocument:
		var p wire.DocumentRoomPayload
		if decode(env.Data, &p, client) {
			hub.Leave(client, RoomKey("document", p.DocumentID))
		}

	case wire.EvSendMessage:
		var p wire.SendMessagePayload
		if !decode(env.Data, &p, client) {
			return
		}
		message := models.ChatMessage{
			ID:       uuid.NewString(),
			RoomID:   p.RoomID,
			UserID:   client.UserID,
			Nickname: client.Nickname,
			Content:  p.Content,
			SentAt:   time.Now(),
		}
		hub.Broadcast(RoomKey("chat", p.RoomID), wire.EvNewMessage, message)

	case wire.EvTypingStart, wire.EvTypingStop:
		var p wire.TypingPayload
		if !decode(env.Data, &p, client) {
			return
		}
		// The server, not the sender, is authoritative for identity.
		p.UserID = client.UserID
		p.Nickname = client.Nickname
		hub.Broadcast(RoomKey("chat", p.RoomID), env.Event, p)

	case wire.EvReaction:
		var p wire.ReactionPayload
		if !decode(env.Data, &p, client) {
			return
		}
		p.UserID = client.UserID
		hub.Broadcast(RoomKey("chat", p.RoomID), wire.EvReactionAdded, p)

	case wire.EvDocumentChange:
		var p wire.DocumentChangePayload
		if !decode(env.Data, &p, client) {
			return
		}
		p.UserID = client.UserID
		hub.Broadcast(RoomKey("document", p.DocumentID), wire.EvDocumentChanged, p)

	case wire.EvLocationShare:
		var p wire.LocationPayload
		if !decode(env.Data, &p, client) {
			return
		}
		p.UserID = client.UserID
		hub.Broadcast(RoomKey("chat", p.RoomID), wire.EvLocationShared, p)

	case wire.EvCallInitiate:
		var p wire.CallPayload
		if !decode(env.Data, &p, client) {
			return
		}
		p.UserID = client.UserID
		hub.Broadcast(RoomKey("chat", p.RoomID), wire.EvCallInitiated, p)

	case wire.EvPing:
		hub.Send(client, wire.EvPong, wire.PongPayload{At: time.Now()})

	case wire.EvUserActivity, wire.EvReadingProgress, wire.EvFinishReading:
		// Engagement telemetry: accepted and logged; the analytics
		// pipeline that consumes it lives elsewhere.
		log.Printf("realtime: telemetry %s from user %d", env.Event, client.UserID)

	default:
		log.Printf("realtime: client %d sent unknown event %q", client.UserID, env.Event)
	}
}

func decode(data json.RawMessage, dst any, client *Client) bool {
	if err := json.Unmarshal(data, dst); err != nil {
		log.Printf("realtime: client %d payload decode: %v", client.UserID, err)
		return false
	}
	return true
}
