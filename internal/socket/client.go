package socket

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"heartline/client/internal/auth"
	"heartline/client/internal/models"
	"heartline/client/internal/wire"
)

// Client is the typed surface the rest of the application talks to:
// room joins, action emissions, and On/Off subscription pairs for every
// server push. It composes the connection manager, the dispatch
// registry, and the room tracker around one shared transport.
type Client struct {
	manager  *Manager
	registry *Registry
	rooms    *Rooms
	identity auth.Identity
}

func New(cfg Config) *Client {
	registry := NewRegistry()
	manager := NewManager(cfg, registry)
	client := &Client{manager: manager, registry: registry}
	client.rooms = NewRooms(manager.Emit, manager.IsConnectedToServer)
	manager.SetDropHandler(client.rooms.Reset)
	return client
}

func (c *Client) Connect(token string) error {
	identity, err := auth.ReadIdentity(token)
	if err != nil {
		return err
	}
	c.identity = identity
	return c.manager.Connect(token)
}

func (c *Client) Disconnect() {
	c.rooms.LeaveAll()
	c.manager.Disconnect()
}

func (c *Client) IsConnectedToServer() bool { return c.manager.IsConnectedToServer() }

func (c *Client) Identity() auth.Identity { return c.identity }

// Registry exposes the dispatch registry for collaborators that manage
// their own subscriptions, such as the presence aggregator.
func (c *Client) Registry() *Registry { return c.registry }

// Rooms

func (c *Client) JoinChatRoom(roomID string)  { c.rooms.Join(RoomChat, roomID) }
func (c *Client) LeaveChatRoom(roomID string) { c.rooms.Leave(RoomChat, roomID) }

func (c *Client) JoinPostRoom(postID int64) {
	c.rooms.Join(RoomPost, strconv.FormatInt(postID, 10))
}

func (c *Client) LeavePostRoom(postID int64) {
	c.rooms.Leave(RoomPost, strconv.FormatInt(postID, 10))
}

func (c *Client) JoinBlogRoom()  { c.rooms.Join(RoomBlog, BlogRoomID) }
func (c *Client) LeaveBlogRoom() { c.rooms.Leave(RoomBlog, BlogRoomID) }

func (c *Client) JoinDocumentRoom(documentID string)  { c.rooms.Join(RoomDocument, documentID) }
func (c *Client) LeaveDocumentRoom(documentID string) { c.rooms.Leave(RoomDocument, documentID) }

// Actions

func (c *Client) SendMessage(roomID, content string) error {
	return c.manager.Emit(wire.EvSendMessage, wire.SendMessagePayload{RoomID: roomID, Content: content})
}

func (c *Client) SendReaction(roomID, messageID, emoji string) error {
	return c.manager.Emit(wire.EvReaction, wire.ReactionPayload{
		RoomID:    roomID,
		MessageID: messageID,
		UserID:    c.identity.UserID,
		Emoji:     emoji,
	})
}

func (c *Client) SendTypingStart(roomID string) error {
	return c.manager.Emit(wire.EvTypingStart, wire.TypingPayload{
		RoomID:   roomID,
		UserID:   c.identity.UserID,
		Nickname: c.identity.Nickname,
	})
}

func (c *Client) SendTypingStop(roomID string) error {
	return c.manager.Emit(wire.EvTypingStop, wire.TypingPayload{
		RoomID:   roomID,
		UserID:   c.identity.UserID,
		Nickname: c.identity.Nickname,
	})
}

func (c *Client) SendDocumentChange(documentID, patch string, version int64) error {
	return c.manager.Emit(wire.EvDocumentChange, wire.DocumentChangePayload{
		DocumentID: documentID,
		UserID:     c.identity.UserID,
		Patch:      patch,
		Version:    version,
	})
}

func (c *Client) ShareLocation(roomID string, lat, lng float64) error {
	return c.manager.Emit(wire.EvLocationShare, wire.LocationPayload{
		RoomID:    roomID,
		UserID:    c.identity.UserID,
		Latitude:  lat,
		Longitude: lng,
	})
}

// InitiateCall asks the room to start a call and returns the generated
// call identifier.
func (c *Client) InitiateCall(roomID, media string) (string, error) {
	callID := uuid.NewString()
	err := c.manager.Emit(wire.EvCallInitiate, wire.CallPayload{
		RoomID: roomID,
		CallID: callID,
		UserID: c.identity.UserID,
		Media:  media,
	})
	if err != nil {
		return "", err
	}
	return callID, nil
}

func (c *Client) ReportActivity(activity string) error {
	return c.manager.Emit(wire.EvUserActivity, wire.UserActivityPayload{
		UserID:   c.identity.UserID,
		Activity: activity,
		At:       time.Now(),
	})
}

func (c *Client) ReportReadingProgress(postID int64, percent float64, section string) error {
	return c.manager.Emit(wire.EvReadingProgress, wire.ReadingProgressPayload{
		PostID:  postID,
		Percent: percent,
		Section: section,
	})
}

func (c *Client) ReportReadingFinished(postID int64, duration time.Duration) error {
	return c.manager.Emit(wire.EvFinishReading, wire.ReadingFinishedPayload{
		PostID:     postID,
		DurationMs: duration.Milliseconds(),
	})
}

// Subscriptions. Each On* registers a typed callback keyed by its
// function value; Off* with that same value removes it, and Off* with
// nil clears every handler for the event. Method values and closures
// are fresh values at each evaluation, so hold the registered value to
// unsubscribe later.

func on[T any](c *Client, event string, fn func(T)) {
	key := callbackKey(fn)
	if key == 0 {
		return
	}
	c.registry.On(event, key, func(env wire.Envelope) {
		var payload T
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				log.Printf("socket: decode %s: %v", event, err)
				return
			}
		}
		fn(payload)
	})
}

func off[T any](c *Client, event string, fn func(T)) {
	if fn == nil {
		c.registry.OffAll(event)
		return
	}
	c.registry.Off(event, callbackKey(fn))
}

func (c *Client) OnNewMessage(fn func(models.ChatMessage))  { on(c, wire.EvNewMessage, fn) }
func (c *Client) OffNewMessage(fn func(models.ChatMessage)) { off(c, wire.EvNewMessage, fn) }

func (c *Client) OnNewPost(fn func(models.Post))  { on(c, wire.EvNewPost, fn) }
func (c *Client) OffNewPost(fn func(models.Post)) { off(c, wire.EvNewPost, fn) }

func (c *Client) OnPostUpdated(fn func(models.Post))  { on(c, wire.EvPostUpdated, fn) }
func (c *Client) OffPostUpdated(fn func(models.Post)) { off(c, wire.EvPostUpdated, fn) }

func (c *Client) OnPostLiked(fn func(wire.PostLikedPayload))  { on(c, wire.EvPostLiked, fn) }
func (c *Client) OffPostLiked(fn func(wire.PostLikedPayload)) { off(c, wire.EvPostLiked, fn) }

func (c *Client) OnNewComment(fn func(models.Comment))  { on(c, wire.EvNewComment, fn) }
func (c *Client) OffNewComment(fn func(models.Comment)) { off(c, wire.EvNewComment, fn) }

func (c *Client) OnCommentUpdated(fn func(models.Comment))  { on(c, wire.EvCommentUpdated, fn) }
func (c *Client) OffCommentUpdated(fn func(models.Comment)) { off(c, wire.EvCommentUpdated, fn) }

func (c *Client) OnCommentDeleted(fn func(wire.CommentDeletedPayload)) {
	on(c, wire.EvCommentDeleted, fn)
}

func (c *Client) OffCommentDeleted(fn func(wire.CommentDeletedPayload)) {
	off(c, wire.EvCommentDeleted, fn)
}

func (c *Client) OnUserJoined(fn func(wire.PresencePayload))  { on(c, wire.EvUserJoined, fn) }
func (c *Client) OffUserJoined(fn func(wire.PresencePayload)) { off(c, wire.EvUserJoined, fn) }

func (c *Client) OnUserLeft(fn func(wire.PresencePayload))  { on(c, wire.EvUserLeft, fn) }
func (c *Client) OffUserLeft(fn func(wire.PresencePayload)) { off(c, wire.EvUserLeft, fn) }

func (c *Client) OnTypingStart(fn func(wire.TypingPayload))  { on(c, wire.EvTypingStart, fn) }
func (c *Client) OffTypingStart(fn func(wire.TypingPayload)) { off(c, wire.EvTypingStart, fn) }

func (c *Client) OnTypingStop(fn func(wire.TypingPayload))  { on(c, wire.EvTypingStop, fn) }
func (c *Client) OffTypingStop(fn func(wire.TypingPayload)) { off(c, wire.EvTypingStop, fn) }

func (c *Client) OnRoomCreated(fn func(models.Room))  { on(c, wire.EvRoomCreated, fn) }
func (c *Client) OffRoomCreated(fn func(models.Room)) { off(c, wire.EvRoomCreated, fn) }

func (c *Client) OnRoomUpdated(fn func(models.Room))  { on(c, wire.EvRoomUpdated, fn) }
func (c *Client) OffRoomUpdated(fn func(models.Room)) { off(c, wire.EvRoomUpdated, fn) }

func (c *Client) OnUserCount(fn func(wire.UserCountPayload))  { on(c, wire.EvUserCount, fn) }
func (c *Client) OffUserCount(fn func(wire.UserCountPayload)) { off(c, wire.EvUserCount, fn) }

func (c *Client) OnSystemAnnouncement(fn func(wire.AnnouncementPayload)) {
	on(c, wire.EvSystemAnnouncement, fn)
}

func (c *Client) OffSystemAnnouncement(fn func(wire.AnnouncementPayload)) {
	off(c, wire.EvSystemAnnouncement, fn)
}

func (c *Client) OnNotification(fn func(wire.NotificationPayload))  { on(c, wire.EvNotification, fn) }
func (c *Client) OffNotification(fn func(wire.NotificationPayload)) { off(c, wire.EvNotification, fn) }

func (c *Client) OnDocumentChanged(fn func(wire.DocumentChangePayload)) {
	on(c, wire.EvDocumentChanged, fn)
}

func (c *Client) OffDocumentChanged(fn func(wire.DocumentChangePayload)) {
	off(c, wire.EvDocumentChanged, fn)
}

func (c *Client) OnLocationShared(fn func(wire.LocationPayload))  { on(c, wire.EvLocationShared, fn) }
func (c *Client) OffLocationShared(fn func(wire.LocationPayload)) { off(c, wire.EvLocationShared, fn) }

func (c *Client) OnCallInitiated(fn func(wire.CallPayload))  { on(c, wire.EvCallInitiated, fn) }
func (c *Client) OffCallInitiated(fn func(wire.CallPayload)) { off(c, wire.EvCallInitiated, fn) }

func (c *Client) OnReactionAdded(fn func(wire.ReactionPayload))  { on(c, wire.EvReactionAdded, fn) }
func (c *Client) OffReactionAdded(fn func(wire.ReactionPayload)) { off(c, wire.EvReactionAdded, fn) }

func (c *Client) OnPong(fn func(wire.PongPayload))  { on(c, wire.EvPong, fn) }
func (c *Client) OffPong(fn func(wire.PongPayload)) { off(c, wire.EvPong, fn) }

// Connection lifecycle notifications carry no payload.

func (c *Client) OnConnect(fn func()) {
	c.registry.On(EvConnect, callbackKey(fn), func(wire.Envelope) { fn() })
}

func (c *Client) OffConnect(fn func()) {
	if fn == nil {
		c.registry.OffAll(EvConnect)
		return
	}
	c.registry.Off(EvConnect, callbackKey(fn))
}

func (c *Client) OnDisconnect(fn func()) {
	c.registry.On(EvDisconnect, callbackKey(fn), func(wire.Envelope) { fn() })
}

func (c *Client) OffDisconnect(fn func()) {
	if fn == nil {
		c.registry.OffAll(EvDisconnect)
		return
	}
	c.registry.Off(EvDisconnect, callbackKey(fn))
}

func (c *Client) OnReconnectFailed(fn func()) {
	c.registry.On(EvReconnectFailed, callbackKey(fn), func(wire.Envelope) { fn() })
}

func (c *Client) OffReconnectFailed(fn func()) {
	if fn == nil {
		c.registry.OffAll(EvReconnectFailed)
		return
	}
	c.registry.Off(EvReconnectFailed, callbackKey(fn))
}
