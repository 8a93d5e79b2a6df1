// Package wire defines the named events and payload shapes exchanged
// over the realtime channel. Every event the server can push is listed
// here; adding a kind means extending DecodeServerPayload, which keeps
// unknown payloads a visible, compile-adjacent change instead of a
// silently ignored string.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"heartline/client/internal/models"
)

// Client-to-server events.
const (
	EvJoinRoom      = "join-room"
	EvLeaveRoom     = "leave-room"
	EvJoinPost      = "join-post"
	EvLeavePost     = "leave-post"
	EvJoinBlog      = "join-blog"
	EvLeaveBlog     = "leave-blog"
	EvJoinDocument  = "join-document"
	EvLeaveDocument = "leave-document"

	EvSendMessage     = "send-message"
	EvTypingStart     = "typing-start"
	EvTypingStop      = "typing-stop"
	EvReaction        = "reaction"
	EvDocumentChange  = "document-change"
	EvLocationShare   = "location-share"
	EvCallInitiate    = "call-initiate"
	EvPing            = "ping"
	EvUserActivity    = "user-activity"
	EvReadingProgress = "reading-progress"
	EvFinishReading   = "finish-reading"
)

// Server-to-client events.
const (
	EvNewPost        = "new-post"
	EvPostUpdated    = "post-updated"
	EvPostLiked      = "post-liked"
	EvNewComment     = "new-comment"
	EvCommentUpdated = "comment-updated"
	EvCommentDeleted = "comment-deleted"

	EvNewMessage  = "new-message"
	EvUserJoined  = "user-joined"
	EvUserLeft    = "user-left"
	EvRoomCreated = "room-created"
	EvRoomUpdated = "room-updated"
	EvUserCount   = "user-count-update"

	EvSystemAnnouncement = "system-announcement"
	EvNotification       = "notification"
	EvReactionAdded      = "reaction-added"
	EvDocumentChanged    = "document-changed"
	EvLocationShared     = "location-shared"
	EvCallInitiated      = "call-initiated"
	EvPong               = "pong"
)

// Envelope is the frame every event travels in.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func Encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}
	return json.Marshal(env)
}

func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("frame without event name")
	}
	return env, nil
}

type RoomPayload struct {
	RoomID string `json:"room_id"`
}

type PostRoomPayload struct {
	PostID int64 `json:"post_id"`
}

type DocumentRoomPayload struct {
	DocumentID string `json:"document_id"`
}

type SendMessagePayload struct {
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
}

type TypingPayload struct {
	RoomID   string `json:"room_id"`
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
}

type ReactionPayload struct {
	RoomID    string `json:"room_id"`
	MessageID string `json:"message_id"`
	UserID    int64  `json:"user_id"`
	Emoji     string `json:"emoji"`
}

type DocumentChangePayload struct {
	DocumentID string `json:"document_id"`
	UserID     int64  `json:"user_id"`
	Patch      string `json:"patch"`
	Version    int64  `json:"version"`
}

type LocationPayload struct {
	RoomID    string  `json:"room_id"`
	UserID    int64   `json:"user_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type CallPayload struct {
	RoomID string `json:"room_id"`
	CallID string `json:"call_id"`
	UserID int64  `json:"user_id"`
	Media  string `json:"media"`
}

type UserActivityPayload struct {
	UserID   int64     `json:"user_id"`
	Activity string    `json:"activity"`
	At       time.Time `json:"at"`
}

type ReadingProgressPayload struct {
	PostID  int64   `json:"post_id"`
	Percent float64 `json:"percent"`
	Section string  `json:"section,omitempty"`
}

type ReadingFinishedPayload struct {
	PostID     int64 `json:"post_id"`
	DurationMs int64 `json:"duration_ms"`
}

type PostLikedPayload struct {
	PostID     int64 `json:"post_id"`
	UserID     int64 `json:"user_id"`
	Liked      bool  `json:"liked"`
	LikesCount int   `json:"likes_count"`
	Version    int64 `json:"version"`
}

type CommentDeletedPayload struct {
	PostID    int64  `json:"post_id"`
	CommentID string `json:"comment_id"`
}

type PresencePayload struct {
	RoomID   string `json:"room_id"`
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
}

type UserCountPayload struct {
	Count int `json:"count"`
}

type AnnouncementPayload struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type NotificationPayload struct {
	UserID  int64  `json:"user_id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type PongPayload struct {
	At time.Time `json:"at"`
}

// DecodeServerPayload maps a pushed envelope to its concrete payload.
// The switch is the closed set of server events; anything else is an
// error the caller decides how to surface.
func DecodeServerPayload(env Envelope) (any, error) {
	decode := func(dst any) (any, error) {
		if len(env.Data) == 0 {
			return dst, nil
		}
		if err := json.Unmarshal(env.Data, dst); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return dst, nil
	}

	switch env.Event {
	case EvNewPost, EvPostUpdated:
		return decode(&models.Post{})
	case EvPostLiked:
		return decode(&PostLikedPayload{})
	case EvNewComment, EvCommentUpdated:
		return decode(&models.Comment{})
	case EvCommentDeleted:
		return decode(&CommentDeletedPayload{})
	case EvNewMessage:
		return decode(&models.ChatMessage{})
	case EvUserJoined, EvUserLeft:
		return decode(&PresencePayload{})
	case EvTypingStart, EvTypingStop:
		return decode(&TypingPayload{})
	case EvRoomCreated, EvRoomUpdated:
		return decode(&models.Room{})
	case EvUserCount:
		return decode(&UserCountPayload{})
	case EvSystemAnnouncement:
		return decode(&AnnouncementPayload{})
	case EvNotification:
		return decode(&NotificationPayload{})
	case EvReactionAdded:
		return decode(&ReactionPayload{})
	case EvDocumentChanged:
		return decode(&DocumentChangePayload{})
	case EvLocationShared:
		return decode(&LocationPayload{})
	case EvCallInitiated:
		return decode(&CallPayload{})
	case EvPong:
		return decode(&PongPayload{})
	}
	return nil, fmt.Errorf("unknown server event %q", env.Event)
}
