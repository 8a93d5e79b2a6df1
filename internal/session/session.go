// Package session wires the socket client, the HTTP API client, the
// optimistic mutation coordinator, and the presence and telemetry
// trackers into one live user session.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"heartline/client/internal/apiclient"
	"heartline/client/internal/auth"
	"heartline/client/internal/models"
	"heartline/client/internal/optimistic"
	"heartline/client/internal/presence"
	"heartline/client/internal/socket"
	"heartline/client/internal/telemetry"
	"heartline/client/internal/wire"
)

type Config struct {
	ServerURL string
	SocketURL string
	Token     string

	// Notify receives user-facing failure messages from rolled-back
	// mutations. Optional.
	Notify func(message string)
}

type Session struct {
	socket   *socket.Client
	api      *apiclient.Client
	presence *presence.Aggregator
	typing   *telemetry.TypingNotifier
	reading  *telemetry.ReadingTracker
	notify   func(message string)

	// mutate is built during Connect, once the token's identity is
	// known; push handlers read it from the dispatch goroutine.
	mu           sync.RWMutex
	mutate       *optimistic.Coordinator
	activityStop chan struct{}
}

// activityInterval paces the background user-activity heartbeat.
const activityInterval = time.Minute

// New builds the session and registers its push handlers. Connect must
// be called before any realtime traffic flows.
func New(cfg Config, socketCfg socket.Config) *Session {
	if socketCfg.URL == "" {
		socketCfg.URL = cfg.SocketURL
	}

	s := &Session{
		socket:   socket.New(socketCfg),
		api:      apiclient.New(cfg.ServerURL, cfg.Token),
		presence: presence.NewAggregator(),
		notify:   cfg.Notify,
	}
	if s.notify == nil {
		s.notify = func(message string) { log.Printf("session: %s", message) }
	}

	s.typing = telemetry.NewTypingNotifier(s.socket.SendTypingStart, s.socket.SendTypingStop)
	s.reading = telemetry.NewReadingTracker(s.socket.ReportReadingProgress, s.socket.ReportReadingFinished)

	s.socket.OnUserCount(s.presence.ApplyUserCount)
	s.socket.OnTypingStart(s.presence.ApplyTypingStart)
	s.socket.OnTypingStop(s.presence.ApplyTypingStop)
	s.socket.OnUserJoined(s.presence.ApplyUserJoined)
	s.socket.OnUserLeft(s.presence.ApplyUserLeft)

	s.socket.OnPostLiked(s.applyPushLike)
	s.socket.OnNewComment(s.applyPushComment)
	s.socket.OnCommentDeleted(s.applyPushCommentDeleted)

	return s
}

func (s *Session) applyPushLike(p wire.PostLikedPayload) {
	if m := s.Mutations(); m != nil {
		m.ApplyPushLike(p)
	}
}

func (s *Session) applyPushComment(comment models.Comment) {
	if m := s.Mutations(); m != nil {
		m.ApplyPushComment(comment)
	}
}

func (s *Session) applyPushCommentDeleted(p wire.CommentDeletedPayload) {
	if m := s.Mutations(); m != nil {
		m.ApplyPushCommentDeleted(p)
	}
}

// Connect authenticates the socket and builds the mutation coordinator
// from the token's identity. A failed dial still yields a working
// coordinator: the identity comes from the token itself, the manager
// keeps redialing in the background, and mutations ride plain HTTP.
func (s *Session) Connect(token string) error {
	s.api.SetToken(token)
	err := s.socket.Connect(token)
	if identity := s.socket.Identity(); identity != (auth.Identity{}) {
		s.mu.Lock()
		s.mutate = optimistic.NewCoordinator(s.api, identity, s.notify)
		if s.activityStop == nil {
			s.activityStop = make(chan struct{})
			go s.reportActivity(s.activityStop)
		}
		s.mu.Unlock()
	}
	return err
}

// reportActivity emits a periodic activity heartbeat while the socket
// is connected; sends while disconnected are skipped, not queued.
func (s *Session) reportActivity(stop chan struct{}) {
	ticker := time.NewTicker(activityInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.socket.IsConnectedToServer() {
				_ = s.socket.ReportActivity("online")
			}
		}
	}
}

// Login exchanges credentials for a token, then connects.
func (s *Session) Login(ctx context.Context, email, password string) error {
	token, err := s.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return s.Connect(token)
}

func (s *Session) Close() {
	s.mu.Lock()
	if s.activityStop != nil {
		close(s.activityStop)
		s.activityStop = nil
	}
	s.mu.Unlock()
	s.typing.Close()
	s.socket.Disconnect()
}

func (s *Session) Socket() *socket.Client         { return s.socket }
func (s *Session) API() *apiclient.Client         { return s.api }
func (s *Session) Presence() *presence.Aggregator { return s.presence }

func (s *Session) Mutations() *optimistic.Coordinator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mutate
}

// Posts

// LoadPosts fetches the post list and seeds the mutation coordinator so
// optimistic updates have a baseline to roll back to.
func (s *Session) LoadPosts(ctx context.Context) ([]models.Post, error) {
	posts, err := s.api.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	if m := s.Mutations(); m != nil {
		for _, post := range posts {
			m.SeedPost(post, false)
		}
	}
	return posts, nil
}

// OpenPost joins the post's room and starts a reading session.
func (s *Session) OpenPost(postID int64) {
	s.socket.JoinPostRoom(postID)
	s.reading.Start(postID)
}

// ClosePost finishes the reading session and leaves the room.
func (s *Session) ClosePost(postID int64) {
	s.reading.Finish(postID)
	s.socket.LeavePostRoom(postID)
}

func (s *Session) ReadingProgress(postID int64, percent float64, section string) {
	s.reading.Progress(postID, percent, section)
}

// errNotAuthenticated surfaces mutating calls made before any Connect
// produced an identity; they fail as a result, never a panic.
var errNotAuthenticated = errors.New("session: not authenticated")

func (s *Session) LikePost(ctx context.Context, postID int64) optimistic.Result {
	m := s.Mutations()
	if m == nil {
		return optimistic.Result{Err: errNotAuthenticated, Message: "not signed in"}
	}
	return m.ToggleLike(ctx, postID)
}

func (s *Session) CommentOnPost(ctx context.Context, postID int64, content string) optimistic.Result {
	m := s.Mutations()
	if m == nil {
		return optimistic.Result{Err: errNotAuthenticated, Message: "not signed in"}
	}
	return m.CreateComment(ctx, postID, content)
}

// Chat

func (s *Session) JoinChatRoom(roomID string)  { s.socket.JoinChatRoom(roomID) }
func (s *Session) LeaveChatRoom(roomID string) { s.socket.LeaveChatRoom(roomID) }

// Keystroke reports typing activity for the room, debounced so a burst
// of keystrokes sends one typing-start and one trailing typing-stop.
func (s *Session) Keystroke(roomID string) { s.typing.Keystroke(roomID) }

// SendChatMessage flushes any pending typing indicator before the
// message goes out.
func (s *Session) SendChatMessage(roomID, content string) error {
	s.typing.Flush(roomID)
	return s.socket.SendMessage(roomID, content)
}
