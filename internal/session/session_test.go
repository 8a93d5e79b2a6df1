package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"heartline/client/internal/auth"
	"heartline/client/internal/handlers"
	"heartline/client/internal/models"
	"heartline/client/internal/realtime"
	"heartline/client/internal/router"
	"heartline/client/internal/socket"
	"heartline/client/internal/store"
)

func newTestBackend(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	st := store.New()
	for _, u := range []struct{ email, nickname string }{
		{"alice@example.com", "alice"},
		{"bob@example.com", "bob"},
		{"carol@example.com", "carol"},
	} {
		if _, err := st.CreateUser(u.email, u.nickname, "correct horse"); err != nil {
			t.Fatalf("seed user %s: %v", u.email, err)
		}
	}

	authService, err := auth.NewService("session-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	hub := realtime.NewHub(nil)
	api := handlers.NewAPI(st, authService, hub)
	srv := httptest.NewServer(router.New(api, authService, nil, "*", hub))
	t.Cleanup(srv.Close)
	return srv, st
}

func newSession(t *testing.T, srv *httptest.Server, notify func(string)) *Session {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	s := New(Config{ServerURL: srv.URL, Notify: notify}, socket.Config{
		URL:                  wsURL,
		MaxReconnectAttempts: 1,
		ReconnectDelay:       10 * time.Millisecond,
	})
	t.Cleanup(s.Close)
	return s
}

func login(t *testing.T, s *Session, email string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Login(ctx, email, "correct horse"); err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestChatMessageRoundTrip(t *testing.T) {
	srv, _ := newTestBackend(t)

	alice := newSession(t, srv, nil)
	bob := newSession(t, srv, nil)
	login(t, alice, "alice@example.com")
	login(t, bob, "bob@example.com")

	received := make(chan models.ChatMessage, 4)
	bob.Socket().OnNewMessage(func(msg models.ChatMessage) { received <- msg })

	alice.JoinChatRoom("lobby")
	bob.JoinChatRoom("lobby")
	waitFor(t, func() bool {
		return len(bob.Presence().Participants("lobby")) >= 1
	}, "bob never saw a join announcement")

	if err := alice.SendChatMessage("lobby", "hello"); err != nil {
		t.Fatalf("send message: %v", err)
	}

	select {
	case msg := <-received:
		if msg.Content != "hello" {
			t.Fatalf("expected content hello, got %q", msg.Content)
		}
		if msg.Nickname != "alice" {
			t.Fatalf("expected sender alice, got %q", msg.Nickname)
		}
		if msg.RoomID != "lobby" {
			t.Fatalf("expected room lobby, got %q", msg.RoomID)
		}
		if msg.ID == "" {
			t.Fatal("expected a server-assigned message id")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("message never arrived")
	}

	select {
	case msg := <-received:
		t.Fatalf("message delivered twice: %+v", msg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPresenceAccounting(t *testing.T) {
	srv, _ := newTestBackend(t)

	alice := newSession(t, srv, nil)
	bob := newSession(t, srv, nil)
	carol := newSession(t, srv, nil)
	login(t, alice, "alice@example.com")
	login(t, bob, "bob@example.com")
	login(t, carol, "carol@example.com")

	alice.JoinChatRoom("lounge")
	bob.JoinChatRoom("lounge")
	carol.JoinChatRoom("lounge")

	// Each client also sees its own join announcement, so alice's view
	// of the lounge holds all three members.
	waitFor(t, func() bool {
		return len(alice.Presence().Participants("lounge")) == 3
	}, "alice never saw all three joins")

	carol.LeaveChatRoom("lounge")
	waitFor(t, func() bool {
		names := alice.Presence().Participants("lounge")
		if len(names) != 2 {
			return false
		}
		for _, p := range names {
			if p.Nickname == "carol" {
				return false
			}
		}
		return true
	}, "carol's leave never reached alice")

	waitFor(t, func() bool {
		return alice.Presence().OnlineCount() == 3
	}, "online count never reached 3")
}

func TestOptimisticLikeAgainstServer(t *testing.T) {
	srv, _ := newTestBackend(t)

	alice := newSession(t, srv, nil)
	login(t, alice, "alice@example.com")

	ctx := context.Background()
	post, err := alice.API().CreatePost(ctx, "first", "hello world")
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if _, err := alice.LoadPosts(ctx); err != nil {
		t.Fatalf("load posts: %v", err)
	}

	res := alice.LikePost(ctx, post.ID)
	if !res.Success {
		t.Fatalf("like failed: %v", res.Err)
	}

	view, ok := alice.Mutations().Post(post.ID)
	if !ok {
		t.Fatal("post missing from coordinator")
	}
	if !view.IsLiked || view.Post.LikesCount != 1 {
		t.Fatalf("expected liked state with count 1, got %+v", view)
	}

	res = alice.LikePost(ctx, post.ID)
	if !res.Success {
		t.Fatalf("unlike failed: %v", res.Err)
	}
	view, _ = alice.Mutations().Post(post.ID)
	if view.IsLiked || view.Post.LikesCount != 0 {
		t.Fatalf("expected unliked state with count 0, got %+v", view)
	}
}

func TestCommentFlowWithPush(t *testing.T) {
	srv, _ := newTestBackend(t)

	alice := newSession(t, srv, nil)
	bob := newSession(t, srv, nil)
	login(t, alice, "alice@example.com")
	login(t, bob, "bob@example.com")

	ctx := context.Background()
	post, err := alice.API().CreatePost(ctx, "discuss", "say something")
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if _, err := alice.LoadPosts(ctx); err != nil {
		t.Fatalf("load posts alice: %v", err)
	}
	if _, err := bob.LoadPosts(ctx); err != nil {
		t.Fatalf("load posts bob: %v", err)
	}

	alice.OpenPost(post.ID)
	bob.OpenPost(post.ID)
	waitFor(t, func() bool {
		return len(bob.Presence().Participants(postRoomID(post.ID))) >= 1
	}, "bob never saw alice in the post room")

	res := alice.CommentOnPost(ctx, post.ID, "nice one")
	if !res.Success {
		t.Fatalf("comment failed: %v", res.Err)
	}

	waitFor(t, func() bool {
		comments := bob.Mutations().Comments(post.ID)
		return len(comments) == 1 && comments[0].Content == "nice one"
	}, "comment push never reached bob")

	comments := alice.Mutations().Comments(post.ID)
	if len(comments) != 1 {
		t.Fatalf("expected one comment for alice, got %d", len(comments))
	}
	if strings.HasPrefix(comments[0].ID, "pending-") {
		t.Fatalf("pending comment never confirmed: %+v", comments[0])
	}
}

func postRoomID(postID int64) string {
	return strconv.FormatInt(postID, 10)
}

func TestMutationsSurviveFailedDial(t *testing.T) {
	authService, err := auth.NewService("session-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	token, err := authService.GenerateToken(models.User{ID: 7, Email: "alice@example.com", Nickname: "alice"})
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	// A server that is already gone: the dial fails immediately.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()
	wsURL := "ws" + strings.TrimPrefix(dead.URL, "http") + "/api/v1/ws"

	s := New(Config{ServerURL: dead.URL}, socket.Config{
		URL:                  wsURL,
		MaxReconnectAttempts: 1,
		ReconnectDelay:       10 * time.Millisecond,
	})
	t.Cleanup(s.Close)

	if err := s.Connect(token); err == nil {
		t.Fatal("expected dial failure")
	}
	if s.Mutations() == nil {
		t.Fatal("coordinator missing after failed dial")
	}

	res := s.LikePost(context.Background(), 42)
	if res.Success {
		t.Fatalf("expected failure result, got %+v", res)
	}
	if res.Err == nil {
		t.Fatal("expected an error in the result")
	}
	res = s.CommentOnPost(context.Background(), 42, "hi")
	if res.Success || res.Err == nil {
		t.Fatalf("expected failure result, got %+v", res)
	}
}

func TestMutationsBeforeConnectReturnFailure(t *testing.T) {
	s := New(Config{ServerURL: "http://127.0.0.1:0"}, socket.Config{
		URL:                  "ws://127.0.0.1:0/api/v1/ws",
		MaxReconnectAttempts: 1,
		ReconnectDelay:       10 * time.Millisecond,
	})
	t.Cleanup(s.Close)

	res := s.LikePost(context.Background(), 1)
	if res.Success || res.Err == nil {
		t.Fatalf("expected failure result, got %+v", res)
	}
	res = s.CommentOnPost(context.Background(), 1, "hi")
	if res.Success || res.Err == nil {
		t.Fatalf("expected failure result, got %+v", res)
	}
}
