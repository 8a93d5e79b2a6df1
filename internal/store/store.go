// Package store keeps the reference server's state in memory. The
// production platform persists through its own API service; this store
// exists so the realtime stack can run and be tested without one.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"heartline/client/internal/models"
)

var (
	ErrNotFound       = errors.New("store: not found")
	ErrBadCredentials = errors.New("store: invalid credentials")
	ErrDuplicateEmail = errors.New("store: email already registered")
)

type Store struct {
	mu         sync.Mutex
	usersByID  map[int64]models.User
	userIDs    map[string]int64
	nextUserID int64

	posts      map[int64]*models.Post
	nextPostID int64
	likes      map[int64]map[int64]bool
	comments   map[int64][]models.Comment

	rooms map[string]models.Room
}

func New() *Store {
	return &Store{
		usersByID: map[int64]models.User{},
		userIDs:   map[string]int64{},
		posts:     map[int64]*models.Post{},
		likes:     map[int64]map[int64]bool{},
		comments:  map[int64][]models.Comment{},
		rooms:     map[string]models.Room{},
	}
}

func (s *Store) CreateUser(email, nickname, password string) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.userIDs[email]; exists {
		return models.User{}, ErrDuplicateEmail
	}
	s.nextUserID++
	user := models.User{
		ID:           s.nextUserID,
		Email:        email,
		Nickname:     nickname,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	s.usersByID[user.ID] = user
	s.userIDs[email] = user.ID
	return user, nil
}

func (s *Store) Authenticate(email, password string) (models.User, error) {
	s.mu.Lock()
	id, ok := s.userIDs[email]
	user := s.usersByID[id]
	s.mu.Unlock()
	if !ok {
		return models.User{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrBadCredentials
	}
	return user, nil
}

func (s *Store) User(id int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.usersByID[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user, nil
}

func (s *Store) CreatePost(authorID int64, title, content string) models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPostID++
	post := models.Post{
		ID:        s.nextPostID,
		AuthorID:  authorID,
		Title:     title,
		Content:   content,
		Version:   1,
		CreatedAt: time.Now(),
	}
	s.posts[post.ID] = &post
	return post
}

func (s *Store) ListPosts() []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	posts := make([]models.Post, 0, len(s.posts))
	for _, post := range s.posts {
		posts = append(posts, *post)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	return posts
}

func (s *Store) Post(id int64) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[id]
	if !ok {
		return models.Post{}, ErrNotFound
	}
	return *post, nil
}

// LikeState is the authoritative outcome of a like toggle.
type LikeState struct {
	PostID     int64
	UserID     int64
	Liked      bool
	LikesCount int
	Version    int64
}

// ToggleLike flips userID's like on a post, bumping the post version so
// clients can order concurrent updates.
func (s *Store) ToggleLike(postID, userID int64) (LikeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[postID]
	if !ok {
		return LikeState{}, ErrNotFound
	}
	set := s.likes[postID]
	if set == nil {
		set = map[int64]bool{}
		s.likes[postID] = set
	}
	liked := !set[userID]
	if liked {
		set[userID] = true
	} else {
		delete(set, userID)
	}
	post.LikesCount = len(set)
	post.Version++
	return LikeState{
		PostID:     postID,
		UserID:     userID,
		Liked:      liked,
		LikesCount: post.LikesCount,
		Version:    post.Version,
	}, nil
}

func (s *Store) AddComment(postID, userID int64, nickname, content string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[postID]
	if !ok {
		return models.Comment{}, ErrNotFound
	}
	comment := models.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    userID,
		Nickname:  nickname,
		Content:   content,
		CreatedAt: time.Now(),
	}
	s.comments[postID] = append(s.comments[postID], comment)
	post.Version++
	return comment, nil
}

func (s *Store) Comments(postID int64) []models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.comments[postID]
	out := make([]models.Comment, len(list))
	copy(out, list)
	return out
}

func (s *Store) EnsureRoom(id, name string) models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[id]; ok {
		return room
	}
	room := models.Room{ID: id, Name: name, CreatedAt: time.Now()}
	s.rooms[id] = room
	return room
}
