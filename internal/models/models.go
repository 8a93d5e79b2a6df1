package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Nickname     string    `json:"nickname"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Post struct {
	ID         int64     `json:"id"`
	AuthorID   int64     `json:"author_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	LikesCount int       `json:"likes_count"`
	// Version increases on every server-side mutation so clients can
	// discard stale broadcasts.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

type Comment struct {
	ID        string    `json:"id"`
	PostID    int64     `json:"post_id"`
	UserID    int64     `json:"user_id"`
	Nickname  string    `json:"nickname"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatMessage struct {
	ID       string    `json:"id"`
	RoomID   string    `json:"room_id"`
	UserID   int64     `json:"user_id"`
	Nickname string    `json:"nickname"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
}
