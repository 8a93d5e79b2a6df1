// Package optimistic applies mutations locally before the server
// confirms them. Each action moves through pending to confirmed or
// reverted: pending state is visible immediately, a failed call
// restores the exact pre-mutation snapshot, and server pushes for the
// same entity are reconciled through a per-post version gate.
package optimistic

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"heartline/client/internal/auth"
	"heartline/client/internal/models"
	"heartline/client/internal/wire"
)

// Result is the synchronous decision point every mutating action hands
// back to its caller. Failures carry both the error and a message fit
// for direct display.
type Result struct {
	Success bool
	Data    any
	Err     error
	Message string
}

var ErrUnknownPost = errors.New("optimistic: unknown post")

func failure(err error, message string) Result {
	return Result{Err: err, Message: message}
}

// API is the slice of the REST surface the coordinator mutates through.
type API interface {
	ToggleLike(ctx context.Context, postID int64) (wire.PostLikedPayload, error)
	CreateComment(ctx context.Context, postID int64, content string) (models.Comment, error)
}

// PostView is the locally held, possibly optimistic state of a post.
type PostView struct {
	Post    models.Post
	IsLiked bool
}

type Coordinator struct {
	api      API
	identity auth.Identity
	// notify surfaces user-facing mutation failures, the toast slot.
	notify func(message string)

	mu       sync.Mutex
	posts    map[int64]*PostView
	comments map[int64][]models.Comment
}

func NewCoordinator(api API, identity auth.Identity, notify func(message string)) *Coordinator {
	if notify == nil {
		notify = func(string) {}
	}
	return &Coordinator{
		api:      api,
		identity: identity,
		notify:   notify,
		posts:    map[int64]*PostView{},
		comments: map[int64][]models.Comment{},
	}
}

// SeedPost installs the server-loaded state a view starts from.
func (c *Coordinator) SeedPost(post models.Post, isLiked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts[post.ID] = &PostView{Post: post, IsLiked: isLiked}
}

func (c *Coordinator) Post(postID int64) (PostView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	view, ok := c.posts[postID]
	if !ok {
		return PostView{}, false
	}
	return *view, true
}

func (c *Coordinator) Comments(postID int64) []models.Comment {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.comments[postID]
	out := make([]models.Comment, len(list))
	copy(out, list)
	return out
}

// ToggleLike flips the like flag and adjusts the counter immediately,
// then settles against the server: confirmation applies the
// authoritative payload, failure restores the snapshot taken before the
// flip.
func (c *Coordinator) ToggleLike(ctx context.Context, postID int64) Result {
	c.mu.Lock()
	view, ok := c.posts[postID]
	if !ok {
		c.mu.Unlock()
		return failure(ErrUnknownPost, "post is not loaded")
	}
	snapshot := *view
	if view.IsLiked {
		view.IsLiked = false
		view.Post.LikesCount--
	} else {
		view.IsLiked = true
		view.Post.LikesCount++
	}
	c.mu.Unlock()

	state, err := c.api.ToggleLike(ctx, postID)
	if err != nil {
		c.mu.Lock()
		if current, ok := c.posts[postID]; ok {
			*current = snapshot
		}
		c.mu.Unlock()
		c.notify("could not update like")
		return failure(err, "could not update like")
	}

	c.mu.Lock()
	if current, ok := c.posts[postID]; ok && state.Version > current.Post.Version {
		current.IsLiked = state.Liked
		current.Post.LikesCount = state.LikesCount
		current.Post.Version = state.Version
	}
	var result PostView
	if confirmed, ok := c.posts[postID]; ok {
		result = *confirmed
	}
	c.mu.Unlock()
	return Result{Success: true, Data: result}
}

// ApplyPushLike folds a broadcast like-change into local state. Stale
// broadcasts, identified by the version gate, are dropped so they never
// clobber a fresher local confirmation.
func (c *Coordinator) ApplyPushLike(p wire.PostLikedPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	view, ok := c.posts[p.PostID]
	if !ok {
		return
	}
	if p.Version != 0 && p.Version <= view.Post.Version {
		return
	}
	view.Post.LikesCount = p.LikesCount
	view.Post.Version = p.Version
	if p.UserID == c.identity.UserID {
		view.IsLiked = p.Liked
	}
}

// CreateComment shows the comment immediately under a provisional ID,
// swaps it for the server's copy on confirmation, and withdraws it on
// failure.
func (c *Coordinator) CreateComment(ctx context.Context, postID int64, content string) Result {
	temp := models.Comment{
		ID:        "pending-" + uuid.NewString(),
		PostID:    postID,
		UserID:    c.identity.UserID,
		Nickname:  c.identity.Nickname,
		Content:   content,
		CreatedAt: time.Now(),
	}
	c.mu.Lock()
	c.comments[postID] = append(c.comments[postID], temp)
	c.mu.Unlock()

	created, err := c.api.CreateComment(ctx, postID, content)
	if err != nil {
		c.mu.Lock()
		c.removeCommentLocked(postID, temp.ID)
		c.mu.Unlock()
		c.notify("could not post comment")
		return failure(err, "could not post comment")
	}

	// The room broadcast can beat this confirmation, so drop the
	// provisional entry first and only append if the server copy is
	// not already present.
	c.mu.Lock()
	c.removeCommentLocked(postID, temp.ID)
	known := false
	for _, existing := range c.comments[postID] {
		if existing.ID == created.ID {
			known = true
			break
		}
	}
	if !known {
		c.comments[postID] = append(c.comments[postID], created)
	}
	c.mu.Unlock()
	return Result{Success: true, Data: created}
}

// ApplyPushComment folds a broadcast comment in, skipping ones already
// known locally, which covers our own confirmed comment echoing back
// through the room.
func (c *Coordinator) ApplyPushComment(comment models.Comment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.comments[comment.PostID] {
		if existing.ID == comment.ID {
			return
		}
	}
	c.comments[comment.PostID] = append(c.comments[comment.PostID], comment)
}

func (c *Coordinator) ApplyPushCommentDeleted(p wire.CommentDeletedPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeCommentLocked(p.PostID, p.CommentID)
}

func (c *Coordinator) removeCommentLocked(postID int64, commentID string) {
	list := c.comments[postID]
	for i, existing := range list {
		if existing.ID == commentID {
			c.comments[postID] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}
