// Package apiclient is the thin HTTP client for the platform's JSON
// API. Responses come wrapped as {"data": ...} on success and
// {"error": "..."} on failure; non-2xx statuses are surfaced as errors,
// never as panics.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"heartline/client/internal/models"
	"heartline/client/internal/wire"
)

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// SetToken swaps the bearer token, used after login. Requests already
// in flight keep the token they started with.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && resp.StatusCode < 300 {
		return fmt.Errorf("api: decode response: %w", err)
	}
	if resp.StatusCode >= 300 {
		if env.Error != "" {
			return fmt.Errorf("api: %s", env.Error)
		}
		return fmt.Errorf("api: unexpected status %d", resp.StatusCode)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("api: decode data: %w", err)
		}
	}
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return "", err
	}
	c.SetToken(resp.Token)
	return resp.Token, nil
}

func (c *Client) ListPosts(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := c.do(ctx, http.MethodGet, "/api/v1/posts", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) CreatePost(ctx context.Context, title, content string) (models.Post, error) {
	var post models.Post
	body := map[string]string{"title": title, "content": content}
	if err := c.do(ctx, http.MethodPost, "/api/v1/posts", body, &post); err != nil {
		return models.Post{}, err
	}
	return post, nil
}

// ToggleLike flips the caller's like on a post and returns the
// server-authoritative state.
func (c *Client) ToggleLike(ctx context.Context, postID int64) (wire.PostLikedPayload, error) {
	var state wire.PostLikedPayload
	path := fmt.Sprintf("/api/v1/posts/%d/like", postID)
	if err := c.do(ctx, http.MethodPost, path, nil, &state); err != nil {
		return wire.PostLikedPayload{}, err
	}
	return state, nil
}

func (c *Client) CreateComment(ctx context.Context, postID int64, content string) (models.Comment, error) {
	var comment models.Comment
	path := fmt.Sprintf("/api/v1/posts/%d/comments", postID)
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"content": content}, &comment); err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

func (c *Client) ListComments(ctx context.Context, postID int64) ([]models.Comment, error) {
	var comments []models.Comment
	path := fmt.Sprintf("/api/v1/posts/%d/comments", postID)
	if err := c.do(ctx, http.MethodGet, path, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}
