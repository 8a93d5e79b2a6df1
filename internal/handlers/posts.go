package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"heartline/client/internal/auth"
	"heartline/client/internal/realtime"
	"heartline/client/internal/store"
	"heartline/client/internal/wire"
)

type createPostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (a *API) ListPosts(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, a.Store.ListPosts())
}

func (a *API) CreatePost(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	var req createPostRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "title and content are required")
		return
	}

	post := a.Store.CreatePost(identity.UserID, req.Title, req.Content)
	a.Hub.BroadcastAll(wire.EvNewPost, post)
	writeData(w, http.StatusCreated, post)
}

func (a *API) ToggleLike(w http.ResponseWriter, r *http.Request, postID int64, identity auth.Identity) {
	state, err := a.Store.ToggleLike(postID, identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		log.Printf("toggle like: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	payload := wire.PostLikedPayload{
		PostID:     state.PostID,
		UserID:     state.UserID,
		Liked:      state.Liked,
		LikesCount: state.LikesCount,
		Version:    state.Version,
	}
	a.Hub.Broadcast(realtime.RoomKey("post", strconv.FormatInt(postID, 10)), wire.EvPostLiked, payload)
	writeData(w, http.StatusOK, payload)
}
