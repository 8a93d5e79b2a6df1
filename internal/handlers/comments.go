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

type createCommentRequest struct {
	Content string `json:"content"`
}

func (a *API) ListComments(w http.ResponseWriter, r *http.Request, postID int64) {
	if _, err := a.Store.Post(postID); err != nil {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	writeData(w, http.StatusOK, a.Store.Comments(postID))
}

func (a *API) CreateComment(w http.ResponseWriter, r *http.Request, postID int64, identity auth.Identity) {
	var req createCommentRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	comment, err := a.Store.AddComment(postID, identity.UserID, identity.Nickname, req.Content)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		log.Printf("create comment: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	a.Hub.Broadcast(realtime.RoomKey("post", strconv.FormatInt(postID, 10)), wire.EvNewComment, comment)
	writeData(w, http.StatusCreated, comment)
}
