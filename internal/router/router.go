package router

import (
	"net/http"
	"strconv"
	"strings"

	"heartline/client/internal/auth"
	"heartline/client/internal/handlers"
	"heartline/client/internal/middleware"
	"heartline/client/internal/realtime"
)

type Router struct {
	api     *handlers.API
	auth    *auth.Service
	limiter *middleware.RateLimiter
	origin  string
	hub     *realtime.Hub
}

func New(api *handlers.API, authService *auth.Service, limiter *middleware.RateLimiter, origin string, hub *realtime.Hub) *Router {
	return &Router{api: api, auth: authService, limiter: limiter, origin: origin, hub: hub}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if middleware.HandleCORS(w, r, rt.origin) {
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	if path == "" {
		path = "/"
	}

	var identity auth.Identity
	if requiresAuth(path) {
		var err error
		identity, err = middleware.Authenticate(r, rt.auth)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("{\"error\":\"unauthorized\"}"))
			return
		}
		if rt.limiter != nil {
			key := "user:" + strconv.FormatInt(identity.UserID, 10)
			if !rt.limiter.Allow(key) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte("{\"error\":\"rate limit exceeded\"}"))
				return
			}
		}
	} else if rt.limiter != nil {
		key := middleware.ClientKey(r)
		if !rt.limiter.Allow(key) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("{\"error\":\"rate limit exceeded\"}"))
			return
		}
	}

	switch {
	case path == "/api/v1/ws":
		if r.Method == http.MethodGet && rt.hub != nil {
			realtime.ServeWS(w, r, rt.hub, identity)
			return
		}
	case path == "/api/v1/posts":
		switch r.Method {
		case http.MethodGet:
			rt.api.ListPosts(w, r)
			return
		case http.MethodPost:
			rt.api.CreatePost(w, r, identity)
			return
		}
	case strings.HasPrefix(path, "/api/v1/posts/"):
		segments := strings.Split(strings.TrimPrefix(path, "/api/v1/posts/"), "/")
		if len(segments) == 2 {
			id, ok := handlers.ParseID(segments[0])
			if !ok {
				break
			}
			switch segments[1] {
			case "like":
				if r.Method == http.MethodPost {
					rt.api.ToggleLike(w, r, id, identity)
					return
				}
			case "comments":
				switch r.Method {
				case http.MethodGet:
					rt.api.ListComments(w, r, id)
					return
				case http.MethodPost:
					rt.api.CreateComment(w, r, id, identity)
					return
				}
			}
		}
	case path == "/api/v1/auth/login":
		if r.Method == http.MethodPost {
			rt.api.Login(w, r)
			return
		}
	case path == "/api/v1/auth/register":
		if r.Method == http.MethodPost {
			rt.api.Register(w, r)
			return
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("{\"error\":\"not found\"}"))
}

func requiresAuth(path string) bool {
	switch path {
	case "/api/v1/auth/login", "/api/v1/auth/register":
		return false
	default:
		return strings.HasPrefix(path, "/api/v1/")
	}
}
