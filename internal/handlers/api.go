package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"heartline/client/internal/auth"
	"heartline/client/internal/realtime"
	"heartline/client/internal/store"
)

type API struct {
	Store *store.Store
	Auth  *auth.Service
	Hub   *realtime.Hub
}

func NewAPI(s *store.Store, authService *auth.Service, hub *realtime.Hub) *API {
	return &API{Store: s, Auth: authService, Hub: hub}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func readJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func ParseID(pathPart string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(pathPart), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
