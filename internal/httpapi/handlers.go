package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/harsh-dexter/poll-pulse/internal/registry"
)

// CreateRoom mints a room over plain HTTP so a share link can exist before
// anyone opens a WebSocket. The creator still joins through the socket.
func CreateRoom(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Question string `json:"question"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body) // body is optional
		}

		rm := reg.Create(body.Question)
		if rm == nil {
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			Code string `json:"code"`
		}{Code: rm.Code()})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
