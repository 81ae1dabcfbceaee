package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/harsh-dexter/poll-pulse/internal/gateway"
	"github.com/harsh-dexter/poll-pulse/internal/registry"
)

func SetupRoutes(reg *registry.Registry, gw *gateway.Gateway) http.Handler {
	r := chi.NewRouter()

	r.Post("/rooms", CreateRoom(reg))
	r.Get("/healthz", Healthz)
	r.Get("/ws", gw.Handler())

	return cors.AllowAll().Handler(r)
}
