package statusapi

import (
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// NewServer builds the read-only status server for a match
func NewServer(addr string, provider StateProvider) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewHandler(provider),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// NewHandler returns the status routes wrapped with CORS and h2c
func NewHandler(provider StateProvider) http.Handler {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	NewStateHandler(provider).RegisterStateRoutes(mux)
	setupHealthCheck(mux)

	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
