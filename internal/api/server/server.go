package server

import (
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/gif-processor/internal/config"
)

// New creates the HTTP server. Write timeout covers pipeline runs, so it
// comes from configuration.
func New(cfg config.Server, router *ginext.Engine) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
