// Package httpserver builds the kernel's HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with conservative timeouts. Artifact uploads and
// proof-pack exports move real bytes, so the read/write timeouts stay well
// above the per-request middleware timeout; slow-loris protection comes from
// the header timeout.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
