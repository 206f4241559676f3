// Package httpserver builds the http.Server the command wires up.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server with timeouts tuned for this workload. Proof
// generation is CPU-bound and can hold a request for seconds, so the write
// timeout stays generous while the header timeout stays tight.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
