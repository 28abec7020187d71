// Package web serves a read-mostly HTML view of stored timelines.
package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tracekit/pktvis/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Server is the pktvis web server.
type Server struct {
	mux      *http.ServeMux
	handlers *Handlers
}

// NewServer creates a web server with all routes registered.
func NewServer(db *sql.DB, cfg *config.Config, version string) (*Server, error) {
	templates, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("sub templates: %w", err)
	}
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("sub static: %w", err)
	}

	renderer := NewRenderer(templates, version)
	h := NewHandlers(db, cfg, renderer, version)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/timelines", http.StatusSeeOther)
	})
	mux.HandleFunc("GET /timelines", h.HandleList)
	mux.HandleFunc("GET /timelines/{id}", h.HandleDetail)
	mux.HandleFunc("GET /timelines/{id}/source/{function}", h.HandleSource)
	mux.HandleFunc("DELETE /timelines/{id}", h.HandleDelete)
	mux.HandleFunc("POST /timelines/purge", h.HandlePurge)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	return &Server{mux: mux, handlers: h}, nil
}

// Handler returns the server's HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return securityHeaders(s.mux)
}

// securityHeaders sets baseline security headers on every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the web server and blocks until SIGINT/SIGTERM, then shuts
// down gracefully with a 5 second drain.
func Run(db *sql.DB, cfg *config.Config, addr, version string) error {
	s, err := NewServer(db, cfg, version)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
