package server

import (
	"context"
	"crypto/subtle"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ipcluster/controller/internal/controller"
	logpkg "github.com/ipcluster/controller/pkg/log"
)

// Binding describes one listener endpoint: where it binds, where remote
// parties are told to reach it, and the TLS material when secure.
type Binding struct {
	IP       string
	Port     int
	Location string
	TLS      *tls.Config
}

// Addr is the bind address in host:port form.
func (b Binding) Addr() string {
	return net.JoinHostPort(b.IP, fmt.Sprintf("%d", b.Port))
}

// URL is the advertised location written into connection files.
func (b Binding) URL() string {
	scheme := "http"
	if b.TLS != nil {
		scheme = "https"
	}
	host := b.Location
	if host == "" {
		host = b.IP
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, fmt.Sprintf("%d", b.Port)))
}

// Server is one listener over the shared backend. Both the client and
// engine services are built on it.
type Server struct {
	backend *controller.Controller
	binding Binding
	srv     *http.Server
	logger  logpkg.Logger

	mu  sync.Mutex
	lis net.Listener
}

func newServer(backend *controller.Controller, binding Binding, logger logpkg.Logger, name string) *Server {
	mux := http.NewServeMux()
	s := &Server{
		backend: backend,
		binding: binding,
		logger:  logger.With(logpkg.Component(name)),
		srv:     &http.Server{Handler: mux},
	}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	return s
}

func (s *Server) mux() *http.ServeMux { return s.srv.Handler.(*http.ServeMux) }

// ListenAndServe binds the listener and serves until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if s.binding.TLS != nil {
		l = tls.NewListener(l, s.binding.TLS)
	}
	s.mu.Lock()
	s.lis = l
	s.mu.Unlock()

	s.logger.Info("listening", logpkg.Str("addr", l.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases the listener socket.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

// Addr returns the bound address, or nil before ListenAndServe binds.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// requireSecret guards a capability's routes with its bearer secret.
func requireSecret(secret string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid capability secret"})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.CheckHealth(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_serving"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBackendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, controller.ErrUnknownEngine),
		errors.Is(err, controller.ErrUnknownTask):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, controller.ErrNoPendingTasks):
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
