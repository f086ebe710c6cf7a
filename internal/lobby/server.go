package lobby

import (
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/arcadelabs/arcade/internal/artifact"
	"github.com/arcadelabs/arcade/internal/store"
)

// Server accepts lobby connections and runs one worker per connection. It
// can serve several listeners at once (TCP and QUIC carry the same
// protocol).
type Server struct {
	lobby     *Lobby
	store     store.Store
	artifacts *artifact.Library
	logger    *slog.Logger

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool

	wg sync.WaitGroup
}

func NewServer(l *Lobby, st store.Store, artifacts *artifact.Library, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Server{
		lobby:     l,
		store:     st,
		artifacts: artifacts,
		logger:    logger,
		conns:     make(map[net.Conn]struct{}),
	}
}

// Serve accepts connections until the listener is closed. It returns nil
// when the listener was closed, the accept error otherwise.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		if !s.track(conn) {
			conn.Close()
			return nil
		}

		s.logger.Debug("connection accepted", "remote", conn.RemoteAddr())

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConn(conn)
		}()
	}
}

// Close terminates every room's game-server process, then closes all client
// connections and waits for their workers to finish.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	s.lobby.Close()

	for _, conn := range conns {
		conn.Close()
	}
	s.wg.Wait()
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}

	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}
