// Package service implements the albinos daemon: the local socket
// listener, the request dispatcher and the subscription fan-out.
//
// One goroutine serves each connection; a single service-wide lock
// serializes handler execution and fan-out, so no handler ever observes a
// partially mutated document and the reply to a mutation is always on the
// wire before the events derived from it.
package service

import (
	"net"
	"os"
	"sync"

	"github.com/raven-os/albinos/pkg/protocol"
	"github.com/raven-os/albinos/pkg/store"
	"github.com/raven-os/albinos/pkg/util"
)

// Options configures a Service.
type Options struct {
	// SocketPath is the listening endpoint. Defaults to the well-known
	// path from protocol.DefaultSocketPath.
	SocketPath string
	// DatabasePath is the SQLite file. Defaults to albinos_service.db in
	// the working directory.
	DatabasePath string
	// RedisAddr, when set, enables the event mirror.
	RedisAddr string
}

// Service is the albinos configuration daemon.
type Service struct {
	opts     Options
	store    *store.Store
	mirror   *Mirror
	listener net.Listener

	mu         sync.Mutex // serializes dispatch, fan-out and the conns table
	conns      map[uint64]*connection
	nextConnID uint64

	wg        sync.WaitGroup
	closing   chan struct{}
	closeOnce sync.Once
}

// New opens the store and prepares a service. Start must be called to
// begin listening.
func New(opts Options) (*Service, error) {
	if opts.SocketPath == "" {
		opts.SocketPath = protocol.DefaultSocketPath()
	}
	if opts.DatabasePath == "" {
		opts.DatabasePath = "albinos_service.db"
	}
	st, err := store.Open(opts.DatabasePath)
	if err != nil {
		return nil, err
	}
	svc := &Service{
		opts:    opts,
		store:   st,
		conns:   make(map[uint64]*connection),
		closing: make(chan struct{}),
	}
	if opts.RedisAddr != "" {
		svc.mirror = NewMirror(opts.RedisAddr)
	}
	return svc, nil
}

// SocketPath returns the endpoint the service listens on.
func (s *Service) SocketPath() string { return s.opts.SocketPath }

// Start removes a stale socket file, binds the endpoint and begins
// accepting clients.
func (s *Service) Start() error {
	if err := s.cleanSocket(); err != nil {
		return err
	}
	ln, err := net.Listen("unix", s.opts.SocketPath)
	if err != nil {
		return err
	}
	s.listener = ln
	util.WithField("socket", s.opts.SocketPath).Info("service listening")

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Wait blocks until the accept loop and every connection have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close stops listening, tears down every connection and closes the
// store. Calling it more than once is harmless.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		if s.listener != nil {
			err = s.listener.Close()
		}

		s.mu.Lock()
		for _, c := range s.conns {
			c.conn.Close()
		}
		s.mu.Unlock()

		s.wg.Wait()
		if s.mirror != nil {
			s.mirror.Close()
		}
		os.Remove(s.opts.SocketPath)
		if cerr := s.store.Close(); err == nil {
			err = cerr
		}
	})
	return err
}

// cleanSocket removes a stale socket file left by a previous run.
func (s *Service) cleanSocket() error {
	if _, err := os.Stat(s.opts.SocketPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	util.WithField("socket", s.opts.SocketPath).Warn("stale socket file exists, removing")
	return os.Remove(s.opts.SocketPath)
}

func (s *Service) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closing:
			default:
				util.Errorf("accept: %v", err)
			}
			return
		}

		s.mu.Lock()
		s.nextConnID++
		c := newConnection(s, s.nextConnID, conn)
		s.conns[c.id] = c
		s.mu.Unlock()

		c.log.Debug("client connected")
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			c.serve()
		}()
	}
}

// dropConnection removes a finished connection; its session and all of
// its subscriptions go with it.
func (s *Service) dropConnection(c *connection) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
	c.conn.Close()
	c.log.Debug("client disconnected")
}
