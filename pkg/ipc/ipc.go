// Package ipc lets a running process accept cobra commands from other
// invocations of the same CLI over a unix socket.
package ipc

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/BitPonyLLC/weakevents/pkg/util"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Server runs commands received over a unix socket against a cobra command
// tree. Commands are executed one at a time.
type Server struct {
	ctx      context.Context
	log      *zerolog.Logger
	path     string
	conns    sync.Map
	cmd      *cobra.Command
	cmdMutex sync.Mutex

	mutex    sync.Mutex
	listener net.Listener
}

// Start listens on path and serves until ctx is canceled or Stop is called.
func (s *Server) Start(ctx context.Context, log *zerolog.Logger, path string, cmd *cobra.Command) error {
	err := os.Remove(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("unable to remove %s: %w", path, err)
		}
	}

	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "unix", path)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", path, err)
	}

	// let anyone talk to us
	err = os.Chmod(path, 0666)
	if err != nil {
		l.Close()
		return fmt.Errorf("unable to change permissions to %s: %w", path, err)
	}

	slog := log.With().Str("sockpath", path).Logger()

	s.mutex.Lock()
	s.ctx = ctx
	s.log = &slog
	s.path = path
	s.cmd = cmd
	s.listener = l
	s.mutex.Unlock()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	go s.serve(l)

	s.log.Debug().Msg("listening")
	return nil
}

// Stop closes the listener and every open connection. It is safe to call more
// than once or on a server that was never started.
func (s *Server) Stop() {
	s.mutex.Lock()
	l := s.listener
	s.listener = nil
	s.mutex.Unlock()

	if l == nil {
		return
	}

	l.Close()
	os.Remove(s.path)
}

//--------------------------------------------------------------------------------
// private

func (s *Server) serve(l net.Listener) {
	defer func() {
		util.LogRecover()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.ctx.Err() == nil && !s.stopped() {
				s.log.Error().Err(err).Msg("unable to accept new connection")
			}
			break
		}

		ac := &acceptedConn{conn: conn}
		go ac.processCommand(s)
	}

	// cleanup (we were stopped)
	s.conns.Range(func(key, value any) bool {
		ac := key.(*acceptedConn)
		ac.conn.Close()
		return true
	})
}

func (s *Server) stopped() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.listener == nil
}
