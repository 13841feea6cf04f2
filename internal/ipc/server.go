package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CommandHandler handles one parsed command and returns the reply line
type CommandHandler func(ctx context.Context, cmd Command, args []string) string

// connTimeout bounds one request/response exchange
const connTimeout = 10 * time.Second

// Server represents an IPC server using Unix sockets
type Server struct {
	socketPath string
	listener   net.Listener
	handler    CommandHandler
	log        *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a new IPC server
func NewServer(socketPath string, handler CommandHandler, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		log:        log,
	}
}

// Start starts the IPC server
func (s *Server) Start(ctx context.Context) error {
	// Remove stale socket from a previous run
	_ = os.Remove(s.socketPath)

	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.log.Infow("ipc: listening", "socket", s.socketPath)

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Warnw("ipc: accept failed", "error", err)
			}
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	line := strings.TrimSpace(scanner.Text())

	var response string
	cmd, args, err := ParseCommand(line)
	if err != nil {
		response = Error(err)
	} else {
		response = s.handler(s.ctx, cmd, args)
	}
	s.log.Debugw("ipc: handled", "command", line, "response", response)

	if _, err := conn.Write([]byte(response + "\n")); err != nil {
		s.log.Debugw("ipc: failed to write response", "error", err)
	}
}

// Stop closes the listener and waits for running handlers
func (s *Server) Stop() {
	if s.listener == nil {
		return
	}
	s.cancel()
	_ = s.listener.Close()
	s.wg.Wait()
	_ = os.Remove(s.socketPath)
	s.log.Infow("ipc: stopped")
}
