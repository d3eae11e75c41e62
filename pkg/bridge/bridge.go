// Package bridge owns the debug listener socket: it accepts one editor
// connection at a time, recognizes the editor by its first Debug Adapter
// Protocol message, launches the debugging library's adapter process for the
// session, and pipes protocol bytes between the two without interpreting
// them any further.
//
// The bridge also owns the single "is a client connected" boolean the rest of
// the plugin observes through attach.ConnectionState.
package bridge

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-dap"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/polyforge/debugbridge/pkg/errors"
	"github.com/polyforge/debugbridge/pkg/observability"
)

// DefaultHost and DefaultPort are the listener defaults: loopback only, the
// debugging library's conventional port.
const (
	DefaultHost = "localhost"
	DefaultPort = 5678
)

// ErrAlreadyListening is returned by Listen when this server already holds
// its listener. Expected and non-fatal: the earlier listener keeps serving.
// Distinct from PORT_IN_USE, which means a foreign process owns the port.
var ErrAlreadyListening = errors.New(errors.ErrCodeAlreadyListening, "debug server already listening")

// Launcher starts the debug adapter for one editor session. The returned
// stream speaks DAP: reads come from the adapter, writes go to it. Closing it
// must terminate the adapter.
type Launcher interface {
	Launch(ctx context.Context, sessionID string) (io.ReadWriteCloser, error)
}

// Config configures a Server. Adapter is required. Preference handling
// supplies DefaultPort; a Port of 0 here lets the OS pick a free one.
type Config struct {
	Host    string // defaults to DefaultHost
	Port    int
	Adapter Launcher
	Logger  *log.Logger
}

// Server is the debug listener. Zero or one editor session is live at any
// moment; the accept loop and the per-session pumps are the only goroutines
// this plugin owns.
type Server struct {
	cfg    Config
	logger *log.Logger

	mu        sync.Mutex
	ln        net.Listener
	sessionID string
	clientID  string
	connected bool
	sessConn  net.Conn
	adapter   io.Closer

	wg sync.WaitGroup
}

// New returns an unstarted Server.
func New(cfg Config) *Server {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Server{cfg: cfg, logger: cfg.Logger}
}

// Listen binds the listening socket and starts the accept loop.
//
// A second Listen on a live server returns ErrAlreadyListening and leaves the
// first listener serving. A bind conflict with a foreign process returns
// PORT_IN_USE.
func (s *Server) Listen(ctx context.Context) error {
	if s.cfg.Adapter == nil {
		return errors.New(errors.ErrCodeInvalidConfig, "bridge: Config.Adapter is required")
	}

	s.mu.Lock()
	if s.ln != nil {
		s.mu.Unlock()
		return ErrAlreadyListening
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		if stderrors.Is(err, syscall.EADDRINUSE) {
			return errors.Wrap(errors.ErrCodePortInUse, err, "port %d is in use by another process", s.cfg.Port)
		}
		return errors.Wrap(errors.ErrCodeInternal, err, "binding debug listener on %s", addr)
	}
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("debug server listening", "addr", ln.Addr().String())
	observability.Debug().OnListen(ctx, ln.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop(ctx, ln)
	return nil
}

// Addr returns the bound listener address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Listening reports whether the server currently holds its listener.
func (s *Server) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ln != nil
}

// ClientConnected reports whether a recognized editor session is live. This
// is the connection flag the attach poller observes.
func (s *Server) ClientConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Session returns the id of the live session and the editor's client id, or
// empty strings when no session is live.
func (s *Server) Session() (sessionID, clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID, s.clientID
}

// Close stops the listener and ends the live session, reaping the adapter.
// Safe to call more than once; the server can Listen again afterwards.
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.ln
	s.ln = nil
	conn := s.sessConn
	adapter := s.adapter
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if adapter != nil {
		_ = adapter.Close()
	}

	s.wg.Wait()
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			// Listener closed or fatal accept error; either way the loop ends.
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

// handle drives one accepted connection: recognize the editor, claim the
// session slot, launch the adapter, pump bytes until either side closes.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if s.ClientConnected() {
		s.logger.Warn("rejecting connection, an editor session is active", "remote", conn.RemoteAddr())
		return
	}

	reader := bufio.NewReader(conn)
	first, err := dap.ReadProtocolMessage(reader)
	if err != nil {
		s.logger.Debug("dropping peer, first message is not DAP", "remote", conn.RemoteAddr(), "err", err)
		return
	}
	init, ok := first.(*dap.InitializeRequest)
	if !ok {
		s.logger.Debug("dropping peer, expected an initialize request", "remote", conn.RemoteAddr(), "got", fmt.Sprintf("%T", first))
		return
	}
	clientID := init.Arguments.ClientID
	if clientID == "" {
		clientID = init.Arguments.ClientName
	}

	sessionID := fmt.Sprintf("session-%d", uuid.New().ID())

	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		s.logger.Warn("rejecting editor, an editor session is active", "remote", conn.RemoteAddr(), "client", clientID)
		return
	}
	s.sessionID = sessionID
	s.clientID = clientID
	s.connected = true
	s.sessConn = conn
	s.mu.Unlock()

	start := time.Now()
	s.logger.Info("editor attached", "session", sessionID, "client", clientID)
	observability.Debug().OnSessionStart(ctx, sessionID, clientID)

	err = s.runSession(ctx, sessionID, conn, reader, first)

	s.mu.Lock()
	s.sessionID = ""
	s.clientID = ""
	s.connected = false
	s.sessConn = nil
	s.adapter = nil
	s.mu.Unlock()

	s.logger.Info("editor session ended", "session", sessionID, "duration", time.Since(start).Round(time.Millisecond))
	observability.Debug().OnSessionEnd(ctx, sessionID, time.Since(start), err)
}

// runSession launches the adapter, forwards the already-decoded first message
// to it, and pipes bytes both ways until one side closes.
func (s *Server) runSession(ctx context.Context, sessionID string, conn net.Conn, reader *bufio.Reader, first dap.Message) error {
	adapter, err := s.cfg.Adapter.Launch(ctx, sessionID)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "launching debug adapter")
	}
	s.mu.Lock()
	s.adapter = adapter
	s.mu.Unlock()
	defer adapter.Close()

	if err := dap.WriteProtocolMessage(adapter, first); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "forwarding initialize request")
	}

	// Both pumps close their write side when their read side ends, so the
	// other pump unblocks. Copy from the buffered reader: it may hold bytes
	// read past the first message.
	g := new(errgroup.Group)
	g.Go(func() error {
		_, err := io.Copy(adapter, reader)
		adapter.Close()
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(conn, adapter)
		conn.Close()
		return err
	})
	if err := g.Wait(); err != nil && !stderrors.Is(err, net.ErrClosed) && !stderrors.Is(err, io.ErrClosedPipe) {
		return err
	}
	return nil
}
