// Package control exposes a running hot-reload session over a local Unix
// socket, so another process can start, stop, halt or inspect it.
//
// The wire format is one JSON object per line in each direction:
//
//	{"type":"stop","params":{"token":"deploy-1"},"id":"cmd-1"}
//	{"id":"cmd-1","type":"stop","result":{...}}
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/l3aro/hotbundle/internal/log"
	"github.com/l3aro/hotbundle/pkg/runloop"
)

// DefaultSocketPath is the default Unix socket path
const DefaultSocketPath = "/tmp/hotbundle.sock"

// Command types understood by the server.
const (
	CommandStatus = "status"
	CommandStart  = "start"
	CommandStop   = "stop"
	CommandHalt   = "halt"
)

// Target is the session a server controls.
type Target interface {
	DoStart()
	DoStop(token interface{})
	DoStopTest()
	Status() runloop.Status
}

// Command is a single request.
type Command struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params,omitempty"`
	ID     string          `json:"id,omitempty"`
}

// Response answers a Command.
type Response struct {
	ID     string          `json:"id,omitempty"`
	Type   string          `json:"type,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StopParams are the parameters of a stop command.
type StopParams struct {
	Token interface{} `json:"token"`
}

// Server serves control commands for one session.
type Server struct {
	socketPath string
	target     Target
	logger     log.Logger

	mu    sync.Mutex
	ready chan struct{}
}

// NewServer creates a server for target on socketPath.
func NewServer(socketPath string, target Target, logger log.Logger) *Server {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Server{
		socketPath: socketPath,
		target:     target,
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

// Ready is closed once the server is accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Serve listens until ctx is cancelled. The socket file is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing existing socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on socket: %w", err)
	}
	defer os.Remove(s.socketPath)

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("setting socket permissions: %w", err)
	}

	s.logger.Info("control socket listening", "path", s.socketPath)
	close(s.ready)

	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	var tempDelay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if tempDelay == 0 {
				tempDelay = time.Millisecond
			} else {
				tempDelay *= 2
			}
			if tempDelay > time.Second {
				tempDelay = time.Second
			}
			select {
			case <-time.After(tempDelay):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		tempDelay = 0

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	for {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		var cmd Command
		if err := decoder.Decode(&cmd); err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) {
				return
			}
			encoder.Encode(Response{
				Error: fmt.Sprintf("decode error: %v", err),
			})
			return
		}

		resp := s.handleCommand(cmd)
		if err := encoder.Encode(resp); err != nil {
			s.logger.Warn("encode error", "error", err)
			return
		}

		conn.SetReadDeadline(time.Time{})
	}
}

func (s *Server) handleCommand(cmd Command) Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Type {
	case CommandStatus:
	case CommandStart:
		s.target.DoStart()
	case CommandStop:
		var params StopParams
		if len(cmd.Params) > 0 {
			if err := json.Unmarshal(cmd.Params, &params); err != nil {
				return Response{ID: cmd.ID, Error: fmt.Sprintf("invalid params: %v", err)}
			}
		}
		s.target.DoStop(params.Token)
	case CommandHalt:
		s.target.DoStopTest()
	default:
		return Response{
			ID:    cmd.ID,
			Error: fmt.Sprintf("unknown command: %s", cmd.Type),
		}
	}

	s.logger.Debug("control command", "type", cmd.Type, "id", cmd.ID)

	resultJSON, err := json.Marshal(s.target.Status())
	if err != nil {
		return Response{ID: cmd.ID, Error: fmt.Sprintf("marshal error: %v", err)}
	}
	return Response{
		ID:     cmd.ID,
		Type:   cmd.Type,
		Result: resultJSON,
	}
}
