package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/l3aro/hotbundle/pkg/runloop"
)

// DefaultTimeout is the default connection timeout
const DefaultTimeout = 5 * time.Second

// Client talks to a session's control server.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// Option is a client option
type Option func(*Client)

// WithSocketPath sets the socket path
func WithSocketPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.socketPath = path
		}
	}
}

// WithTimeout sets the connection timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient creates a control client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		socketPath: getSocketPath(),
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getSocketPath gets the socket path from environment or default
func getSocketPath() string {
	if path := os.Getenv("HOTBUNDLE_SOCKET_PATH"); path != "" {
		return path
	}
	return DefaultSocketPath
}

// Status returns the session status.
func (c *Client) Status(ctx context.Context) (*runloop.Status, error) {
	return c.send(ctx, CommandStatus, nil)
}

// Start resumes the session.
func (c *Client) Start(ctx context.Context) (*runloop.Status, error) {
	return c.send(ctx, CommandStart, nil)
}

// Stop pauses the session. Repeating the same token is a no-op.
func (c *Client) Stop(ctx context.Context, token interface{}) (*runloop.Status, error) {
	return c.send(ctx, CommandStop, StopParams{Token: token})
}

// Halt ends the session.
func (c *Client) Halt(ctx context.Context) (*runloop.Status, error) {
	return c.send(ctx, CommandHalt, nil)
}

func (c *Client) send(ctx context.Context, cmdType string, params interface{}) (*runloop.Status, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to session: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	cmd := Command{Type: cmdType, ID: generateID()}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshaling params: %w", err)
		}
		cmd.Params = paramsJSON
	}

	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return nil, fmt.Errorf("sending command: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("session error: %s", resp.Error)
	}

	var status runloop.Status
	if err := json.Unmarshal(resp.Result, &status); err != nil {
		return nil, fmt.Errorf("invalid response format: %w", err)
	}
	return &status, nil
}

// generateID generates a unique command ID
func generateID() string {
	return fmt.Sprintf("cmd-%d", time.Now().UnixNano())
}
