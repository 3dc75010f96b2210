package ipc

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/bnema/waycomp/internal/logger"
	"golang.org/x/sys/unix"
)

const DefaultTimeout = 5 * time.Second

// Client talks to a running compositor over its control socket.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for path, or for DefaultSocketPath when path
// is empty.
func NewClient(path string) (*Client, error) {
	if path == "" {
		var err error
		if path, err = DefaultSocketPath(); err != nil {
			return nil, fmt.Errorf("failed to get socket path: %w", err)
		}
	}
	return &Client{socketPath: path, timeout: DefaultTimeout}, nil
}

// NewClientWithTimeout creates a new IPC client with custom timeout
func NewClientWithTimeout(path string, timeout time.Duration) (*Client, error) {
	client, err := NewClient(path)
	if err != nil {
		return nil, err
	}
	client.timeout = timeout
	return client, nil
}

func (c *Client) Path() string { return c.socketPath }

// Status fetches a snapshot of the scene.
func (c *Client) Status() (*Status, error) {
	resp, err := c.send(NewRequest(TypeStatus))
	if err != nil {
		return nil, err
	}
	if resp.Status == nil {
		return nil, fmt.Errorf("unexpected response type: %s", resp.Type)
	}
	return resp.Status, nil
}

// IsRunning reports whether a compositor answers on the socket.
func (c *Client) IsRunning() bool {
	_, err := c.Status()
	return err == nil
}

func (c *Client) Lock() error {
	_, err := c.send(NewRequest(TypeLock))
	return err
}

func (c *Client) Unlock() error {
	_, err := c.send(NewRequest(TypeUnlock))
	return err
}

// Capture screenshots the named output, or the default one for "".
func (c *Client) Capture(output string) (*Capture, error) {
	req := NewRequest(TypeCapture)
	req.Output = output
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if resp.Capture == nil {
		return nil, fmt.Errorf("unexpected response type: %s", resp.Type)
	}
	return resp.Capture, nil
}

func (c *Client) send(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		if isConnectionRefused(err) {
			return nil, ErrNotRunning
		}
		return nil, fmt.Errorf("failed to connect to waycomp: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debug("close ipc connection", "err", err)
		}
	}()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		logger.Warn("set ipc deadline", "err", err)
	}

	msg, err := EncodeRequest(req)
	if err != nil {
		return nil, err
	}
	if err := writeMessage(conn, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	raw, err := readMessage(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	resp, err := DecodeResponse(raw)
	if err != nil {
		return nil, err
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("%w: sent %s, got %s", ErrIDMismatch, req.ID, resp.ID)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

// isConnectionRefused also treats a missing socket file as not running.
func isConnectionRefused(err error) bool {
	return errors.Is(err, unix.ECONNREFUSED) || errors.Is(err, unix.ENOENT)
}
