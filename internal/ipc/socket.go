package ipc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"sync"

	"github.com/bnema/waycomp/internal/logger"
	"github.com/charmbracelet/log"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// MaxMessageSize bounds a single frame. Captures of large outputs are the
// biggest messages.
const MaxMessageSize = 64 << 20

var ErrMessageTooLarge = errors.New("ipc message too large")

// Handler answers requests. It runs on the connection's goroutine.
type Handler interface {
	HandleRequest(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

func (f HandlerFunc) HandleRequest(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// SocketServer handles incoming IPC connections
type SocketServer struct {
	mu         sync.Mutex
	listener   net.Listener
	socketPath string
	handler    Handler
	log        *log.Logger
	wg         sync.WaitGroup
	cancel     context.CancelFunc
	running    bool
}

// NewSocketServer creates a server on path, or on DefaultSocketPath when
// path is empty.
func NewSocketServer(path string, handler Handler) (*SocketServer, error) {
	if path == "" {
		var err error
		if path, err = DefaultSocketPath(); err != nil {
			return nil, fmt.Errorf("failed to get socket path: %w", err)
		}
	}
	return &SocketServer{
		socketPath: path,
		handler:    handler,
		log:        logger.With("ipc"),
	}, nil
}

func (s *SocketServer) Path() string { return s.socketPath }

// Start starts the socket server
func (s *SocketServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket listener: %w", err)
	}
	// user only
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.listener = listener
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.acceptConnections(ctx)

	s.log.Info("control socket listening", "path", s.socketPath)
	return nil
}

// Stop stops the socket server
func (s *SocketServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		s.listener.Close()
	}

	s.wg.Wait()
	os.RemoveAll(s.socketPath)

	s.log.Info("control socket stopped")
}

// Serve runs the server until ctx is done, as a supervised service.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

func (s *SocketServer) String() string { return "ipc" }

func (s *SocketServer) acceptConnections(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Error("accept", "err", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(ctx, conn)
	}
}

func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// Closing the conn unblocks a pending read on shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		msg, err := readMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug("connection closed", "err", err)
			}
			return
		}
		if err := writeMessage(conn, s.handleMessage(ctx, msg)); err != nil {
			s.log.Error("send response", "err", err)
			return
		}
	}
}

// handleMessage never fails: problems become error responses.
func (s *SocketServer) handleMessage(ctx context.Context, msg *structpb.Struct) *structpb.Struct {
	var resp *Response
	req, err := DecodeRequest(msg)
	switch {
	case err != nil:
		id := ""
		if req != nil {
			id = req.ID
		}
		resp = NewErrorResponse(id, fmt.Errorf("invalid request: %w", err))
	default:
		resp, err = s.handler.HandleRequest(ctx, req)
		switch {
		case err != nil:
			resp = NewErrorResponse(req.ID, err)
		case resp == nil:
			resp = &Response{Type: TypeOK}
		}
		resp.ID = req.ID
	}
	out, err := EncodeResponse(resp)
	if err != nil {
		s.log.Error("encode response", "err", err)
		out, _ = EncodeResponse(NewErrorResponse(resp.ID, err))
	}
	return out
}

// readMessage reads one 4-byte big-endian length prefix and the protobuf
// body that follows.
func readMessage(r io.Reader) (*structpb.Struct, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read message data: %w", err)
	}

	msg := &structpb.Struct{}
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return msg, nil
}

func writeMessage(w io.Writer, msg *structpb.Struct) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if len(data) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}

	buf := make([]byte, 4, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	if _, err := w.Write(append(buf, data...)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// DefaultSocketPath is $XDG_RUNTIME_DIR/waycomp.sock, or a per-user path
// under /tmp without a runtime dir.
func DefaultSocketPath() (string, error) {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "waycomp.sock"), nil
	}
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("waycomp-%s.sock", u.Username)), nil
}
