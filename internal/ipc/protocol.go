// Package ipc is the compositor's local control plane: a unix socket that
// carries length-prefixed protobuf messages between the running compositor
// and the waycomp CLI.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// MessageType names a request or response.
type MessageType string

const (
	TypeStatus  MessageType = "status"
	TypeLock    MessageType = "lock"
	TypeUnlock  MessageType = "unlock"
	TypeCapture MessageType = "capture"

	TypeOK    MessageType = "ok"
	TypeError MessageType = "error"
)

var (
	ErrNotRunning  = errors.New("waycomp is not running")
	ErrIDMismatch  = errors.New("response does not answer the request")
	ErrUnknownType = errors.New("unknown message type")
)

// Request is a CLI command for the compositor.
type Request struct {
	ID   string      `json:"id"`
	Type MessageType `json:"type"`
	// Output selects the output for capture; empty means the default one.
	Output string `json:"output,omitempty"`
}

// Response answers the request with the same ID.
type Response struct {
	ID      string      `json:"id"`
	Type    MessageType `json:"type"`
	Error   string      `json:"error,omitempty"`
	Status  *Status     `json:"status,omitempty"`
	Capture *Capture    `json:"capture,omitempty"`
}

// Status is a snapshot of the scene.
type Status struct {
	Shell   string         `json:"shell"`
	Backend string         `json:"backend"`
	Locked  bool           `json:"locked"`
	Outputs []OutputStatus `json:"outputs"`
	Layers  []LayerStatus  `json:"layers"`
	Seats   []SeatStatus   `json:"seats"`
}

type OutputStatus struct {
	Name    string `json:"name"`
	X       int32  `json:"x"`
	Y       int32  `json:"y"`
	Width   int32  `json:"width"`
	Height  int32  `json:"height"`
	Refresh int32  `json:"refresh"` // mHz
	Power   string `json:"power"`
}

// LayerStatus lists a layer's views, topmost first.
type LayerStatus struct {
	Name     string       `json:"name"`
	Position uint32       `json:"position"`
	Views    []ViewStatus `json:"views"`
}

type ViewStatus struct {
	Label  string  `json:"label"`
	Client string  `json:"client,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  int32   `json:"width"`
	Height int32   `json:"height"`
	Alpha  float64 `json:"alpha"`
	Output string  `json:"output,omitempty"`
	Mapped bool    `json:"mapped"`
}

type SeatStatus struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
	Keyboard     string   `json:"keyboard_focus,omitempty"`
	Pointer      string   `json:"pointer_focus,omitempty"`
}

// Capture carries a PNG screenshot of one output.
type Capture struct {
	Output string `json:"output"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	PNG    []byte `json:"png"`
}

// NewRequest creates a request with a fresh ID.
func NewRequest(t MessageType) *Request {
	return &Request{ID: uuid.NewString(), Type: t}
}

// NewErrorResponse answers req with an error.
func NewErrorResponse(id string, err error) *Response {
	return &Response{ID: id, Type: TypeError, Error: err.Error()}
}

// Err turns an error response back into an error.
func (r *Response) Err() error {
	if r.Type == TypeError {
		return fmt.Errorf("server error: %s", r.Error)
	}
	return nil
}

// toStruct goes through JSON so the tagged Go types define the wire shape.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

// EncodeRequest converts a request into its wire envelope.
func EncodeRequest(r *Request) (*structpb.Struct, error) { return toStruct(r) }

// DecodeRequest reads a request envelope.
func DecodeRequest(s *structpb.Struct) (*Request, error) {
	var r Request
	if err := fromStruct(s, &r); err != nil {
		return nil, err
	}
	switch r.Type {
	case TypeStatus, TypeLock, TypeUnlock, TypeCapture:
	default:
		return &r, fmt.Errorf("%w: %q", ErrUnknownType, r.Type)
	}
	return &r, nil
}

func EncodeResponse(r *Response) (*structpb.Struct, error) { return toStruct(r) }

func DecodeResponse(s *structpb.Struct) (*Response, error) {
	var r Response
	if err := fromStruct(s, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
