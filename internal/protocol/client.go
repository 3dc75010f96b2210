package protocol

import (
	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/signal"
	"github.com/google/uuid"
)

// maxEventLog bounds the per-client event history kept for inspection.
const maxEventLog = 512

// Client is a connected Wayland client as seen by the core.
type Client struct {
	ID   uuid.UUID
	Name string
	PID  int

	errors    []*Error
	events    []Event
	destroyed bool

	// OnEvent, when set, receives every event sent to the client.
	OnEvent func(Event)

	Destroyed signal.Signal[*Client]
}

// NewClient registers a client handle.
func NewClient(name string, pid int) *Client {
	return &Client{ID: uuid.New(), Name: name, PID: pid}
}

// PostError records a protocol error. A real connection is torn down after
// this; the core keeps the client object so tests can inspect it.
func (c *Client) PostError(err *Error) *Error {
	if c == nil || err == nil {
		return err
	}
	c.errors = append(c.errors, err)
	logger.Debug("protocol error", "client", c.Name, "interface", err.Interface, "code", err.Code, "msg", err.Message)
	return err
}

// Post formats and records a protocol error.
func (c *Client) Post(iface string, code uint32, format string, args ...any) *Error {
	return c.PostError(NewError(iface, code, format, args...))
}

// PostNoMemory reports an allocation failure for the in-progress request.
func (c *Client) PostNoMemory() {
	c.Post(InterfaceDisplay, DisplayErrorNoMemory, "no memory")
}

// Errors returns every error posted so far.
func (c *Client) Errors() []*Error {
	if c == nil {
		return nil
	}
	return append([]*Error(nil), c.errors...)
}

// LastError returns the most recent posted error or nil.
func (c *Client) LastError() *Error {
	if c == nil || len(c.errors) == 0 {
		return nil
	}
	return c.errors[len(c.errors)-1]
}

// Send delivers an event to the client.
func (c *Client) Send(ev Event) {
	if c == nil || c.destroyed {
		return
	}
	c.events = append(c.events, ev)
	if len(c.events) > maxEventLog {
		c.events = c.events[len(c.events)-maxEventLog:]
	}
	if c.OnEvent != nil {
		c.OnEvent(ev)
	}
}

// Events returns the retained event history.
func (c *Client) Events() []Event {
	if c == nil {
		return nil
	}
	return append([]Event(nil), c.events...)
}

// ClearEvents drops the retained history.
func (c *Client) ClearEvents() { c.events = nil }

// Destroy disconnects the client. Destroyed fires once.
func (c *Client) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.Destroyed.Emit(c)
}

func (c *Client) IsDestroyed() bool { return c.destroyed }
