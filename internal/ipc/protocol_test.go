package ipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestRequestEnvelope(t *testing.T) {
	req := NewRequest(TypeCapture)
	req.Output = "headless-2"

	msg, err := EncodeRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "capture", msg.Fields["type"].GetStringValue())
	assert.Equal(t, req.ID, msg.Fields["id"].GetStringValue())

	got, err := DecodeRequest(msg)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestDecodeRequestRejectsUnknownType(t *testing.T) {
	msg, err := structpb.NewStruct(map[string]any{"id": "abc", "type": "switch"})
	require.NoError(t, err)

	req, err := DecodeRequest(msg)

	assert.ErrorIs(t, err, ErrUnknownType)
	require.NotNil(t, req)
	assert.Equal(t, "abc", req.ID)
}

func TestStatusResponseEnvelope(t *testing.T) {
	resp := &Response{
		ID:   "1",
		Type: TypeOK,
		Status: &Status{
			Shell:  "kiosk",
			Locked: true,
			Outputs: []OutputStatus{
				{Name: "headless-1", Width: 1024, Height: 640, Refresh: 60000, Power: "on"},
			},
			Layers: []LayerStatus{{
				Name:     "normal",
				Position: 0x50000000,
				Views:    []ViewStatus{{Label: "xdg_toplevel", X: 10.5, Y: -3, Width: 200, Height: 100, Alpha: 1, Mapped: true}},
			}},
			Seats: []SeatStatus{{Name: "seat0", Capabilities: []string{"pointer", "keyboard"}}},
		},
	}

	msg, err := EncodeResponse(resp)
	require.NoError(t, err)
	got, err := DecodeResponse(msg)
	require.NoError(t, err)

	assert.Equal(t, resp, got)
	assert.NoError(t, got.Err())
}

func TestCaptureCarriesBytes(t *testing.T) {
	resp := &Response{ID: "2", Type: TypeOK, Capture: &Capture{Output: "o", Width: 2, Height: 1, PNG: []byte{0x89, 'P', 'N', 'G', 0}}}

	msg, err := EncodeResponse(resp)
	require.NoError(t, err)
	got, err := DecodeResponse(msg)
	require.NoError(t, err)

	assert.Equal(t, resp.Capture.PNG, got.Capture.PNG)
}

func TestErrorResponse(t *testing.T) {
	resp := NewErrorResponse("3", assert.AnError)

	err := resp.Err()

	require.Error(t, err)
	assert.Contains(t, err.Error(), assert.AnError.Error())
}
