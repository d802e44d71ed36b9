package copilot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandoffSendThenReceive(t *testing.T) {
	h := NewHandoff()
	h.Send(StreamResult{Raw: &RawAnswer{Response: "done"}})

	res, err := h.Receive(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Raw)
	assert.Equal(t, "done", res.Raw.Response)
}

func TestHandoffReceiveBlocksUntilSend(t *testing.T) {
	h := NewHandoff()

	go func() {
		time.Sleep(20 * time.Millisecond)
		h.Send(StreamResult{Raw: &RawAnswer{Response: "late"}})
	}()

	res, err := h.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "late", res.Raw.Response)
}

func TestHandoffReceiveHonorsCancellation(t *testing.T) {
	h := NewHandoff()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.Receive(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandoffSendOnNilIsNoop(t *testing.T) {
	var h *Handoff
	// Must not panic: the request was abandoned before the producer finished.
	h.Send(StreamResult{Raw: &RawAnswer{}})
}

func TestHandoffSecondSendIsDropped(t *testing.T) {
	h := NewHandoff()
	h.Send(StreamResult{Raw: &RawAnswer{Response: "first"}})
	h.Send(StreamResult{Raw: &RawAnswer{Response: "second"}})

	res, err := h.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", res.Raw.Response)
}
