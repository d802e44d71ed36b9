package copilot

import "context"

// StreamResult is the value a streaming producer hands to the waiting
// request thread: either the final raw answer or the transport error that
// ended the stream.
type StreamResult struct {
	Raw *RawAnswer
	Err error
}

// Handoff is a single-slot hand-off between one producer goroutine and one
// consumer. The producer calls Send exactly once; the consumer calls Receive
// exactly once. The slot is not reusable after a full send/receive cycle.
type Handoff struct {
	ch chan StreamResult
}

// NewHandoff creates an empty hand-off slot.
func NewHandoff() *Handoff {
	return &Handoff{ch: make(chan StreamResult, 1)}
}

// Send stores the result for the pending or future Receive. Sending on a nil
// Handoff (the request was abandoned) is a no-op, not an error. Send never
// blocks: the slot holds one item and anything beyond that is dropped.
func (h *Handoff) Send(res StreamResult) {
	if h == nil {
		return
	}
	select {
	case h.ch <- res:
	default:
	}
}

// Receive blocks until a result is available or the context is cancelled.
// Cancellation is tied to the caller's context, which for HTTP requests ends
// when the client disconnects.
func (h *Handoff) Receive(ctx context.Context) (StreamResult, error) {
	select {
	case res := <-h.ch:
		return res, nil
	case <-ctx.Done():
		return StreamResult{}, ctx.Err()
	}
}
