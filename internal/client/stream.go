package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"yolodetect/internal/dto"
)

// Stream is an open /ws/detect connection. Frames are answered in order,
// so Detect sends one image and waits for its reply.
type Stream struct {
	conn    *websocket.Conn
	timeout time.Duration
	mu      sync.Mutex
}

// DialStream opens a streaming detection connection.
func (c *Client) DialStream(ctx context.Context) (*Stream, error) {
	u, err := c.streamURL()
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", u, err)
	}
	return &Stream{conn: conn, timeout: c.httpc.Timeout}, nil
}

// Detect sends one encoded image and waits for the reply until ctx ends or
// the client timeout passes. A per-frame server error is returned as
// *APIError and leaves the stream usable; a timeout or cancellation does not.
func (s *Stream) Detect(ctx context.Context, data []byte) (*Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline := s.deadline(ctx)
	s.conn.SetWriteDeadline(deadline)
	s.conn.SetReadDeadline(deadline)

	// Cancellation without a deadline unblocks the pending read.
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return nil, s.failure(ctx, "failed to send frame", err)
	}
	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		return nil, s.failure(ctx, "failed to read reply", err)
	}

	var reply struct {
		Message    *string         `json:"message"`
		Detections json.RawMessage `json:"detections"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}
	if reply.Message != nil && reply.Detections == nil {
		return nil, &APIError{Message: *reply.Message}
	}

	var result dto.DetectionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode prediction: %w", err)
	}
	return &Prediction{Raw: raw, Result: result}, nil
}

// deadline is the earlier of ctx's deadline and now plus the client timeout.
// The zero time means no deadline.
func (s *Stream) deadline(ctx context.Context) time.Time {
	var deadline time.Time
	if s.timeout > 0 {
		deadline = time.Now().Add(s.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	return deadline
}

func (s *Stream) failure(ctx context.Context, msg string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", msg, ctxErr)
	}
	// The socket deadline can fire just before ctx notices its own.
	if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		return fmt.Errorf("%s: %w", msg, context.DeadlineExceeded)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Close sends a normal closure and closes the connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return s.conn.Close()
}
