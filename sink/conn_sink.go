package sink

import (
	"context"

	"github.com/google/uuid"

	"sealmax-messenger/domain"
	"sealmax-messenger/errors"
)

// ConnSink is one live connection's delivery queue. The router pushes
// accepted messages into Events; the transport handler owns the other
// end and pumps them onto the wire.
//
// Consume never blocks the fan-out loop: a full buffer reports
// ErrSlowConnection and the message is simply not delivered live to
// this connection. The client will reconcile it from history on the
// next connect.
type ConnSink struct {
	ID     uuid.UUID
	UserID int64
	Events chan domain.Message
}

func NewConnSink(userID int64, bufferSize int) *ConnSink {
	return &ConnSink{
		ID:     uuid.New(),
		UserID: userID,
		Events: make(chan domain.Message, bufferSize),
	}
}

func (s *ConnSink) Consume(ctx context.Context, m domain.Message) error {
	select {
	case s.Events <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.ErrSlowConnection
	}
}
