package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"sealmax-messenger/domain"
	"sealmax-messenger/errors"
)

func Test_Consume_Buffers_Until_Full(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	connSink := NewConnSink(1, 2)

	req.NoError(connSink.Consume(ctx, domain.Message{ID: 1}))
	req.NoError(connSink.Consume(ctx, domain.Message{ID: 2}))

	// A full buffer must not block the fan-out loop.
	err := connSink.Consume(ctx, domain.Message{ID: 3})
	req.ErrorIs(err, errors.ErrSlowConnection)

	req.Equal(int64(1), (<-connSink.Events).ID)
	req.Equal(int64(2), (<-connSink.Events).ID)
}

func Test_Consume_Honors_Canceled_Context(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	connSink := NewConnSink(1, 0)
	err := connSink.Consume(ctx, domain.Message{ID: 1})
	require.Error(t, err)
}
