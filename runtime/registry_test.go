package runtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"sealmax-messenger/sink"
)

func Test_Registry_Buckets_Connections_Per_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	phone := sink.NewConnSink(1, 8)
	laptop := sink.NewConnSink(1, 8)
	bob := sink.NewConnSink(2, 8)

	registry.Register(1, phone)
	registry.Register(1, laptop)
	registry.Register(2, bob)

	req.Len(registry.ConnectionsFor(1), 2)
	req.Len(registry.ConnectionsFor(2), 1)
	req.Empty(registry.ConnectionsFor(3))
	req.Len(registry.All(), 3)
	req.Equal(3, registry.Size())
}

func Test_Registry_Unregister_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	conn := sink.NewConnSink(1, 8)
	registry.Register(1, conn)
	req.Len(registry.ConnectionsFor(1), 1)

	registry.Unregister(conn)
	req.Empty(registry.ConnectionsFor(1))

	// Disconnects race with cleanup: removing again is a no-op.
	registry.Unregister(conn)
	req.Empty(registry.ConnectionsFor(1))
	req.Zero(registry.Size())
}

func Test_Registry_Is_Safe_Under_Concurrent_Mutation(t *testing.T) {
	registry := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			conn := sink.NewConnSink(userID, 8)
			registry.Register(userID, conn)
			registry.ConnectionsFor(userID)
			registry.All()
			registry.Unregister(conn)
			registry.Unregister(conn)
		}(int64(i % 5))
	}
	wg.Wait()

	require.Zero(t, registry.Size())
}
