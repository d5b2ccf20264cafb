package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"sealmax-messenger/domain"
	"sealmax-messenger/observability"
	"sealmax-messenger/repositories"
	"sealmax-messenger/sink"
)

const receiveTimeout = 2 * time.Second

func newTestPipeline(t *testing.T) (*RouterWorker, *Registry, *repositories.MessageRepository) {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repository, err := repositories.NewMessageRepository(db, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close() })

	registry := NewRegistry()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	router := NewRouterWorker(slog.Default(), registry, repository, metrics, 64)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = router.Run(ctx) }()

	return router, registry, repository
}

func receive(t *testing.T, connSink *sink.ConnSink) domain.Message {
	t.Helper()
	select {
	case m := <-connSink.Events:
		return m
	case <-time.After(receiveTimeout):
		t.Fatal("timed out waiting for delivery")
		return domain.Message{}
	}
}

func requireSilent(t *testing.T, connSink *sink.ConnSink) {
	t.Helper()
	select {
	case m := <-connSink.Events:
		t.Fatalf("unexpected delivery: %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func Test_Broadcast_Reaches_Every_Connection(t *testing.T) {
	req := require.New(t)
	router, registry, _ := newTestPipeline(t)

	alicePhone := sink.NewConnSink(1, 8)
	aliceLaptop := sink.NewConnSink(1, 8)
	bob := sink.NewConnSink(2, 8)
	registry.Register(1, alicePhone)
	registry.Register(1, aliceLaptop)
	registry.Register(2, bob)

	router.Dispatch(domain.SendMessage{SenderID: 1, Recipient: domain.General(), Text: "hello room"})

	for _, connSink := range []*sink.ConnSink{alicePhone, aliceLaptop, bob} {
		message := receive(t, connSink)
		req.Equal("hello room", message.Text)
		req.Equal(int64(1), message.SenderID)
		req.Equal(domain.GeneralRoomID, message.RecipientID)
	}
	requireSilent(t, bob) // exactly once per connection
}

func Test_Direct_Message_Reaches_Only_Sender_And_Recipient(t *testing.T) {
	req := require.New(t)
	router, registry, _ := newTestPipeline(t)

	alice := sink.NewConnSink(1, 8)
	aliceTablet := sink.NewConnSink(1, 8)
	bob := sink.NewConnSink(2, 8)
	clara := sink.NewConnSink(3, 8)
	registry.Register(1, alice)
	registry.Register(1, aliceTablet)
	registry.Register(2, bob)
	registry.Register(3, clara)

	router.Dispatch(domain.SendMessage{SenderID: 1, Recipient: domain.Direct(2), Text: "psst"})

	// Every connection of the recipient and of the sender gets the
	// echo; nobody else does.
	for _, connSink := range []*sink.ConnSink{alice, aliceTablet, bob} {
		message := receive(t, connSink)
		req.Equal("psst", message.Text)
		req.Equal(int64(2), message.RecipientID)
	}
	requireSilent(t, clara)
}

func Test_Whitespace_Only_Text_Is_Dropped(t *testing.T) {
	req := require.New(t)
	router, registry, repository := newTestPipeline(t)

	alice := sink.NewConnSink(1, 8)
	registry.Register(1, alice)

	router.Dispatch(domain.SendMessage{SenderID: 1, Recipient: domain.General(), Text: "   "})
	router.Dispatch(domain.SendMessage{SenderID: 1, Recipient: domain.General(), Text: "\t\n"})
	router.Dispatch(domain.SendMessage{SenderID: 1, Recipient: domain.General(), Text: "  real  "})

	message := receive(t, alice)
	req.Equal("real", message.Text) // trimmed before persistence
	requireSilent(t, alice)

	history, err := repository.HistoryForGeneral()
	req.NoError(err)
	req.Len(history, 1) // nothing was persisted for the dropped sends
}

func Test_Dead_Connection_Does_Not_Abort_Fanout(t *testing.T) {
	req := require.New(t)
	router, registry, _ := newTestPipeline(t)

	stuck := sink.NewConnSink(1, 0) // zero buffer, always full
	bob := sink.NewConnSink(2, 8)
	registry.Register(1, stuck)
	registry.Register(2, bob)

	router.Dispatch(domain.SendMessage{SenderID: 1, Recipient: domain.General(), Text: "still delivered"})

	message := receive(t, bob)
	req.Equal("still delivered", message.Text)
}

func Test_Offline_Recipient_Message_Is_Persisted(t *testing.T) {
	req := require.New(t)
	router, registry, repository := newTestPipeline(t)

	alice := sink.NewConnSink(1, 8)
	registry.Register(1, alice)

	// Bob has no live connection; he will reconcile from history.
	router.Dispatch(domain.SendMessage{SenderID: 1, Recipient: domain.Direct(2), Text: "see you later"})

	echo := receive(t, alice)
	req.Equal("see you later", echo.Text)

	conversation, err := repository.HistoryForConversation(1, 2)
	req.NoError(err)
	req.Len(conversation, 1)
	req.Equal(echo.ID, conversation[0].ID)
}

func Test_Delivery_Order_Matches_Id_Order(t *testing.T) {
	req := require.New(t)
	router, registry, _ := newTestPipeline(t)

	alice := sink.NewConnSink(1, 64)
	bob := sink.NewConnSink(2, 64)
	registry.Register(1, alice)
	registry.Register(2, bob)

	for _, text := range []string{"a", "b", "c", "d"} {
		router.Dispatch(domain.SendMessage{SenderID: 1, Recipient: domain.General(), Text: text})
	}

	var aliceIDs, bobIDs []int64
	for i := 0; i < 4; i++ {
		aliceIDs = append(aliceIDs, receive(t, alice).ID)
		bobIDs = append(bobIDs, receive(t, bob).ID)
	}
	req.IsIncreasing(aliceIDs)
	req.Equal(aliceIDs, bobIDs) // both observers see the same id order
}
