// Package runtime wires the live half of the system: connection
// membership (Registry) and the message pipeline (RouterWorker).
// It coordinates the store and the registry by explicit calls and
// contains no transport logic.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sealmax-messenger/contract"
	"sealmax-messenger/domain"
	"sealmax-messenger/observability"
	"sealmax-messenger/repositories"
)

// Ensure *RouterWorker satisfies its contracts at compile time.
var (
	_ contract.Worker  = (*RouterWorker)(nil)
	_ contract.IRouter = (*RouterWorker)(nil)
)

// RouterWorker is the heart of the core: it drains inbound send
// intents, persists them, and fans each accepted message out to
// exactly the right set of live connections.
//
// A single RouterWorker goroutine serializes persist+fanout, so the
// delivery order observed by every connection matches id order.
// Do not run more than one instance against the same command channel.
type RouterWorker struct {
	log      *slog.Logger
	registry contract.IRegistry
	messages repositories.IMessageRepository
	commands chan domain.SendMessage
	metrics  *observability.Metrics
}

func NewRouterWorker(log *slog.Logger, registry contract.IRegistry,
	messages repositories.IMessageRepository, metrics *observability.Metrics,
	bufferSize int) *RouterWorker {
	return &RouterWorker{
		log:      log,
		registry: registry,
		messages: messages,
		commands: make(chan domain.SendMessage, bufferSize),
		metrics:  metrics,
	}
}

// Dispatch hands an inbound intent to the pipeline. Fire-and-forget:
// there is no per-message acknowledgment, and under sustained
// overload the intent is dropped with a warning rather than blocking
// the connection's read loop.
func (w *RouterWorker) Dispatch(cmd domain.SendMessage) {
	select {
	case w.commands <- cmd:
	default:
		w.log.Warn(fmt.Sprintf("Command channel full, dropping message from user %d", cmd.SenderID))
		w.metrics.MessagesDropped.Inc()
	}
}

func (w *RouterWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping router")
			return nil
		case cmd, ok := <-w.commands:
			if !ok {
				return nil
			}
			w.handle(ctx, cmd)
		}
	}
}

func (w *RouterWorker) handle(ctx context.Context, cmd domain.SendMessage) {
	// Whitespace-only text is dropped silently: the transport has no
	// per-message acknowledgment to report it on.
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		w.log.Debug("Dropping empty message", "sender_id", cmd.SenderID)
		w.metrics.MessagesDropped.Inc()
		return
	}

	message, err := w.messages.InsertMessage(cmd.SenderID, cmd.Recipient, text)
	if err != nil {
		// Fatal to this single message, not to the connection.
		w.log.Error("Failed to persist message", "sender_id", cmd.SenderID, "error", err)
		w.metrics.PersistFailures.Inc()
		return
	}
	w.metrics.MessagesAccepted.WithLabelValues(kind(cmd.Recipient)).Inc()

	for _, sink := range w.fanoutSet(message) {
		if err := sink.Consume(ctx, message); err != nil {
			// Isolated per connection: one dead or slow target must not
			// prevent delivery to the rest.
			w.log.Warn("Delivery failed", "message_id", message.ID, "error", err)
			w.metrics.DeliveryFailures.Inc()
		}
	}
}

// fanoutSet resolves the delivery targets for one accepted message:
// every live connection for a broadcast, the union of the recipient's
// and the sender's connections for a direct message. The sender is
// always echoed its own message so all of its devices render it.
func (w *RouterWorker) fanoutSet(m domain.Message) []contract.EventSink {
	recipientID, direct := m.Recipient().UserID()
	if !direct {
		return w.registry.All()
	}

	seen := make(map[contract.EventSink]struct{})
	var targets []contract.EventSink
	for _, sink := range w.registry.ConnectionsFor(recipientID) {
		seen[sink] = struct{}{}
		targets = append(targets, sink)
	}
	for _, sink := range w.registry.ConnectionsFor(m.SenderID) {
		if _, ok := seen[sink]; !ok {
			targets = append(targets, sink)
		}
	}
	return targets
}

func kind(r domain.Recipient) string {
	if r.IsGeneral() {
		return "general"
	}
	return "direct"
}
