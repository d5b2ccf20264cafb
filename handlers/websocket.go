package handlers

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/samber/lo"

	"sealmax-messenger/auth"
	"sealmax-messenger/contract"
	"sealmax-messenger/domain"
	"sealmax-messenger/observability"
	"sealmax-messenger/services"
	"sealmax-messenger/sink"
)

const writeWait = 10 * time.Second

// WSHandler owns the lifecycle of one websocket connection:
// token handshake, registration in the live registry, the one-shot
// history snapshot, then the read loop for inbound sends and the
// write pump for deliveries.
//
// The sink is registered before the snapshot is captured, so no
// message can fall between the two; broadcast deliveries that overlap
// the snapshot are de-duplicated by id in the write pump. Direct
// messages are never part of the snapshot and are always pumped.
type WSHandler struct {
	log        *slog.Logger
	chat       services.IChatService
	registry   contract.IRegistry
	tokens     *auth.TokenManager
	metrics    *observability.Metrics
	bufferSize int
}

func NewWSHandler(log *slog.Logger, chat services.IChatService,
	registry contract.IRegistry, tokens *auth.TokenManager,
	metrics *observability.Metrics, bufferSize int) *WSHandler {
	return &WSHandler{
		log:        log,
		chat:       chat,
		registry:   registry,
		tokens:     tokens,
		metrics:    metrics,
		bufferSize: bufferSize,
	}
}

// inboundMessage is the "send message" event. RecipientID is kept raw
// so an absent or non-numeric value normalizes to the general room
// instead of failing the frame.
type inboundMessage struct {
	RecipientID json.RawMessage `json:"recipientId"`
	Text        string          `json:"text"`
}

type wireMessage struct {
	ID          int64     `json:"id"`
	SenderID    int64     `json:"senderId"`
	RecipientID int64     `json:"recipientId"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

type historyEvent struct {
	Type     string        `json:"type"`
	Messages []wireMessage `json:"messages"`
}

type messageEvent struct {
	Type    string      `json:"type"`
	Message wireMessage `json:"message"`
}

// Handle runs the connection state machine:
// Connecting -> Authenticating -> Authenticated -> ... -> Disconnected.
// A connection that fails the handshake is terminated before it can
// ever become a delivery target; identity is fixed for the lifetime
// of the connection.
func (h *WSHandler) Handle(c *websocket.Conn) {
	userID, err := h.tokens.Resolve(c.Query("token"))
	if err != nil {
		h.log.Debug("Websocket handshake rejected", "error", err)
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.WriteJSON(map[string]string{"error": "unauthenticated"})
		_ = c.WriteMessage(websocket.CloseMessage, []byte{})
		_ = c.Close()
		return
	}

	connSink := sink.NewConnSink(userID, h.bufferSize)
	h.registry.Register(userID, connSink)
	h.metrics.ConnectionsTotal.Inc()
	h.metrics.LiveConnections.Inc()
	h.log.Info("Connection authenticated", "user_id", userID, "conn_id", connSink.ID)

	defer func() {
		h.registry.Unregister(connSink)
		h.metrics.LiveConnections.Dec()
		_ = c.Close()
		h.log.Info("Connection closed", "user_id", userID, "conn_id", connSink.ID)
	}()

	watermark, err := h.sendSnapshot(c)
	if err != nil {
		h.log.Warn("Failed to deliver history snapshot", "user_id", userID, "error", err)
		return
	}

	done := make(chan struct{})
	defer close(done)
	go h.writePump(c, connSink, watermark, done)

	h.readLoop(c, userID)
}

// sendSnapshot writes the general-room history exactly once and
// returns the highest id it contained. Captured after registration,
// so every later message is either in the snapshot or in the sink.
func (h *WSHandler) sendSnapshot(c *websocket.Conn) (int64, error) {
	history, err := h.chat.GeneralHistory()
	if err != nil {
		return 0, err
	}

	event := historyEvent{
		Type: "history",
		Messages: lo.Map(history, func(m domain.Message, _ int) wireMessage {
			return toWire(m)
		}),
	}
	if event.Messages == nil {
		event.Messages = []wireMessage{}
	}

	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.WriteJSON(event); err != nil {
		return 0, err
	}
	h.metrics.HistoryReplays.Inc()

	var watermark int64
	if len(history) > 0 {
		watermark = history[len(history)-1].ID
	}
	return watermark, nil
}

// writePump drains the sink onto the wire. Broadcast deliveries with
// an id at or below the snapshot watermark were already sent in the
// history event and are skipped; ids are strictly increasing, so the
// watermark alone is enough to de-duplicate. The watermark never
// applies to direct messages: the snapshot holds only the general
// room, and a direct message fanned out between registration and the
// snapshot read may carry an id below the latest broadcast.
func (h *WSHandler) writePump(c *websocket.Conn, connSink *sink.ConnSink, watermark int64, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case message := <-connSink.Events:
			if message.RecipientID == domain.GeneralRoomID && message.ID <= watermark {
				continue
			}
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteJSON(messageEvent{Type: "message", Message: toWire(message)}); err != nil {
				h.log.Warn("Websocket write failed", "user_id", connSink.UserID, "error", err)
				// Nudge the read loop so the connection tears down.
				_ = c.Close()
				return
			}
		}
	}
}

// readLoop consumes inbound frames until the connection dies.
// A malformed frame is dropped silently: the protocol has no
// per-message acknowledgment to surface it on.
func (h *WSHandler) readLoop(c *websocket.Conn, userID int64) {
	for {
		_, payload, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("Websocket read error", "user_id", userID, "error", err)
			}
			return
		}

		var inbound inboundMessage
		if err := json.Unmarshal(payload, &inbound); err != nil {
			h.log.Debug("Dropping malformed frame", "user_id", userID)
			continue
		}

		recipient, ok := parseRecipient(inbound.RecipientID)
		if !ok {
			h.log.Debug("Dropping frame with invalid recipient", "user_id", userID)
			continue
		}

		h.chat.Send(domain.SendMessage{
			SenderID:  userID,
			Recipient: recipient,
			Text:      inbound.Text,
		})
	}
}

// parseRecipient normalizes the wire recipient: absent or non-numeric
// values address the general room. A negative id addresses nobody and
// invalidates the frame instead of falling back to a broadcast.
func parseRecipient(raw json.RawMessage) (domain.Recipient, bool) {
	if len(raw) == 0 {
		return domain.General(), true
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return domain.General(), true
	}
	if id < 0 {
		return domain.Recipient{}, false
	}
	return domain.RecipientFromWire(id), true
}

func toWire(m domain.Message) wireMessage {
	return wireMessage{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Text:        m.Text,
		Timestamp:   m.At,
	}
}
