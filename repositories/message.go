//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"sealmax-messenger/domain"
)

type IMessageRepository interface {
	InsertMessage(senderID int64, recipient domain.Recipient, text string) (domain.Message, error)
	HistoryForGeneral() ([]domain.Message, error)
	HistoryForConversation(userA, userB int64) ([]domain.Message, error)
	ContactIDsOf(userID int64) ([]int64, error)
}

const messageSequenceBandwidth = 128

// MessageRepository persists messages in BadgerDB.
//
// Keys are laid out so that a prefix scan returns one conversation in
// id order without any post-sorting:
//
//	msg:g:{id_padded}                     general room
//	msg:d:{lo_padded}:{hi_padded}:{id_padded}  direct, lo < hi user ids
//
// 19-digit zero padding keeps lexicographical order equal to numeric
// order for the full int64 range. Ids come from a badger.Sequence, so
// two concurrent inserts can never collide.
type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:msg"), messageSequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("message id sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log}, nil
}

// Close releases the id sequence lease. Unused leased ids are burned,
// which keeps ids strictly increasing across restarts.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

type storedMessage struct {
	ID          int64  `json:"id"`
	SenderID    int64  `json:"sender_id"`
	RecipientID int64  `json:"recipient_id"`
	Text        string `json:"text"`
	At          int64  `json:"at"` // unix nanoseconds
}

// InsertMessage atomically assigns the next id, stamps the current
// time and persists the record. The returned Message carries the
// assigned id so callers can fan it out as-is.
func (m *MessageRepository) InsertMessage(senderID int64, recipient domain.Recipient, text string) (domain.Message, error) {
	next, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("next message id: %w", err)
	}

	message := domain.Message{
		ID:          int64(next) + 1, // sequences start at 0, ids at 1
		SenderID:    senderID,
		RecipientID: recipient.Wire(),
		Text:        text,
		At:          time.Now().UTC(),
	}

	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return domain.Message{}, err
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), bytes)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("persist message %d: %w", message.ID, err)
	}
	return message, nil
}

// HistoryForGeneral returns every broadcast message, ascending by id.
func (m *MessageRepository) HistoryForGeneral() ([]domain.Message, error) {
	return m.scan([]byte("msg:g:"))
}

// HistoryForConversation returns every direct message exchanged
// between the unordered pair {userA, userB}, ascending by id.
func (m *MessageRepository) HistoryForConversation(userA, userB int64) ([]domain.Message, error) {
	lo, hi := orderPair(userA, userB)
	return m.scan([]byte(fmt.Sprintf("msg:d:%019d:%019d:", lo, hi)))
}

func (m *MessageRepository) scan(prefix []byte) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var stored storedMessage
				if err := json.Unmarshal(value, &stored); err != nil {
					return err
				}
				messages = append(messages, toMessage(stored))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ContactIDsOf derives the contact relation from the stored direct
// messages: every distinct counterpart of userID, excluding the user
// itself. Only keys are scanned, values are never fetched.
func (m *MessageRepository) ContactIDsOf(userID int64) ([]int64, error) {
	counterparts := make(map[int64]struct{})
	prefix := []byte("msg:d:")

	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			lo, hi, ok := parseDirectKey(it.Item().Key())
			if !ok {
				m.log.Warn("skipping malformed direct message key", "key", string(it.Item().Key()))
				continue
			}
			switch userID {
			case lo:
				if hi != userID {
					counterparts[hi] = struct{}{}
				}
			case hi:
				if lo != userID {
					counterparts[lo] = struct{}{}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(counterparts))
	for id := range counterparts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func messageKey(m domain.Message) []byte {
	if recipientID, ok := m.Recipient().UserID(); ok {
		lo, hi := orderPair(m.SenderID, recipientID)
		return []byte(fmt.Sprintf("msg:d:%019d:%019d:%019d", lo, hi, m.ID))
	}
	return []byte(fmt.Sprintf("msg:g:%019d", m.ID))
}

func parseDirectKey(key []byte) (lo, hi int64, ok bool) {
	parts := strings.Split(string(key), ":")
	if len(parts) != 5 {
		return 0, 0, false
	}
	lo, errLo := strconv.ParseInt(parts[2], 10, 64)
	hi, errHi := strconv.ParseInt(parts[3], 10, 64)
	if errLo != nil || errHi != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

func orderPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

func fromMessage(m domain.Message) storedMessage {
	return storedMessage{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Text:        m.Text,
		At:          m.At.UnixNano(),
	}
}

func toMessage(s storedMessage) domain.Message {
	return domain.Message{
		ID:          s.ID,
		SenderID:    s.SenderID,
		RecipientID: s.RecipientID,
		Text:        s.Text,
		At:          time.Unix(0, s.At).UTC(),
	}
}
