//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"sealmax-messenger/domain"
	"sealmax-messenger/errors"
)

type IUserRepository interface {
	CreateUser(username, customID, passwordHash string) (domain.User, error)
	FindByID(id int64) (domain.User, error)
	FindByName(username string) (domain.User, error)
	FindByCustomID(customID string) (domain.User, error)
}

// customIDPattern restricts the alternate handle to an identifier:
// a leading letter followed by letters or digits only.
var customIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

const userSequenceBandwidth = 16

// UserRepository persists accounts in BadgerDB.
//
// Besides the record itself, two index keys enforce case-insensitive
// uniqueness and serve case-insensitive lookups:
//
//	user:id:{id_padded}      -> JSON record
//	user:name:{lower(name)}  -> decimal id
//	user:cid:{lower(cid)}    -> decimal id
type UserRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte("seq:user"), userSequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("user id sequence: %w", err)
	}
	return &UserRepository{db: db, seq: seq}, nil
}

func (u *UserRepository) Close() error {
	return u.seq.Release()
}

type storedUser struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	CustomID     string `json:"custom_id,omitempty"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
}

// CreateUser persists a new account. Both the username and the
// optional custom id must be free under case-insensitive comparison;
// the record and its index keys are written in one transaction, so a
// duplicate leaves no partial user behind.
func (u *UserRepository) CreateUser(username, customID, passwordHash string) (domain.User, error) {
	if customID != "" && !customIDPattern.MatchString(customID) {
		return domain.User{}, errors.ErrInvalidCustomID
	}

	next, err := u.seq.Next()
	if err != nil {
		return domain.User{}, fmt.Errorf("next user id: %w", err)
	}

	user := domain.User{
		ID:           int64(next) + 1,
		Username:     username,
		CustomID:     customID,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	record, err := json.Marshal(fromUser(user))
	if err != nil {
		return domain.User{}, err
	}

	idValue := []byte(strconv.FormatInt(user.ID, 10))
	nameKey := []byte("user:name:" + strings.ToLower(username))
	cidKey := []byte("user:cid:" + strings.ToLower(customID))

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(nameKey); err == nil {
			return errors.ErrDuplicateUser
		}
		if customID != "" {
			if _, err := txn.Get(cidKey); err == nil {
				return errors.ErrDuplicateUser
			}
		}
		if err := txn.Set(userIDKey(user.ID), record); err != nil {
			return err
		}
		if err := txn.Set(nameKey, idValue); err != nil {
			return err
		}
		if customID != "" {
			return txn.Set(cidKey, idValue)
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (u *UserRepository) FindByID(id int64) (domain.User, error) {
	var stored storedUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userIDKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return toUser(stored), nil
}

// FindByName resolves a username case-insensitively.
func (u *UserRepository) FindByName(username string) (domain.User, error) {
	return u.findByIndex("user:name:" + strings.ToLower(username))
}

// FindByCustomID resolves a custom id case-insensitively.
func (u *UserRepository) FindByCustomID(customID string) (domain.User, error) {
	return u.findByIndex("user:cid:" + strings.ToLower(customID))
}

func (u *UserRepository) findByIndex(indexKey string) (domain.User, error) {
	var id int64
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(indexKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			parsed, err := strconv.ParseInt(string(val), 10, 64)
			id = parsed
			return err
		})
	})
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return u.FindByID(id)
}

func userIDKey(id int64) []byte {
	return []byte(fmt.Sprintf("user:id:%019d", id))
}

func notFound(err error) error {
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrUserNotFound
	}
	return err
}

func fromUser(u domain.User) storedUser {
	return storedUser{
		ID:           u.ID,
		Username:     u.Username,
		CustomID:     u.CustomID,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.Unix(),
	}
}

func toUser(s storedUser) domain.User {
	return domain.User{
		ID:           s.ID,
		Username:     s.Username,
		CustomID:     s.CustomID,
		PasswordHash: s.PasswordHash,
		CreatedAt:    time.Unix(s.CreatedAt, 0).UTC(),
	}
}
