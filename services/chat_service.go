//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"log/slog"

	"sealmax-messenger/contract"
	"sealmax-messenger/domain"
	"sealmax-messenger/repositories"
)

type IChatService interface {
	Send(cmd domain.SendMessage)
	GeneralHistory() ([]domain.Message, error)
	ConversationHistory(userID, counterpartID int64) ([]domain.Message, error)
	ContactsOf(userID int64) ([]domain.PublicUser, error)
	UserByID(id int64) (domain.PublicUser, error)
	UserByName(username string) (domain.PublicUser, error)
	UserByCustomID(customID string) (domain.PublicUser, error)
}

// ChatService is the application facade over the router and the
// durable store. Sends go through the router pipeline; history,
// contacts, and user lookups are pull-based reads.
type ChatService struct {
	log      *slog.Logger
	router   contract.IRouter
	messages repositories.IMessageRepository
	users    repositories.IUserRepository
}

func NewChatService(log *slog.Logger, router contract.IRouter,
	messages repositories.IMessageRepository, users repositories.IUserRepository) *ChatService {
	return &ChatService{log: log, router: router, messages: messages, users: users}
}

func (s *ChatService) Send(cmd domain.SendMessage) {
	s.router.Dispatch(cmd)
}

func (s *ChatService) GeneralHistory() ([]domain.Message, error) {
	return s.messages.HistoryForGeneral()
}

func (s *ChatService) ConversationHistory(userID, counterpartID int64) ([]domain.Message, error) {
	return s.messages.HistoryForConversation(userID, counterpartID)
}

// ContactsOf resolves the derived contact relation into user records.
// A counterpart whose account vanished from the store is skipped
// rather than failing the whole listing.
func (s *ChatService) ContactsOf(userID int64) ([]domain.PublicUser, error) {
	ids, err := s.messages.ContactIDsOf(userID)
	if err != nil {
		return nil, err
	}

	contacts := make([]domain.PublicUser, 0, len(ids))
	for _, id := range ids {
		user, err := s.users.FindByID(id)
		if err != nil {
			s.log.Warn("Contact references unknown user", "user_id", id, "error", err)
			continue
		}
		contacts = append(contacts, user.Public())
	}
	return contacts, nil
}

func (s *ChatService) UserByID(id int64) (domain.PublicUser, error) {
	user, err := s.users.FindByID(id)
	if err != nil {
		return domain.PublicUser{}, err
	}
	return user.Public(), nil
}

func (s *ChatService) UserByName(username string) (domain.PublicUser, error) {
	user, err := s.users.FindByName(username)
	if err != nil {
		return domain.PublicUser{}, err
	}
	return user.Public(), nil
}

func (s *ChatService) UserByCustomID(customID string) (domain.PublicUser, error) {
	user, err := s.users.FindByCustomID(customID)
	if err != nil {
		return domain.PublicUser{}, err
	}
	return user.Public(), nil
}
