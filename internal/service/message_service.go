package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/reusehub/swapit-backend/internal/model"
	"github.com/reusehub/swapit-backend/internal/repository"
	"gorm.io/gorm"
)

// MessagePublisher pushes a freshly inserted message to the item's live feed.
// Publication is best-effort; delivery failures never fail the send.
type MessagePublisher interface {
	Publish(ctx context.Context, msg model.Message)
}

type MessageService interface {
	Send(ctx context.Context, itemID uint64, senderEmail, receiverEmail, content string) (*model.Message, error)
	History(ctx context.Context, itemID uint64, userEmail, withEmail string) ([]model.Message, error)
	Counterparts(ctx context.Context, itemID uint64, requesterEmail string) ([]string, error)
}

type messageService struct {
	msgRepo  repository.MessageRepository
	itemRepo repository.ItemRepository
	pub      MessagePublisher
}

func NewMessageService(msgRepo repository.MessageRepository, itemRepo repository.ItemRepository, pub MessagePublisher) MessageService {
	return &messageService{msgRepo: msgRepo, itemRepo: itemRepo, pub: pub}
}

func (s *messageService) loadItem(ctx context.Context, itemID uint64) (*model.Item, error) {
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *messageService) Send(ctx context.Context, itemID uint64, senderEmail, receiverEmail, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("content is required")
	}
	if utf8.RuneCountInString(content) > model.MaxMessageLen {
		return nil, errors.New("content too long")
	}
	if senderEmail == "" || receiverEmail == "" {
		return nil, errors.New("sender and receiver are required")
	}
	if senderEmail == receiverEmail {
		return nil, errors.New("cannot message yourself")
	}

	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Sample {
		return nil, errors.New("sample items do not support chat")
	}
	// Exactly one side of the pair must be the item owner; there is no group
	// chat and no owner-to-owner thread on the same item.
	if (senderEmail == item.OwnerEmail) == (receiverEmail == item.OwnerEmail) {
		return nil, ErrForbidden
	}

	msg := &model.Message{
		ItemID:        itemID,
		SenderEmail:   senderEmail,
		ReceiverEmail: receiverEmail,
		Content:       content,
	}
	if err := s.msgRepo.Create(ctx, msg); err != nil {
		return nil, err
	}
	if s.pub != nil {
		s.pub.Publish(ctx, *msg)
	}
	return msg, nil
}

func (s *messageService) History(ctx context.Context, itemID uint64, userEmail, withEmail string) ([]model.Message, error) {
	if userEmail == "" || withEmail == "" {
		return nil, errors.New("participant is required")
	}
	if userEmail == withEmail {
		return nil, errors.New("cannot fetch a conversation with yourself")
	}
	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if userEmail != item.OwnerEmail && withEmail != item.OwnerEmail {
		return nil, ErrForbidden
	}
	return s.msgRepo.History(ctx, itemID, userEmail, withEmail)
}

func (s *messageService) Counterparts(ctx context.Context, itemID uint64, requesterEmail string) ([]string, error) {
	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if requesterEmail != item.OwnerEmail {
		return nil, ErrForbidden
	}
	return s.msgRepo.Counterparts(ctx, itemID, item.OwnerEmail)
}
