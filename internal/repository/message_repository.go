package repository

import (
	"context"

	"github.com/reusehub/swapit-backend/internal/model"
	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	// History returns every message of the item whose (sender, receiver) pair
	// is a permutation of (a, b), oldest first. Other pairs on the same item
	// are never included.
	History(ctx context.Context, itemID uint64, a, b string) ([]model.Message, error)
	// Counterparts returns the distinct identities that appear opposite the
	// owner in any message of the item, in first-seen order.
	Counterparts(ctx context.Context, itemID uint64, owner string) ([]string, error)
	DeleteByItem(ctx context.Context, itemID uint64) error
	SetDB(db *gorm.DB)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) History(ctx context.Context, itemID uint64, a, b string) ([]model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var msgs []model.Message
	if err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Where("(sender_email = ? AND receiver_email = ?) OR (sender_email = ? AND receiver_email = ?)", a, b, b, a).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) Counterparts(ctx context.Context, itemID uint64, owner string) ([]string, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var msgs []model.Message
	if err := r.db.WithContext(ctx).
		Select("sender_email", "receiver_email").
		Where("item_id = ?", itemID).
		Where("sender_email = ? OR receiver_email = ?", owner, owner).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return ProjectCounterparts(msgs, owner), nil
}

// ProjectCounterparts derives the set of non-owner participants from a message
// scan, preserving first-seen order. Conversations are not stored; they exist
// only as this projection.
func ProjectCounterparts(msgs []model.Message, owner string) []string {
	seen := make(map[string]struct{}, len(msgs))
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		other := m.SenderEmail
		if other == owner {
			other = m.ReceiverEmail
		}
		if other == owner || other == "" {
			continue
		}
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		out = append(out, other)
	}
	return out
}

func (r *messageRepository) DeleteByItem(ctx context.Context, itemID uint64) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Where("item_id = ?", itemID).Delete(&model.Message{}).Error
}
