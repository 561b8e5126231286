package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/reusehub/swapit-backend/internal/model"
	"github.com/reusehub/swapit-backend/internal/repository"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not found")
var ErrForbidden = errors.New("forbidden")

// ErrCascadePartial reports that an item's messages were removed but the item
// row itself could not be deleted. The store is left in an intermediate state
// the caller must surface explicitly, never as plain success or failure.
var ErrCascadePartial = errors.New("messages removed but item deletion failed")

type ItemService interface {
	Create(ctx context.Context, ownerEmail, title, category, location, description string, photoURL *string) (*model.Item, error)
	Get(ctx context.Context, id uint64) (*model.Item, error)
	List(ctx context.Context, limit, offset int, category string) ([]model.Item, int64, error)
	Delete(ctx context.Context, id uint64, requesterEmail string) error
}

type itemService struct {
	itemRepo repository.ItemRepository
	msgRepo  repository.MessageRepository
}

func NewItemService(itemRepo repository.ItemRepository, msgRepo repository.MessageRepository) ItemService {
	return &itemService{itemRepo: itemRepo, msgRepo: msgRepo}
}

func (s *itemService) Create(ctx context.Context, ownerEmail, title, category, location, description string, photoURL *string) (*model.Item, error) {
	title = strings.TrimSpace(title)
	category = strings.TrimSpace(category)
	location = strings.TrimSpace(location)
	if ownerEmail == "" {
		return nil, errors.New("owner is required")
	}
	if title == "" || len(title) > 120 {
		return nil, errors.New("invalid title")
	}
	if category == "" {
		return nil, errors.New("category is required")
	}
	if location == "" {
		return nil, errors.New("location is required")
	}
	if photoURL != nil && strings.HasPrefix(strings.TrimSpace(*photoURL), "data:") {
		return nil, errors.New("photoUrl must be a URL, not data URI")
	}

	item := &model.Item{
		Title:       title,
		Category:    category,
		Location:    location,
		Description: strings.TrimSpace(description),
		PhotoURL:    photoURL,
		OwnerEmail:  ownerEmail,
	}
	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *itemService) Get(ctx context.Context, id uint64) (*model.Item, error) {
	item, err := s.itemRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *itemService) List(ctx context.Context, limit, offset int, category string) ([]model.Item, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.itemRepo.List(ctx, limit, offset, strings.TrimSpace(category))
}

// Delete removes an item together with its messages. Messages go first so a
// failure never leaves orphaned rows pointing at a missing item; if the item
// row fails after the messages are gone the error is ErrCascadePartial.
func (s *itemService) Delete(ctx context.Context, id uint64, requesterEmail string) error {
	item, err := s.itemRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if item.Sample {
		return errors.New("sample items cannot be deleted")
	}
	if item.OwnerEmail != requesterEmail {
		return ErrForbidden
	}
	if err := s.msgRepo.DeleteByItem(ctx, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if err := s.itemRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: %v", ErrCascadePartial, err)
	}
	return nil
}
