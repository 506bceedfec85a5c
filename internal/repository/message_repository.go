package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/welldanyogia/webrana-mailfunnel/internal/models"
	"gorm.io/gorm"
)

// MessageRepository defines the interface for the message audit log.
// Records are append-only: there is no update or delete.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	List(ctx context.Context, filter models.MessageFilter, limit, offset int) ([]models.Message, int64, error)
	CountByReason(ctx context.Context) ([]models.ReasonCount, error)
}

// messageRepository implements MessageRepository using GORM
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository instance
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create appends an audit record
func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	result := r.db.WithContext(ctx).Omit("Address").Create(message)
	if result.Error != nil {
		if errors.Is(result.Error, models.ErrInconsistentRejection) {
			return fmt.Errorf("%w: %w", ErrInvalidInput, result.Error)
		}
		return fmt.Errorf("failed to create message: %w", result.Error)
	}
	return nil
}

// GetByID retrieves an audit record by its ID with its address
func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	result := r.db.WithContext(ctx).Preload("Address").First(&message, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message by ID: %w", result.Error)
	}
	return &message, nil
}

// List retrieves audit records matching filter, newest first
func (r *messageRepository) List(ctx context.Context, filter models.MessageFilter, limit, offset int) ([]models.Message, int64, error) {
	scope := messageFilterScope(filter)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Message{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	var messages []models.Message
	result := r.db.WithContext(ctx).Scopes(scope).
		Preload("Address").
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&messages)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", result.Error)
	}

	return messages, total, nil
}

// CountByReason returns the number of audit records per reason. Accepted
// messages are counted under a nil reason.
func (r *messageRepository) CountByReason(ctx context.Context) ([]models.ReasonCount, error) {
	var counts []models.ReasonCount
	result := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("reason, COUNT(*) AS count").
		Group("reason").
		Order("reason").
		Scan(&counts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to count messages by reason: %w", result.Error)
	}
	return counts, nil
}

func messageFilterScope(filter models.MessageFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if filter.AddressID != nil {
			db = db.Where("address_id = ?", *filter.AddressID)
		}
		if filter.Rejected != nil {
			db = db.Where("is_rejected = ?", *filter.Rejected)
		}
		if filter.Reason != nil {
			db = db.Where("reason = ?", string(*filter.Reason))
		}
		return db
	}
}
