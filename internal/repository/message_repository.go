package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"paperchat/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

// ListRecentByDocumentID returns the newest `limit` messages, newest first.
// The caller reverses them when it needs chronological order.
func (r *MessageRepository) ListRecentByDocumentID(documentID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 6
	}
	var messages []model.Message
	if err := r.db.Where("document_id = ?", documentID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list recent messages failed: %w", err)
	}
	return messages, nil
}

// ListPageByDocumentID returns one newest-first page. cursor is the ID of
// the first message of the page (inclusive); it fetches limit+1 rows and
// hands the extra one back as the next cursor.
func (r *MessageRepository) ListPageByDocumentID(documentID string, limit int, cursor string) ([]model.Message, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	q := r.db.Where("document_id = ?", documentID)
	if cursor != "" {
		var pivot model.Message
		if err := r.db.Where("id = ? AND document_id = ?", cursor, documentID).
			First(&pivot).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, "", fmt.Errorf("unknown message cursor")
			}
			return nil, "", fmt.Errorf("resolve message cursor failed: %w", err)
		}
		q = q.Where("created_at < ? OR (created_at = ? AND id <= ?)",
			pivot.CreatedAt, pivot.CreatedAt, pivot.ID)
	}

	var messages []model.Message
	if err := q.Order("created_at DESC").Order("id DESC").
		Limit(limit + 1).Find(&messages).Error; err != nil {
		return nil, "", fmt.Errorf("list message page failed: %w", err)
	}

	next := ""
	if len(messages) > limit {
		next = messages[limit].ID
		messages = messages[:limit]
	}
	return messages, next, nil
}
