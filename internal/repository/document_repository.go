package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"paperchat/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// ErrDuplicateKey reports that an insert lost the race on a unique index.
var ErrDuplicateKey = errors.New("duplicate key")

// Create inserts the document. The unique index on key makes the database
// the arbiter for concurrent upload-complete callbacks; losing that race
// surfaces as ErrDuplicateKey.
func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("create document: %w", ErrDuplicateKey)
		}
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByKey(key string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("`key` = ?", key).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document by key failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByID(id string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByIDAndUserID(id string, userID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByUserID(userID uint) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

// UpdateStatus is the only mutation documents ever see.
func (r *DocumentRepository) UpdateStatus(id string, status model.UploadStatus) error {
	if err := r.db.Model(&model.Document{}).Where("id = ?", id).
		Update("upload_status", status).Error; err != nil {
		return fmt.Errorf("update document status failed: %w", err)
	}
	return nil
}
