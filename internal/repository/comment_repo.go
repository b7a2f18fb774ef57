package repository

import (
	"gorm.io/gorm"

	"github.com/jurimate/casedraft-backend/internal/domain"
)

// CommentRepository handles draft comment operations
type CommentRepository interface {
	// ReplaceAll swaps the stored comments for a case with the given list
	ReplaceAll(caseID string, comments []domain.CommentSnapshot) error
	// FindByCaseID returns the comments for a case, newest first
	FindByCaseID(caseID string) ([]domain.CommentSnapshot, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// ReplaceAll swaps the stored comments for a case with the given list
func (r *commentRepository) ReplaceAll(caseID string, comments []domain.CommentSnapshot) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("case_id = ?", caseID).
			Delete(&domain.CommentSnapshot{}).Error; err != nil {
			return err
		}
		if len(comments) == 0 {
			return nil
		}
		for i := range comments {
			comments[i].CaseID = caseID
		}
		return tx.Create(&comments).Error
	})
}

// FindByCaseID returns the comments for a case ordered by created_at desc
func (r *commentRepository) FindByCaseID(caseID string) ([]domain.CommentSnapshot, error) {
	var comments []domain.CommentSnapshot
	err := r.db.Where("case_id = ?", caseID).
		Order("created_at DESC").
		Find(&comments).Error
	return comments, err
}
