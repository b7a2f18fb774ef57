package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jurimate/casedraft-backend/internal/domain"
)

// DraftRepository handles draft document operations
type DraftRepository interface {
	// Upsert creates or updates the draft for a case
	Upsert(draft *domain.Draft) error
	// FindByCaseID returns the draft for a case
	FindByCaseID(caseID string) (*domain.Draft, error)
}

type draftRepository struct {
	db *gorm.DB
}

// NewDraftRepository creates a new DraftRepository
func NewDraftRepository(db *gorm.DB) DraftRepository {
	return &draftRepository{db: db}
}

// Upsert creates or updates the draft using ON DUPLICATE KEY UPDATE
func (r *draftRepository) Upsert(draft *domain.Draft) error {
	draft.UpdatedAt = time.Now()

	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "case_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "saved_at", "updated_at"}),
	}).Create(draft).Error
}

// FindByCaseID returns the draft for a case
func (r *draftRepository) FindByCaseID(caseID string) (*domain.Draft, error) {
	var draft domain.Draft
	err := r.db.Where("case_id = ?", caseID).First(&draft).Error
	if err != nil {
		return nil, err
	}
	return &draft, nil
}
