package repository

import (
	"gorm.io/gorm"

	"github.com/jurimate/casedraft-backend/internal/domain"
)

// ChangeLogRepository handles tracked-change log operations
type ChangeLogRepository interface {
	// ReplaceAll swaps the stored change log for a case with the given list
	ReplaceAll(caseID string, entries []domain.ChangeLogEntry) error
	// FindByCaseID returns the change log for a case, newest first
	FindByCaseID(caseID string) ([]domain.ChangeLogEntry, error)
}

type changeLogRepository struct {
	db *gorm.DB
}

// NewChangeLogRepository creates a new ChangeLogRepository
func NewChangeLogRepository(db *gorm.DB) ChangeLogRepository {
	return &changeLogRepository{db: db}
}

// ReplaceAll swaps the stored change log for a case with the given list
func (r *changeLogRepository) ReplaceAll(caseID string, entries []domain.ChangeLogEntry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("case_id = ?", caseID).
			Delete(&domain.ChangeLogEntry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		for i := range entries {
			entries[i].CaseID = caseID
		}
		return tx.Create(&entries).Error
	})
}

// FindByCaseID returns the change log for a case ordered by created_at desc
func (r *changeLogRepository) FindByCaseID(caseID string) ([]domain.ChangeLogEntry, error) {
	var entries []domain.ChangeLogEntry
	err := r.db.Where("case_id = ?", caseID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}
