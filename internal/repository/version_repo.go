package repository

import (
	"gorm.io/gorm"

	"github.com/jurimate/casedraft-backend/internal/domain"
)

// VersionRepository handles version snapshot operations
type VersionRepository interface {
	// ReplaceAll swaps the stored history for a case with the given list
	ReplaceAll(caseID string, versions []domain.VersionSnapshot) error
	// FindByCaseID returns the history for a case, newest first
	FindByCaseID(caseID string) ([]domain.VersionSnapshot, error)
	// FindByID returns a single snapshot of a case
	FindByID(caseID, versionID string) (*domain.VersionSnapshot, error)
	// Count returns the number of snapshots for a case
	Count(caseID string) (int64, error)
}

type versionRepository struct {
	db *gorm.DB
}

// NewVersionRepository creates a new VersionRepository
func NewVersionRepository(db *gorm.DB) VersionRepository {
	return &versionRepository{db: db}
}

// ReplaceAll swaps the stored history for a case with the given list.
// 세션 메모리의 이력이 원본이므로 삭제 후 일괄 삽입으로 동기화한다.
func (r *versionRepository) ReplaceAll(caseID string, versions []domain.VersionSnapshot) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("case_id = ?", caseID).
			Delete(&domain.VersionSnapshot{}).Error; err != nil {
			return err
		}
		if len(versions) == 0 {
			return nil
		}
		for i := range versions {
			versions[i].CaseID = caseID
		}
		return tx.Create(&versions).Error
	})
}

// FindByCaseID returns the history for a case ordered by saved_at desc
func (r *versionRepository) FindByCaseID(caseID string) ([]domain.VersionSnapshot, error) {
	var versions []domain.VersionSnapshot
	err := r.db.Where("case_id = ?", caseID).
		Order("saved_at DESC").
		Find(&versions).Error
	return versions, err
}

// FindByID returns a single snapshot of a case
func (r *versionRepository) FindByID(caseID, versionID string) (*domain.VersionSnapshot, error) {
	var version domain.VersionSnapshot
	err := r.db.Where("case_id = ? AND version_id = ?", caseID, versionID).
		First(&version).Error
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// Count returns the number of snapshots for a case
func (r *versionRepository) Count(caseID string) (int64, error) {
	var count int64
	err := r.db.Model(&domain.VersionSnapshot{}).
		Where("case_id = ?", caseID).
		Count(&count).Error
	return count, err
}
