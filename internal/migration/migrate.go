package migration

import (
	"gorm.io/gorm"

	"github.com/jurimate/casedraft-backend/internal/domain"
)

// Run executes AutoMigrate for the draft collaboration tables.
// 테이블 없으면 생성, 있으면 skip
func Run(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Draft{},
		&domain.VersionSnapshot{},
		&domain.CommentSnapshot{},
		&domain.ChangeLogEntry{},
	)
}
