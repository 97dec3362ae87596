package database

import (
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"content-panel/internal/models"
)

var DB *gorm.DB

func Connect(dbPath string) (*gorm.DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// Configure connection pool for SQLite
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1) // SQLite only supports 1 writer
	sqlDB.SetMaxIdleConns(1)

	DB = db
	return db, nil
}

// Migrate creates or updates every table the console persists. The engine
// entities are listed together so a restart always sees the full job store.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Setting{},
		&models.ActivityLog{},
		&models.Site{},
		&models.ContentDraft{},
		&models.BulkOperation{},
		&models.ScheduledPost{},
		&models.AutomationSchedule{},
		&models.AutomationExecution{},
	)
}
