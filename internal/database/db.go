package database

import (
	"catdomains/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the sqlite database at path and migrates the schema.
// path may be a file name or a sqlite URI such as
// "file:test?mode=memory&cache=shared".
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// sqlite allows a single writer; one connection keeps transactions from
	// tripping over "database is locked".
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	log.Debug().Str("path", path).Msg("migrating database")
	err = db.AutoMigrate(&models.Category{}, &models.DomainAssociation{}, &models.User{})
	if err != nil {
		return nil, err
	}

	return db, nil
}
