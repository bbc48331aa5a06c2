package storage

import (
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// dbRecord is the row shape of the database byte store.
type dbRecord struct {
	ID         uint           `gorm:"primaryKey"`
	Collection string         `gorm:"uniqueIndex:idx_collection_key;size:64"`
	Key        string         `gorm:"uniqueIndex:idx_collection_key;size:64"`
	Data       datatypes.JSON `gorm:"type:json"`
}

func (dbRecord) TableName() string { return "byte_store" }

// DatabaseDriver is a byte-store driver over a relational database via
// gorm. Records are JSON documents, so the data column uses the native
// JSON type where the dialect has one.
type DatabaseDriver struct {
	db *gorm.DB
}

// NewDatabaseDriver connects and migrates the byte-store table.
func NewDatabaseDriver(cfg DatabaseConfig) (*DatabaseDriver, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err = db.AutoMigrate(&dbRecord{}); err != nil {
		return nil, err
	}
	return &DatabaseDriver{db: db}, nil
}

// Store implements Driver.
func (d *DatabaseDriver) Store(collection, key, data string) bool {
	if !validName(collection) || !validName(key) || data == "" {
		return false
	}
	rec := dbRecord{
		Collection: collection,
		Key:        key,
		Data:       datatypes.JSON(data),
	}
	err := d.db.Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data"}),
		},
	).Create(&rec).Error
	if err != nil {
		log.WithError(err).WithField("key", key).Error("db: store failed")
		return false
	}
	return true
}

// Retrieve implements Driver.
func (d *DatabaseDriver) Retrieve(collection, key string) string {
	if !validName(collection) || !validName(key) {
		return ""
	}
	var rec dbRecord
	err := d.db.Where("collection = ? AND key = ?", collection, key).First(&rec).Error
	if err != nil {
		return ""
	}
	return string(rec.Data)
}

// Remove implements Driver.
func (d *DatabaseDriver) Remove(collection, key string) bool {
	if !validName(collection) || !validName(key) {
		return false
	}
	res := d.db.Where("collection = ? AND key = ?", collection, key).Delete(&dbRecord{})
	if res.Error != nil {
		log.WithError(res.Error).WithField("key", key).Error("db: remove failed")
		return false
	}
	return res.RowsAffected > 0
}

// ListKeys implements Driver.
func (d *DatabaseDriver) ListKeys(collection string) []string {
	if !validName(collection) {
		return nil
	}
	var keys []string
	err := d.db.Model(&dbRecord{}).Where("collection = ?", collection).Pluck("key", &keys).Error
	if err != nil {
		return nil
	}
	return keys
}

// Exists implements Driver.
func (d *DatabaseDriver) Exists(collection, key string) bool {
	if !validName(collection) || !validName(key) {
		return false
	}
	var count int64
	err := d.db.Model(&dbRecord{}).Where("collection = ? AND key = ?", collection, key).Count(&count).Error
	return err == nil && count > 0
}
