package db

import (
	"time"

	"gorm.io/gorm"
)

// RecentRecords returns the user's analysis rows created at or after since,
// oldest first. Only the columns needed for counting are loaded.
func RecentRecords(db *gorm.DB, userID string, since time.Time) ([]AnalysisRecord, error) {
	var records []AnalysisRecord
	err := db.Where("user_id = ? AND created_at >= ?", userID, since).
		Select("id", "user_id", "created_at", "feature", "analysis_mode").
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

// ActiveUserIDs returns every user with at least one analysis since the cutoff.
func ActiveUserIDs(db *gorm.DB, since time.Time) ([]string, error) {
	var ids []string
	err := db.Model(&AnalysisRecord{}).
		Where("created_at >= ?", since).
		Distinct().
		Pluck("user_id", &ids).Error
	return ids, err
}

// InsertRecord persists one completed analysis.
func InsertRecord(db *gorm.DB, rec *AnalysisRecord) error {
	return db.Create(rec).Error
}
