package models

import "time"

// SnapshotRecord is the row backing the postgres snapshot store.
type SnapshotRecord struct {
	Key       string    `gorm:"primaryKey;size:128"`
	Value     string    `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

func (SnapshotRecord) TableName() string {
	return "flow_snapshot"
}
