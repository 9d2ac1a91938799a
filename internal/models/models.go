package models

import (
	"time"
)

// LoadRecord is the local warehouse's copy history: one row per COPY INTO
// attempt against a target table.
type LoadRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Target     string    `gorm:"column:target_table;index;not null" json:"targetTable"`
	FileName   string    `gorm:"not null" json:"fileName"` // <prefix>/<file>, as Snowflake records it
	Status     string    `json:"status"`                   // LOADED|PARTIALLY_LOADED|LOAD_FAILED
	RowsParsed int64     `json:"rowsParsed"`
	RowsLoaded int64     `json:"rowsLoaded"`
	ErrorsSeen int64     `json:"errorsSeen"`
	FirstError string    `json:"firstError"`
	LoadedAt   time.Time `gorm:"index" json:"loadedAt"`
}

func (LoadRecord) TableName() string { return "load_history" }

// Stage is a named binding to an external location. Credentials are not
// persisted; the local warehouse reads through the configured object store.
type Stage struct {
	Name       string    `gorm:"primaryKey" json:"name"`
	URL        string    `gorm:"not null" json:"url"`
	FileFormat string    `json:"fileFormat"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
