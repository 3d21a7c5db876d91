package models

import (
	"time"

	"gorm.io/datatypes"
)

// ImportRun protokolliert einen Lauf des Score-Importers.
type ImportRun struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ModelVersion string `json:"model_version" gorm:"column:model_version;not null;index"`
	RunID        string `json:"run_id,omitempty" gorm:"column:run_id"`
	SourceFile   string `json:"source_file" gorm:"column:source_file"`

	RowCount     int   `json:"row_count" gorm:"column:row_count"`
	DeletedCount int   `json:"deleted_count" gorm:"column:deleted_count"`
	DurationMS   int64 `json:"duration_ms" gorm:"column:duration_ms"`

	// Zusammenfassende Statistik des Batches (Mean/Std/Min/Max,
	// Anzahl über 95. und 99. Perzentil) als JSON-Dokument.
	Stats datatypes.JSON `json:"stats,omitempty" gorm:"type:jsonb"`
}

// TableName gibt explizit den Tabellennamen an.
func (ImportRun) TableName() string {
	return "import_runs"
}
