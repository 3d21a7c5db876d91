package models

import (
	"time"
)

// TowerAnomalyScore speichert den GNN-Anomalie-Score eines Towers für eine
// Modellversion. Pro (tower_id, model_version) existiert höchstens eine Zeile;
// Re-Scoring ersetzt die bestehende Zeile per Upsert.
type TowerAnomalyScore struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	// Referenz auf den extern verwalteten Tower. Löschen eines Towers
	// löscht dessen Score-Zeilen mit (ON DELETE CASCADE).
	TowerID int `json:"tower_id" gorm:"column:tower_id;not null;index;uniqueIndex:uq_tower_anomaly_scores_tower_model"`

	ModelVersion string `json:"model_version" gorm:"column:model_version;not null;default:gnn-link-pred-v1;index;uniqueIndex:uq_tower_anomaly_scores_tower_model"`
	RunID        string `json:"run_id,omitempty" gorm:"column:run_id"`

	// Kombinierter Score in [0,1], upstream als
	// 0.6*link_pred_error + 0.4*neighbor_inconsistency berechnet.
	AnomalyScore          float64  `json:"anomaly_score" gorm:"column:anomaly_score;not null;index:idx_tower_anomaly_scores_score,sort:desc"`
	LinkPredError         *float64 `json:"link_pred_error,omitempty" gorm:"column:link_pred_error"`
	NeighborInconsistency *float64 `json:"neighbor_inconsistency,omitempty" gorm:"column:neighbor_inconsistency"`

	// Perzentil-Rang in [0,100] innerhalb der Modellversion,
	// wird beim Import über den gesamten Batch berechnet.
	Percentile *float64 `json:"percentile,omitempty" gorm:"column:percentile;index:idx_tower_anomaly_scores_percentile,sort:desc"`
}

// TableName gibt explizit den Tabellennamen an.
func (TowerAnomalyScore) TableName() string {
	return "tower_anomaly_scores"
}
