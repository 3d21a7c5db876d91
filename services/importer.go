package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"aerocell-anomaly/models"
)

// scoreTolerance ist die erlaubte Abweichung zwischen gespeichertem Score und
// der Rekombination 0.6*link_pred_error + 0.4*neighbor_inconsistency.
const scoreTolerance = 1e-4

// ImportService lädt GNN-Anomalie-Scores aus einer CSV-Datei in die Datenbank.
type ImportService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewImportService erstellt eine neue Instanz des ImportService.
func NewImportService(db *gorm.DB, logger *zap.Logger) *ImportService {
	return &ImportService{DB: db, Logger: logger}
}

// ScoreRow ist eine geparste Zeile der Eingabe-CSV.
type ScoreRow struct {
	TowerID               int
	AnomalyScore          float64
	LinkPredError         *float64
	NeighborInconsistency *float64
}

// ImportStats fasst einen importierten Batch zusammen.
type ImportStats struct {
	MeanScore float64 `json:"mean_score"`
	StdScore  float64 `json:"std_score"`
	MinScore  float64 `json:"min_score"`
	MaxScore  float64 `json:"max_score"`
	Above95th int     `json:"above_95th_percentile"`
	Above99th int     `json:"above_99th_percentile"`
}

// ImportCSV liest die CSV-Datei ein, berechnet Perzentile über den gesamten
// Batch und ersetzt in einer Transaktion alle bestehenden Scores der
// Modellversion. Perzentile werden ausschließlich beim Import berechnet und
// bei späteren Importen derselben Modellversion komplett neu vergeben;
// inkrementelle Teil-Importe gibt es nicht.
func (s *ImportService) ImportCSV(ctx context.Context, csvPath, modelVersion, runID string) (*models.ImportRun, error) {
	log := s.Logger.With(zap.String("model_version", modelVersion), zap.String("run_id", runID))
	start := time.Now()

	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("csv-datei nicht lesbar: %w", err)
	}
	defer f.Close()

	rows, err := s.ReadScores(f)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv-datei %s enthält keine score-zeilen", csvPath)
	}
	log.Info("CSV eingelesen", zap.String("file", csvPath), zap.Int("rows", len(rows)))

	log.Info("Berechne Perzentile...")
	percentiles := AverageRankPercentiles(rows)

	scores := make([]models.TowerAnomalyScore, len(rows))
	for i, row := range rows {
		p := percentiles[i]
		scores[i] = models.TowerAnomalyScore{
			TowerID:               row.TowerID,
			ModelVersion:          modelVersion,
			RunID:                 runID,
			AnomalyScore:          row.AnomalyScore,
			LinkPredError:         row.LinkPredError,
			NeighborInconsistency: row.NeighborInconsistency,
			Percentile:            &p,
		}
	}

	stats := computeStats(scores)
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return nil, fmt.Errorf("statistik nicht serialisierbar: %w", err)
	}

	run := &models.ImportRun{
		ModelVersion: modelVersion,
		RunID:        runID,
		SourceFile:   csvPath,
		RowCount:     len(scores),
		Stats:        datatypes.JSON(statsJSON),
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Bestehende Scores der Modellversion werden komplett ersetzt.
		res := tx.Where("model_version = ?", modelVersion).Delete(&models.TowerAnomalyScore{})
		if res.Error != nil {
			return fmt.Errorf("löschen bestehender scores fehlgeschlagen: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			log.Info("Bestehende Scores gelöscht", zap.Int64("deleted", res.RowsAffected))
		}
		run.DeletedCount = int(res.RowsAffected)

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tower_id"}, {Name: "model_version"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"run_id", "anomaly_score", "link_pred_error",
				"neighbor_inconsistency", "percentile", "created_at",
			}),
		}).CreateInBatches(scores, 1000).Error; err != nil {
			return fmt.Errorf("einfügen der scores fehlgeschlagen: %w", err)
		}

		run.DurationMS = time.Since(start).Milliseconds()
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("import-protokoll nicht speicherbar: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Import abgeschlossen",
		zap.Int("rows", run.RowCount),
		zap.Int("deleted", run.DeletedCount),
		zap.Float64("mean_score", stats.MeanScore),
		zap.Float64("std_score", stats.StdScore),
		zap.Float64("min_score", stats.MinScore),
		zap.Float64("max_score", stats.MaxScore),
		zap.Int("above_95th", stats.Above95th),
		zap.Int("above_99th", stats.Above99th),
		zap.Int64("duration_ms", run.DurationMS))
	return run, nil
}

// ReadScores parst die CSV. Erwartet wird eine Header-Zeile mit mindestens
// tower_id und anomaly_score; link_pred_error und neighbor_inconsistency
// sind optional und dürfen leer sein. Doppelte tower_ids innerhalb der Datei
// werden auf die letzte Zeile reduziert.
func (s *ImportService) ReadScores(r io.Reader) ([]ScoreRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("csv-header nicht lesbar: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range []string{"tower_id", "anomaly_score"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("csv-header ohne pflichtspalte %q", required)
		}
	}

	var rows []ScoreRow
	seen := make(map[int]int) // tower_id -> Index in rows
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv-zeile %d nicht lesbar: %w", line+1, err)
		}
		line++

		towerID, err := strconv.Atoi(record[cols["tower_id"]])
		if err != nil {
			return nil, fmt.Errorf("zeile %d: ungültige tower_id %q", line, record[cols["tower_id"]])
		}

		score, err := strconv.ParseFloat(record[cols["anomaly_score"]], 64)
		if err != nil {
			return nil, fmt.Errorf("zeile %d: ungültiger anomaly_score %q", line, record[cols["anomaly_score"]])
		}
		// NaN besteht keinen Bereichsvergleich und würde die
		// Rang-Gruppierung beim Perzentil-Rechnen endlos drehen lassen.
		if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 1 {
			return nil, fmt.Errorf("zeile %d: anomaly_score %q liegt außerhalb von [0,1]", line, record[cols["anomaly_score"]])
		}

		row := ScoreRow{TowerID: towerID, AnomalyScore: score}
		row.LinkPredError, err = optionalFloat(record, cols, "link_pred_error")
		if err != nil {
			return nil, fmt.Errorf("zeile %d: %w", line, err)
		}
		row.NeighborInconsistency, err = optionalFloat(record, cols, "neighbor_inconsistency")
		if err != nil {
			return nil, fmt.Errorf("zeile %d: %w", line, err)
		}

		// Konsistenz der Komponenten ist eine Zusicherung des Producers,
		// kein Schema-Constraint. Abweichungen werden nur geloggt.
		if row.LinkPredError != nil && row.NeighborInconsistency != nil {
			recombined := 0.6**row.LinkPredError + 0.4**row.NeighborInconsistency
			if math.Abs(recombined-score) > scoreTolerance {
				s.Logger.Warn("Score weicht von den Komponenten ab",
					zap.Int("tower_id", towerID),
					zap.Float64("anomaly_score", score),
					zap.Float64("recombined", recombined))
			}
		}

		if idx, dup := seen[towerID]; dup {
			s.Logger.Warn("Doppelte tower_id in CSV, letzte Zeile gewinnt.",
				zap.Int("tower_id", towerID), zap.Int("line", line))
			rows[idx] = row
			continue
		}
		seen[towerID] = len(rows)
		rows = append(rows, row)
	}

	return rows, nil
}

// optionalFloat parst eine optionale Spalte; fehlende oder leere Werte
// ergeben nil.
func optionalFloat(record []string, cols map[string]int, name string) (*float64, error) {
	idx, ok := cols[name]
	if !ok || idx >= len(record) || record[idx] == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(record[idx], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("ungültiger wert %q für %s", record[idx], name)
	}
	return &v, nil
}

// AverageRankPercentiles berechnet für jede Zeile den Perzentil-Rang ihres
// Scores innerhalb des Batches in [0,100]. Gleiche Scores erhalten den
// Durchschnitt ihrer Rangpositionen (average rank).
func AverageRankPercentiles(rows []ScoreRow) []float64 {
	n := len(rows)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rows[order[a]].AnomalyScore < rows[order[b]].AnomalyScore
	})

	percentiles := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && rows[order[j]].AnomalyScore == rows[order[i]].AnomalyScore {
			j++
		}
		// Ränge sind 1-basiert, die Gruppe [i,j) teilt sich den Mittelwert.
		avgRank := float64(i+j+1) / 2.0
		for k := i; k < j; k++ {
			percentiles[order[k]] = avgRank / float64(n) * 100.0
		}
		i = j
	}
	return percentiles
}

// computeStats berechnet die zusammenfassende Statistik eines Batches.
func computeStats(scores []models.TowerAnomalyScore) ImportStats {
	stats := ImportStats{MinScore: math.Inf(1), MaxScore: math.Inf(-1)}

	var sum float64
	for _, s := range scores {
		sum += s.AnomalyScore
		stats.MinScore = math.Min(stats.MinScore, s.AnomalyScore)
		stats.MaxScore = math.Max(stats.MaxScore, s.AnomalyScore)
		if s.Percentile != nil && *s.Percentile > 95 {
			stats.Above95th++
		}
		if s.Percentile != nil && *s.Percentile > 99 {
			stats.Above99th++
		}
	}
	n := float64(len(scores))
	stats.MeanScore = sum / n

	var sqDiff float64
	for _, s := range scores {
		d := s.AnomalyScore - stats.MeanScore
		sqDiff += d * d
	}
	if len(scores) > 1 {
		stats.StdScore = math.Sqrt(sqDiff / (n - 1))
	}
	return stats
}
