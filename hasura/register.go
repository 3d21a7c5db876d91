package hasura

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

var (
	anomalyScoresTable = TableRef{Schema: "public", Name: "tower_anomaly_scores"}
	towersTable        = TableRef{Schema: "public", Name: "towers"}
)

const fkColumn = "tower_id"

// RegisterAnomalyScores macht tower_anomaly_scores über die GraphQL-Engine
// abfragbar: Tabelle tracken, to-one-Beziehung zum Tower und to-many-
// Gegenrichtung anlegen. Die Schritte laufen strikt nacheinander; der erste
// Fehler bricht die Sequenz ab und benennt den betroffenen Schritt.
func (c *Client) RegisterAnomalyScores(ctx context.Context) error {
	log := c.Logger.With(zap.String("source", c.Source), zap.String("table", anomalyScoresTable.Name))

	log.Info("Tracke Tabelle in Hasura.")
	if err := c.TrackTable(ctx, anomalyScoresTable); err != nil {
		return fmt.Errorf("schritt 1/3, track table: %w", err)
	}

	log.Info("Lege Object-Relationship an", zap.String("name", "tower"))
	if err := c.CreateObjectRelationship(ctx, anomalyScoresTable, "tower", fkColumn); err != nil {
		return fmt.Errorf("schritt 2/3, object relationship: %w", err)
	}

	log.Info("Lege Array-Relationship an", zap.String("name", "anomaly_scores"))
	if err := c.CreateArrayRelationship(ctx, towersTable, "anomaly_scores", anomalyScoresTable, fkColumn); err != nil {
		return fmt.Errorf("schritt 3/3, array relationship: %w", err)
	}

	log.Info("Registrierung abgeschlossen, Tabelle ist abfragbar.")
	return nil
}

// UnregisterAnomalyScores baut die Registrierung in umgekehrter Reihenfolge
// zurück: erst die Beziehungen, dann das Tracking der Tabelle.
func (c *Client) UnregisterAnomalyScores(ctx context.Context) error {
	log := c.Logger.With(zap.String("source", c.Source), zap.String("table", anomalyScoresTable.Name))

	log.Info("Entferne Array-Relationship", zap.String("name", "anomaly_scores"))
	if err := c.DropRelationship(ctx, towersTable, "anomaly_scores"); err != nil {
		return fmt.Errorf("schritt 1/3, drop array relationship: %w", err)
	}

	log.Info("Entferne Object-Relationship", zap.String("name", "tower"))
	if err := c.DropRelationship(ctx, anomalyScoresTable, "tower"); err != nil {
		return fmt.Errorf("schritt 2/3, drop object relationship: %w", err)
	}

	log.Info("Untracke Tabelle.")
	if err := c.UntrackTable(ctx, anomalyScoresTable); err != nil {
		return fmt.Errorf("schritt 3/3, untrack table: %w", err)
	}

	log.Info("Registrierung vollständig zurückgebaut.")
	return nil
}
