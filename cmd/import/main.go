package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"aerocell-anomaly/config"
	"aerocell-anomaly/migrations"
	"aerocell-anomaly/services"
)

func main() {
	csvPath := flag.String("csv", "", "Pfad zur node_scores.csv (Pflicht)")
	modelVersion := flag.String("model-version", "", "Modellversion (Default aus MODEL_VERSION)")
	runID := flag.String("run-id", "", "Run-Kennung (Default aus RUN_ID)")
	flag.Parse()

	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	if *csvPath == "" {
		logging.Fatal("Flag -csv ist erforderlich")
	}

	cfg, err := config.LoadDB()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}
	if *modelVersion == "" {
		*modelVersion = cfg.ModelVersion
	}
	if *runID == "" {
		*runID = cfg.RunID
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}

	ctx := context.Background()

	// Schema sicherstellen, bevor importiert wird.
	if err := migrations.Up(ctx, db, logging); err != nil {
		logging.Fatal("Migration fehlgeschlagen", zap.Error(err))
	}

	importer := services.NewImportService(db, logging)
	run, err := importer.ImportCSV(ctx, *csvPath, *modelVersion, *runID)
	if err != nil {
		logging.Fatal("Import fehlgeschlagen", zap.Error(err))
	}

	logging.Info("Scores können jetzt über die API abgefragt werden.",
		zap.Uint("import_run_id", run.ID),
		zap.Int("rows", run.RowCount))
}
