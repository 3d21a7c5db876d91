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
)

func main() {
	down := flag.Bool("down", false, "Migrationen zurückrollen statt anwenden")
	flag.Parse()

	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.LoadDB()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}

	ctx := context.Background()
	if *down {
		logging.Info("Rolle Schema zurück...")
		if err := migrations.Down(ctx, db, logging); err != nil {
			logging.Fatal("Down-Migration fehlgeschlagen", zap.Error(err))
		}
	} else {
		logging.Info("Wende Schema-Migrationen an...")
		if err := migrations.Up(ctx, db, logging); err != nil {
			logging.Fatal("Migration fehlgeschlagen", zap.Error(err))
		}
	}
}
