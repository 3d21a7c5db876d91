package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"aerocell-anomaly/config"
	"aerocell-anomaly/hasura"
)

func main() {
	down := flag.Bool("down", false, "Registrierung zurückbauen statt anlegen")
	flag.Parse()

	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	// Load schlägt fehl, wenn HASURA_GRAPHQL_ADMIN_SECRET nicht gesetzt ist.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	client, err := hasura.NewClient(cfg.HasuraEndpoint, cfg.HasuraAdminSecret, cfg.HasuraSource, logging)
	if err != nil {
		logging.Fatal("Hasura client creation failed", zap.Error(err))
	}

	ctx := context.Background()
	if *down {
		if err := client.UnregisterAnomalyScores(ctx); err != nil {
			logging.Fatal("Rückbau der Registrierung fehlgeschlagen", zap.Error(err))
		}
	} else {
		if err := client.RegisterAnomalyScores(ctx); err != nil {
			logging.Fatal("Registrierung fehlgeschlagen", zap.Error(err))
		}
	}
}
