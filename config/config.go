package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DBConfig ist die Datenbank-Konfiguration. Binaries, die kein Hasura
// brauchen, laden nur diesen Teil und verlangen daher kein Admin-Secret.
type DBConfig struct {
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName     string `envconfig:"DB_NAME" default:"aerocell"`

	// Defaults für den Score-Import
	ModelVersion string `envconfig:"MODEL_VERSION" default:"gnn-link-pred-v1"`
	RunID        string `envconfig:"RUN_ID"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBConfig

	// Hasura-Metadata-API. Das Admin-Secret hat bewusst keinen Default:
	// ohne explizit gesetztes Secret bricht der Prozess sofort ab.
	HasuraEndpoint    string `envconfig:"HASURA_GRAPHQL_ENDPOINT" default:"http://localhost:8080"`
	HasuraAdminSecret string `envconfig:"HASURA_GRAPHQL_ADMIN_SECRET" required:"true"`
	HasuraSource      string `envconfig:"HASURA_SOURCE" default:"default"`
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}

// LoadDB lädt nur den Datenbank-Teil der Konfiguration.
func LoadDB() (*DBConfig, error) {
	_ = godotenv.Load()
	var c DBConfig
	err := envconfig.Process("", &c)
	return &c, err
}
