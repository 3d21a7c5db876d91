package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresAdminSecret(t *testing.T) {
	t.Setenv("HASURA_GRAPHQL_ADMIN_SECRET", "x") // Restore nach dem Test
	os.Unsetenv("HASURA_GRAPHQL_ADMIN_SECRET")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "HASURA_GRAPHQL_ADMIN_SECRET")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HASURA_GRAPHQL_ADMIN_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080", cfg.HasuraEndpoint)
	require.Equal(t, "default", cfg.HasuraSource)
	require.Equal(t, "gnn-link-pred-v1", cfg.ModelVersion)
	require.Equal(t, "aerocell", cfg.DBName)
	require.Equal(t, 5432, cfg.DBPort)
}

func TestConfig_DSN(t *testing.T) {
	cfg := DBConfig{
		DBHost:     "db.example.com",
		DBPort:     5433,
		DBUser:     "acd",
		DBPassword: "pw",
		DBName:     "aerocell",
	}
	require.Equal(t,
		"host=db.example.com user=acd password=pw dbname=aerocell port=5433 sslmode=disable",
		cfg.DSN())

	// Config erbt DSN über den eingebetteten DB-Teil.
	full := Config{DBConfig: cfg}
	require.Equal(t, cfg.DSN(), full.DSN())
}

func TestLoadDB_NoSecretNeeded(t *testing.T) {
	cfg, err := LoadDB()
	require.NoError(t, err)
	require.Equal(t, "localhost", cfg.DBHost)
}
