package migrations

import (
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationFilesArePaired(t *testing.T) {
	t.Parallel()

	ups, err := listMigrations(".up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	downs, err := listMigrations(".down.sql")
	require.NoError(t, err)

	// Jede Up-Migration braucht eine gleichnamige Down-Migration.
	downSet := make(map[string]bool, len(downs))
	for _, name := range downs {
		downSet[strings.TrimSuffix(name, ".down.sql")] = true
	}
	for _, name := range ups {
		base := strings.TrimSuffix(name, ".up.sql")
		require.True(t, downSet[base], "fehlende down-migration für %s", name)
	}
	require.Len(t, downs, len(ups))
}

func TestMigrationFilenamesAreOrdered(t *testing.T) {
	t.Parallel()

	ups, err := listMigrations(".up.sql")
	require.NoError(t, err)

	numbered := regexp.MustCompile(`^\d{4}_[a-z0-9_]+\.up\.sql$`)
	for _, name := range ups {
		require.Regexp(t, numbered, name)
	}
	require.True(t, sort.StringsAreSorted(ups))
}

func TestUpMigrationsAreGuarded(t *testing.T) {
	t.Parallel()

	ups, err := listMigrations(".up.sql")
	require.NoError(t, err)

	for _, name := range ups {
		sqlBytes, err := migrationsFS.ReadFile("sql/" + name)
		require.NoError(t, err)
		sql := strings.ToUpper(string(sqlBytes))

		// Wiederholte Läufe müssen No-ops sein.
		for _, stmt := range []string{"CREATE TABLE", "CREATE INDEX"} {
			count := strings.Count(sql, stmt)
			guarded := strings.Count(sql, stmt+" IF NOT EXISTS")
			require.Equal(t, count, guarded, "%s: %s ohne IF NOT EXISTS", name, stmt)
		}
	}
}

func TestDownMigrationsAreGuarded(t *testing.T) {
	t.Parallel()

	downs, err := listMigrations(".down.sql")
	require.NoError(t, err)

	for _, name := range downs {
		sqlBytes, err := migrationsFS.ReadFile("sql/" + name)
		require.NoError(t, err)
		sql := strings.ToUpper(string(sqlBytes))

		for _, stmt := range []string{"DROP TABLE", "DROP INDEX"} {
			count := strings.Count(sql, stmt)
			guarded := strings.Count(sql, stmt+" IF EXISTS")
			require.Equal(t, count, guarded, "%s: %s ohne IF EXISTS", name, stmt)
		}
	}
}

func TestScoreTableDeclaresInvariants(t *testing.T) {
	t.Parallel()

	sqlBytes, err := migrationsFS.ReadFile("sql/0001_create_tower_anomaly_scores.up.sql")
	require.NoError(t, err)
	sql := string(sqlBytes)

	// Eindeutigkeit pro (tower_id, model_version) und Cascade-Delete
	// hängen an genau diesen Klauseln.
	require.Contains(t, sql, "UNIQUE (tower_id, model_version)")
	require.Contains(t, sql, "REFERENCES towers(id) ON DELETE CASCADE")
	require.Contains(t, sql, "anomaly_score DOUBLE PRECISION NOT NULL")
	require.Contains(t, sql, "TIMESTAMP WITH TIME ZONE")

	for _, index := range []string{
		"idx_tower_anomaly_scores_tower_id",
		"idx_tower_anomaly_scores_score",
		"idx_tower_anomaly_scores_percentile",
		"idx_tower_anomaly_scores_model_version",
	} {
		require.Contains(t, sql, index)
	}
}
