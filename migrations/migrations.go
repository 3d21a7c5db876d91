package migrations

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Up führt alle Up-Migrationen in aufsteigender Dateireihenfolge aus.
// Sämtliche DDL-Statements tragen Existenz-Guards, ein erneuter Lauf gegen
// eine bereits migrierte Datenbank ist daher ein No-op.
func Up(ctx context.Context, db *gorm.DB, log *zap.Logger) error {
	files, err := listMigrations(".up.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)
	return apply(ctx, db, log, files)
}

// Down führt alle Down-Migrationen in absteigender Dateireihenfolge aus
// und baut das Schema damit vollständig zurück.
func Down(ctx context.Context, db *gorm.DB, log *zap.Logger) error {
	files, err := listMigrations(".down.sql")
	if err != nil {
		return err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return apply(ctx, db, log, files)
}

// listMigrations liefert alle eingebetteten Migrationsdateien mit dem
// gegebenen Suffix.
func listMigrations(suffix string) ([]string, error) {
	entries, err := migrationsFS.ReadDir("sql")
	if err != nil {
		return nil, fmt.Errorf("migrationsverzeichnis nicht lesbar: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, entry.Name())
		}
	}
	return files, nil
}

// apply führt die Dateien nacheinander aus. Der erste Fehler bricht den Lauf
// ab und benennt die betroffene Datei; Retries gibt es nicht.
func apply(ctx context.Context, db *gorm.DB, log *zap.Logger, files []string) error {
	if len(files) == 0 {
		log.Warn("Keine Migrationsdateien gefunden.")
		return nil
	}

	for _, name := range files {
		sqlBytes, err := migrationsFS.ReadFile("sql/" + name)
		if err != nil {
			return fmt.Errorf("migration %s nicht lesbar: %w", name, err)
		}

		log.Info("Führe Migration aus", zap.String("file", name))
		if err := db.WithContext(ctx).Exec(string(sqlBytes)).Error; err != nil {
			return fmt.Errorf("migration %s fehlgeschlagen: %w", name, err)
		}
	}

	log.Info("Alle Migrationen abgeschlossen", zap.Int("count", len(files)))
	return nil
}
