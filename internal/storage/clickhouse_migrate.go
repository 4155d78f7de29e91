package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RunClickHouseMigrations executes *.sql files from migrationsPath in
// lexical order. ClickHouse DDL here is idempotent (CREATE TABLE IF NOT
// EXISTS), so a simple forward-only runner is sufficient.
func RunClickHouseMigrations(db *ClickHouseDB, migrationsPath string) error {
	entries, err := os.ReadDir(migrationsPath)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		sqlBytes, err := os.ReadFile(filepath.Join(migrationsPath, file)) // #nosec G304 - path from operator flag
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = db.Conn().Exec(ctx, string(sqlBytes))
		cancel()
		if err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", file, err)
		}
	}

	return nil
}
