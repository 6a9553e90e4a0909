package db

import (
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	embedded "github.com/querylab/sift/migrations"
)

// MigrationStatus represents the state of a single migration.
type MigrationStatus struct {
	ID        string
	Checksum  string
	Applied   bool
	AppliedAt *time.Time
}

// migration is a parsed migration file.
type migration struct {
	ID       string
	Checksum string
	SQL      string
}

// MigrateUp applies all pending migrations for the connection's driver.
// Checksums of already-applied migrations are validated first; a modified
// applied migration aborts the run.
func MigrateUp(conn *sqlx.DB) error {
	migrations, err := loadMigrations(conn)
	if err != nil {
		return err
	}
	if err := createMigrationsTable(conn); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	if err := validateChecksums(conn, migrations); err != nil {
		return fmt.Errorf("migration checksum validation failed: %w", err)
	}

	applied, err := appliedMigrations(conn)
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}

	for _, m := range migrations {
		if _, ok := applied[m.ID]; ok {
			continue
		}

		// Execution and recording share a transaction so a failed record
		// never leaves a half-applied migration behind.
		tx, err := conn.Beginx()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", m.ID, err)
		}
		if err := applyMigration(tx, m); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %s: %w", m.ID, err)
		}
		if _, err := tx.Exec(tx.Rebind(
			"INSERT INTO migrations (migration_id, checksum, applied_at) VALUES (?, ?, ?)"),
			m.ID, m.Checksum, time.Now().UTC().Format(time.RFC3339)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", m.ID, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.ID, err)
		}
	}

	return nil
}

// MigrateStatus returns the status of all known migrations, applied and pending.
func MigrateStatus(conn *sqlx.DB) ([]MigrationStatus, error) {
	migrations, err := loadMigrations(conn)
	if err != nil {
		return nil, err
	}
	if err := createMigrationsTable(conn); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := conn.Queryx("SELECT migration_id, checksum, applied_at FROM migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]MigrationStatus)
	for rows.Next() {
		var id, checksum, appliedAt string
		if err := rows.Scan(&id, &checksum, &appliedAt); err != nil {
			return nil, err
		}
		status := MigrationStatus{ID: id, Checksum: checksum, Applied: true}
		if t, err := time.Parse(time.RFC3339, appliedAt); err == nil {
			status.AppliedAt = &t
		}
		applied[id] = status
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(migrations))
	for _, m := range migrations {
		if s, ok := applied[m.ID]; ok {
			statuses = append(statuses, s)
		} else {
			statuses = append(statuses, MigrationStatus{ID: m.ID, Checksum: m.Checksum})
		}
	}
	return statuses, nil
}

// loadMigrations selects the embedded migration set for the driver and
// parses it into checksummed, filename-ordered migrations.
func loadMigrations(conn *sqlx.DB) ([]migration, error) {
	var migrationsFS embed.FS
	var dir string

	switch conn.DriverName() {
	case "sqlite3":
		migrationsFS = embedded.SqliteMigrations
		dir = "sqlite"
	case "postgres":
		migrationsFS = embedded.PostgresMigrations
		dir = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", conn.DriverName())
	}

	var migrations []migration
	err := fs.WalkDir(migrationsFS, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		hash := sha256.Sum256(content)
		migrations = append(migrations, migration{
			ID:       filepath.Base(path),
			Checksum: fmt.Sprintf("%x", hash),
			SQL:      string(content),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse migrations: %w", err)
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].ID < migrations[j].ID })
	return migrations, nil
}

func createMigrationsTable(conn *sqlx.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			migration_id TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

func appliedMigrations(conn *sqlx.DB) (map[string]struct{}, error) {
	rows, err := conn.Queryx("SELECT migration_id FROM migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		applied[id] = struct{}{}
	}
	return applied, rows.Err()
}

// validateChecksums verifies all applied migrations match the embedded files.
func validateChecksums(conn *sqlx.DB, migrations []migration) error {
	checksums := make(map[string]string, len(migrations))
	for _, m := range migrations {
		checksums[m.ID] = m.Checksum
	}

	rows, err := conn.Queryx("SELECT migration_id, checksum FROM migrations")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, dbChecksum string
		if err := rows.Scan(&id, &dbChecksum); err != nil {
			return err
		}
		expected, ok := checksums[id]
		if !ok {
			return fmt.Errorf("migration %s exists in database but not in embedded files", id)
		}
		if dbChecksum != expected {
			return fmt.Errorf("checksum mismatch for migration %s: expected %s, got %s", id, expected, dbChecksum)
		}
	}
	return rows.Err()
}

// applyMigration executes one migration statement by statement.
// lib/pq does not support multiple statements in a single Exec.
func applyMigration(tx *sqlx.Tx, m migration) error {
	for _, stmt := range strings.Split(m.SQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("statement failed: %w", err)
		}
	}
	return nil
}
