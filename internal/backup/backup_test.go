package backup_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/ipocket/ipocket/internal/backup"
	_ "modernc.org/sqlite"
)

func createTestDB(t *testing.T, dir string) string {
	t.Helper()
	dbPath := filepath.Join(dir, "ipocket.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	_, err = db.Exec(`
		CREATE TABLE vendors (id INTEGER PRIMARY KEY, name TEXT);
		INSERT INTO vendors (id, name) VALUES (1, 'Dell'), (2, 'HPE');
	`)
	if err != nil {
		t.Fatal(err)
	}
	return dbPath
}

func verifyDB(t *testing.T, dbPath string) {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM vendors").Scan(&count); err != nil {
		t.Fatalf("querying restored database: %v", err)
	}
	if count != 2 {
		t.Errorf("restored vendor count = %d, want 2", count)
	}
}

func TestBackupRoundTrip(t *testing.T) {
	ctx := context.Background()
	srcDir := t.TempDir()
	dbPath := createTestDB(t, srcDir)
	archivePath := filepath.Join(srcDir, "backup.tar.gz")

	if err := backup.Create(ctx, dbPath, archivePath); err != nil {
		t.Fatalf("Create: %v", err)
	}

	targetDir := filepath.Join(t.TempDir(), "restored")
	if err := backup.Restore(ctx, archivePath, targetDir, false); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	verifyDB(t, filepath.Join(targetDir, "ipocket.db"))
	if _, err := os.Stat(filepath.Join(targetDir, "ipocket-backup.json")); err != nil {
		t.Errorf("manifest missing after restore: %v", err)
	}
}

func TestRestoreRefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	srcDir := t.TempDir()
	dbPath := createTestDB(t, srcDir)
	archivePath := filepath.Join(srcDir, "backup.tar.gz")
	if err := backup.Create(ctx, dbPath, archivePath); err != nil {
		t.Fatalf("Create: %v", err)
	}

	targetDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(targetDir, "ipocket.db"), []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := backup.Restore(ctx, archivePath, targetDir, false)
	if err == nil {
		t.Fatal("expected overwrite refusal")
	}

	if err := backup.Restore(ctx, archivePath, targetDir, true); err != nil {
		t.Fatalf("Restore with force: %v", err)
	}
	verifyDB(t, filepath.Join(targetDir, "ipocket.db"))
}

func TestRestoreRejectsMissingDatabase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	// An archive of a plain text file is not a valid backup.
	textPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(textPath, []byte("not a database"), 0o644); err != nil {
		t.Fatal(err)
	}
	archivePath := filepath.Join(dir, "bad.tar.gz")
	if err := backup.Create(ctx, textPath, archivePath); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := backup.Restore(ctx, archivePath, filepath.Join(dir, "out"), false)
	if err == nil {
		t.Fatal("expected missing .db rejection")
	}
}

func TestRestoreRejectsBadArchive(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	badPath := filepath.Join(dir, "garbage.tar.gz")
	if err := os.WriteFile(badPath, []byte("not gzip at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := backup.Restore(ctx, badPath, filepath.Join(dir, "out"), false); err == nil {
		t.Fatal("expected gzip error")
	}
}
