// Package backup creates and restores portable snapshots of the ipocket
// database as gzip-compressed tar archives.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ipocket/ipocket/internal/version"
)

// manifestName is the metadata entry written into every archive.
const manifestName = "ipocket-backup.json"

// maxEntrySize caps a single extracted file, guarding against
// decompression bombs.
const maxEntrySize = 10 << 30 // 10 GiB

type manifest struct {
	App       string `json:"app"`
	Version   string `json:"version"`
	CreatedAt string `json:"created_at"`
	Database  string `json:"database"`
}

// Create writes a backup archive containing the database file and a
// manifest. The server should be stopped first; a live WAL-mode database
// may produce an inconsistent copy.
func Create(_ context.Context, dbPath, archivePath string) error {
	dbFile, err := os.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer dbFile.Close()
	info, err := dbFile.Stat()
	if err != nil {
		return fmt.Errorf("stat database: %w", err)
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	meta, err := json.MarshalIndent(manifest{
		App:       "ipocket",
		Version:   version.Short(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Database:  filepath.Base(dbPath),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := writeEntry(tw, manifestName, meta); err != nil {
		return err
	}

	hdr := &tar.Header{
		Name:    filepath.Base(dbPath),
		Mode:    0o600,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing database header: %w", err)
	}
	if _, err := io.Copy(tw, dbFile); err != nil {
		return fmt.Errorf("writing database: %w", err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("compressing archive: %w", err)
	}
	return out.Close()
}

func writeEntry(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing %s header: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// Restore extracts a backup archive into targetDir. It refuses to
// overwrite existing files unless force is set, and rejects archives
// without a database file.
func Restore(_ context.Context, archivePath, targetDir string, force bool) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("decompressing archive: %w", err)
	}
	defer gr.Close()

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("creating target directory: %w", err)
	}

	tr := tar.NewReader(gr)
	foundDB := false
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading archive entry: %w", err)
		}

		dest, err := safeJoin(targetDir, hdr.Name)
		if err != nil {
			return err
		}
		if strings.HasSuffix(hdr.Name, ".db") {
			foundDB = true
		}

		if !force {
			if _, err := os.Stat(dest); err == nil {
				return fmt.Errorf("file already exists (use force to overwrite): %s", dest)
			}
		}
		if err := extract(tr, dest, hdr); err != nil {
			return fmt.Errorf("extracting %s: %w", hdr.Name, err)
		}
	}

	if !foundDB {
		return fmt.Errorf("invalid backup: archive does not contain a .db file")
	}
	return nil
}

// safeJoin joins an archive entry name onto the target directory,
// rejecting absolute paths and traversal outside the target.
func safeJoin(targetDir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("path traversal detected: absolute path %q", name)
	}
	cleaned := filepath.Clean(name)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %q", name)
	}

	absTarget, err := filepath.Abs(targetDir)
	if err != nil {
		return "", fmt.Errorf("resolving target directory: %w", err)
	}
	dest := filepath.Join(absTarget, cleaned)
	if dest != absTarget && !strings.HasPrefix(dest, absTarget+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %q resolves outside target", name)
	}
	return dest, nil
}

func extract(tr *tar.Reader, dest string, hdr *tar.Header) error {
	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(dest, os.FileMode(hdr.Mode&0o777))
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode&0o777))
		if err != nil {
			return err
		}
		defer out.Close()
		if _, err := io.Copy(out, io.LimitReader(tr, maxEntrySize)); err != nil {
			return err
		}
		return out.Close()
	default:
		// Symlinks and special files are not written by Create; skip them.
		return nil
	}
}
