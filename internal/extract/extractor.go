// Package extract produces snapshots: it fetches the dataset archive, derives
// a content-based snapshot id, unpacks the raw files, and writes the manifest
// the loader consumes.
package extract

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dstack-labs/bronzeload/internal/catalog"
	"github.com/dstack-labs/bronzeload/internal/checksum"
	"github.com/dstack-labs/bronzeload/internal/config"
	"github.com/dstack-labs/bronzeload/internal/manifest"
	"github.com/dstack-labs/bronzeload/pkg/bronze"
)

// snapshotIDLength truncates the archive hash for readable snapshot ids.
const snapshotIDLength = 16

// Extractor turns a dataset archive into a snapshot: raw files plus manifest.
type Extractor struct {
	cfg    *config.Config
	cat    *catalog.Catalog
	store  *manifest.Store
	source Source
	calc   checksum.Calculator
	logger bronze.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(cfg *config.Config, cat *catalog.Catalog, store *manifest.Store, source Source, logger bronze.Logger) *Extractor {
	if cfg == nil {
		panic("cfg cannot be nil")
	}
	if cat == nil {
		panic("catalog cannot be nil")
	}
	if store == nil {
		panic("store cannot be nil")
	}
	if source == nil {
		panic("source cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Extractor{
		cfg:    cfg,
		cat:    cat,
		store:  store,
		source: source,
		calc:   checksum.New(),
		logger: logger,
	}
}

// Extract fetches the archive, unpacks it, and writes the manifest. When the
// upstream version matches the latest manifest and force is false, the
// existing manifest is returned without downloading. A failed version probe
// is never fatal: the download proceeds.
func (e *Extractor) Extract(ctx context.Context, force bool) (*bronze.Manifest, error) {
	version, err := e.source.Version(ctx)
	if err != nil {
		e.logger.Warn("source version check failed, proceeding with download: %v", err)
		version = ""
	}

	if !force && version != "" {
		if latest, err := e.store.Latest(); err == nil && latest.SourceVersion == version {
			e.logger.Info("source unchanged, reusing snapshot %s", latest.SnapshotID)
			return latest, nil
		}
	}

	workDir, err := os.MkdirTemp("", "bronzeload-extract-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	archivePath, err := e.source.Fetch(ctx, workDir)
	if err != nil {
		return nil, err
	}

	archiveHash, err := e.calc.File(archivePath)
	if err != nil {
		return nil, err
	}
	snapshotID := archiveHash[:snapshotIDLength]

	rawDir := e.cfg.RawDir(snapshotID)
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return nil, fmt.Errorf("create raw dir %q: %w", rawDir, err)
	}

	if err := e.unpack(archivePath, rawDir); err != nil {
		return nil, err
	}

	m := &bronze.Manifest{
		SnapshotID:    snapshotID,
		ExtractedAt:   time.Now().UTC(),
		SourceVersion: version,
	}

	for _, entry := range e.cat.Tables {
		path := filepath.Join(rawDir, entry.Filename)
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				e.logger.Warn("archive has no %s, leaving it out of the manifest", entry.Filename)
				continue
			}
			return nil, fmt.Errorf("stat %q: %w", path, err)
		}

		hash, err := e.calc.File(path)
		if err != nil {
			return nil, err
		}
		rows, err := countDataRows(path)
		if err != nil {
			return nil, fmt.Errorf("count rows in %q: %w", path, err)
		}

		m.Files = append(m.Files, bronze.FileDescriptor{
			Filename: entry.Filename,
			Hash:     hash,
			Size:     info.Size(),
			RowCount: rows,
		})
	}

	if err := e.store.Write(m); err != nil {
		return nil, err
	}

	e.logger.Info("extracted snapshot %s (%d files)", snapshotID, len(m.Files))
	return m, nil
}

// unpack extracts every regular file in the zip archive into destDir,
// refusing entries that would escape it.
func (e *Extractor) unpack(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive %q: %w", archivePath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}

		dest := filepath.Join(destDir, filepath.Clean(f.Name))
		rel, err := filepath.Rel(destDir, dest)
		if err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("archive entry %q escapes extraction dir: %w", f.Name, bronze.ErrSecurityViolation)
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("create dir for %q: %w", dest, err)
		}
		if err := extractEntry(f, dest); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %q: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %q: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("write %q: %w", dest, err)
	}
	return nil
}

// countDataRows counts CSV records excluding the header row. Quoted embedded
// newlines are respected, so this matches what COPY will load.
func countDataRows(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	var count int64
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		count++
	}

	if count == 0 {
		return 0, nil
	}
	return count - 1, nil
}
