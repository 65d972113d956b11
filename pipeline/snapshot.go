package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-listings/models"
)

const archiveLayout = "20060102_150405"

// ArchivedName returns the name an existing raw snapshot is moved to:
// "data.json" becomes "data_20240503_153000.json".
func ArchivedName(path string, at time.Time) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + "_" + at.Format(archiveLayout) + ext
}

// ArchiveRawSnapshot renames an existing raw snapshot out of the way. It
// returns the new path, or "" when there was nothing to archive.
func ArchiveRawSnapshot(path string, at time.Time) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("stat raw snapshot: %w", err)
	}
	target := ArchivedName(path, at)
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("archive raw snapshot: %w", err)
	}
	return target, nil
}

// SaveRawSnapshot writes raws as a JSON array, atomically.
func SaveRawSnapshot(ctx context.Context, path string, raws []models.RawItem) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if raws == nil {
		raws = []models.RawItem{}
	}
	return writeAtomic(ctx, path, func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		encoder.SetEscapeHTML(false)
		if err := encoder.Encode(raws); err != nil {
			return fmt.Errorf("encode raw snapshot: %w", err)
		}
		return nil
	})
}

// LoadRawSnapshot reads a JSON array of raw records.
func LoadRawSnapshot(path string) ([]models.RawItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raw snapshot: %w", err)
	}
	var raws []models.RawItem
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode raw snapshot %s: %w", path, err)
	}
	return raws, nil
}
