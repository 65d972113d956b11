package pipeline

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// CSVWriter keeps the snapshot as a CSV file with a header row.
type CSVWriter struct {
	path string
	mu   sync.Mutex
}

// NewCSVWriter prepares a CSV snapshot at filename.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	return &CSVWriter{path: filename}, nil
}

// Replace writes items to a temporary file and renames it over the target.
func (cw *CSVWriter) Replace(ctx context.Context, items []models.Item) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	return writeAtomic(ctx, cw.path, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write(models.Columns); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		for _, item := range items {
			if err := writer.Write(item.Strings()); err != nil {
				return fmt.Errorf("write csv record: %w", err)
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return fmt.Errorf("flush csv records: %w", err)
		}
		return nil
	})
}

// Close is a no-op; files are closed after every Replace.
func (cw *CSVWriter) Close() error {
	return nil
}

// Validate ensures the file has at least the header.
func (cw *CSVWriter) Validate() error {
	info, err := os.Stat(cw.path)
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter keeps the snapshot as newline-delimited JSON.
type JSONWriter struct {
	path string
	mu   sync.Mutex
}

// NewJSONWriter prepares a JSONL snapshot at filename.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	return &JSONWriter{path: filename}, nil
}

// Replace writes items to a temporary file and renames it over the target.
func (jw *JSONWriter) Replace(ctx context.Context, items []models.Item) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	return writeAtomic(ctx, jw.path, func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		for _, item := range items {
			if err := encoder.Encode(item); err != nil {
				return fmt.Errorf("encode json record: %w", err)
			}
		}
		return nil
	})
}

// Close is a no-op; files are closed after every Replace.
func (jw *JSONWriter) Close() error {
	return nil
}

// Validate ensures the snapshot file exists. An empty crawl yields an empty
// file.
func (jw *JSONWriter) Validate() error {
	if _, err := os.Stat(jw.path); err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	return nil
}

// writeAtomic fills a temp file next to path and renames it into place after
// fsync, so readers only ever see a complete snapshot.
func writeAtomic(ctx context.Context, path string, fill func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	buffer := bufio.NewWriter(tmp)
	if err = fill(buffer); err != nil {
		return err
	}
	if err = buffer.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
