package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fmuoria/recruit-crm/internal/models"
)

const mirrorExt = ".csv"

// ErrMirrorNotFound means no mirror file exists for an upload id
var ErrMirrorNotFound = errors.New("upload mirror not found")

// FileHandler keeps a CSV mirror of every upload in the uploads directory
type FileHandler struct {
	uploadsDir string
}

// NewFileHandler creates a new file handler
func NewFileHandler(uploadsDir string) *FileHandler {
	return &FileHandler{
		uploadsDir: uploadsDir,
	}
}

func (fh *FileHandler) path(id string) string {
	return filepath.Join(fh.uploadsDir, id+mirrorExt)
}

// SaveMirror writes the table as CSV under <id>.csv, header row first
func (fh *FileHandler) SaveMirror(id string, table *models.Table) (string, error) {
	if err := os.MkdirAll(fh.uploadsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}

	filePath := fh.path(id)
	tmp := filePath + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	w := csv.NewWriter(file)
	records := make([][]string, 0, len(table.Rows)+1)
	records = append(records, table.Headers)
	for _, row := range table.Rows {
		rec := make([]string, len(table.Headers))
		for i, h := range table.Headers {
			rec[i] = row[h]
		}
		records = append(records, rec)
	}
	if err := w.WriteAll(records); err != nil {
		file.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return filePath, nil
}

// LoadMirror reads an upload back along with the time it was written
func (fh *FileHandler) LoadMirror(id string) (*models.Table, time.Time, error) {
	filePath := fh.path(id)
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, time.Time{}, ErrMirrorNotFound
		}
		return nil, time.Time{}, fmt.Errorf("failed to stat %s: %w", filePath, err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	if len(records) == 0 {
		return nil, time.Time{}, fmt.Errorf("mirror %s is empty", filePath)
	}

	table := &models.Table{Headers: records[0], HasHeader: true}
	for _, rec := range records[1:] {
		row := make(models.Row, len(table.Headers))
		for i, h := range table.Headers {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, info.ModTime(), nil
}

// ListMirrors returns the upload ids on disk, oldest first
func (fh *FileHandler) ListMirrors() ([]string, error) {
	entries, err := fh.mirrors()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}

// MirrorsOlderThan returns ids of mirrors last written before cutoff
func (fh *FileHandler) MirrorsOlderThan(cutoff time.Time) ([]string, error) {
	entries, err := fh.mirrors()
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.modTime.Before(cutoff) {
			ids = append(ids, e.id)
		}
	}
	return ids, nil
}

type mirrorEntry struct {
	id      string
	modTime time.Time
}

func (fh *FileHandler) mirrors() ([]mirrorEntry, error) {
	files, err := os.ReadDir(fh.uploadsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []mirrorEntry{}, nil
		}
		return nil, fmt.Errorf("failed to read uploads directory: %w", err)
	}

	out := make([]mirrorEntry, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), mirrorExt) {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		out = append(out, mirrorEntry{id: strings.TrimSuffix(file.Name(), mirrorExt), modTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].modTime.Equal(out[j].modTime) {
			return out[i].id < out[j].id
		}
		return out[i].modTime.Before(out[j].modTime)
	})
	return out, nil
}

// RemoveMirror deletes one upload's mirror; a missing file is not an error
func (fh *FileHandler) RemoveMirror(id string) error {
	if err := os.Remove(fh.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove mirror %s: %w", id, err)
	}
	return nil
}

// ClearUploads removes all files from the uploads directory
func (fh *FileHandler) ClearUploads() error {
	if err := os.RemoveAll(fh.uploadsDir); err != nil {
		return fmt.Errorf("failed to clear uploads directory: %w", err)
	}
	return os.MkdirAll(fh.uploadsDir, 0755)
}
