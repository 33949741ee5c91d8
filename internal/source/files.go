package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hurttlocker/holdings/internal/titles"
)

// Default file names inside a data directory.
const (
	DefaultTitlesFile    = "titles.json"
	DefaultHardCopyFile  = "timeseries_items_hc.json"
	DefaultMicrofilmFile = "timeseries_items_mf.json"
)

// FileLoader reads the datasets from JSON files.
type FileLoader struct {
	TitlesPath    string
	HardCopyPath  string
	MicrofilmPath string
}

// NewFileLoader points a loader at the default file names under dir.
func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{
		TitlesPath:    filepath.Join(dir, DefaultTitlesFile),
		HardCopyPath:  filepath.Join(dir, DefaultHardCopyFile),
		MicrofilmPath: filepath.Join(dir, DefaultMicrofilmFile),
	}
}

// Paths lists the three files in dataset order.
func (f *FileLoader) Paths() []string {
	return []string{f.TitlesPath, f.HardCopyPath, f.MicrofilmPath}
}

// LoadTitles reads a JSON array of title records.
func (f *FileLoader) LoadTitles(ctx context.Context) ([]titles.Record, error) {
	var recs []titles.Record
	if err := readJSON(ctx, f.TitlesPath, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// LoadHardCopy reads the hard-copy series object.
func (f *FileLoader) LoadHardCopy(ctx context.Context) (titles.RawSeriesSet, error) {
	return readSeries(ctx, f.HardCopyPath)
}

// LoadMicrofilm reads the microfilm series object.
func (f *FileLoader) LoadMicrofilm(ctx context.Context) (titles.RawSeriesSet, error) {
	return readSeries(ctx, f.MicrofilmPath)
}

func readSeries(ctx context.Context, path string) (titles.RawSeriesSet, error) {
	set := titles.RawSeriesSet{}
	if err := readJSON(ctx, path, &set); err != nil {
		return nil, err
	}
	return set, nil
}

func readJSON(ctx context.Context, path string, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("empty JSON file %s", path)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	return nil
}
