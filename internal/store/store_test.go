package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hurttlocker/holdings/internal/source"
	"github.com/hurttlocker/holdings/internal/titles"
)

// newTestStore creates an in-memory store for testing.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewStore(StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDatasets() *source.Datasets {
	return &source.Datasets{
		Titles: []titles.Record{
			{titles.FieldID: "B", titles.FieldName: "Second in file", titles.FieldConnectivity: "A"},
			{titles.FieldID: float64(17), titles.FieldName: "Numeric"},
			{titles.FieldID: "A", titles.FieldName: "Third in file"},
		},
		HardCopy: titles.RawSeriesSet{
			"A":  {"1900": 1.0, "1901": 0.0},
			"17": {},
		},
		Microfilm: titles.RawSeriesSet{
			"B": {"1900": 2.0, titles.FieldBelowThreshold: 3.0, "note": "n/a"},
			"A": nil,
		},
	}
}

func TestNewStore(t *testing.T) {
	s := newTestStore(t)
	for _, table := range []string{"meta", "title_records", "series", "series_values", "imports"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}

	var version string
	require.NoError(t, s.db.QueryRow("SELECT value FROM meta WHERE key='schema_version'").Scan(&version))
	require.Equal(t, schemaVersion, version)
}

func TestImportAndLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.Import(ctx, sampleDatasets(), "fixtures")
	require.NoError(t, err)
	require.Equal(t, 3, res.Titles)
	require.Equal(t, 2, res.HardCopy)
	require.Equal(t, 1, res.Microfilm)
	require.Equal(t, 1, res.SkippedValues)
	require.False(t, res.Unchanged)

	ds, err := source.Load(ctx, s)
	require.NoError(t, err)

	ids := make([]string, 0, len(ds.Titles))
	for _, rec := range ds.Titles {
		ids = append(ids, titles.RecordID(rec))
	}
	require.Equal(t, []string{"B", "17", "A"}, ids)

	require.Contains(t, ds.HardCopy, "17")
	require.Empty(t, ds.HardCopy["17"])
	require.NotNil(t, ds.HardCopy["17"], "an empty series is still present")
	require.Equal(t, 1.0, ds.HardCopy["A"]["1900"])
	require.NotContains(t, ds.Microfilm, "A", "null series are not stored")
	require.Equal(t, 3.0, ds.Microfilm["B"][titles.FieldBelowThreshold])
	require.NotContains(t, ds.Microfilm["B"], "note")

	snap, err := s.LastSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, "fixtures", snap.Source)
	require.Equal(t, res.ContentHash, snap.ContentHash)
}

func TestImportUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Import(ctx, sampleDatasets(), "one")
	require.NoError(t, err)
	second, err := s.Import(ctx, sampleDatasets(), "two")
	require.NoError(t, err)
	require.True(t, second.Unchanged)
	require.Equal(t, first.ContentHash, second.ContentHash)
	require.Equal(t, first.Titles, second.Titles)

	changed := sampleDatasets()
	changed.HardCopy["A"]["1901"] = 4.0
	third, err := s.Import(ctx, changed, "three")
	require.NoError(t, err)
	require.False(t, third.Unchanged)

	ds, err := source.Load(ctx, s)
	require.NoError(t, err)
	require.Equal(t, 4.0, ds.HardCopy["A"]["1901"])
}

func TestImportRejectsMissingID(t *testing.T) {
	s := newTestStore(t)
	ds := sampleDatasets()
	ds.Titles = append(ds.Titles, titles.Record{titles.FieldName: "no id"})

	_, err := s.Import(context.Background(), ds, "bad")
	if !errors.Is(err, titles.ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}

	snap, err := s.LastSnapshot(context.Background())
	require.NoError(t, err)
	require.Nil(t, snap, "failed import must not be recorded")
}

func TestEmptyStoreLoads(t *testing.T) {
	s := newTestStore(t)
	ds, err := source.Load(context.Background(), s)
	require.NoError(t, err)
	require.Empty(t, ds.Titles)
	require.Empty(t, ds.HardCopy)
	require.Empty(t, ds.Microfilm)
}

func TestFileDatabaseReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "holdings.db")
	s, err := NewStore(StoreConfig{DBPath: path})
	require.NoError(t, err)
	_, err = s.Import(context.Background(), sampleDatasets(), "disk")
	require.NoError(t, err)
	require.NoError(t, s.Vacuum(context.Background()))
	require.NoError(t, s.Close())

	reopened, err := NewStore(StoreConfig{DBPath: path})
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, path, reopened.Path())

	recs, err := reopened.LoadTitles(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 3)
}
