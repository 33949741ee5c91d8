package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/hurttlocker/holdings/internal/source"
	"github.com/hurttlocker/holdings/internal/titles"
)

// ImportResult summarizes one snapshot import.
type ImportResult struct {
	Titles        int
	HardCopy      int
	Microfilm     int
	Values        int
	SkippedValues int // non-numeric series values
	ContentHash   string
	Unchanged     bool // the snapshot already held identical data
}

// Snapshot describes the data currently held by the store.
type Snapshot struct {
	Source      string    `json:"source"`
	ContentHash string    `json:"content_hash"`
	Titles      int       `json:"titles"`
	HardCopy    int       `json:"hc_series"`
	Microfilm   int       `json:"mf_series"`
	ImportedAt  time.Time `json:"imported_at"`
}

// Import replaces the stored datasets with ds. label records where the data
// came from.
func (s *SQLiteStore) Import(ctx context.Context, ds *source.Datasets, label string) (*ImportResult, error) {
	hash, err := HashDatasets(ds)
	if err != nil {
		return nil, err
	}
	res := &ImportResult{ContentHash: hash}

	if last, err := s.LastSnapshot(ctx); err != nil {
		return nil, err
	} else if last != nil && last.ContentHash == hash {
		res.Titles, res.HardCopy, res.Microfilm = last.Titles, last.HardCopy, last.Microfilm
		res.Unchanged = true
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning import: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM series_values", "DELETE FROM series", "DELETE FROM title_records"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("clearing snapshot: %w", err)
		}
	}

	for i, rec := range ds.Titles {
		id := titles.RecordID(rec)
		if id == "" {
			return nil, fmt.Errorf("record %d: %w", i, titles.ErrMissingID)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encoding record %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO title_records (id, position, record) VALUES (?, ?, ?)", id, i, string(data),
		); err != nil {
			return nil, fmt.Errorf("inserting record %s: %w", id, err)
		}
		res.Titles++
	}

	for _, set := range []struct {
		format string
		series titles.RawSeriesSet
		count  *int
	}{
		{FormatHardCopy, ds.HardCopy, &res.HardCopy},
		{FormatMicrofilm, ds.Microfilm, &res.Microfilm},
	} {
		for id, fields := range set.series {
			if fields == nil {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO series (title_id, format) VALUES (?, ?)", id, set.format,
			); err != nil {
				return nil, fmt.Errorf("inserting %s series %s: %w", set.format, id, err)
			}
			*set.count++
			for field, raw := range fields {
				v, err := cast.ToFloat64E(raw)
				if err != nil {
					res.SkippedValues++
					continue
				}
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO series_values (title_id, format, field, value) VALUES (?, ?, ?, ?)",
					id, set.format, field, v,
				); err != nil {
					return nil, fmt.Errorf("inserting %s value %s/%s: %w", set.format, id, field, err)
				}
				res.Values++
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO imports (source, content_hash, titles, hc_series, mf_series, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		label, hash, res.Titles, res.HardCopy, res.Microfilm, time.Now().UTC(),
	); err != nil {
		return nil, fmt.Errorf("recording import: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing import: %w", err)
	}
	return res, nil
}

// LastSnapshot returns the most recent import, or nil for an empty store.
func (s *SQLiteStore) LastSnapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	err := s.db.QueryRowContext(ctx,
		`SELECT source, content_hash, titles, hc_series, mf_series, imported_at
		 FROM imports ORDER BY id DESC LIMIT 1`,
	).Scan(&snap.Source, &snap.ContentHash, &snap.Titles, &snap.HardCopy, &snap.Microfilm, &snap.ImportedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading last import: %w", err)
	}
	return &snap, nil
}

// LoadTitles returns the stored title records in import order.
func (s *SQLiteStore) LoadTitles(ctx context.Context) ([]titles.Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, record FROM title_records ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("querying title records: %w", err)
	}
	defer rows.Close()

	recs := make([]titles.Record, 0)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		var rec titles.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decoding record %s: %w", id, err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// LoadHardCopy returns the stored hard-copy series.
func (s *SQLiteStore) LoadHardCopy(ctx context.Context) (titles.RawSeriesSet, error) {
	return s.loadSeries(ctx, FormatHardCopy)
}

// LoadMicrofilm returns the stored microfilm series.
func (s *SQLiteStore) LoadMicrofilm(ctx context.Context) (titles.RawSeriesSet, error) {
	return s.loadSeries(ctx, FormatMicrofilm)
}

func (s *SQLiteStore) loadSeries(ctx context.Context, format string) (titles.RawSeriesSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.title_id, v.field, v.value
		 FROM series s
		 LEFT JOIN series_values v ON v.title_id = s.title_id AND v.format = s.format
		 WHERE s.format = ?`, format)
	if err != nil {
		return nil, fmt.Errorf("querying %s series: %w", format, err)
	}
	defer rows.Close()

	set := titles.RawSeriesSet{}
	for rows.Next() {
		var id string
		var field sql.NullString
		var value sql.NullFloat64
		if err := rows.Scan(&id, &field, &value); err != nil {
			return nil, err
		}
		fields, ok := set[id]
		if !ok {
			fields = make(map[string]any)
			set[id] = fields
		}
		if field.Valid && value.Valid {
			fields[field.String] = value.Float64
		}
	}
	return set, rows.Err()
}

var _ source.Loader = (*SQLiteStore)(nil)
