// Package source fetches the three input datasets of a build: title
// metadata, hard-copy holdings and microfilm holdings.
package source

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hurttlocker/holdings/internal/titles"
)

// Dataset names, used in errors and logs.
const (
	DatasetTitles    = "titles"
	DatasetHardCopy  = "hard-copy"
	DatasetMicrofilm = "microfilm"
)

// Datasets is the parsed input of one build.
type Datasets struct {
	Titles    []titles.Record
	HardCopy  titles.RawSeriesSet
	Microfilm titles.RawSeriesSet
}

// Loader fetches each dataset.
type Loader interface {
	LoadTitles(ctx context.Context) ([]titles.Record, error)
	LoadHardCopy(ctx context.Context) (titles.RawSeriesSet, error)
	LoadMicrofilm(ctx context.Context) (titles.RawSeriesSet, error)
}

// LoadError names the dataset that failed to load.
type LoadError struct {
	Dataset string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s dataset: %v", e.Dataset, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load fetches all three datasets concurrently and returns once every one is
// in. The first failure cancels the other fetches and is the error returned.
func Load(ctx context.Context, l Loader) (*Datasets, error) {
	var ds Datasets
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		recs, err := l.LoadTitles(gctx)
		if err != nil {
			return &LoadError{Dataset: DatasetTitles, Err: err}
		}
		ds.Titles = recs
		return nil
	})
	g.Go(func() error {
		hc, err := l.LoadHardCopy(gctx)
		if err != nil {
			return &LoadError{Dataset: DatasetHardCopy, Err: err}
		}
		ds.HardCopy = hc
		return nil
	})
	g.Go(func() error {
		mf, err := l.LoadMicrofilm(gctx)
		if err != nil {
			return &LoadError{Dataset: DatasetMicrofilm, Err: err}
		}
		ds.Microfilm = mf
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// Static serves datasets already in memory.
type Static struct {
	Data Datasets
}

func (s *Static) LoadTitles(ctx context.Context) ([]titles.Record, error) {
	return s.Data.Titles, ctx.Err()
}

func (s *Static) LoadHardCopy(ctx context.Context) (titles.RawSeriesSet, error) {
	return s.Data.HardCopy, ctx.Err()
}

func (s *Static) LoadMicrofilm(ctx context.Context) (titles.RawSeriesSet, error) {
	return s.Data.Microfilm, ctx.Err()
}
