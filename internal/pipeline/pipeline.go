// Package pipeline runs one build: load the three datasets, merge them into
// the working set, cluster by connectivity and assemble the ordered output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hurttlocker/holdings/internal/assemble"
	"github.com/hurttlocker/holdings/internal/cluster"
	"github.com/hurttlocker/holdings/internal/source"
	"github.com/hurttlocker/holdings/internal/timeseries"
	"github.com/hurttlocker/holdings/internal/titles"
)

// Options configures a build.
type Options struct {
	// Range overrides the year range derived from the data.
	Range *timeseries.Range
	// Source labels the loader in logs and results.
	Source string
	Logger *zap.Logger
}

// Result is one complete build. It is not modified after Build returns.
type Result struct {
	ID       uuid.UUID        `json:"id"`
	Source   string           `json:"source,omitempty"`
	Range    timeseries.Range `json:"range"`
	Titles   []*titles.Title  `json:"-"`
	Groups   []cluster.Group  `json:"-"`
	Output   assemble.Output  `json:"-"`
	Stats    assemble.Stats   `json:"stats"`
	Dropped  []string         `json:"dropped"`
	BuiltAt  time.Time        `json:"built_at"`
	Duration time.Duration    `json:"duration_ns"`
	byID     map[string]*titles.Title
}

// Build loads datasets from l and runs merge, clustering and assembly.
func Build(ctx context.Context, l source.Loader, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()
	id := uuid.New()
	log = log.With(zap.String("build", id.String()))
	if opts.Source != "" {
		log = log.With(zap.String("source", opts.Source))
	}

	ds, err := source.Load(ctx, l)
	if err != nil {
		buildsTotal.WithLabelValues(outcomeLoadError).Inc()
		log.Error("loading datasets", zap.Error(err))
		return nil, err
	}
	log.Debug("datasets loaded",
		zap.Int("records", len(ds.Titles)),
		zap.Int("hc_series", len(ds.HardCopy)),
		zap.Int("mf_series", len(ds.Microfilm)),
	)

	res, err := Run(ds, opts.Range)
	if err != nil {
		buildsTotal.WithLabelValues(outcomeFor(err)).Inc()
		log.Error("building output", zap.Error(err))
		return nil, err
	}
	res.ID = id
	res.Source = opts.Source
	res.BuiltAt = start.UTC()
	res.Duration = time.Since(start)

	for _, d := range res.Dropped {
		log.Debug("dropped title without holdings", zap.String("title", d))
	}
	buildsTotal.WithLabelValues(outcomeOK).Inc()
	buildDuration.Observe(res.Duration.Seconds())
	titlesGauge.Set(float64(len(res.Titles)))
	clustersGauge.Set(float64(res.Stats.Clusters))
	droppedTotal.Add(float64(len(res.Dropped)))

	log.Info("build complete",
		zap.Int("titles", len(res.Titles)),
		zap.Int("entries", res.Stats.Entries),
		zap.Int("clusters", res.Stats.Clusters),
		zap.Int("dropped", len(res.Dropped)),
		zap.Stringer("range", res.Range),
		zap.Duration("took", res.Duration),
	)
	return res, nil
}

// Run is the synchronous core of a build over already loaded datasets.
func Run(ds *source.Datasets, r *timeseries.Range) (*Result, error) {
	merged, err := titles.Merge(ds.Titles, ds.HardCopy, ds.Microfilm, titles.MergeOptions{Range: r})
	if err != nil {
		return nil, &stageError{stage: "merge", err: err}
	}

	groups := cluster.Partition(merged.Titles)
	out := assemble.Assemble(groups, merged.Titles)
	if err := assemble.Verify(out, merged.Titles); err != nil {
		return nil, &stageError{stage: "verify", err: err}
	}

	res := &Result{
		Range:   merged.Range,
		Titles:  merged.Titles,
		Groups:  groups,
		Output:  out,
		Stats:   assemble.Summarize(out),
		Dropped: merged.Dropped,
		byID:    make(map[string]*titles.Title, len(merged.Titles)),
	}
	if res.Dropped == nil {
		res.Dropped = []string{}
	}
	for _, t := range merged.Titles {
		res.byID[t.ID] = t
	}
	return res, nil
}

// Title returns the working-set title with the given ID.
func (r *Result) Title(id string) (*titles.Title, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// ClusterOf returns the connected group holding id, computed by the
// fixed-point closure over the working set.
func (r *Result) ClusterOf(id string) (cluster.Group, bool) {
	return cluster.Of(id, r.Titles)
}

// Entry returns the output entry holding id.
func (r *Result) Entry(id string) (assemble.Entry, bool) {
	return assemble.Locate(r.Output, id)
}

type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }
func (e *stageError) Unwrap() error { return e.err }

func outcomeFor(err error) string {
	var se *stageError
	if errors.As(err, &se) && se.stage == "verify" {
		return outcomeVerifyError
	}
	return outcomeMergeError
}
