// Package analyze computes the yearly aggregates of every station from its raw observations.
package analyze

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"wxdata-server/internal/modules/weather/types"
	"wxdata-server/internal/observability"
)

const timestampLayout = "2006-01-02 15:04:05"

// Store is the part of the weather repository the aggregator reads from and writes to.
type Store interface {
	GetStations(ctx context.Context) ([]string, error)
	GetRecordsByYear(ctx context.Context, station string) ([]types.YearRecords, error)
	InsertStat(ctx context.Context, stat types.Stat) (types.InsertResult, error)
}

type Options struct {
	Out     io.Writer
	Logger  *slog.Logger
	Clock   clockwork.Clock
	Metrics *observability.Metrics
}

type Aggregator struct {
	store   Store
	out     io.Writer
	logger  *slog.Logger
	clock   clockwork.Clock
	metrics *observability.Metrics
}

func NewAggregator(store Store, opts Options) *Aggregator {
	a := &Aggregator{
		store:   store,
		out:     opts.Out,
		logger:  opts.Logger,
		clock:   opts.Clock,
		metrics: opts.Metrics,
	}
	if a.out == nil {
		a.out = io.Discard
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.clock == nil {
		a.clock = clockwork.NewRealClock()
	}
	return a
}

type Result struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Stations   int
	Inserted   int
	Skipped    int
}

// Run aggregates every station present in the store, one station at a time.
// Years already aggregated are skipped. Any store failure stops the run and
// returns the partial result.
func (a *Aggregator) Run(ctx context.Context) (Result, error) {
	res := Result{StartedAt: a.clock.Now()}
	fmt.Fprintf(a.out, "Started analyzing data at %s\n", res.StartedAt.Format(timestampLayout))
	a.logger.Info("analyze started")

	stations, err := a.store.GetStations(ctx)
	if err != nil {
		return a.finish(res), fmt.Errorf("list stations: %w", err)
	}

	for _, station := range stations {
		if err := ctx.Err(); err != nil {
			return a.finish(res), err
		}
		inserted, skipped, err := a.analyzeStation(ctx, station)
		res.Stations++
		res.Inserted += inserted
		res.Skipped += skipped
		if err != nil {
			return a.finish(res), fmt.Errorf("analyze %s: %w", station, err)
		}
	}

	return a.finish(res), nil
}

func (a *Aggregator) analyzeStation(ctx context.Context, station string) (inserted, skipped int, err error) {
	years, err := a.store.GetRecordsByYear(ctx, station)
	if err != nil {
		return 0, 0, err
	}

	for _, yr := range years {
		stat := Summarize(station, yr)
		got, err := a.store.InsertStat(ctx, stat)
		if err != nil {
			return inserted, skipped, err
		}
		switch got {
		case types.Inserted:
			inserted++
			if a.metrics != nil {
				a.metrics.StatsInserted.Inc()
			}
		case types.AlreadyExists:
			skipped++
			fmt.Fprintf(a.out, "Already analyzed for %s, %d\n", station, yr.Year)
			if a.metrics != nil {
				a.metrics.StatsSkipped.Inc()
			}
		}
	}

	a.logger.Debug("station analyzed", "station", station, "years", len(years), "inserted", inserted, "skipped", skipped)
	return inserted, skipped, nil
}

func (a *Aggregator) finish(res Result) Result {
	res.FinishedAt = a.clock.Now()
	fmt.Fprintf(a.out, "Ended analyzing data at %s\n", res.FinishedAt.Format(timestampLayout))
	fmt.Fprintf(a.out, "%d rows of analyzed data added\n", res.Inserted)
	a.logger.Info("analyze finished",
		"stations", res.Stations,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"duration", res.FinishedAt.Sub(res.StartedAt),
	)
	return res
}
