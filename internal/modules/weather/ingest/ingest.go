// Package ingest loads station observation files into the record store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"wxdata-server/internal/modules/weather/types"
	"wxdata-server/internal/observability"
)

const timestampLayout = "2006-01-02 15:04:05"

var (
	ErrDataDirMissing = errors.New("data directory does not exist")
	ErrStationTooLong = fmt.Errorf("station identifier longer than %d characters", types.MaxStationLen)
)

// FileError rejects a single station file. Ingestion of the other files continues.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e *FileError) Unwrap() error { return e.Err }

// RecordStore is the part of the weather repository the ingestor writes to.
type RecordStore interface {
	InsertRecords(ctx context.Context, records []types.Record) (types.BulkResult, error)
	InsertRecord(ctx context.Context, record types.Record) (types.InsertResult, error)
}

type Options struct {
	DataDir string
	// Out receives the progress lines of a run. Defaults to io.Discard.
	Out     io.Writer
	Logger  *slog.Logger
	Clock   clockwork.Clock
	Metrics *observability.Metrics
}

type Ingestor struct {
	store   RecordStore
	dataDir string
	out     io.Writer
	logger  *slog.Logger
	clock   clockwork.Clock
	metrics *observability.Metrics
}

func NewIngestor(store RecordStore, opts Options) *Ingestor {
	in := &Ingestor{
		store:   store,
		dataDir: opts.DataDir,
		out:     opts.Out,
		logger:  opts.Logger,
		clock:   opts.Clock,
		metrics: opts.Metrics,
	}
	if in.out == nil {
		in.out = io.Discard
	}
	if in.logger == nil {
		in.logger = slog.Default()
	}
	if in.clock == nil {
		in.clock = clockwork.NewRealClock()
	}
	return in
}

// FileResult counts what happened to the rows of one station file.
type FileResult struct {
	Station  string
	Inserted int
	Skipped  int
	// Fallback is set when the bulk insert conflicted and rows were inserted one by one.
	Fallback bool
}

// Result accumulates a whole ingestion run.
type Result struct {
	StartedAt  time.Time
	FinishedAt time.Time
	// Files counts every file attempted, rejected ones included.
	Files      int
	Inserted   int
	Skipped    int
	Failed     []types.FailedFile
}

func (r *Result) add(fr FileResult) {
	r.Files++
	r.Inserted += fr.Inserted
	r.Skipped += fr.Skipped
}

// IngestFile parses one station file and stores its rows. Read and parse
// failures are returned as *FileError; anything else comes from the store.
func (in *Ingestor) IngestFile(ctx context.Context, path string) (FileResult, error) {
	station := StationFromFilename(path)
	res := FileResult{Station: station}

	if station == "" || len(station) > types.MaxStationLen {
		return res, &FileError{Path: path, Err: fmt.Errorf("%w: %q", ErrStationTooLong, station)}
	}

	records, err := readFile(path, station)
	if err != nil {
		return res, &FileError{Path: path, Err: err}
	}

	bulk, err := in.store.InsertRecords(ctx, records)
	if err != nil {
		return res, err
	}
	if !bulk.Conflict {
		res.Inserted = bulk.Inserted
		return res, nil
	}

	res.Fallback = true
	fmt.Fprintf(in.out, "Already ingested some data for %s\n", station)
	if in.metrics != nil {
		in.metrics.BulkConflicts.Inc()
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		got, err := in.store.InsertRecord(ctx, rec)
		if err != nil {
			return res, err
		}
		switch got {
		case types.Inserted:
			res.Inserted++
		case types.AlreadyExists:
			res.Skipped++
		}
	}
	return res, nil
}

func readFile(path, station string) ([]types.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ParseRecords(f, station)
}

// Run ingests every station file of the data directory, one file at a time.
// Rejected files are collected in Result.Failed; a missing directory, a store
// failure or cancellation stops the run and returns the partial result.
func (in *Ingestor) Run(ctx context.Context) (Result, error) {
	res := Result{StartedAt: in.clock.Now()}
	fmt.Fprintf(in.out, "Started ingesting data at %s\n", res.StartedAt.Format(timestampLayout))
	in.logger.Info("ingest started", "data_dir", in.dataDir)

	entries, err := os.ReadDir(in.dataDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return in.finish(res), fmt.Errorf("%w: %s", ErrDataDirMissing, in.dataDir)
		}
		return in.finish(res), fmt.Errorf("read data directory %s: %w", in.dataDir, err)
	}

	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return in.finish(res), err
		}

		path := filepath.Join(in.dataDir, e.Name())
		fr, err := in.IngestFile(ctx, path)
		res.add(fr)
		in.observeFile(fr, err)

		var fileErr *FileError
		if errors.As(err, &fileErr) {
			res.Failed = append(res.Failed, types.FailedFile{Path: path, Error: fileErr.Err.Error()})
			fmt.Fprintf(in.out, "Failed to ingest %s: %v\n", path, fileErr.Err)
			in.logger.Error("file rejected", "path", path, "error", fileErr.Err)
			continue
		}
		if err != nil {
			return in.finish(res), fmt.Errorf("ingest %s: %w", path, err)
		}
		in.logger.Debug("file ingested",
			"station", fr.Station,
			"inserted", fr.Inserted,
			"skipped", fr.Skipped,
			"fallback", fr.Fallback,
		)
	}

	return in.finish(res), nil
}

func (in *Ingestor) finish(res Result) Result {
	res.FinishedAt = in.clock.Now()
	fmt.Fprintf(in.out, "Ended ingesting data at %s\n", res.FinishedAt.Format(timestampLayout))
	fmt.Fprintf(in.out, "%d records added\n", res.Inserted)
	in.logger.Info("ingest finished",
		"files", res.Files,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"failed", len(res.Failed),
		"duration", res.FinishedAt.Sub(res.StartedAt),
	)
	return res
}

func (in *Ingestor) observeFile(fr FileResult, err error) {
	if in.metrics == nil {
		return
	}
	in.metrics.RecordsInserted.Add(float64(fr.Inserted))
	in.metrics.RecordsSkipped.Add(float64(fr.Skipped))
	var fileErr *FileError
	switch {
	case errors.As(err, &fileErr):
		in.metrics.FilesFailed.Inc()
	case err == nil:
		in.metrics.FilesProcessed.Inc()
	}
}
