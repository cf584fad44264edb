// Package service runs the weather batch jobs and reports their outcome.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"wxdata-server/internal/logging"
	"wxdata-server/internal/modules/weather/analyze"
	"wxdata-server/internal/modules/weather/ingest"
	"wxdata-server/internal/modules/weather/repository"
	"wxdata-server/internal/modules/weather/types"
	"wxdata-server/internal/mqtt"
	"wxdata-server/internal/observability"
)

const (
	JobIngest  = "ingest"
	JobAnalyze = "analyze"
)

// ErrFilesRejected is returned by Ingest when the run completed but at least
// one file was rejected.
var ErrFilesRejected = errors.New("some files were rejected")

type Options struct {
	Out      io.Writer
	Logger   *slog.Logger
	Clock    clockwork.Clock
	Metrics  *observability.Metrics
	Notifier mqtt.Notifier
	// NewRunID defaults to a random UUID.
	NewRunID func() string
}

type Service struct {
	repository repository.WeatherRepository
	opts       Options
}

func NewService(repository repository.WeatherRepository, opts Options) *Service {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Notifier == nil {
		opts.Notifier = mqtt.NoopNotifier{}
	}
	if opts.NewRunID == nil {
		opts.NewRunID = func() string { return uuid.NewString() }
	}
	return &Service{repository: repository, opts: opts}
}

// Ingest loads every station file of dataDir.
func (s *Service) Ingest(ctx context.Context, dataDir string) (types.JobSummary, error) {
	summary, logger := s.begin(JobIngest)
	in := ingest.NewIngestor(s.repository, ingest.Options{
		DataDir: dataDir,
		Out:     s.opts.Out,
		Logger:  logger,
		Clock:   s.opts.Clock,
		Metrics: s.opts.Metrics,
	})
	res, err := in.Run(ctx)
	summary.StartedAt, summary.FinishedAt = res.StartedAt, res.FinishedAt
	summary.Count, summary.Skipped = res.Inserted, res.Skipped
	summary.FailedFiles = res.Failed
	s.recordStored(ctx, logger)
	if err == nil && len(res.Failed) > 0 {
		err = fmt.Errorf("%w: %d of %d", ErrFilesRejected, len(res.Failed), res.Files)
	}
	return s.end(ctx, summary, logger, err)
}

// Analyze computes the yearly stats of every station.
func (s *Service) Analyze(ctx context.Context) (types.JobSummary, error) {
	summary, logger := s.begin(JobAnalyze)
	a := analyze.NewAggregator(s.repository, analyze.Options{
		Out:     s.opts.Out,
		Logger:  logger,
		Clock:   s.opts.Clock,
		Metrics: s.opts.Metrics,
	})
	res, err := a.Run(ctx)
	summary.StartedAt, summary.FinishedAt = res.StartedAt, res.FinishedAt
	summary.Count, summary.Skipped = res.Inserted, res.Skipped
	return s.end(ctx, summary, logger, err)
}

func (s *Service) recordStored(ctx context.Context, logger *slog.Logger) {
	n, err := s.repository.CountAllRecords(context.WithoutCancel(ctx))
	if err != nil {
		logger.Warn("count stored records", "error", err)
		return
	}
	logger.Info("records stored", "total", n)
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordsStored.Set(float64(n))
	}
}

func (s *Service) begin(job string) (types.JobSummary, *slog.Logger) {
	runID := s.opts.NewRunID()
	return types.JobSummary{RunID: runID, Job: job}, logging.ForJob(s.opts.Logger, job, runID)
}

func (s *Service) end(ctx context.Context, summary types.JobSummary, logger *slog.Logger, err error) (types.JobSummary, error) {
	if err != nil {
		summary.Error = err.Error()
	}
	if m := s.opts.Metrics; m != nil {
		m.JobDuration.WithLabelValues(summary.Job).Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
		if err == nil {
			m.JobLastSuccessTime.WithLabelValues(summary.Job).Set(float64(summary.FinishedAt.Unix()))
		}
	}

	// A cancelled job still gets reported.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if nerr := s.opts.Notifier.Notify(notifyCtx, summary); nerr != nil {
		logger.Warn("job notification failed", "error", nerr)
	}
	return summary, err
}
