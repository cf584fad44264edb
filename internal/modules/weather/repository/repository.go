package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"wxdata-server/internal/db"
	"wxdata-server/internal/modules/weather/types"
)

//go:embed sql/insert-record.sql
var insertRecordSQL string

//go:embed sql/insert-stat.sql
var insertStatSQL string

//go:embed sql/get-stations.sql
var getStationsSQL string

//go:embed sql/get-station-records.sql
var getStationRecordsSQL string

//go:embed sql/list-records.sql
var listRecordsSQL string

//go:embed sql/count-records.sql
var countRecordsSQL string

//go:embed sql/list-stats.sql
var listStatsSQL string

//go:embed sql/count-stats.sql
var countStatsSQL string

//go:embed sql/count-all-records.sql
var countAllRecordsSQL string

type WeatherRepository interface {
	InsertRecords(ctx context.Context, records []types.Record) (types.BulkResult, error)
	InsertRecord(ctx context.Context, record types.Record) (types.InsertResult, error)
	GetStations(ctx context.Context) ([]string, error)
	GetRecordsByYear(ctx context.Context, station string) ([]types.YearRecords, error)
	InsertStat(ctx context.Context, stat types.Stat) (types.InsertResult, error)
	ListRecords(ctx context.Context, f types.RecordFilter) ([]types.Record, error)
	CountRecords(ctx context.Context, f types.RecordFilter) (int, error)
	ListStats(ctx context.Context, f types.StatFilter) ([]types.Stat, error)
	CountStats(ctx context.Context, f types.StatFilter) (int, error)
	CountAllRecords(ctx context.Context) (int, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) WeatherRepository {
	return &repositoryImpl{db: db}
}

// InsertRecords writes all records in one transaction. If any of them collides
// with an existing (station, date) the transaction is rolled back and the
// result reports a conflict instead of an error.
func (r *repositoryImpl) InsertRecords(ctx context.Context, records []types.Record) (types.BulkResult, error) {
	if len(records) == 0 {
		return types.BulkResult{}, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.BulkResult{}, fmt.Errorf("begin bulk insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertRecordSQL)
	if err != nil {
		return types.BulkResult{}, fmt.Errorf("prepare bulk insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx, rec.Station, rec.Date.Format(types.DateLayout), rec.MaxTemp, rec.MinTemp, rec.Precip)
		if db.IsUniqueViolation(err) {
			return types.BulkResult{Conflict: true}, nil
		}
		if err != nil {
			return types.BulkResult{}, fmt.Errorf("bulk insert %s %s: %w", rec.Station, rec.Date.Format(types.DateLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return types.BulkResult{}, fmt.Errorf("commit bulk insert: %w", err)
	}
	return types.BulkResult{Inserted: len(records)}, nil
}

func (r *repositoryImpl) InsertRecord(ctx context.Context, rec types.Record) (types.InsertResult, error) {
	_, err := r.db.ExecContext(ctx, insertRecordSQL, rec.Station, rec.Date.Format(types.DateLayout), rec.MaxTemp, rec.MinTemp, rec.Precip)
	if db.IsUniqueViolation(err) {
		return types.AlreadyExists, nil
	}
	if err != nil {
		return types.Inserted, fmt.Errorf("insert record %s %s: %w", rec.Station, rec.Date.Format(types.DateLayout), err)
	}
	return types.Inserted, nil
}

func (r *repositoryImpl) GetStations(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, getStationsSQL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close stations rows", "error", err)
		}
	}()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetRecordsByYear returns the station's observations grouped by calendar year,
// oldest year first. The whole result set is read before returning.
func (r *repositoryImpl) GetRecordsByYear(ctx context.Context, station string) ([]types.YearRecords, error) {
	rows, err := r.db.QueryContext(ctx, getStationRecordsSQL, station)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close station records rows", "station", station, "error", err)
		}
	}()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	var out []types.YearRecords
	for _, rec := range records {
		year := rec.Date.Year()
		if n := len(out); n == 0 || out[n-1].Year != year {
			out = append(out, types.YearRecords{Year: year})
		}
		last := &out[len(out)-1]
		last.Records = append(last.Records, rec)
	}
	return out, nil
}

// InsertStat stores a yearly aggregate. An existing row for the same station
// and year is left untouched and reported as AlreadyExists.
func (r *repositoryImpl) InsertStat(ctx context.Context, s types.Stat) (types.InsertResult, error) {
	_, err := r.db.ExecContext(ctx, insertStatSQL, s.Station, s.Year, s.MaxTempAvg, s.MinTempAvg, s.PrecipTotal)
	if db.IsUniqueViolation(err) {
		return types.AlreadyExists, nil
	}
	if err != nil {
		return types.Inserted, fmt.Errorf("insert stat %s %d: %w", s.Station, s.Year, err)
	}
	return types.Inserted, nil
}

func (r *repositoryImpl) ListRecords(ctx context.Context, f types.RecordFilter) ([]types.Record, error) {
	args := append(recordFilterArgs(f), limitArgs(f.Limit, f.Offset)...)
	rows, err := r.db.QueryContext(ctx, listRecordsSQL, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close records rows", "error", err)
		}
	}()
	return scanRecords(rows)
}

func (r *repositoryImpl) CountRecords(ctx context.Context, f types.RecordFilter) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countRecordsSQL, recordFilterArgs(f)...).Scan(&n)
	return n, err
}

func (r *repositoryImpl) ListStats(ctx context.Context, f types.StatFilter) ([]types.Stat, error) {
	args := append(statFilterArgs(f), limitArgs(f.Limit, f.Offset)...)
	rows, err := r.db.QueryContext(ctx, listStatsSQL, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close stats rows", "error", err)
		}
	}()
	var out []types.Stat
	for rows.Next() {
		var s types.Stat
		if err := rows.Scan(&s.ID, &s.Station, &s.Year, &s.MaxTempAvg, &s.MinTempAvg, &s.PrecipTotal); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) CountStats(ctx context.Context, f types.StatFilter) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countStatsSQL, statFilterArgs(f)...).Scan(&n)
	return n, err
}

func (r *repositoryImpl) CountAllRecords(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countAllRecordsSQL).Scan(&n)
	return n, err
}

func scanRecords(rows *sql.Rows) ([]types.Record, error) {
	var out []types.Record
	for rows.Next() {
		var rec types.Record
		var date string
		if err := rows.Scan(&rec.ID, &rec.Station, &date, &rec.MaxTemp, &rec.MinTemp, &rec.Precip); err != nil {
			return nil, err
		}
		t, err := time.Parse(types.DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		rec.Date = t
		out = append(out, rec)
	}
	return out, rows.Err()
}

func recordFilterArgs(f types.RecordFilter) []any {
	var date, start, end string
	if !f.Date.IsZero() {
		date = f.Date.Format(types.DateLayout)
	} else {
		if !f.StartDate.IsZero() {
			start = f.StartDate.Format(types.DateLayout)
		}
		if !f.EndDate.IsZero() {
			end = f.EndDate.Format(types.DateLayout)
		}
	}
	return []any{
		sql.Named("station", f.Station),
		sql.Named("date", date),
		sql.Named("start_date", start),
		sql.Named("end_date", end),
	}
}

func statFilterArgs(f types.StatFilter) []any {
	return []any{
		sql.Named("station", f.Station),
		sql.Named("year", f.Year),
	}
}

// limitArgs maps a zero limit to SQLite's "no limit".
func limitArgs(limit, offset int) []any {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	return []any{sql.Named("limit", limit), sql.Named("offset", offset)}
}
