package analyze

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wxdata-server/internal/migrate"
	"wxdata-server/internal/modules/weather/repository"
	"wxdata-server/internal/modules/weather/types"
	"wxdata-server/internal/observability"

	_ "github.com/mattn/go-sqlite3"
)

var startTime = time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) (*sql.DB, repository.WeatherRepository) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = migrate.Run(context.Background(), db, quietLogger())
	require.NoError(t, err)
	return db, repository.NewRepository(db)
}

func seed(t *testing.T, repo repository.WeatherRepository, records ...types.Record) {
	t.Helper()
	res, err := repo.InsertRecords(context.Background(), records)
	require.NoError(t, err)
	require.False(t, res.Conflict)
}

func newAggregator(store Store, out io.Writer) *Aggregator {
	return NewAggregator(store, Options{
		Out:    out,
		Logger: quietLogger(),
		Clock:  clockwork.NewFakeClockAt(startTime),
	})
}

func listStats(t *testing.T, repo repository.WeatherRepository) []types.Stat {
	t.Helper()
	stats, err := repo.ListStats(context.Background(), types.StatFilter{})
	require.NoError(t, err)
	return stats
}

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestRun_ComputesYearlyStats(t *testing.T) {
	_, repo := newStore(t)
	seed(t, repo,
		obs("2014-08-01", 278, 161, 224),
		obs("2014-08-02", 283, 139, 8),
		obs("2014-08-03", 289, 144, 0),
		obs("2015-01-01", -9999, -9999, -9999),
	)
	var out bytes.Buffer

	res, err := newAggregator(repo, &out).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Stations)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t,
		"Started analyzing data at 2024-04-26 15:10:00\n"+
			"Ended analyzing data at 2024-04-26 15:10:00\n"+
			"2 rows of analyzed data added\n",
		out.String())

	want := []types.Stat{
		{Station: "USC00110072", Year: 2014, MaxTempAvg: nd("28.3"), MinTempAvg: nd("14.8"), PrecipTotal: nd("2.32")},
		{Station: "USC00110072", Year: 2015},
	}
	if diff := cmp.Diff(want, listStats(t, repo), decimalEqual, cmpopts.IgnoreFields(types.Stat{}, "ID")); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_MissingRowStaysRetrievable(t *testing.T) {
	_, repo := newStore(t)
	seed(t, repo,
		obs("2014-08-01", -9999, 161, 224),
		obs("2014-08-02", 283, 139, 8),
	)

	_, err := newAggregator(repo, io.Discard).Run(context.Background())
	require.NoError(t, err)

	stats := listStats(t, repo)
	require.Len(t, stats, 1)
	assertDecimal(t, "28.3", stats[0].MaxTempAvg, "max_temp_avg")

	records, err := repo.ListRecords(context.Background(), types.RecordFilter{Station: "USC00110072"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, -9999, records[0].MaxTemp)
}

func TestRun_Idempotent(t *testing.T) {
	_, repo := newStore(t)
	seed(t, repo,
		obs("2013-12-31", 100, 50, 10),
		obs("2014-08-01", 278, 161, 224),
	)
	_, err := newAggregator(repo, io.Discard).Run(context.Background())
	require.NoError(t, err)
	first := listStats(t, repo)

	var out bytes.Buffer
	res, err := newAggregator(repo, &out).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 2, res.Skipped)
	assert.Contains(t, out.String(), "Already analyzed for USC00110072, 2013\n")
	assert.Contains(t, out.String(), "Already analyzed for USC00110072, 2014\n")
	assert.Contains(t, out.String(), "0 rows of analyzed data added\n")
	if diff := cmp.Diff(first, listStats(t, repo), decimalEqual); diff != "" {
		t.Errorf("second run changed stats (-first +second):\n%s", diff)
	}
}

func TestRun_ExistingStatLeftUntouched(t *testing.T) {
	_, repo := newStore(t)
	seed(t, repo, obs("2014-08-01", 278, 161, 224))
	_, err := repo.InsertStat(context.Background(), types.Stat{
		Station: "USC00110072", Year: 2014, MaxTempAvg: nd("1.0"), MinTempAvg: nd("2.0"), PrecipTotal: nd("3.00"),
	})
	require.NoError(t, err)

	res, err := newAggregator(repo, io.Discard).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)

	stats := listStats(t, repo)
	require.Len(t, stats, 1)
	assertDecimal(t, "1", stats[0].MaxTempAvg, "max_temp_avg")
	assertDecimal(t, "3", stats[0].PrecipTotal, "precip_total")
}

func TestRun_NewYearAfterRerunIsAdded(t *testing.T) {
	_, repo := newStore(t)
	seed(t, repo, obs("2014-08-01", 278, 161, 224))
	_, err := newAggregator(repo, io.Discard).Run(context.Background())
	require.NoError(t, err)

	seed(t, repo, obs("2015-08-01", 300, 200, 10))
	res, err := newAggregator(repo, io.Discard).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Skipped)
}

func TestRun_Empty(t *testing.T) {
	_, repo := newStore(t)
	var out bytes.Buffer
	res, err := newAggregator(repo, &out).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{StartedAt: startTime, FinishedAt: startTime}, res)
	assert.Contains(t, out.String(), "0 rows of analyzed data added")
}

type fakeStore struct {
	stations    []string
	stationsErr error
	years       map[string][]types.YearRecords
	failOn      string
	inserted    []types.Stat
}

func (f *fakeStore) GetStations(context.Context) ([]string, error) {
	return f.stations, f.stationsErr
}

func (f *fakeStore) GetRecordsByYear(_ context.Context, station string) ([]types.YearRecords, error) {
	return f.years[station], nil
}

func (f *fakeStore) InsertStat(_ context.Context, s types.Stat) (types.InsertResult, error) {
	if s.Station == f.failOn {
		return types.Inserted, errors.New("database is locked")
	}
	f.inserted = append(f.inserted, s)
	return types.Inserted, nil
}

func TestRun_StoreFailureKeepsPartialCount(t *testing.T) {
	year := func(y int) types.YearRecords {
		return types.YearRecords{Year: y, Records: []types.Record{obs("2014-01-01", 1, 1, 1)}}
	}
	store := &fakeStore{
		stations: []string{"A", "B", "C"},
		years: map[string][]types.YearRecords{
			"A": {year(2014), year(2015)},
			"B": {year(2014)},
			"C": {year(2014)},
		},
		failOn: "B",
	}
	var out bytes.Buffer

	res, err := newAggregator(store, &out).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyze B")
	assert.Contains(t, err.Error(), "database is locked")
	assert.Equal(t, 2, res.Inserted)
	assert.Len(t, store.inserted, 2, "station C must not be processed")
	assert.Contains(t, out.String(), "2 rows of analyzed data added")
}

func TestRun_ListStationsFailure(t *testing.T) {
	store := &fakeStore{stationsErr: errors.New("no such table: weather_records")}
	_, err := newAggregator(store, io.Discard).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list stations")
}

func TestRun_Cancelled(t *testing.T) {
	store := &fakeStore{stations: []string{"A"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newAggregator(store, io.Discard).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_RecordsMetrics(t *testing.T) {
	_, repo := newStore(t)
	seed(t, repo, obs("2014-08-01", 278, 161, 224), obs("2015-08-01", 278, 161, 224))
	m := observability.NewMetricsForTesting()
	a := NewAggregator(repo, Options{Logger: quietLogger(), Metrics: m})

	_, err := a.Run(context.Background())
	require.NoError(t, err)
	_, err = a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StatsInserted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StatsSkipped))
}
