package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the storage and API form of a calendar date.
const DateLayout = "2006-01-02"

// MaxStationLen is the longest station identifier the store accepts.
const MaxStationLen = 15

// Record is one daily observation of a station. Measurements are tenths
// (°C for temperatures, mm for precipitation) and may hold the missing sentinel.
type Record struct {
	ID      int64
	Station string
	Date    time.Time
	MaxTemp int
	MinTemp int
	Precip  int
}

// Stat holds the yearly aggregates of a station. A field is NULL when every
// observation of that year was missing it.
type Stat struct {
	ID          int64
	Station     string
	Year        int
	MaxTempAvg  decimal.NullDecimal
	MinTempAvg  decimal.NullDecimal
	PrecipTotal decimal.NullDecimal
}

// YearRecords is the set of observations of one station in one calendar year.
type YearRecords struct {
	Year    int
	Records []Record
}

// InsertResult is the outcome of a single-row insert guarded by a uniqueness constraint.
type InsertResult int

const (
	Inserted InsertResult = iota
	AlreadyExists
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// BulkResult is the outcome of an all-or-nothing batch insert. When Conflict is
// set nothing was written.
type BulkResult struct {
	Inserted int
	Conflict bool
}

// RecordFilter selects raw observations. Date takes precedence over the
// StartDate/EndDate range; zero values mean no filter.
type RecordFilter struct {
	Station   string
	Date      time.Time
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Offset    int
}

type StatFilter struct {
	Station string
	Year    int
	Limit   int
	Offset  int
}

// JobSummary describes a finished ingest or analyze run.
type JobSummary struct {
	RunID       string       `json:"run_id"`
	Job         string       `json:"job"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Count       int          `json:"count"`
	Skipped     int          `json:"skipped"`
	FailedFiles []FailedFile `json:"failed_files,omitempty"`
	Error       string       `json:"error,omitempty"`
}

type FailedFile struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}
