package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"wxdata-server/internal/modules/weather/types"
)

// FileDateLayout is the date form used in station files.
const FileDateLayout = "20060102"

const fieldsPerRow = 4

var fieldNames = [fieldsPerRow]string{"date", "max_temp", "min_temp", "precip"}

// ParseError describes a malformed row of a station file.
type ParseError struct {
	Line  int
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: invalid %s %q: %v", e.Line, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StationFromFilename returns the station identifier encoded in a file name:
// the base name up to its first dot.
func StationFromFilename(name string) string {
	base := filepath.Base(name)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}

// ParseRecords reads tab-separated rows of date, max_temp, min_temp and precip
// (no header) into records of the given station. Blank lines are ignored and
// padding around fields is trimmed. The first malformed row aborts parsing.
func ParseRecords(r io.Reader, station string) ([]types.Record, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = fieldsPerRow
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var out []types.Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &ParseError{Line: csvErr.Line, Err: csvErr.Err}
			}
			return nil, err
		}
		line, _ := cr.FieldPos(0)

		rec, err := parseRow(row, station, line)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

func parseRow(row []string, station string, line int) (types.Record, error) {
	var fields [fieldsPerRow]string
	for i := range fields {
		fields[i] = strings.TrimSpace(row[i])
	}

	date, err := time.Parse(FileDateLayout, fields[0])
	if err != nil {
		return types.Record{}, &ParseError{Line: line, Field: fieldNames[0], Value: fields[0], Err: err}
	}

	var values [fieldsPerRow - 1]int
	for i := range values {
		// stored as smallint
		n, err := strconv.ParseInt(fields[i+1], 10, 16)
		if err != nil {
			return types.Record{}, &ParseError{Line: line, Field: fieldNames[i+1], Value: fields[i+1], Err: err}
		}
		values[i] = int(n)
	}

	return types.Record{
		Station: station,
		Date:    date,
		MaxTemp: values[0],
		MinTemp: values[1],
		Precip:  values[2],
	}, nil
}
