package controller

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wxdata-server/internal/modules/weather/types"
	"wxdata-server/internal/utils"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
	compactDate     = "20060102"
)

var errInvalidPage = errors.New("invalid page")

type page struct {
	Number int
	Size   int
}

func (p page) offset() int {
	return (p.Number - 1) * p.Size
}

func parsePage(q url.Values) (page, error) {
	p := page{Number: 1, Size: defaultPageSize}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, errInvalidPage
		}
		p.Number = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			return p, fmt.Errorf("page_size must be an integer between 1 and %d", maxPageSize)
		}
		p.Size = n
	}
	if p.Number > math.MaxInt/p.Size {
		return p, errInvalidPage
	}
	return p, nil
}

// parseDate accepts YYYY-MM-DD or the compact YYYYMMDD used by the data files.
func parseDate(name, v string) (time.Time, error) {
	layout := types.DateLayout
	if !strings.Contains(v, "-") {
		layout = compactDate
	}
	d, err := time.Parse(layout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a date in YYYY-MM-DD format", name)
	}
	return d, nil
}

func parseStation(q url.Values) (string, error) {
	s := q.Get("station")
	if len(s) > types.MaxStationLen {
		return "", fmt.Errorf("station must be at most %d characters", types.MaxStationLen)
	}
	return s, nil
}

func parseRecordFilter(q url.Values) (types.RecordFilter, error) {
	var f types.RecordFilter
	var err error
	if f.Station, err = parseStation(q); err != nil {
		return f, err
	}
	if v := q.Get("date"); v != "" {
		if f.Date, err = parseDate("date", v); err != nil {
			return f, err
		}
		return f, nil
	}
	if v := q.Get("start_date"); v != "" {
		if f.StartDate, err = parseDate("start_date", v); err != nil {
			return f, err
		}
	}
	if v := q.Get("end_date"); v != "" {
		if f.EndDate, err = parseDate("end_date", v); err != nil {
			return f, err
		}
	}
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.StartDate.After(f.EndDate) {
		return f, errors.New("start_date must not be after end_date")
	}
	return f, nil
}

func parseStatFilter(q url.Values) (types.StatFilter, error) {
	var f types.StatFilter
	var err error
	if f.Station, err = parseStation(q); err != nil {
		return f, err
	}
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return f, errors.New("year must be an integer between 1 and 9999")
		}
		f.Year = y
	}
	return f, nil
}

// pageLinks returns the next and previous links for p, keeping every other
// query parameter of the request.
func pageLinks(r *http.Request, p page, count int) (next, previous *string) {
	if p.Number*p.Size < count {
		q := cloneQuery(r.URL.Query())
		q.Set("page", strconv.Itoa(p.Number+1))
		s := utils.AbsoluteURL(r, r.URL.Path, q)
		next = &s
	}
	if p.Number > 1 {
		q := cloneQuery(r.URL.Query())
		if p.Number == 2 {
			q.Del("page")
		} else {
			q.Set("page", strconv.Itoa(p.Number-1))
		}
		s := utils.AbsoluteURL(r, r.URL.Path, q)
		previous = &s
	}
	return next, previous
}

func cloneQuery(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}
