package controller

import (
	"github.com/shopspring/decimal"

	"wxdata-server/internal/modules/weather/types"
	"wxdata-server/internal/modules/weather/units"
)

// pageResponse is the paginated list envelope.
type pageResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

type recordResponse struct {
	ID      int64  `json:"id"`
	Station string `json:"station"`
	Date    string `json:"date"`
	MaxTemp int    `json:"max_temp"`
	MinTemp int    `json:"min_temp"`
	Precip  int    `json:"precip"`

	// Natural units; null when the measurement is missing.
	MaxTempC *string `json:"max_temp_c"`
	MinTempC *string `json:"min_temp_c"`
	PrecipCm *string `json:"precip_cm"`
}

type statResponse struct {
	ID          int64   `json:"id"`
	Station     string  `json:"station"`
	Year        int     `json:"year"`
	MaxTempAve  *string `json:"max_temp_ave"`
	MinTempAve  *string `json:"min_temp_ave"`
	PrecipTotal *string `json:"precip_total"`
}

func newRecordResponse(r types.Record) recordResponse {
	return recordResponse{
		ID:       r.ID,
		Station:  r.Station,
		Date:     r.Date.Format(types.DateLayout),
		MaxTemp:  r.MaxTemp,
		MinTemp:  r.MinTemp,
		Precip:   r.Precip,
		MaxTempC: convert(r.MaxTemp, units.TemperatureToDegreesC, 1),
		MinTempC: convert(r.MinTemp, units.TemperatureToDegreesC, 1),
		PrecipCm: convert(r.Precip, units.PrecipitationToCm, 2),
	}
}

func newStatResponse(s types.Stat) statResponse {
	return statResponse{
		ID:          s.ID,
		Station:     s.Station,
		Year:        s.Year,
		MaxTempAve:  fixed(s.MaxTempAvg, 1),
		MinTempAve:  fixed(s.MinTempAvg, 1),
		PrecipTotal: fixed(s.PrecipTotal, 2),
	}
}

func convert(tenths int, fn func(int) decimal.Decimal, places int32) *string {
	if units.IsMissing(tenths) {
		return nil
	}
	s := fn(tenths).StringFixed(places)
	return &s
}

func fixed(d decimal.NullDecimal, places int32) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(places)
	return &s
}
