package analyze

import (
	"github.com/shopspring/decimal"

	"wxdata-server/internal/modules/weather/types"
	"wxdata-server/internal/modules/weather/units"
)

const (
	temperaturePlaces   = 1
	precipitationPlaces = 2
)

// Summarize reduces one station-year of observations to its aggregate.
// Missing measurements are left out; a field with no measurement at all is NULL.
func Summarize(station string, yr types.YearRecords) types.Stat {
	var maxTemps, minTemps, precip tally
	for _, r := range yr.Records {
		maxTemps.add(r.MaxTemp)
		minTemps.add(r.MinTemp)
		precip.add(r.Precip)
	}

	stat := types.Stat{Station: station, Year: yr.Year}
	if avg, ok := maxTemps.meanDegreesC(); ok {
		stat.MaxTempAvg = decimal.NewNullDecimal(avg.Round(temperaturePlaces))
	}
	if avg, ok := minTemps.meanDegreesC(); ok {
		stat.MinTempAvg = decimal.NewNullDecimal(avg.Round(temperaturePlaces))
	}
	if precip.n > 0 {
		stat.PrecipTotal = decimal.NewNullDecimal(units.PrecipitationToCm(precip.sum).Round(precipitationPlaces))
	}
	return stat
}

// tally sums the non-missing tenths values of one field.
type tally struct {
	sum int
	n   int
}

func (t *tally) add(tenths int) {
	if units.IsMissing(tenths) {
		return
	}
	t.sum += tenths
	t.n++
}

func (t tally) meanDegreesC() (decimal.Decimal, bool) {
	if t.n == 0 {
		return decimal.Decimal{}, false
	}
	return units.TemperatureToDegreesC(t.sum).Div(decimal.NewFromInt(int64(t.n))), true
}
