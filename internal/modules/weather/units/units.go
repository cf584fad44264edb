// Package units converts the fixed-point integer encodings stored for raw
// observations into natural units.
package units

import "github.com/shopspring/decimal"

// Missing marks a measurement that was not recorded.
const Missing = -9999

// IsMissing reports whether tenths is the missing-measurement sentinel.
func IsMissing(tenths int) bool {
	return tenths == Missing
}

// TemperatureToDegreesC converts tenths of a degree Celsius to degrees Celsius.
func TemperatureToDegreesC(tenths int) decimal.Decimal {
	return decimal.New(int64(tenths), -1)
}

// PrecipitationToCm converts tenths of a millimetre to centimetres.
func PrecipitationToCm(tenths int) decimal.Decimal {
	return decimal.New(int64(tenths), -2)
}
