// Package ringsize maps finger measurements onto the standard US, UK and EU
// ring size systems.
package ringsize

import (
	"math"
	"strings"
)

// MaxMatchDistanceMm is the largest circumference gap accepted as a match.
const MaxMatchDistanceMm = 5.0

// Entry is one row of the size table.
type Entry struct {
	US              float64 `json:"us" msgpack:"us"`
	UK              string  `json:"uk" msgpack:"uk"`
	EU              int     `json:"eu" msgpack:"eu"`
	DiameterMm      float64 `json:"diameter_mm" msgpack:"diameter_mm"`
	CircumferenceMm float64 `json:"circumference_mm" msgpack:"circumference_mm"`
}

var table = [...]Entry{
	{3, "F", 44, 14.0, 44.0},
	{3.5, "G", 45, 14.4, 45.2},
	{4, "H", 47, 14.9, 46.8},
	{4.5, "I", 48, 15.3, 48.0},
	{5, "J", 49, 15.7, 49.3},
	{5.5, "K", 51, 16.1, 50.6},
	{6, "L", 52, 16.5, 51.9},
	{6.5, "M", 53, 16.9, 53.1},
	{7, "N", 54, 17.3, 54.4},
	{7.5, "O", 56, 17.7, 55.7},
	{8, "P", 57, 18.1, 57.0},
	{8.5, "Q", 58, 18.5, 58.3},
	{9, "R", 60, 19.0, 59.5},
	{9.5, "S", 61, 19.4, 60.8},
	{10, "T", 62, 19.8, 62.1},
	{10.5, "U", 64, 20.2, 63.4},
	{11, "V", 65, 20.6, 64.6},
	{11.5, "W", 66, 21.0, 65.9},
	{12, "X", 68, 21.4, 67.2},
	{12.5, "Y", 69, 21.8, 68.5},
	{13, "Z", 70, 22.2, 69.7},
}

// Table returns a copy of the size table, smallest first.
func Table() []Entry {
	out := make([]Entry, len(table))
	copy(out, table[:])
	return out
}

// FromCircumference returns the entry with the nearest circumference. It
// reports false when the nearest entry is more than MaxMatchDistanceMm away.
func FromCircumference(mm float64) (Entry, bool) {
	if math.IsNaN(mm) {
		return Entry{}, false
	}
	best := 0
	bestDiff := math.Abs(mm - table[0].CircumferenceMm)
	for i := 1; i < len(table); i++ {
		if d := math.Abs(mm - table[i].CircumferenceMm); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	if bestDiff > MaxMatchDistanceMm {
		return Entry{}, false
	}
	return table[best], true
}

// FromDiameter looks up the size for an inner diameter.
func FromDiameter(mm float64) (Entry, bool) {
	return FromCircumference(mm * math.Pi)
}

// ByUS finds the entry for a US size.
func ByUS(us float64) (Entry, bool) {
	for _, e := range table {
		if e.US == us {
			return e, true
		}
	}
	return Entry{}, false
}

// ByUK finds the entry for a UK letter, case-insensitively.
func ByUK(uk string) (Entry, bool) {
	uk = strings.ToUpper(strings.TrimSpace(uk))
	for _, e := range table {
		if e.UK == uk {
			return e, true
		}
	}
	return Entry{}, false
}

// ByEU finds the entry for an EU size.
func ByEU(eu int) (Entry, bool) {
	for _, e := range table {
		if e.EU == eu {
			return e, true
		}
	}
	return Entry{}, false
}

// AdjustForBandWidth raises a US size by a quarter size for every 2mm of
// band width above 2mm, rounded to the nearest half size.
func AdjustForBandWidth(us, bandWidthMm float64) float64 {
	if bandWidthMm <= 2 {
		return us
	}
	adj := (bandWidthMm - 2) / 2 * 0.25
	return math.Round((us+adj)*2) / 2
}

// BandWidthAdvice returns fit guidance for a band width.
func BandWidthAdvice(bandWidthMm float64) string {
	switch {
	case bandWidthMm <= 2:
		return "Thin bands (2mm or less) typically fit true to size."
	case bandWidthMm <= 4:
		return "Medium bands may require going up 0.25 size for comfort."
	case bandWidthMm <= 6:
		return "Wide bands often need 0.25-0.5 size larger."
	default:
		return "Very wide bands (over 6mm) may need 0.5-1 full size larger."
	}
}

// Plausibility checks for manually entered values.

func ValidDiameter(mm float64) bool      { return mm >= 14 && mm <= 23 }
func ValidCircumference(mm float64) bool { return mm >= 44 && mm <= 72 }
func ValidUS(us float64) bool            { return us >= 3 && us <= 13 }
func ValidEU(eu float64) bool            { return eu >= 44 && eu <= 70 }
