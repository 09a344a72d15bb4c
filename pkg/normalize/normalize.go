// Package normalize converts raw cell text scraped from the source into
// canonical values. Nothing here returns an error: malformed input degrades
// to a missing value.
package normalize

import (
	"database/sql"
	"math"
	"strconv"
	"strings"

	"kpredict/pkg/models"
)

// CanonicalizeInnings converts the fractional-outs notation ("6.1" is six
// innings and one out) to a decimal. A fraction whose integer value is not 1
// or 2 contributes nothing. Malformed input falls back to its whole-number part,
// or 0 when nothing parses.
func CanonicalizeInnings(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	whole, frac, _ := strings.Cut(raw, ".")
	w, err := strconv.Atoi(whole)
	if err != nil || w < 0 {
		if f, ferr := strconv.ParseFloat(raw, 64); ferr == nil && f > 0 && !math.IsInf(f, 0) {
			return math.Floor(f)
		}
		return 0
	}

	// the fraction counts outs, so "6.01" is 6 1/3
	outs, _ := strconv.Atoi(frac)
	switch outs {
	case 1:
		return float64(w) + 1.0/3.0
	case 2:
		return float64(w) + 2.0/3.0
	default:
		return float64(w)
	}
}

// CoerceNumeric parses a numeric cell. Empty or non-numeric text is not ok.
func CoerceNumeric(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// CoerceCount parses a non-negative whole count (strikeouts, walks, pitches).
// Anything else is reported as NULL.
func CoerceCount(raw string) sql.NullInt64 {
	v, ok := CoerceNumeric(raw)
	if !ok || v < 0 || v != math.Trunc(v) {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(v), Valid: true}
}

// ParsePercent converts "23.4%" (or "23.4") to 0.234.
func ParsePercent(raw string) (float64, bool) {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "%")
	v, ok := CoerceNumeric(raw)
	if !ok || v < 0 || v > 100 {
		return 0, false
	}
	return v / 100, true
}

// HomeAwayFromMarker maps the game log's venue column: "@" means away.
func HomeAwayFromMarker(raw string) models.HomeAway {
	if strings.TrimSpace(raw) == "@" {
		return models.Away
	}
	return models.Home
}
