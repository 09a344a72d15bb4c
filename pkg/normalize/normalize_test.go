package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"kpredict/pkg/models"
)

func TestCanonicalizeInnings(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"6.0", 6},
		{"6", 6},
		{"6.1", 6 + 1.0/3.0},
		{"6.2", 6 + 2.0/3.0},
		{"0.1", 1.0 / 3.0},
		{"5.7", 5},
		{"", 0},
		{"abc", 0},
		{"  4.2 ", 4 + 2.0/3.0},
		{"6.01", 6 + 1.0/3.0},
		{"6.02", 6 + 2.0/3.0},
		{"6.10", 6},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.InDelta(t, tt.want, CanonicalizeInnings(tt.raw), 1e-9)
		})
	}
}

func TestCanonicalizeInningsFractionalPart(t *testing.T) {
	for _, raw := range []string{"0.0", "1.1", "2.2", "7.5", "9.9", "x", "3.", ".2"} {
		v := CanonicalizeInnings(raw)
		frac := v - math.Floor(v)
		ok := math.Abs(frac) < 1e-9 || math.Abs(frac-1.0/3.0) < 1e-9 || math.Abs(frac-2.0/3.0) < 1e-9
		assert.True(t, ok, "fractional part of %q is %v", raw, frac)
	}
}

func TestCanonicalizeTeam(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"New York Yankees", "NYY", true},
		{"Chicago White Sox", "CWS", true},
		{"TBR", "TB", true},
		{"SFG", "SF", true},
		{"KCR", "KC", true},
		{"CHW", "CWS", true},
		{"WSN", "WSH", true},
		{"SDP", "SD", true},
		{"NYY", "NYY", true},
		{"nyy", "NYY", true},
		{"XYZ", "", false},
		{"", "", false},
		{"American League", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := CanonicalizeTeam(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalizeTeamIdempotent(t *testing.T) {
	assert.Equal(t, 30, KnownTeams())

	for _, raw := range []string{"Tampa Bay Rays", "TBR", "AZ", "ATH", "LAD", "Washington Nationals"} {
		first, ok := CanonicalizeTeam(raw)
		assert.True(t, ok)
		second, ok := CanonicalizeTeam(first)
		assert.True(t, ok)
		assert.Equal(t, first, second)
	}
}

func TestCoerceCount(t *testing.T) {
	assert.Equal(t, int64(7), CoerceCount("7").Int64)
	assert.True(t, CoerceCount("0").Valid)
	assert.False(t, CoerceCount("").Valid)
	assert.False(t, CoerceCount("-1").Valid)
	assert.False(t, CoerceCount("2.5").Valid)
	assert.False(t, CoerceCount("N/A").Valid)
}

func TestParsePercent(t *testing.T) {
	v, ok := ParsePercent("23.4%")
	assert.True(t, ok)
	assert.InDelta(t, 0.234, v, 1e-9)

	v, ok = ParsePercent("19.0")
	assert.True(t, ok)
	assert.InDelta(t, 0.19, v, 1e-9)

	_, ok = ParsePercent("")
	assert.False(t, ok)
	_, ok = ParsePercent("120%")
	assert.False(t, ok)
}

func TestHomeAwayFromMarker(t *testing.T) {
	assert.Equal(t, models.Away, HomeAwayFromMarker("@"))
	assert.Equal(t, models.Home, HomeAwayFromMarker(""))
	assert.Equal(t, models.Home, HomeAwayFromMarker("N"))
}
