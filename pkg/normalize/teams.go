package normalize

import "strings"

// teamAbbreviations maps full franchise names to abbreviations
var teamAbbreviations = map[string]string{
	"Arizona Diamondbacks":  "ARI",
	"Atlanta Braves":        "ATL",
	"Baltimore Orioles":     "BAL",
	"Boston Red Sox":        "BOS",
	"Chicago White Sox":     "CWS",
	"Chicago Cubs":          "CHC",
	"Cincinnati Reds":       "CIN",
	"Cleveland Guardians":   "CLE",
	"Colorado Rockies":      "COL",
	"Detroit Tigers":        "DET",
	"Houston Astros":        "HOU",
	"Kansas City Royals":    "KC",
	"Los Angeles Angels":    "LAA",
	"Los Angeles Dodgers":   "LAD",
	"Miami Marlins":         "MIA",
	"Milwaukee Brewers":     "MIL",
	"Minnesota Twins":       "MIN",
	"New York Yankees":      "NYY",
	"New York Mets":         "NYM",
	"Oakland Athletics":     "OAK",
	"Athletics":             "OAK",
	"Philadelphia Phillies": "PHI",
	"Pittsburgh Pirates":    "PIT",
	"San Diego Padres":      "SD",
	"San Francisco Giants":  "SF",
	"Seattle Mariners":      "SEA",
	"St. Louis Cardinals":   "STL",
	"Tampa Bay Rays":        "TB",
	"Texas Rangers":         "TEX",
	"Toronto Blue Jays":     "TOR",
	"Washington Nationals":  "WSH",
}

// teamAliases fixes the game log's abbreviations that differ from the
// canonical set
var teamAliases = map[string]string{
	"TBR": "TB",
	"SFG": "SF",
	"KCR": "KC",
	"CHW": "CWS",
	"WSN": "WSH",
	"SDP": "SD",
	"ATH": "OAK",
	"AZ":  "ARI",
}

var knownTeams = func() map[string]bool {
	known := make(map[string]bool, 30)
	for _, abbr := range teamAbbreviations {
		known[abbr] = true
	}
	return known
}()

// CanonicalizeTeam maps a full team name or any known abbreviation variant
// to the canonical abbreviation. Unrecognized input is not ok. Applying it to
// its own output returns the same value.
func CanonicalizeTeam(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", false
	}
	if abbr, ok := teamAbbreviations[name]; ok {
		return abbr, true
	}

	abbr := strings.ToUpper(name)
	if fixed, ok := teamAliases[abbr]; ok {
		abbr = fixed
	}
	if knownTeams[abbr] {
		return abbr, true
	}
	return "", false
}

// KnownTeams returns the number of canonical abbreviations
func KnownTeams() int {
	return len(knownTeams)
}
