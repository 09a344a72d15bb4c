package fetcher

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultBaseURL is the source site
const DefaultBaseURL = "https://www.baseball-reference.com"

// Endpoints builds the source URLs for one base URL
type Endpoints struct {
	BaseURL string
}

func (e Endpoints) base() string {
	if e.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(e.BaseURL, "/")
}

// TeamBattingURL is the league advanced-batting page with team SO%
func (e Endpoints) TeamBattingURL(season int) string {
	return fmt.Sprintf("%s/leagues/majors/%d-advanced-batting.shtml", e.base(), season)
}

// PitchingRosterURL is the league standard-pitching page listing every pitcher
func (e Endpoints) PitchingRosterURL(season int) string {
	return fmt.Sprintf("%s/leagues/majors/%d-standard-pitching.shtml", e.base(), season)
}

// GameLogURL is one pitcher's season game log
func (e Endpoints) GameLogURL(playerID string, season int) string {
	params := url.Values{}
	params.Set("id", playerID)
	params.Set("t", "p")
	params.Set("year", strconv.Itoa(season))
	return fmt.Sprintf("%s/players/gl.fcgi?%s", e.base(), params.Encode())
}
