package parser

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	errs "kpredict/pkg/errors"
	"kpredict/pkg/logger"
	"kpredict/pkg/models"
	"kpredict/pkg/normalize"
)

// Table ids on the source pages
const (
	RosterTableID    = "players_standard_pitching"
	TeamRatesTableID = "teams_advanced_batting"
	GameLogTableID   = "pitching_gamelogs"
)

// Positional columns of a game-log row, counted over its td cells
const (
	colDate       = 2
	colHomeAway   = 4
	colOpponent   = 5
	colInnings    = 10
	colEarnedRuns = 13
	colWalks      = 14
	colStrikeouts = 15
	colPitches    = 21

	minGameLogCells = colPitches + 1
	colTeamSOPct    = 5
)

// Parser extracts records from source pages
type Parser struct {
	logger logger.Logger
	// OnSkip is called for every row dropped as malformed
	OnSkip func(err error)
}

// New creates a parser
func New(log logger.Logger) *Parser {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Parser{logger: log.WithField("component", "parser")}
}

func (p *Parser) skip(tableID string, row int, reason string) {
	err := errs.RowSkipped(tableID, row, reason)
	p.logger.WithError(err).Debug("row skipped")
	if p.OnSkip != nil {
		p.OnSkip(err)
	}
}

// findTable locates the table by id, including copies the source ships
// inside HTML comments
func findTable(r io.Reader, id string) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	selector := "table#" + id
	if table := doc.Find(selector).First(); table.Length() > 0 {
		return table, nil
	}

	marker := `id="` + id + `"`
	for _, root := range doc.Nodes {
		for _, comment := range commentNodes(root) {
			if !strings.Contains(comment.Data, marker) {
				continue
			}
			inner, err := goquery.NewDocumentFromReader(strings.NewReader(comment.Data))
			if err != nil {
				continue
			}
			if table := inner.Find(selector).First(); table.Length() > 0 {
				return table, nil
			}
		}
	}

	return nil, errs.TableNotFound(id)
}

func commentNodes(n *html.Node) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.CommentNode {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return found
}

// dataRows yields body rows, dropping the repeated header rows the source
// inserts every few lines
func dataRows(table *goquery.Selection) *goquery.Selection {
	return table.Find("tr").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return !s.HasClass("thead") && !s.HasClass("over_header") && s.ParentsFiltered("thead").Length() == 0
	})
}

// isAggregate reports league or season summary rows, which are never data
func isAggregate(label string) bool {
	return strings.Contains(label, "Total") || strings.Contains(label, "League Average") || label == "Tm"
}

func cellText(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

// ParseRoster extracts (name, id) pairs from the league pitching page. A
// player listed more than once (traded mid-season) is returned once.
func (p *Parser) ParseRoster(r io.Reader) ([]models.Player, error) {
	table, err := findTable(r, RosterTableID)
	if err != nil {
		return nil, err
	}

	var players []models.Player
	seen := make(map[string]bool)

	dataRows(table).Each(func(i int, row *goquery.Selection) {
		link := row.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			return strings.Contains(href, "/players/")
		}).First()

		if link.Length() == 0 {
			if label := cellText(row); label != "" && !isAggregate(label) {
				p.skip(RosterTableID, i, "no player link")
			}
			return
		}

		href, _ := link.Attr("href")
		id := strings.TrimSuffix(path.Base(href), ".shtml")
		name := cellText(link)
		if id == "" || id == "." || name == "" {
			p.skip(RosterTableID, i, "empty player link")
			return
		}
		if seen[id] {
			return
		}
		seen[id] = true
		players = append(players, models.Player{Name: name, ID: id})
	})

	p.logger.DebugWithFields("roster parsed", map[string]interface{}{
		"players": len(players),
	})
	return players, nil
}

// ParseTeamRates extracts each team's strikeout rate from the league
// advanced-batting page. Teams whose name cannot be mapped to a known
// abbreviation are skipped.
func (p *Parser) ParseTeamRates(r io.Reader) ([]models.TeamKRate, error) {
	table, err := findTable(r, TeamRatesTableID)
	if err != nil {
		return nil, err
	}

	var rates []models.TeamKRate
	dataRows(table).Each(func(i int, row *goquery.Selection) {
		nameCell := row.Find(`th[data-stat="team_name"]`).First()
		if nameCell.Length() == 0 {
			return
		}
		name := cellText(nameCell)
		if name == "" || isAggregate(name) {
			return
		}

		cells := row.Find("td")
		if cells.Length() <= colTeamSOPct {
			p.skip(TeamRatesTableID, i, "too few cells")
			return
		}

		team, ok := normalize.CanonicalizeTeam(name)
		if !ok {
			p.skip(TeamRatesTableID, i, fmt.Sprintf("unknown team %q", name))
			return
		}
		rate, ok := normalize.ParsePercent(cellText(cells.Eq(colTeamSOPct)))
		if !ok {
			p.skip(TeamRatesTableID, i, "bad SO% value")
			return
		}
		rates = append(rates, models.TeamKRate{Team: team, OpponentKRate: rate})
	})

	return rates, nil
}

// ParseGameLog extracts one pitcher's appearances. Opponents outside the
// known abbreviations are kept as missing. Numeric fields that do not parse
// are stored as NULL.
func (p *Parser) ParseGameLog(r io.Reader, player string) ([]models.PitcherGameRecord, error) {
	table, err := findTable(r, GameLogTableID)
	if err != nil {
		return nil, err
	}

	var records []models.PitcherGameRecord
	dataRows(table).Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 || isAggregate(cellText(row.Find("th").First())) {
			return
		}
		if cells.Length() < minGameLogCells {
			p.skip(GameLogTableID, i, fmt.Sprintf("%d cells, need %d", cells.Length(), minGameLogCells))
			return
		}

		date := cellText(cells.Eq(colDate))
		if date == "" {
			p.skip(GameLogTableID, i, "empty date")
			return
		}
		if isAggregate(date) {
			return
		}

		opponent, _ := normalize.CanonicalizeTeam(cellText(cells.Eq(colOpponent)))

		records = append(records, models.PitcherGameRecord{
			Player:         player,
			Date:           date,
			HomeAway:       normalize.HomeAwayFromMarker(cellText(cells.Eq(colHomeAway))),
			Opponent:       opponent,
			InningsPitched: cellText(cells.Eq(colInnings)),
			EarnedRuns:     normalize.CoerceCount(cellText(cells.Eq(colEarnedRuns))),
			Strikeouts:     normalize.CoerceCount(cellText(cells.Eq(colStrikeouts))),
			Walks:          normalize.CoerceCount(cellText(cells.Eq(colWalks))),
			PitchCount:     normalize.CoerceCount(cellText(cells.Eq(colPitches))),
		})
	})

	return records, nil
}
