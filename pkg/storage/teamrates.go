package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"kpredict/pkg/models"
	"kpredict/pkg/normalize"
)

var teamRatesHeader = []string{"team", "opponent_k_rate"}

// WriteTeamRates saves the team-rate table as CSV. The file is written to a
// temporary path first and renamed into place.
func WriteTeamRates(path string, rates []models.TeamKRate) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	tempFile := path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	err = writeTeamRates(out, rates)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write team rates: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

func writeTeamRates(w io.Writer, rates []models.TeamKRate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(teamRatesHeader); err != nil {
		return err
	}

	sorted := append([]models.TeamKRate(nil), rates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Team < sorted[j].Team })

	for _, r := range sorted {
		if err := cw.Write([]string{r.Team, strconv.FormatFloat(r.OpponentKRate, 'f', -1, 64)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTeamRates loads a team-rate CSV into a map keyed by canonical
// abbreviation. Rows with an unparseable rate are ignored.
func ReadTeamRates(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open team rates: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read team rates: %w", err)
	}

	rates := make(map[string]float64, len(records))
	for i, rec := range records {
		if len(rec) < 2 {
			continue
		}
		if i == 0 && strings.EqualFold(strings.TrimSpace(rec[0]), teamRatesHeader[0]) {
			continue
		}
		team := strings.TrimSpace(rec[0])
		if canonical, ok := normalize.CanonicalizeTeam(team); ok {
			team = canonical
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			continue
		}
		rates[team] = rate
	}
	return rates, nil
}
