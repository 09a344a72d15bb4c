package features

import "sort"

// Encoding maps team abbreviations to stable integer codes. Codes are the
// index in the sorted class list, so the same set of teams always encodes
// the same way.
type Encoding struct {
	Classes []string `json:"classes"`
}

// NewEncoding builds an encoding over the distinct non-empty teams
func NewEncoding(teams []string) *Encoding {
	seen := make(map[string]bool, len(teams))
	classes := make([]string, 0, len(teams))
	for _, t := range teams {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		classes = append(classes, t)
	}
	sort.Strings(classes)
	return &Encoding{Classes: classes}
}

// Encode returns the code for team. Unseen teams are not ok.
func (e *Encoding) Encode(team string) (int, bool) {
	if e == nil || team == "" {
		return 0, false
	}
	i := sort.SearchStrings(e.Classes, team)
	if i < len(e.Classes) && e.Classes[i] == team {
		return i, true
	}
	return 0, false
}

// Decode returns the team for code
func (e *Encoding) Decode(code int) (string, bool) {
	if e == nil || code < 0 || code >= len(e.Classes) {
		return "", false
	}
	return e.Classes[code], true
}

// Len is the number of classes
func (e *Encoding) Len() int {
	if e == nil {
		return 0
	}
	return len(e.Classes)
}
