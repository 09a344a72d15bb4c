package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevColor := Output, colorEnabled
	Output = &buf
	t.Cleanup(func() {
		Output = prevOut
		colorEnabled = prevColor
	})
	return &buf
}

func TestPrintWithoutColor(t *testing.T) {
	buf := capture(t)
	SetColor(false)

	PrintInfo("Season", "2024")
	PrintError("Scrape failed", errors.New("boom"))
	PrintWarning("No team rates")
	PrintSuccess("done")

	assert.Equal(t, "Season: 2024\nScrape failed: boom\nNo team rates\ndone\n", buf.String())
}

func TestPrintWithColor(t *testing.T) {
	buf := capture(t)
	SetColor(true)

	PrintSuccess("ok")
	assert.Equal(t, "\033[32mok\033[0m\n", buf.String())
}

func TestBar(t *testing.T) {
	assert.Equal(t, "[██░░] 1/2", Bar(1, 2, 4))
	assert.Equal(t, "[░░░░] 0/0", Bar(0, 0, 4))
	assert.Equal(t, "[████] 5/3", Bar(5, 3, 4))
}

func TestStatusTracker(t *testing.T) {
	buf := capture(t)
	SetColor(false)

	st := NewStatusTracker(4)
	st.StartTime = time.Now().Add(-time.Minute)
	st.Record(1, 4, true)
	st.Record(2, 4, false)

	assert.Equal(t, 2, st.Done)
	assert.Equal(t, 1, st.Failed)
	assert.InDelta(t, 2.0, st.Rate(), 0.1)

	st.PrintProgress()
	assert.Contains(t, buf.String(), "[INGEST] [██████████░░░░░░░░░░] 2/4 failed: 1")
}
