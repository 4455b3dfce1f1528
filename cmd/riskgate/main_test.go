package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgate/internal/blackout"
)

func TestPrintWindows(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printWindows(&buf, nil, loc))
	assert.Equal(t, "no blackout windows\n", buf.String())

	buf.Reset()
	start := time.Date(2025, 3, 12, 12, 25, 0, 0, time.UTC)
	require.NoError(t, printWindows(&buf, []blackout.Window{{Start: start, End: start.Add(10 * time.Minute), Label: "USD CPI y/y"}}, loc))
	assert.Contains(t, buf.String(), "2025-03-12 08:25:00")
	assert.Contains(t, buf.String(), "USD CPI y/y")
}

func TestWindowsCommandReadsCalendarFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.yaml")
	future := time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339)
	require.NoError(t, os.WriteFile(path, []byte("events:\n  - title: CPI y/y\n    currency: USD\n    impact: High\n    time: \""+future+"\"\n"), 0o644))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"windows", "--env-file", "", "--calendar-file", path})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "USD CPI y/y")
}

func TestWindowsCommandNeedsSource(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"windows", "--env-file", "", "--calendar-url", "", "--calendar-file", ""})
	assert.Error(t, cmd.Execute())
}
