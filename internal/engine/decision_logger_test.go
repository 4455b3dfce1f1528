package engine

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgate/internal/ledger"
)

func TestDecisionLoggerAppendsNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.ndjson")
	logger, err := NewDecisionLogger(path, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", logger.RunID())

	entry := 100.0
	logger.Append(Decision{RunID: "run-1", Timestamp: time.Unix(0, 0).UTC(), Symbol: "MES", Signal: "buy", Result: "accepted", Position: ledger.Long, EntryPrice: &entry})
	logger.Append(Decision{RunID: "run-1", Symbol: "MES", Signal: "buy", Result: "rejected", Reason: "duplicate"})
	require.NoError(t, logger.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "LONG", lines[0]["position"])
	assert.Equal(t, 100.0, lines[0]["entry_price"])
	assert.Equal(t, "duplicate", lines[1]["reason"])
	assert.Nil(t, lines[1]["entry_price"])
}
