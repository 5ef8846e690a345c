package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/machine-events-service/internal/ingest"
	"github.com/PratikDhanave/machine-events-service/internal/models"
	"github.com/PratikDhanave/machine-events-service/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("CONFIG_FILE", "")

	cmd := newRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expected    string
		expectError bool
	}{
		{name: "help flag", args: []string{"--help"}, expected: "Machine events service"},
		{name: "version", args: []string{"version"}, expected: "machine-events-service dev"},
		{name: "invalid flag", args: []string{"--invalid-flag"}, expected: "unknown flag: --invalid-flag", expectError: true},
		{name: "ingest needs a file", args: []string{"ingest"}, expected: "accepts 1 arg", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if tt.expectError {
				require.Error(t, err)
				out += err.Error()
			} else {
				require.NoError(t, err)
			}
			assert.Contains(t, out, tt.expected)
		})
	}
}

func TestIngestCommand(t *testing.T) {
	eventTime := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	body := `[
	  {"eventId":"E-1","eventTime":"` + eventTime + `","machineId":"M-1","durationMs":100,"defectCount":0},
	  {"eventId":"E-1","eventTime":"` + eventTime + `","machineId":"M-1","durationMs":100,"defectCount":0},
	  {"eventId":"E-2","eventTime":"` + eventTime + `","machineId":"M-1","durationMs":99999999,"defectCount":0}
	]`
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	out, err := execute(t, "ingest", path)
	require.NoError(t, err)

	var res models.BatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, 1, res.Accepted)
	assert.Equal(t, 1, res.Deduped)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, "INVALID_DURATION", res.Rejections[0].Reason)
}

func TestReadBatchFile(t *testing.T) {
	events, err := readBatchFile("-", strings.NewReader(`[{"eventId":"a","machineId":"m","eventTime":"2026-01-01T00:00:00+02:00"}]`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].EventTime.Equal(time.Date(2025, 12, 31, 22, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, events[0].EventTime.Location())

	_, err = readBatchFile("-", strings.NewReader(`[]`))
	assert.Error(t, err)

	_, err = readBatchFile("-", strings.NewReader(`{"eventId":"a"}`))
	assert.Error(t, err)

	_, err = readBatchFile(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)
}

func TestRunBench(t *testing.T) {
	st := store.NewMemoryStore(8)
	coord := ingest.NewCoordinator(st)

	total, elapsed, err := runBench(context.Background(), coord, benchOptions{batches: 6, size: 50, concurrency: 3, keys: 40})
	require.NoError(t, err)
	assert.Positive(t, elapsed)

	n, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, n, int64(40))
	// Concurrent batches may both insert a fresh key; the later write wins.
	assert.GreaterOrEqual(t, total.Accepted, int(n))
	assert.Zero(t, total.Rejected)
}

func TestBenchCommandRejectsBadFlags(t *testing.T) {
	_, err := execute(t, "bench", "--batches", "0")
	assert.Error(t, err)
}
