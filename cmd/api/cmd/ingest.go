package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/machine-events-service/internal/models"
)

func newIngestCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.json>",
		Short: "Ingest a batch of events from a JSON file",
		Long: `Process a JSON array of events as one batch against the configured store
and print the batch result. Use "-" to read from stdin.

The file uses the POST /events/batch payload:
[
  {"eventId": "E-1", "eventTime": "2026-01-15T10:00:00Z", "machineId": "M-001",
   "durationMs": 1200, "defectCount": 0}
]

Examples:
  api ingest events.json
  STORE_DRIVER=postgres DB_URL=postgres://... api ingest events.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			events, err := readBatchFile(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.store.Close()

			res, err := a.coordinator.ProcessBatch(ctx, events)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", args[0], err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}

func readBatchFile(path string, stdin io.Reader) ([]models.Event, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var req []models.EventIngestRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(req) == 0 {
		return nil, fmt.Errorf("%s: batch must contain at least one event", path)
	}

	events := make([]models.Event, 0, len(req))
	for _, r := range req {
		events = append(events, r.ToEvent())
	}
	return events, nil
}
