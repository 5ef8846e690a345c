package cmd

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/PratikDhanave/machine-events-service/internal/models"
)

type benchOptions struct {
	batches     int
	size        int
	concurrency int
	keys        int
}

func newBenchCommand(g *globalFlags) *cobra.Command {
	o := benchOptions{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run synthetic concurrent batches against the configured store",
		Long: `Generate random batches and ingest them concurrently, then print throughput.

Keys are drawn from a fixed key space so batches collide, exercising the
dedupe and merge paths as well as inserts.

Examples:
  api bench --batches 100 --size 1000
  api bench --batches 50 --size 500 --keys 2000 --concurrency 16`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.batches <= 0 || o.size <= 0 || o.concurrency <= 0 || o.keys <= 0 {
				return fmt.Errorf("--batches, --size, --concurrency and --keys must be positive")
			}
			cfg, err := g.loadConfig()
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

			total, elapsed, err := runBench(ctx, a.coordinator, o)
			if err != nil {
				return err
			}
			stored, err := a.store.Count(ctx)
			if err != nil {
				return fmt.Errorf("count events: %w", err)
			}

			out := cmd.OutOrStdout()
			events := o.batches * o.size
			fmt.Fprintf(out, "batches:    %d x %d events (%d workers)\n", o.batches, o.size, o.concurrency)
			fmt.Fprintf(out, "elapsed:    %s\n", elapsed.Round(time.Millisecond))
			fmt.Fprintf(out, "throughput: %.0f events/s\n", float64(events)/elapsed.Seconds())
			fmt.Fprintf(out, "accepted=%d updated=%d deduped=%d ignored=%d rejected=%d\n",
				total.Accepted, total.Updated, total.Deduped, total.Ignored, total.Rejected)
			fmt.Fprintf(out, "stored:     %d events\n", stored)
			return nil
		},
	}

	cmd.Flags().IntVar(&o.batches, "batches", 20, "number of batches")
	cmd.Flags().IntVar(&o.size, "size", 1000, "events per batch")
	cmd.Flags().IntVar(&o.concurrency, "concurrency", 8, "batches in flight")
	cmd.Flags().IntVar(&o.keys, "keys", 5000, "distinct event ids to draw from")
	return cmd
}

// batchProcessor is satisfied by *ingest.Coordinator.
type batchProcessor interface {
	ProcessBatch(ctx context.Context, events []models.Event) (models.BatchResult, error)
}

func runBench(ctx context.Context, p batchProcessor, o benchOptions) (models.BatchResult, time.Duration, error) {
	var (
		mu    sync.Mutex
		total models.BatchResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	start := time.Now()
	for b := 0; b < o.batches; b++ {
		batch := syntheticBatch(rand.New(rand.NewPCG(uint64(b), 0)), o.size, o.keys)
		g.Go(func() error {
			res, err := p.ProcessBatch(gctx, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			total.Accepted += res.Accepted
			total.Updated += res.Updated
			total.Deduped += res.Deduped
			total.Ignored += res.Ignored
			total.Rejected += res.Rejected
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.BatchResult{}, 0, fmt.Errorf("bench: %w", err)
	}
	return total, time.Since(start), nil
}

func syntheticBatch(r *rand.Rand, size, keys int) []models.Event {
	base := time.Now().UTC().Add(-time.Hour).Truncate(models.TimePrecision)
	batch := make([]models.Event, size)
	for i := range batch {
		defects := r.IntN(5) - 1
		batch[i] = models.Event{
			Key:         fmt.Sprintf("bench-%06d", r.IntN(keys)),
			EventTime:   base.Add(time.Duration(r.IntN(3600)) * time.Second),
			MachineID:   fmt.Sprintf("M-%03d", r.IntN(20)),
			LineID:      fmt.Sprintf("L-%02d", r.IntN(8)),
			DurationMs:  int64(r.IntN(60_000)),
			DefectCount: defects,
		}
	}
	return batch
}
