package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/store/loadtest"
)

var benchCmd = &cobra.Command{
	Use:    "bench",
	Hidden: true,
	Short:  "Measure store query latency under concurrent readers",
	Long: `Build a scratch database holding a synthetic project, run concurrent
readers against it and report query latency.

The scratch database lives in a temporary directory and is removed afterwards;
the configured database is never touched. With --write-duration, readers also
run against a writer that keeps re-syncing every story, and the command fails
if any reader observes a partial batch.

Examples:
  # 50 readers, 20 queries each, over 20 epics of 25 stories
  sdlc-lens bench

  # Larger tree, consistency check for 2s, JSON output
  sdlc-lens bench --epics 50 --stories 40 --write-duration 2s --json
`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().Int("epics", 20, "Number of epics in the synthetic project")
	benchCmd.Flags().Int("stories", 25, "Number of stories per epic")
	benchCmd.Flags().Int("readers", 50, "Number of concurrent readers")
	benchCmd.Flags().Int("queries", 20, "Number of queries per reader")
	benchCmd.Flags().Duration("write-duration", 0, "Also run readers against a writer for this long (0 = skip)")
	benchCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(benchCmd)
}

// benchReport is the JSON form of a bench run.
type benchReport struct {
	Documents     int     `json:"documents"`
	Readers       int     `json:"readers"`
	TotalQueries  int     `json:"total_queries"`
	Errors        int     `json:"errors"`
	MinMs         float64 `json:"min_ms"`
	MeanMs        float64 `json:"mean_ms"`
	P50Ms         float64 `json:"p50_ms"`
	P95Ms         float64 `json:"p95_ms"`
	P99Ms         float64 `json:"p99_ms"`
	MaxMs         float64 `json:"max_ms"`
	WriteCheck    string  `json:"write_check,omitempty"`
	WriteDuration string  `json:"write_duration,omitempty"`
}

func runBench(cmd *cobra.Command, args []string) error {
	epics, _ := cmd.Flags().GetInt("epics")
	stories, _ := cmd.Flags().GetInt("stories")
	readers, _ := cmd.Flags().GetInt("readers")
	queries, _ := cmd.Flags().GetInt("queries")
	writeDuration, _ := cmd.Flags().GetDuration("write-duration")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if epics <= 0 || stories <= 0 {
		return fmt.Errorf("--epics and --stories must be positive")
	}
	if readers <= 0 || queries <= 0 {
		return fmt.Errorf("--readers and --queries must be positive")
	}
	if writeDuration < 0 {
		return fmt.Errorf("--write-duration must not be negative")
	}

	dir, err := os.MkdirTemp("", "sdlc-lens-bench-")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)

	f, err := loadtest.NewFixture(filepath.Join(dir, "bench.db"), dir, epics, stories)
	if err != nil {
		return err
	}
	defer f.Close()

	stats, err := f.RunConcurrentReads(readers, queries)
	if err != nil {
		return fmt.Errorf("concurrent reads failed: %w", err)
	}

	report := benchReport{
		Documents:    len(f.Documents),
		Readers:      readers,
		TotalQueries: stats.TotalQueries,
		Errors:       stats.Errors,
		MinMs:        millis(stats.Min),
		MeanMs:       millis(stats.Mean),
		P50Ms:        millis(stats.P50),
		P95Ms:        millis(stats.P95),
		P99Ms:        millis(stats.P99),
		MaxMs:        millis(stats.Max),
	}

	var writeErr error
	if writeDuration > 0 {
		report.WriteDuration = writeDuration.String()
		writeErr = f.VerifyReadsDuringWrites(readers, writeDuration)
		report.WriteCheck = "ok"
		if writeErr != nil {
			report.WriteCheck = writeErr.Error()
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Documents: %d\n", report.Documents)
		fmt.Fprintf(out, "Readers:   %d\n", report.Readers)
		fmt.Fprintf(out, "Latency:   %s\n", stats)
		if writeDuration > 0 {
			fmt.Fprintf(out, "Reads during writes (%s): %s\n", report.WriteDuration, report.WriteCheck)
		}
	}

	if writeErr != nil {
		return errReported
	}
	return nil
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
