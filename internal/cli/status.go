package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/pipeline"
	"github.com/ppiankov/veridica/internal/store"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show a pipeline job's state and verification summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	manager := pipeline.NewManager(st, noEnqueue{}, nil)
	job, report, err := manager.Status(args[0])
	if err != nil {
		return err
	}
	printJob(job, report)

	results, err := st.ListVerifications(args[0], "")
	if err != nil {
		return err
	}
	if len(results) > 0 {
		supported, failed := 0, 0
		for _, r := range results {
			if r.Verdict == model.VerdictSupported {
				supported++
			} else {
				failed++
			}
		}
		fmt.Printf("\nverification: %d claims, %d supported, %d flagged\n", len(results), supported, failed)
		if verbose {
			for _, r := range results {
				fmt.Printf("  [%s/%s] %s: %s\n", r.Pass, r.Verdict, r.ClaimID, r.Rationale)
			}
		}
	}
	return nil
}

// noEnqueue is for read-only manager use.
type noEnqueue struct{}

func (noEnqueue) Enqueue(ctx context.Context, jobID string) error {
	return fmt.Errorf("enqueueing not available in status command")
}
