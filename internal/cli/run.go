package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/pipeline"
	"github.com/ppiankov/veridica/internal/queue"
	"github.com/ppiankov/veridica/internal/store"
)

var (
	runURL         string
	runTone        string
	runAudience    string
	runProvider    string
	runModel       string
	runProceed     bool
	runAllowUnsafe bool
	runTimeout     time.Duration
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <project-id> [pdf-path]",
	Short: "Run the full pipeline for one project in-process",
	Long: `Run ingests the document, extracts the fact sheet, audits the sources,
and generates the content drafts, waiting for the result.

Example:
  veridica run acme-fm200 ./datasheet.pdf
  veridica run acme-fm200 ./datasheet.pdf --url https://acme.example/fm200
  veridica run acme-fm200 ./datasheet.pdf --proceed-with-assumptions`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runURL, "url", "", "product page URL to ingest alongside the PDF")
	runCmd.Flags().StringVar(&runTone, "tone", "professional", "content tone (professional, friendly, technical)")
	runCmd.Flags().StringVar(&runAudience, "audience", "engineer", "content audience (engineer, procurement, executive)")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "LLM provider override (openai, anthropic, ollama)")
	runCmd.Flags().StringVar(&runModel, "model", "", "LLM model override")
	runCmd.Flags().BoolVar(&runProceed, "proceed-with-assumptions", false, "generate even when critical facts are missing")
	runCmd.Flags().BoolVar(&runAllowUnsafe, "allow-unsafe", false, "release drafts even when claims fail verification")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Minute, "overall run timeout")
}

func runRun(cmd *cobra.Command, args []string) error {
	projectID := args[0]
	if len(args) < 2 && runURL == "" {
		return fmt.Errorf("either a pdf path or --url is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runProvider != "" {
		cfg.LLM.Provider = runProvider
		cfg.LLM.APIKey = "" // re-resolved for the new provider
		resolveAPIKey(cfg)
	}
	if runModel != "" {
		cfg.LLM.Model = runModel
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	runner, err := buildRunner(cfg, st, nil)
	if err != nil {
		return err
	}
	manager := pipeline.NewManager(st, &queue.SyncEnqueuer{Runner: runner}, nil)

	var pdf []byte
	var filename string
	if len(args) == 2 {
		pdf, err = os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading pdf: %w", err)
		}
		filename = args[1]
	}

	params := model.JobParams{
		URL:                    runURL,
		Tone:                   model.Tone(runTone),
		Audience:               model.Audience(runAudience),
		Provider:               cfg.LLM.Provider,
		Model:                  cfg.LLM.Model,
		ProceedWithAssumptions: runProceed,
		AllowUnsafe:            runAllowUnsafe,
	}

	job, err := manager.StartJob(ctx, projectID, filename, pdf, params)
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	final, report, err := manager.Status(job.JobID)
	if err != nil {
		return err
	}
	printJob(final, report)

	if final.Status == model.StatusFailed {
		return fmt.Errorf("job failed: %s", final.ErrorMessage)
	}
	return nil
}

func resolveAPIKey(cfg *model.Config) {
	if cfg.LLM.APIKey != "" {
		return
	}
	switch cfg.LLM.Provider {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	case "anthropic", "claude":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

func printJob(job *model.PipelineJob, report *model.PreflightReport) {
	fmt.Printf("job:      %s\n", job.JobID)
	fmt.Printf("project:  %s\n", job.ProjectID)
	fmt.Printf("status:   %s\n", job.Status)
	fmt.Printf("stage:    %s (%d%%)\n", job.Stage, job.Progress)
	if job.StageDetail != "" {
		fmt.Printf("detail:   %s\n", job.StageDetail)
	}
	if job.ErrorMessage != "" {
		fmt.Printf("error:    %s\n", job.ErrorMessage)
	}
	if report != nil && len(report.Questions) > 0 {
		fmt.Println("\nMissing facts:")
		for _, q := range report.Questions {
			fmt.Printf("  - %s: %s\n    (%s)\n", q.Field, q.Question, q.WhyNeeded)
		}
		fmt.Println("\nResume with --proceed-with-assumptions, or provide the answers and re-ingest.")
	}
}
