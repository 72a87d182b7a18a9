package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veridica/internal/ingest"
	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/store"
)

var ingestURL string

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <project-id> [pdf-path]",
	Short: "Ingest a document into a project's chunk store",
	Long: `Ingest parses the document, splits it into chunks with stable ids, and
stores them without running the rest of the pipeline. Useful for
inspecting what the extractor will see.

Example:
  veridica ingest acme-fm200 ./datasheet.pdf
  veridica ingest acme-fm200 --url https://acme.example/fm200`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "product page URL to ingest")
}

func runIngest(cmd *cobra.Command, args []string) error {
	projectID := args[0]
	if len(args) < 2 && ingestURL == "" {
		return fmt.Errorf("either a pdf path or --url is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.CreateProject(projectID, projectID); err != nil {
		return err
	}
	chunker := ingest.NewChunker(cfg.Chunker.MaxChars, cfg.Chunker.Overlap)

	var chunks []model.Chunk
	if len(args) == 2 {
		pages, err := ingest.ParsePDF(args[1])
		if err != nil {
			return err
		}
		chunks = append(chunks, chunker.ChunkPDF(projectID+"-pdf", filepath.Base(args[1]), pages)...)
	}
	if ingestURL != "" {
		scraper := ingest.NewScraper(cfg.HTTP)
		text, err := scraper.Scrape(context.Background(), ingestURL)
		if err != nil {
			return err
		}
		chunks = append(chunks, chunker.ChunkURL(projectID+"-url", ingestURL, text)...)
	}

	if len(chunks) == 0 {
		return model.ErrEmptyDocument
	}
	if err := st.InsertChunks(projectID, chunks); err != nil {
		return err
	}

	fmt.Printf("✓ Ingested %d chunks into project %s\n", len(chunks), projectID)
	if verbose {
		for _, c := range chunks {
			fmt.Fprintf(os.Stderr, "  %s (%d chars)\n", c.ID, len(c.Text))
		}
	}
	return nil
}
