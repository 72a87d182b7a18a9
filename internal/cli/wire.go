package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/veridica/internal/extract"
	"github.com/ppiankov/veridica/internal/generate"
	"github.com/ppiankov/veridica/internal/ingest"
	"github.com/ppiankov/veridica/internal/llm"
	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/pipeline"
	"github.com/ppiankov/veridica/internal/store"
	"github.com/ppiankov/veridica/internal/verify"
)

// loadConfig merges defaults, the config file, and VERIDICA_* env vars.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "ollama":
			if base := os.Getenv("OLLAMA_BASE_URL"); base != "" {
				cfg.LLM.BaseURL = base
			}
		}
	}
	return cfg, nil
}

// buildRunner wires a pipeline runner from the configuration. The cached
// chunk view backs verification, where the same chunk is resolved once
// per claim that cites it.
func buildRunner(cfg *model.Config, st *store.Store, log *zap.Logger) (*pipeline.Runner, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, err
	}

	var judge verify.Judge
	switch cfg.Verify.Judge {
	case "", "llm":
		judge = verify.NewLLMJudge(provider, cfg.LLM.MaxAttempts)
	case "lexical":
		judge = verify.NewLexicalJudge()
	default:
		return nil, fmt.Errorf("unknown verify judge: %s (supported: llm, lexical)", cfg.Verify.Judge)
	}

	cachedChunks := store.NewCachedChunks(st, 10*time.Minute)
	verifier := verify.New(cachedChunks, judge,
		cfg.Verify.Workers, cfg.Verify.RequestsPerSecond, cfg.Verify.Burst)

	extractor := extract.New(provider, cfg.LLM.MaxAttempts)
	generator := generate.NewGenerator(provider, st, cfg.LLM.MaxAttempts)
	chunker := ingest.NewChunker(cfg.Chunker.MaxChars, cfg.Chunker.Overlap)
	scraper := ingest.NewScraper(cfg.HTTP)

	return pipeline.NewRunner(st, scraper, chunker, extractor, verifier, generator, log), nil
}
