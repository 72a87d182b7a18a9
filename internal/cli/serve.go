package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/veridica/internal/api"
	"github.com/ppiankov/veridica/internal/logger"
	"github.com/ppiankov/veridica/internal/pipeline"
	"github.com/ppiankov/veridica/internal/queue"
	"github.com/ppiankov/veridica/internal/store"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve starts the REST API. Job submission enqueues work over redis;
run "veridica worker" alongside to execute jobs.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	client := queue.NewClient(cfg.Queue)
	defer client.Close()
	mirror := queue.NewStatusMirror(cfg.Queue, st)
	defer mirror.Close()

	manager := pipeline.NewManager(st, client, log)
	server := api.NewServer(cfg.Server, manager, st, mirror, log)

	log.Info("api listening", zap.String("addr", cfg.Server.Addr))
	return server.Run(cfg.Server.Addr)
}
