package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/veridica/internal/logger"
	"github.com/ppiankov/veridica/internal/queue"
	"github.com/ppiankov/veridica/internal/store"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background pipeline worker",
	Long:  `Worker consumes queued pipeline jobs from redis and executes them.`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
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

	runner, err := buildRunner(cfg, st, log)
	if err != nil {
		return err
	}
	mirror := queue.NewStatusMirror(cfg.Queue, st)
	defer mirror.Close()

	worker := queue.NewWorker(cfg.Queue, runner, mirror, log)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-stop
		log.Info("shutting down", zap.String("signal", sig.String()))
		worker.Shutdown()
	}()

	log.Info("worker started",
		zap.String("redis", cfg.Queue.RedisAddr),
		zap.Int("concurrency", cfg.Queue.Concurrency))
	return worker.Run()
}
