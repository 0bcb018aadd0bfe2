// Command agent runs the Agent process (spec.md §4.4): polls the
// Controller for active tasks, drives each through its ExecutorAPI
// lifecycle, and serves DBSTATUS probes off an asynq worker pool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/RevCBH/ragweb/internal/adminrpc"
	"github.com/RevCBH/ragweb/internal/agent"
	"github.com/RevCBH/ragweb/internal/agentrpc"
	"github.com/RevCBH/ragweb/internal/config"
	"github.com/RevCBH/ragweb/internal/daemonutil"
	"github.com/RevCBH/ragweb/internal/executor"
	"github.com/RevCBH/ragweb/internal/log"
)

var version = "dev"

func main() {
	cmd := &cobra.Command{
		Use:           "agent",
		Short:         "Run a ragweb Agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "agent: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadAgentConfig()
	if err != nil {
		return fmt.Errorf("agent: loading config: %w", err)
	}
	log.Configure(cfg.LogLevel)
	logger := log.With("agent")

	client := agentrpc.NewClient(cfg.TaskAPIEndpoint, cfg.Backend, cfg.TaskAPIToken)

	factory, err := executor.NewDockerFactory()
	if err != nil {
		return fmt.Errorf("agent: detecting container runtime: %w", err)
	}

	secrets := agent.ConfiguredSecrets{URLs: cfg.DatabaseURLs}

	var dbQueue *agent.DBStatusQueue
	var asynqServer *asynq.Server
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		dbQueue = agent.NewDBStatusQueue(redisAddr, factory.Runtime)
		defer dbQueue.Close()
		asynqServer = asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{Concurrency: 4})
		if err := asynqServer.Start(dbQueue.Mux()); err != nil {
			return fmt.Errorf("agent: starting dbstatus worker: %w", err)
		}
		defer asynqServer.Shutdown()
	}

	a := agent.New(client, factory, secrets, cfg.WorkspaceRoot, dbQueue, logger, nil)

	admin := &adminrpc.Server{
		Role:    "agent",
		Version: version,
		Counter: a,
	}
	grpcServer := grpc.NewServer()
	adminrpc.RegisterAdminServiceServer(grpcServer, admin)

	runtimeDir := os.Getenv("RAGWEB_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = "."
	}
	host := daemonutil.NewHost(
		runtimeDir+"/agent-"+cfg.Backend+"-admin.sock",
		runtimeDir+"/agent-"+cfg.Backend+".pid",
		grpcServer,
	)

	interval := cfg.StatsPollInterval
	if interval <= 0 {
		interval = time.Second
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Run(ctx, interval) })
	g.Go(func() error { return host.ListenAndServe(ctx) })

	logger.Info().Str("backend", cfg.Backend).Str("task_api_endpoint", cfg.TaskAPIEndpoint).Msg("agent started")
	return g.Wait()
}
