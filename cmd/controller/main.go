// Command controller runs the Controller process (spec.md §4.3): the
// scheduling loop, the inbound client REST surface, the Agent<->Controller
// RPC server, and the admin plane, all against one sqlite database.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/RevCBH/ragweb/internal/adminrpc"
	"github.com/RevCBH/ragweb/internal/agentrpc"
	"github.com/RevCBH/ragweb/internal/config"
	"github.com/RevCBH/ragweb/internal/controller"
	"github.com/RevCBH/ragweb/internal/dag"
	"github.com/RevCBH/ragweb/internal/daemonutil"
	"github.com/RevCBH/ragweb/internal/flags"
	"github.com/RevCBH/ragweb/internal/gitremote"
	"github.com/RevCBH/ragweb/internal/log"
	"github.com/RevCBH/ragweb/internal/model"
	"github.com/RevCBH/ragweb/internal/restapi"
	"github.com/RevCBH/ragweb/internal/store"
	"github.com/RevCBH/ragweb/internal/tracing"
)

var version = "dev"

func main() {
	cmd := &cobra.Command{
		Use:           "controller",
		Short:         "Run the ragweb Controller",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "controller: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadControllerConfig()
	if err != nil {
		return fmt.Errorf("controller: loading config: %w", err)
	}
	log.Configure(cfg.LogLevel)
	logger := log.With("controller")

	jwtSecret := os.Getenv("RAGWEB_JWT_SECRET")
	if jwtSecret == "" {
		return fmt.Errorf("controller: RAGWEB_JWT_SECRET must be set")
	}

	s, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("controller: opening store: %w", err)
	}
	defer s.Close()

	tp := tracing.NewProvider("ragweb-controller", logger)
	defer tp.Shutdown(context.Background())
	tracer := controller.NewTracer(tracing.New("github.com/RevCBH/ragweb/internal/controller"))

	var redisClient *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: addr})
		defer redisClient.Close()
	}
	flagCache := flags.New(s, redisClient)

	weigher := controller.NewWeigher(nil)
	ctrl := controller.New(s, flagCache, tracer, cfg, weigher, logger, nil)

	mirrorDir := os.Getenv("GIT_MIRROR_DIR")
	if mirrorDir == "" {
		mirrorDir = "git-mirrors"
	}
	mirrors := gitremote.NewMirrors(mirrorDir)
	resolver := &dag.Resolver{
		Store:          s,
		Projects:       mirrors,
		Commits:        mirrors,
		KnownBackends:  cfg.Backends,
		AllowedOrgs:    cfg.AllowedGitHubOrgs,
		AllowedDBNames: []model.DatabaseName{model.DatabaseDefault, model.DatabaseIncludeT1OO},
	}

	restServer := restapi.NewServer(resolver, s, flagCache, jwtSecret, cfg.Backends, nil)
	rpcServer := agentrpc.NewServer(s, flagCache, jwtSecret, cfg.Backends, nil)

	router := gin.New()
	router.Use(gin.Recovery())
	restServer.Register(router)
	rpcServer.Register(router)

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: router}

	admin := &adminrpc.Server{
		Role:     "controller",
		Version:  version,
		Jobs:     s,
		Tasks:    s,
		Flags:    flagCache,
		Backends: cfg.Backends,
		Manifest: mirrors,
		Diff:     resolver,
	}
	grpcServer := grpc.NewServer()
	adminrpc.RegisterAdminServiceServer(grpcServer, admin)

	runtimeDir := os.Getenv("RAGWEB_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = "."
	}
	host := daemonutil.NewHost(runtimeDir+"/controller-admin.sock", runtimeDir+"/controller.pid", grpcServer)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(ctx) })
	g.Go(func() error { return host.ListenAndServe(ctx) })
	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- httpServer.ListenAndServe() }()
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		}
	})

	logger.Info().Str("listen_addr", cfg.ListenAddr).Msg("controller started")
	return g.Wait()
}
