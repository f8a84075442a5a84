package main

import (
	"context"
	"net"
	"os"
	"os/signal"

	jRPC "github.com/0xPolygon/cdk-rpc/rpc"
	aggkitprover "github.com/agglayer/aggkit-prover"
	"github.com/agglayer/aggkit-prover/config"
	"github.com/agglayer/aggkit-prover/log"
	"github.com/agglayer/aggkit-prover/proofservice"
	"github.com/agglayer/aggkit-prover/prover"
	"github.com/agglayer/aggkit-prover/rpc"
	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func start(cliCtx *cli.Context) error {
	c, err := config.Load(cliCtx)
	if err != nil {
		return err
	}

	log.Init(c.Log)

	if c.Log.Environment == log.EnvironmentDevelopment {
		aggkitprover.PrintVersion(os.Stdout)
		log.Info("Starting application")
	} else if c.Log.Environment == log.EnvironmentProduction {
		logVersion()
	}

	service, err := createProofService(c.ProofService)
	if err != nil {
		log.Fatal(err)
	}

	server := createRPC(c.RPC, service)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal(err)
		}
	}()

	healthServer := runHealthServer(c.Health.Address)
	defer healthServer.GracefulStop()

	waitSignal(nil)

	return nil
}

func logVersion() {
	version := aggkitprover.GetVersion()
	log.Infow("Starting application",
		// node version is already logged by default
		"version", version.Version,
		"gitRevision", version.GitRev,
		"gitBranch", version.GitBranch,
		"goVersion", version.GoVersion,
		"built", version.BuildDate,
		"os/arch", version.OS+"/"+version.Arch,
	)
}

func createProofService(cfg proofservice.Config) (*proofservice.ProofService, error) {
	logger := log.WithFields("module", "proofservice")
	selector, err := cfg.VKeySelector()
	if err != nil {
		return nil, err
	}

	executor := prover.NewExecutor(log.WithFields("module", "prover"), selector, cfg.NetworkID)
	logger.Infof("proving with %s, vkey %s, network %d", executor.Name(), executor.VKeyHash(), cfg.NetworkID)

	return proofservice.New(logger, cfg, executor)
}

func createRPC(cfg jRPC.Config, service rpc.ProofService) *jRPC.Server {
	logger := log.WithFields("module", "rpc")
	services := []jRPC.Service{
		{
			Name: rpc.AGGKIT,
			Service: rpc.NewAggchainProofEndpoints(
				logger,
				cfg.ReadTimeout.Duration,
				service,
			),
		},
	}

	return jRPC.NewServer(cfg, services, jRPC.WithLogger(logger.GetSugaredLogger()))
}

// runHealthServer exposes the standard gRPC health service on addr
func runHealthServer(addr string) *grpc.Server {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("failed to listen on health address %s: %v", addr, err)
	}

	server := grpc.NewServer()
	healthService := health.NewServer()
	healthpb.RegisterHealthServer(server, healthService)
	healthService.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		log.Infof("health server listening on %s", addr)
		if err := server.Serve(listener); err != nil {
			log.Fatal(err)
		}
	}()

	return server
}

func waitSignal(cancelFuncs []context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)

	for sig := range signals {
		switch sig {
		case os.Interrupt, os.Kill:
			log.Info("terminating application gracefully...")

			exitStatus := 0
			for _, cancel := range cancelFuncs {
				cancel()
			}
			os.Exit(exitStatus)
		}
	}
}
