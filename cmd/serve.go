package cmd

import (
	"context"
	"log"

	"github.com/bombsimon/logrusr/v2"
	"github.com/equinix-labs/otel-init-go/otelinit"
	"github.com/metal-toolbox/inventory/internal/app"
	"github.com/metal-toolbox/inventory/internal/events"
	"github.com/metal-toolbox/inventory/internal/ingest"
	"github.com/metal-toolbox/inventory/internal/metrics"
	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/metal-toolbox/inventory/internal/server"
	"github.com/metal-toolbox/inventory/internal/store"
	"github.com/metal-toolbox/inventory/internal/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

var cmdServe = &cobra.Command{
	Use:   "serve",
	Short: "Run the inventory API to ingest snapshots and serve the asset register",
	Run: func(cmd *cobra.Command, _ []string) {
		runServer(cmd.Context())
	},
}

// serve command flags
var (
	serveListen    string
	serveStoreKind string
	serveDBPath    string
)

func runServer(ctx context.Context) {
	inventory, err := app.New(ctx, model.AppKindServer, cfgFile, logLevel)
	if err != nil {
		log.Fatal(err)
	}

	cfg := &inventory.Config.Server
	overrideServerFlags(cfg)

	// route otel internal logs through the app logger
	otel.SetLogger(logrusr.New(inventory.Logger))

	ctx, otelShutdown := otelinit.InitOpenTelemetry(ctx, model.AppName)
	defer otelShutdown(ctx)

	// serve metrics endpoint
	metrics.ListenAndServe(cfg.MetricsListen, inventory.Logger)
	version.ExportBuildInfoMetric()

	// Setup cancel context with cancel func.
	ctx, cancelFunc := context.WithCancel(ctx)

	// routine listens for termination signal and cancels the context
	go func() {
		<-inventory.TermCh
		inventory.Logger.Info("got TERM signal, exiting...")
		cancelFunc()
	}()

	repository, err := store.New(ctx, cfg.StoreKind, cfg.DBPath, inventory.Logger)
	if err != nil {
		inventory.Logger.Fatal(err)
	}
	defer repository.Close()

	publisher := initPublisher(cfg, inventory.Logger)
	defer publisher.Close()

	svc := ingest.New(
		repository,
		inventory.Logger,
		ingest.WithPublisher(publisher),
		ingest.WithTerminalDecommissioned(cfg.TerminalDecommissioned),
	)

	options := []server.Option{}

	if cfg.OIDC.Enabled {
		verifier, err := server.NewVerifier(ctx, &cfg.OIDC)
		if err != nil {
			inventory.Logger.Fatal(err)
		}

		options = append(options, server.WithVerifier(verifier))
	}

	inventory.Logger.WithFields(logrus.Fields{
		"store":   cfg.StoreKind,
		"events":  cfg.Nats.URL != "",
		"auth":    cfg.OIDC.Enabled,
		"version": version.Current().AppVersion,
	}).Info("inventory server starting")

	if err := server.New(svc, inventory.Logger, options...).ListenAndServe(ctx, cfg.Listen); err != nil {
		inventory.Logger.WithError(err).Error("inventory server exited")
	}
}

func overrideServerFlags(cfg *app.ServerOptions) {
	if serveListen != "" {
		cfg.Listen = serveListen
	}

	if serveStoreKind != "" {
		cfg.StoreKind = model.StoreKind(serveStoreKind)
	}

	if serveDBPath != "" {
		cfg.DBPath = serveDBPath
	}
}

// initPublisher returns the NATS publisher, or a no-op one when no URL is configured.
func initPublisher(cfg *app.ServerOptions, logger *logrus.Logger) events.Publisher {
	if cfg.Nats.URL == "" {
		return events.Noop{}
	}

	publisher, err := events.NewNATS(&events.Options{
		URL:            cfg.Nats.URL,
		CredsFile:      cfg.Nats.CredsFile,
		SubjectPrefix:  cfg.Nats.SubjectPrefix,
		ConnectTimeout: cfg.Nats.ConnectTimeout,
	}, logger)
	if err != nil {
		logger.Fatal(err)
	}

	return publisher
}

func init() {
	cmdServe.PersistentFlags().StringVar(&serveListen, "listen", "", "API listen address, overrides server.listen")
	cmdServe.PersistentFlags().StringVar(&serveStoreKind, "store", "", "asset store - sqlite, memory, overrides server.store")
	cmdServe.PersistentFlags().StringVar(&serveDBPath, "db", "", "SQLite database path, overrides server.db_path")

	rootCmd.AddCommand(cmdServe)
}
