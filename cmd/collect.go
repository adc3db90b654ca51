package cmd

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/metal-toolbox/inventory/internal/app"
	"github.com/metal-toolbox/inventory/internal/collector"
	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/metal-toolbox/inventory/internal/probe"
	"github.com/metal-toolbox/inventory/internal/store"
	"github.com/metal-toolbox/inventory/internal/transport"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type collectFlags struct {
	dryRun   bool
	format   string
	endpoint string
	attempts int
}

var (
	collectFlagSet = &collectFlags{}
)

var cmdCollect = &cobra.Command{
	Use:   "collect",
	Short: "Collect the inventory of this host and send it to the inventory API",
	Run: func(cmd *cobra.Command, _ []string) {
		runCollect(cmd.Context())
	},
}

func runCollect(ctx context.Context) {
	agent, err := app.New(ctx, model.AppKindAgent, cfgFile, logLevel)
	if err != nil {
		log.Fatal(err)
	}

	cfg := &agent.Config.Agent

	if collectFlagSet.endpoint != "" {
		cfg.Endpoint = collectFlagSet.endpoint
	}

	if collectFlagSet.attempts > 0 {
		cfg.Attempts = collectFlagSet.attempts
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	go func() {
		<-agent.TermCh
		agent.Logger.Info("got TERM signal, exiting...")
		cancelFunc()
	}()

	builder := collector.New(
		probe.New(),
		collector.Options{
			Hostname:       cfg.Hostname,
			Placeholder:    cfg.Placeholder,
			NotApplicable:  cfg.NotApplicable,
			SoftwareLimit:  cfg.SoftwareLimit,
			SoftwareMarker: cfg.SoftwareMarker,
			ProbeTimeout:   cfg.ProbeTimeout,
		},
		agent.Logger,
	)

	if collectFlagSet.dryRun {
		printSnapshot(builder.BuildSnapshot(ctx), collectFlagSet.format)
		return
	}

	client, err := transport.New(ctx, cfg, agent.Logger)
	if err != nil {
		agent.Logger.Fatal(err)
	}

	runner := &collector.Agent{
		Builder:   builder,
		Sender:    client,
		Attempts:  cfg.Attempts,
		Retryable: transport.Retryable,
		Logger:    agent.Logger,
	}

	if _, err := runner.Run(ctx); err != nil {
		agent.Logger.Fatal(err)
	}
}

func printSnapshot(snapshot *model.Snapshot, format string) {
	switch format {
	case store.ExportFormatYAML:
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()

		if err := enc.Encode(snapshot); err != nil {
			log.Fatal(err)
		}
	case store.ExportFormatJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(snapshot); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("unsupported --format %q, expected json or yaml", format)
	}
}

func init() {
	cmdCollect.PersistentFlags().BoolVarP(&collectFlagSet.dryRun, "dry-run", "", false, "print the snapshot instead of sending it")
	cmdCollect.PersistentFlags().StringVar(&collectFlagSet.format, "format", store.ExportFormatJSON, "dry run output format - json, yaml")
	cmdCollect.PersistentFlags().StringVar(&collectFlagSet.endpoint, "endpoint", "", "ingest endpoint, overrides agent.endpoint")
	cmdCollect.PersistentFlags().IntVar(&collectFlagSet.attempts, "attempts", 0, "collection runs when the delivery fails with a network error, overrides agent.attempts")

	rootCmd.AddCommand(cmdCollect)
}
