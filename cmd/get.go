package cmd

import (
	"context"
	"errors"
	"log"

	"github.com/metal-toolbox/inventory/internal/transport"
	"github.com/spf13/cobra"
)

var cmdGet = &cobra.Command{
	Use:   "get",
	Short: "get resources [asset|assets|maintenance|support]",
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

type getFlags struct {
	hostname string
	serial   string
	json     bool
}

var (
	getFlagSet = &getFlags{}
)

var cmdGetAsset = &cobra.Command{
	Use:   "asset",
	Short: "Get the record of an asset",
	Run: func(cmd *cobra.Command, _ []string) {
		getAsset(cmd.Context())
	},
}

var cmdGetAssets = &cobra.Command{
	Use:   "assets",
	Short: "List assets, optionally those whose hostname contains --hostname",
	Run: func(cmd *cobra.Command, _ []string) {
		getAssets(cmd.Context())
	},
}

var cmdGetMaintenance = &cobra.Command{
	Use:   "maintenance",
	Short: "Get the maintenance log of an asset",
	Run: func(cmd *cobra.Command, _ []string) {
		getMaintenance(cmd.Context())
	},
}

var cmdGetSupport = &cobra.Command{
	Use:   "support",
	Short: "Get the support status of a serial number",
	Run: func(cmd *cobra.Command, _ []string) {
		getSupport(cmd.Context())
	},
}

func getAsset(ctx context.Context) {
	client, logger := newOperatorClient(ctx)

	record, err := client.Asset(ctx, getFlagSet.hostname)
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			logger.Info(err.Error() + ": " + getFlagSet.hostname)
			return
		}

		logger.Fatal(err)
	}

	if err := printJSON(record); err != nil {
		logger.Fatal(err)
	}
}

func getAssets(ctx context.Context) {
	client, logger := newOperatorClient(ctx)

	records, err := client.Assets(ctx, getFlagSet.hostname)
	if err != nil {
		logger.Fatal(err)
	}

	if getFlagSet.json {
		err = printJSON(records)
	} else {
		err = renderTable(assetHeaders, assetRows(records))
	}

	if err != nil {
		logger.Fatal(err)
	}
}

func getMaintenance(ctx context.Context) {
	client, logger := newOperatorClient(ctx)

	entries, err := client.MaintenanceLog(ctx, getFlagSet.hostname)
	if err != nil {
		logger.Fatal(err)
	}

	if getFlagSet.json {
		err = printJSON(entries)
	} else {
		err = renderTable(maintenanceHeaders, maintenanceRows(entries))
	}

	if err != nil {
		logger.Fatal(err)
	}
}

func getSupport(ctx context.Context) {
	client, logger := newOperatorClient(ctx)

	status, err := client.SupportStatus(ctx, getFlagSet.serial)
	if err != nil {
		logger.Fatal(err)
	}

	if err := printJSON(status); err != nil {
		logger.Fatal(err)
	}
}

func init() {
	rootCmd.AddCommand(cmdGet)

	for _, c := range []*cobra.Command{cmdGetAsset, cmdGetAssets, cmdGetMaintenance} {
		c.PersistentFlags().StringVar(&getFlagSet.hostname, "hostname", "", "asset hostname")
		cmdGet.AddCommand(c)
	}

	for _, c := range []*cobra.Command{cmdGetAssets, cmdGetMaintenance} {
		c.PersistentFlags().BoolVar(&getFlagSet.json, "json", false, "print JSON instead of a table")
	}

	for _, c := range []*cobra.Command{cmdGetAsset, cmdGetMaintenance} {
		if err := c.MarkPersistentFlagRequired("hostname"); err != nil {
			log.Fatal(err)
		}
	}

	cmdGetSupport.PersistentFlags().StringVar(&getFlagSet.serial, "serial", "", "device serial number")

	if err := cmdGetSupport.MarkPersistentFlagRequired("serial"); err != nil {
		log.Fatal(err)
	}

	cmdGet.AddCommand(cmdGetSupport)
}
