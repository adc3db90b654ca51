package cmd

import (
	"context"
	"log"
	"os"

	"github.com/metal-toolbox/inventory/internal/app"
	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/metal-toolbox/inventory/internal/store"
	"github.com/spf13/cobra"
)

// store flags of the commands reading the asset store directly
type storeFlags struct {
	dbPath   string
	hostname string
}

var (
	storeFlagSet = &storeFlags{}
)

var cmdReport = &cobra.Command{
	Use:   "report",
	Short: "Print a table of the assets in the SQLite asset store",
	Run: func(cmd *cobra.Command, _ []string) {
		runReport(cmd.Context())
	},
}

var cmdDBCheck = &cobra.Command{
	Use:   "dbcheck",
	Short: "Check the SQLite asset store holds asset records, exits non-zero when it holds none",
	Run: func(cmd *cobra.Command, _ []string) {
		runDBCheck(cmd.Context())
	},
}

// openStore opens the sqlite store configured in server.db_path, or given by --db.
func openStore(ctx context.Context) (*app.App, store.Repository) {
	inventory, err := app.New(ctx, model.AppKindServer, cfgFile, logLevel)
	if err != nil {
		log.Fatal(err)
	}

	path := inventory.Config.Server.DBPath
	if storeFlagSet.dbPath != "" {
		path = storeFlagSet.dbPath
	}

	if _, err := os.Stat(path); err != nil {
		inventory.Logger.Fatal(err)
	}

	repository, err := store.New(ctx, model.StoreKindSQLite, path, inventory.Logger)
	if err != nil {
		inventory.Logger.Fatal(err)
	}

	return inventory, repository
}

func runReport(ctx context.Context) {
	inventory, repository := openStore(ctx)
	defer repository.Close()

	records, err := repository.Assets(ctx, &store.Filter{HostnameContains: storeFlagSet.hostname})
	if err != nil {
		inventory.Logger.Fatal(err)
	}

	if err := renderTable(assetHeaders, assetRows(records)); err != nil {
		inventory.Logger.Fatal(err)
	}
}

func runDBCheck(ctx context.Context) {
	inventory, repository := openStore(ctx)

	count, err := repository.Count(ctx)
	repository.Close()

	if err != nil {
		inventory.Logger.Fatal(err)
	}

	if count == 0 {
		inventory.Logger.Error("asset store holds no asset records")
		os.Exit(1)
	}

	inventory.Logger.WithField("assets", count).Info("asset store holds asset records")
}

func init() {
	for _, c := range []*cobra.Command{cmdReport, cmdDBCheck} {
		c.PersistentFlags().StringVar(&storeFlagSet.dbPath, "db", "", "SQLite database path, overrides server.db_path")
		rootCmd.AddCommand(c)
	}

	cmdReport.PersistentFlags().StringVar(&storeFlagSet.hostname, "hostname", "", "list assets whose hostname contains the value")
}
