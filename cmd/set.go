package cmd

import (
	"context"
	"log"
	"os"

	"github.com/metal-toolbox/inventory/internal/app"
	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/metal-toolbox/inventory/internal/transport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cmdSet = &cobra.Command{
	Use:   "set",
	Short: "set asset attributes [status|asset]",
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// command set status
type setStatusFlags struct {
	hostname    string
	status      string
	description string
	technician  string
}

var (
	setStatusFlagSet = &setStatusFlags{}
)

var cmdSetStatus = &cobra.Command{
	Use:   "status",
	Short: "Set the lifecycle status of an asset, optionally recording a maintenance log entry",
	Run: func(cmd *cobra.Command, _ []string) {
		runSetStatus(cmd.Context())
	},
}

func runSetStatus(ctx context.Context) {
	client, logger := newOperatorClient(ctx)

	technician := setStatusFlagSet.technician
	if technician == "" && setStatusFlagSet.description != "" {
		technician = os.Getenv("USER")
	}

	ack, err := client.SetStatus(ctx, setStatusFlagSet.hostname, &model.StatusRequest{
		Status:      setStatusFlagSet.status,
		Description: setStatusFlagSet.description,
		Technician:  technician,
	})
	if err != nil {
		logger.Fatal(err)
	}

	le := logger.WithFields(logrus.Fields{"hostname": ack.Hostname, "status": ack.Status})
	if ack.Entry != nil {
		le = le.WithField("entry", ack.Entry.ID)
	}

	le.Info("asset status set")
}

// command set asset
type setAssetFlags struct {
	hostname string
}

var (
	setAssetFlagSet = &setAssetFlags{}
)

var cmdSetAsset = &cobra.Command{
	Use:   "asset",
	Short: "Edit the asset management fields of an asset",
	Example: `  inventory set asset --hostname ws-0042 --local_fisico "Building B, 2nd floor" --custo 1299.90`,
	Run: func(cmd *cobra.Command, _ []string) {
		runSetAsset(cmd)
	},
}

// manualFlags are the editable manual fields, named by their wire keys.
var manualFlags = []string{
	"id_patrimonio", "fabricante", "data_compra", "fornecedor", "custo",
	"garantia_venc", "local_fisico", "centro_custo", "usuario_designado", "departamento",
}

func runSetAsset(cmd *cobra.Command) {
	ctx := cmd.Context()
	client, logger := newOperatorClient(ctx)

	update := &model.ManualUpdate{}
	targets := map[string]**string{
		"id_patrimonio":     &update.AssetTag,
		"fabricante":        &update.Manufacturer,
		"data_compra":       &update.PurchaseDate,
		"fornecedor":        &update.Supplier,
		"custo":             &update.Cost,
		"garantia_venc":     &update.WarrantyExpiry,
		"local_fisico":      &update.Location,
		"centro_custo":      &update.CostCenter,
		"usuario_designado": &update.AssignedUser,
		"departamento":      &update.Department,
	}

	// only flags given on the command line are sent
	for _, name := range manualFlags {
		if !cmd.Flags().Changed(name) {
			continue
		}

		value, err := cmd.Flags().GetString(name)
		if err != nil {
			logger.Fatal(err)
		}

		*targets[name] = &value
	}

	if update.Empty() {
		logger.Fatal("expected at least one asset field flag")
	}

	if err := update.Validate(); err != nil {
		logger.Fatal(err)
	}

	if err := client.UpdateAsset(ctx, setAssetFlagSet.hostname, update); err != nil {
		logger.Fatal(err)
	}

	logger.WithField("hostname", setAssetFlagSet.hostname).Info("asset fields updated")
}

// newOperatorClient returns the API client configured by the agent section of the configuration.
func newOperatorClient(ctx context.Context) (*transport.Client, *logrus.Logger) {
	operator, err := app.New(ctx, model.AppKindClient, cfgFile, logLevel)
	if err != nil {
		log.Fatal(err)
	}

	client, err := transport.New(ctx, &operator.Config.Agent, operator.Logger)
	if err != nil {
		operator.Logger.Fatal(err)
	}

	return client, operator.Logger
}

func init() {
	rootCmd.AddCommand(cmdSet)

	cmdSetStatus.PersistentFlags().StringVar(&setStatusFlagSet.hostname, "hostname", "", "asset hostname")
	cmdSetStatus.PersistentFlags().StringVar(&setStatusFlagSet.status, "status", "", "in-use, under-maintenance, in-stock, damaged, decommissioned")
	cmdSetStatus.PersistentFlags().StringVar(&setStatusFlagSet.description, "description", "", "maintenance log description, records a log entry")
	cmdSetStatus.PersistentFlags().StringVar(&setStatusFlagSet.technician, "technician", "", "technician of the maintenance log entry (default is $USER)")

	for _, required := range []string{"hostname", "status"} {
		if err := cmdSetStatus.MarkPersistentFlagRequired(required); err != nil {
			log.Fatal(err)
		}
	}

	cmdSet.AddCommand(cmdSetStatus)

	cmdSetAsset.Flags().StringVar(&setAssetFlagSet.hostname, "hostname", "", "asset hostname")

	for _, name := range manualFlags {
		cmdSetAsset.Flags().String(name, "", "set the "+name+" field")
	}

	if err := cmdSetAsset.MarkFlagRequired("hostname"); err != nil {
		log.Fatal(err)
	}

	cmdSet.AddCommand(cmdSetAsset)
}
