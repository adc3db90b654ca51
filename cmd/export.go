package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/emicklei/dot"
	sw "github.com/filanov/stateswitch"
	"github.com/metal-toolbox/inventory/internal/ingest"
	"github.com/metal-toolbox/inventory/internal/store"
	"github.com/spf13/cobra"
)

type exportFlags struct {
	json     bool
	dot      bool
	terminal bool
	format   string
	output   string
}

var (
	exportFlagSet = &exportFlags{}
)

var cmdExport = &cobra.Command{
	Use:   "export",
	Short: "export [statemachine|assets]",
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

var cmdExportStatemachine = &cobra.Command{
	Use:   "statemachine [--json|--dot] [--terminal-decommissioned]",
	Short: "Export the asset lifecycle statemachine, in the mermaid format by default",
	Run: func(_ *cobra.Command, _ []string) {
		exportStatemachine()
	},
}

var cmdExportAssets = &cobra.Command{
	Use:   "assets --format yaml|json",
	Short: "Export the asset records and their maintenance log from the SQLite asset store",
	Run: func(cmd *cobra.Command, _ []string) {
		exportAssets(cmd)
	},
}

func asGraph(s *sw.StateMachineJSON) *dot.Graph {
	g := dot.NewGraph(dot.Directed)
	nodes := map[string]dot.Node{}

	for _, transition := range s.TransitionRules {
		_, exists := nodes[transition.DestinationState]
		if !exists {
			nodes[transition.DestinationState] = g.Node(transition.DestinationState)
		}

		for _, sourceState := range transition.SourceStates {
			_, exists := nodes[sourceState]
			if !exists {
				nodes[sourceState] = g.Node(sourceState)
			}

			g.Edge(nodes[sourceState], nodes[transition.DestinationState], transition.Name)
		}
	}

	return g
}

func exportStatemachine() {
	j, err := ingest.NewLifecycle(exportFlagSet.terminal).DescribeAsJSON()
	if err != nil {
		log.Fatal(err)
	}

	if exportFlagSet.json {
		fmt.Println(string(j))
		return
	}

	t := &sw.StateMachineJSON{}
	if err := json.Unmarshal(j, t); err != nil {
		log.Fatal(err)
	}

	g := asGraph(t)

	if exportFlagSet.dot {
		fmt.Println(g.String())
		return
	}

	fmt.Println(dot.MermaidGraph(g, dot.MermaidTopDown))
}

func exportAssets(cmd *cobra.Command) {
	ctx := cmd.Context()

	inventory, repository := openStore(ctx)
	defer repository.Close()

	var w io.Writer = os.Stdout

	if exportFlagSet.output != "" {
		fh, err := os.Create(exportFlagSet.output)
		if err != nil {
			inventory.Logger.Fatal(err)
		}
		defer fh.Close()

		w = fh
	}

	filter := &store.Filter{HostnameContains: storeFlagSet.hostname}
	if err := store.Export(ctx, repository, filter, exportFlagSet.format, w); err != nil {
		inventory.Logger.Fatal(err)
	}
}

func init() {
	cmdExportStatemachine.PersistentFlags().BoolVarP(&exportFlagSet.json, "json", "", false, "export the statemachine in the JSON format")
	cmdExportStatemachine.PersistentFlags().BoolVarP(&exportFlagSet.dot, "dot", "", false, "export the statemachine in the graphviz dot format")
	cmdExportStatemachine.PersistentFlags().BoolVarP(&exportFlagSet.terminal, "terminal-decommissioned", "", false, "export the statemachine where decommissioned is terminal")

	cmdExportAssets.PersistentFlags().StringVar(&exportFlagSet.format, "format", store.ExportFormatYAML, "export format - yaml, json")
	cmdExportAssets.PersistentFlags().StringVarP(&exportFlagSet.output, "output", "o", "", "write the export to a file instead of stdout")
	cmdExportAssets.PersistentFlags().StringVar(&storeFlagSet.dbPath, "db", "", "SQLite database path, overrides server.db_path")
	cmdExportAssets.PersistentFlags().StringVar(&storeFlagSet.hostname, "hostname", "", "export assets whose hostname contains the value")

	cmdExport.AddCommand(cmdExportStatemachine, cmdExportAssets)
	rootCmd.AddCommand(cmdExport)
}
