package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"spikenet/internal/logging"
	"spikenet/pkg/spikenet"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spikectl",
		Short: "Run and inspect spiking network simulations",
		Long: `spikectl builds a network of spiking neurons and synapses from a YAML
description, runs it generation by generation and stores the spike
records, synapse weights and run summary it produced.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("store", "", "Store backend: memory or sqlite")
	rootCmd.PersistentFlags().String("db-path", "", "SQLite database path")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newRunsCmd(),
		newRecordsCmd(),
		newWeightsCmd(),
		newExportCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "spikectl version %s\n", version)
			return nil
		},
	}
}

// openClient builds a client from the persistent flags. storeKind and
// dbPath fall back to the given defaults, typically from a config file.
func openClient(cmd *cobra.Command, storeKind, dbPath, level, format string) (*spikenet.Client, error) {
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		storeKind = v
	}
	if v, _ := cmd.Flags().GetString("db-path"); v != "" {
		dbPath = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		level = v
	}

	client, err := spikenet.New(spikenet.Options{
		StoreKind: storeKind,
		DBPath:    dbPath,
		Logger:    logging.NewLogger(level, format, cmd.ErrOrStderr()),
	})
	if err != nil {
		return nil, err
	}
	if err := client.Init(cmd.Context()); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
