package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spikenet/pkg/spikenet"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			if limit <= 0 {
				return fmt.Errorf("limit must be > 0")
			}
			client, err := openClient(cmd, "", "", "", "")
			if err != nil {
				return err
			}
			defer client.Close()

			runs, err := client.Runs(cmd.Context(), spikenet.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs found")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s started=%s generations=%d spikes=%d synapses=%d\n",
					r.RunID, r.StartedAt.Format("2006-01-02T15:04:05Z"), r.Generations, r.Spikes, r.Synapses)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Max runs to list")
	return cmd
}

func newRecordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Show the spike records of a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run-id")
			latest, _ := cmd.Flags().GetBool("latest")
			population, _ := cmd.Flags().GetString("population")

			client, err := openClient(cmd, "", "", "", "")
			if err != nil {
				return err
			}
			defer client.Close()

			records, err := client.Records(cmd.Context(), spikenet.RecordsRequest{
				RunID:      runID,
				Latest:     latest,
				Population: population,
			})
			if err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			for _, r := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%s agent=%d times=%v\n", r.Population, r.Agent, r.Times)
			}
			return nil
		},
	}
	cmd.Flags().String("run-id", "", "Run id")
	cmd.Flags().Bool("latest", false, "Use the most recent run")
	cmd.Flags().String("population", "", "Only show this population")
	return cmd
}

func newWeightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Show the final synapse weights of a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run-id")
			latest, _ := cmd.Flags().GetBool("latest")

			client, err := openClient(cmd, "", "", "", "")
			if err != nil {
				return err
			}
			defer client.Close()

			weights, err := client.Weights(cmd.Context(), runID, latest)
			if err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(cmd.OutOrStdout(), weights)
			}
			for _, w := range weights {
				fmt.Fprintf(cmd.OutOrStdout(), "synapse=%d flag=%s weight=%.6f\n", w.Synapse, w.Flag, w.Weight)
			}
			return nil
		},
	}
	cmd.Flags().String("run-id", "", "Run id")
	cmd.Flags().Bool("latest", false, "Use the most recent run")
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a stored run as JSON and CSV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run-id")
			latest, _ := cmd.Flags().GetBool("latest")
			outDir, _ := cmd.Flags().GetString("out")

			client, err := openClient(cmd, "", "", "", "")
			if err != nil {
				return err
			}
			defer client.Close()

			runDir, err := client.Export(cmd.Context(), spikenet.ExportRequest{
				RunID:  runID,
				Latest: latest,
				OutDir: outDir,
			})
			if err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"run_dir": runDir})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s\n", runDir)
			return nil
		},
	}
	cmd.Flags().String("run-id", "", "Run id")
	cmd.Flags().Bool("latest", false, "Use the most recent run")
	cmd.Flags().String("out", "exports", "Output directory")
	return cmd
}
