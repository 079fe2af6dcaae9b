package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"spikenet/internal/config"
	"spikenet/pkg/spikenet"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a network described by a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				return errors.New("run requires --config")
			}
			cfg, err := config.LoadFromFile(path)
			if err != nil {
				return err
			}
			runID, _ := cmd.Flags().GetString("run-id")
			duration, _ := cmd.Flags().GetFloat64("duration")
			if duration < 0 {
				return errors.New("duration must be >= 0")
			}

			client, err := openClient(cmd, cfg.Run.Store, cfg.Run.DBPath, cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Run(cmd.Context(), spikenet.RunRequest{
				Config:   cfg,
				RunID:    runID,
				Duration: duration,
			})
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"run_id":         summary.RunID,
					"generations":    summary.Generations,
					"time":           summary.Time,
					"spikes":         summary.Spikes,
					"monitor_events": summary.MonitorEvents,
					"synapses":       len(summary.Weights),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run_id=%s generations=%d time=%g spikes=%d synapses=%d\n",
				summary.RunID, summary.Generations, summary.Time, summary.Spikes, len(summary.Weights))
			for _, r := range summary.Records {
				fmt.Fprintf(out, "  %s agent=%d spikes=%d\n", r.Population, r.Agent, len(r.Times))
			}
			return nil
		},
	}
	cmd.Flags().String("config", "", "Network config file (YAML or JSON)")
	cmd.Flags().String("run-id", "", "Run id; generated when empty")
	cmd.Flags().Float64("duration", 0, "Simulated time in ms, overriding the config")
	return cmd
}
