package cmd

import (
	"github.com/BitPonyLLC/weakevents/internal/workload"
	"github.com/BitPonyLLC/weakevents/pkg/cleanup"
	"github.com/BitPonyLLC/weakevents/pkg/events"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type serverStats struct {
	Cleanup  cleanup.Stats   `yaml:"cleanup"`
	Managers []events.Stats  `yaml:"managers"`
	Workload workload.Report `yaml:"workload"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Shows registry, sweep and workload counters of the serving process",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOrForward(cmd, func(cmd *cobra.Command, srv *server) error {
			stats := serverStats{
				Cleanup:  srv.scheduler.Stats(),
				Workload: srv.load.Report(),
			}

			for _, m := range events.Managers() {
				stats.Managers = append(stats.Managers, m.Stats())
			}

			return writeYAML(cmd, stats)
		})
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Sweeps every manager of the serving process now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOrForward(cmd, func(cmd *cobra.Command, srv *server) error {
			report, err := srv.scheduler.SweepNow()
			werr := writeYAML(cmd, report)
			if err != nil {
				return err
			}
			return werr
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(sweepCmd)
}

func writeYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	err := enc.Encode(v)
	if err != nil {
		return err
	}
	return enc.Close()
}
