package cmd

import (
	"runtime"

	"github.com/BitPonyLLC/weakevents/internal/workload"
	"github.com/BitPonyLLC/weakevents/pkg/cleanup"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type demoStep struct {
	Step     string          `yaml:"step"`
	Hits     uint64          `yaml:"hits,omitempty"`
	Dropped  int             `yaml:"dropped,omitempty"`
	Workload workload.Report `yaml:"workload"`
	Sweep    *cleanup.Report `yaml:"sweep,omitempty"`
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Shows subscribers disappearing once they are collected",
	Long: `Subscribes listeners and handlers to a set of sources, raises an event on each
source, lets go of a share of the subscribers and forces a collection. The next
round reaches only the survivors; a sweep then removes what is left of the
others.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if serving.Load() != nil {
			return fail(3, "demo can't run inside a serving process")
		}

		sched := cleanup.NewScheduler(cleanup.DirectorySource(), cleanup.WithLogger(&log.Logger))

		w, err := workload.New(workload.Config{
			Sources:   viper.GetInt("demo.sources"),
			Listeners: viper.GetInt("demo.listeners"),
			Seed:      viper.GetUint64("demo.seed"),
		}, sched, &log.Logger)
		if err != nil {
			return fail(5, err)
		}
		defer w.Close()

		var steps []demoStep
		record := func(step string, hits uint64, dropped int, sweep *cleanup.Report) {
			steps = append(steps, demoStep{Step: step, Hits: hits, Dropped: dropped, Workload: w.Report(), Sweep: sweep})
		}

		err = w.Populate()
		if err != nil {
			return fail(5, err)
		}

		hits, err := w.Round()
		if err != nil {
			return fail(5, err)
		}
		record("deliver", hits, 0, nil)

		dropped := w.Drop(viper.GetFloat64("demo.churn"))
		runtime.GC()
		runtime.GC()
		record("drop", 0, dropped, nil)

		hits, err = w.Round()
		if err != nil {
			return fail(5, err)
		}
		record("deliver", hits, 0, nil)

		report, err := sched.SweepNow()
		if err != nil {
			return fail(5, err)
		}
		record("sweep", 0, 0, &report)

		hits, err = w.Round()
		if err != nil {
			return fail(5, err)
		}
		record("deliver", hits, 0, nil)

		return writeYAML(cmd, steps)
	},
}

func init() {
	addWorkloadFlags(demoCmd, "demo.", workload.Config{Sources: 4, Listeners: 6, Churn: 0.5})
	rootCmd.AddCommand(demoCmd)
}
