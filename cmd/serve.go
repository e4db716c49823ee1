package cmd

import (
	"errors"

	"github.com/BitPonyLLC/weakevents/internal/workload"
	"github.com/BitPonyLLC/weakevents/pkg/cleanup"
	"github.com/BitPonyLLC/weakevents/pkg/pidpath"
	"github.com/BitPonyLLC/weakevents/pkg/util"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs a synthetic workload and answers stats, sweep and quit requests",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if serving.Load() != nil {
			return fail(3, "already serving")
		}

		err := pidPath.Claim()
		if err != nil {
			var running *pidpath.RunningError
			if errors.As(err, &running) {
				return fail(3, "already served by process %d", running.Pid)
			}
			return fail(3, err)
		}

		err = util.BeNice(viper.GetInt("nice"))
		if err != nil {
			log.Warn().Err(err).Msg("unable to lower priority")
		}

		ctx := cmd.Context()

		scheduler := cleanup.NewScheduler(cleanup.DirectorySource(), cleanup.WithLogger(&log.Logger))

		load, err := workload.New(workloadConfig(), scheduler, &log.Logger)
		if err != nil {
			return fail(5, err)
		}
		defer load.Close()

		if !serving.CompareAndSwap(nil, &server{scheduler: scheduler, load: load}) {
			return fail(3, "already serving")
		}

		err = ipcServer.Start(ctx, &log.Logger, viper.GetString("sockpath"), cmd.Root())
		if err != nil {
			return fail(6, err)
		}

		scheduler.Start(ctx, viper.GetDuration(cleanupIntervalLabel))

		log.Info().Str("pidpath", pidPath.Path()).Msg("serving")
		return load.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().Int("nice", 10, "the priority level of the process")
	viper.BindPFlag("nice", serveCmd.Flags().Lookup("nice"))

	serveCmd.Flags().Duration("cleanup-interval", defaultCleanupInterval, "time between background sweeps (0 sweeps only on request)")
	viper.BindPFlag(cleanupIntervalLabel, serveCmd.Flags().Lookup("cleanup-interval"))

	addWorkloadFlags(serveCmd, "serve.", workload.Config{Sources: 8, Listeners: 16, Churn: 0.1})
	serveCmd.Flags().Duration("tick", defaultTick, "time between event rounds")
	viper.BindPFlag("serve.tick", serveCmd.Flags().Lookup("tick"))

	rootCmd.AddCommand(serveCmd)
}

func workloadConfig() workload.Config {
	return workload.Config{
		Sources:   viper.GetInt("serve.sources"),
		Listeners: viper.GetInt("serve.listeners"),
		Tick:      viper.GetDuration("serve.tick"),
		Churn:     viper.GetFloat64("serve.churn"),
		Seed:      viper.GetUint64("serve.seed"),
	}
}
