package cmd

import (
	"time"

	"github.com/BitPonyLLC/weakevents/internal/workload"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultTick = 500 * time.Millisecond

// addWorkloadFlags binds the flags sizing a workload under the given config
// key prefix.
func addWorkloadFlags(cmd *cobra.Command, prefix string, defaults workload.Config) {
	cmd.Flags().Int("sources", defaults.Sources, "number of event sources")
	viper.BindPFlag(prefix+"sources", cmd.Flags().Lookup("sources"))

	cmd.Flags().Int("listeners", defaults.Listeners, "subscribers per source (every other one is a handler)")
	viper.BindPFlag(prefix+"listeners", cmd.Flags().Lookup("listeners"))

	cmd.Flags().Float64("churn", defaults.Churn, "fraction of subscribers dropped each round")
	viper.BindPFlag(prefix+"churn", cmd.Flags().Lookup("churn"))

	cmd.Flags().Uint64("seed", defaults.Seed, "seed for choosing which subscribers are dropped")
	viper.BindPFlag(prefix+"seed", cmd.Flags().Lookup("seed"))
}
