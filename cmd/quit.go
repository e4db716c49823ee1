package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var quitCmd = &cobra.Command{
	Use:   "quit",
	Short: "Tells the serving process to quit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOrForward(cmd, func(cmd *cobra.Command, _ *server) error {
			log.Info().Msg("received request to quit")
			cmd.Println("quitting")
			cancelFunc()
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(quitCmd)
}
