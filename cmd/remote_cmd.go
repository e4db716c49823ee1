package cmd

import (
	"errors"
	"strings"

	"github.com/BitPonyLLC/weakevents/pkg/ipc"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errNotServing = errors.New("no serving process found")

// runOrForward runs local when this process is the one serving; otherwise the
// command is sent to the serving process and its response printed.
func runOrForward(cmd *cobra.Command, local func(cmd *cobra.Command, srv *server) error) error {
	if !pidPath.IsRunning() {
		return fail(7, errNotServing)
	}

	if pidPath.IsOurs() {
		srv := serving.Load()
		if srv == nil {
			return fail(7, errNotServing)
		}
		return local(cmd, srv)
	}

	return sendViaIPC(cmd)
}

func sendViaIPC(cmd *cobra.Command) error {
	// only the subcommand path: our own flags (pidpath, log-dst...) must not
	// leak into the serving process
	msg := strings.Join(strings.Fields(cmd.CommandPath())[1:], " ")

	log.Debug().Int("pid", pidPath.Getpid()).Str("cmd", msg).Msg("sending")

	resp, err := ipc.Send(viper.GetString("sockpath"), msg)
	if resp != "" {
		cmd.Println(resp)
	}

	if err != nil {
		return fail(8, err)
	}

	return nil
}
