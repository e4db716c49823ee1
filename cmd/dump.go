package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/BitPonyLLC/weakevents/buildinfo"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var dumpCmd = &cobra.Command{
	Use:       "dump <config|name|desc|full|build>...",
	Hidden:    true,
	ValidArgs: []string{"config", "name", "desc", "full", "build"},
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, arg := range args {
			err := dump(arg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}

func dump(key string, writer io.Writer) error {
	var val string

	switch key {
	case "config":
		return showConfig(writer)
	case "name":
		val = buildinfo.App.Name
	case "desc":
		val = buildinfo.App.Description
	case "full":
		val = buildinfo.App.FullDescription
	case "build":
		val = buildinfo.All
	default:
		return fail(9, "unknown dump key requested: %s", key)
	}

	_, err := fmt.Fprintln(writer, val)
	return err
}

// showConfig writes the effective configuration in the same toml format the
// config file uses.
func showConfig(writer io.Writer) error {
	tf, err := os.CreateTemp(os.TempDir(), buildinfo.App.Name+"-*.toml")
	if err != nil {
		return err
	}

	defer func() {
		tf.Close()
		os.Remove(tf.Name())
	}()

	err = viper.WriteConfigAs(tf.Name())
	if err != nil {
		return err
	}

	_, err = tf.Seek(0, io.SeekStart)
	if err != nil {
		return err
	}

	_, err = io.Copy(writer, tf)
	return err
}
