package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raven-os/albinos/pkg/client"
	"github.com/raven-os/albinos/pkg/protocol"
	"github.com/raven-os/albinos/pkg/settings"
	"github.com/raven-os/albinos/pkg/util"
	"github.com/raven-os/albinos/pkg/version"
)

var (
	socketFlag  string
	verboseFlag bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "albinos",
		Short: "Client for the albinos configuration service",
		Long: `Albinos is the command-line client for the Raven-OS configuration
service. Configurations are addressed by access key: the read-write key
allows every operation, the read-only key only reads.

Keys can be saved under friendly names with 'albinos prefs add-key' and
used anywhere a key is expected:

  albinos create shell                        # prints both keys
  albinos prefs add-key shell <key>
  albinos set shell prompt=%
  albinos get shell prompt
  albinos watch shell prompt`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verboseFlag {
				return util.SetLogLevel("debug")
			}
			return util.SetLogLevel("warn")
		},
	}

	rootCmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "service socket path")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(
		newCreateCmd(),
		newGetCmd(),
		newSetCmd(),
		newRemoveCmd(),
		newSettingsCmd(),
		newNamesCmd(),
		newIncludeCmd(),
		newWatchCmd(),
		newPrefsCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				if version.Version == "dev" {
					fmt.Println("albinos dev build (use 'make build' for version info)")
				} else {
					fmt.Printf("albinos %s (%s)\n", version.Version, version.GitCommit)
				}
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// dialService connects to the service, preferring the --socket flag over
// the saved preference over the well-known path.
func dialService() (*client.Client, *settings.Settings, error) {
	prefs, err := settings.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading preferences: %w", err)
	}
	socket := socketFlag
	if socket == "" {
		socket = prefs.GetSocket()
	}
	c, err := client.Dial(socket)
	if err != nil {
		return nil, nil, err
	}
	return c, prefs, nil
}

// resolveKey turns a saved key name, a raw key, or an empty argument into
// an access key.
func resolveKey(prefs *settings.Settings, arg string) (string, error) {
	if arg == "" {
		if prefs.DefaultKey == "" {
			return "", fmt.Errorf("no key given and no default key saved")
		}
		return prefs.DefaultKey, nil
	}
	return prefs.GetKey(arg), nil
}

// loadHandle loads the configuration behind key and returns its handle.
func loadHandle(c *client.Client, key string) (uint64, error) {
	reply, err := c.Load(key)
	if err != nil {
		return 0, err
	}
	if reply.State != protocol.StateSuccess {
		return 0, fmt.Errorf("loading configuration: %s", reply.State)
	}
	return reply.ConfigID, nil
}

// checkState maps a non-SUCCESS reply to an error.
func checkState(reply protocol.Reply, err error) error {
	if err != nil {
		return err
	}
	if reply.State != protocol.StateSuccess {
		return fmt.Errorf("service answered %s", reply.State)
	}
	return nil
}
