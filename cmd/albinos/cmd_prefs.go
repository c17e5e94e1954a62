package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/raven-os/albinos/pkg/cli"
	"github.com/raven-os/albinos/pkg/settings"
)

func newPrefsCmd() *cobra.Command {
	prefsCmd := &cobra.Command{
		Use:   "prefs",
		Short: "Manage persistent preferences",
		Long: `Manage persistent preferences stored in ~/.albinos/settings.json.

Preferences provide defaults for context flags and let access keys be
saved under friendly names:

  albinos prefs show
  albinos prefs set socket /run/albinos.sock
  albinos prefs add-key shell <key>
  albinos prefs del-key shell`,
	}

	prefsCmd.AddCommand(
		newPrefsShowCmd(),
		newPrefsSetCmd(),
		newPrefsAddKeyCmd(),
		newPrefsDelKeyCmd(),
		newPrefsClearCmd(),
		&cobra.Command{
			Use:   "path",
			Short: "Show preferences file path",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(settings.DefaultSettingsPath())
			},
		},
	)
	return prefsCmd
}

func newPrefsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings.Load()
			if err != nil {
				return fmt.Errorf("loading preferences: %w", err)
			}

			fmt.Printf("Preferences file: %s\n\n", settings.DefaultSettingsPath())

			t := cli.NewTable("PREFERENCE", "VALUE")

			printPref := func(name, value string) {
				if value == "" {
					value = "(not set)"
				}
				t.Row(name, value)
			}

			printPref("socket", s.Socket)
			printPref("default_key", s.DefaultKey)
			t.Flush()

			if len(s.Keys) > 0 {
				fmt.Println()
				names := make([]string, 0, len(s.Keys))
				for name := range s.Keys {
					names = append(names, name)
				}
				sort.Strings(names)

				kt := cli.NewTable("NAME", "KEY")
				for _, name := range names {
					kt.Row(name, s.Keys[name])
				}
				kt.Flush()
			}
			return nil
		},
	}
}

func newPrefsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <preference> <value>",
		Short: "Set a preference value",
		Long: `Set a persistent preference value.

Available preferences:
  socket      - Service socket path (--socket flag default)
  default_key - Access key used when a command gets no key argument

Examples:
  albinos prefs set socket /run/albinos.sock
  albinos prefs set default_key shell`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pref := args[0]
			value := args[1]

			s, err := settings.Load()
			if err != nil {
				s = &settings.Settings{}
			}

			switch pref {
			case "socket":
				s.SetSocket(value)
				fmt.Printf("Service socket set to: %s\n", value)
			case "default_key":
				s.SetDefaultKey(s.GetKey(value))
				fmt.Printf("Default key set to: %s\n", value)
			default:
				return fmt.Errorf("unknown preference: %s (valid: socket, default_key)", pref)
			}

			if err := s.Save(); err != nil {
				return fmt.Errorf("saving preferences: %w", err)
			}
			return nil
		},
	}
}

func newPrefsAddKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-key <name> <key>",
		Short: "Save an access key under a friendly name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings.Load()
			if err != nil {
				return fmt.Errorf("loading preferences: %w", err)
			}
			s.SetKey(args[0], args[1])
			if err := s.Save(); err != nil {
				return fmt.Errorf("saving preferences: %w", err)
			}
			fmt.Printf("Saved key as %s\n", cli.Bold(args[0]))
			return nil
		},
	}
}

func newPrefsDelKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del-key <name>",
		Short: "Remove a saved access key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings.Load()
			if err != nil {
				return fmt.Errorf("loading preferences: %w", err)
			}
			s.DeleteKey(args[0])
			if err := s.Save(); err != nil {
				return fmt.Errorf("saving preferences: %w", err)
			}
			fmt.Printf("Removed key %s\n", args[0])
			return nil
		},
	}
}

func newPrefsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := &settings.Settings{}
			if err := s.Save(); err != nil {
				return fmt.Errorf("saving preferences: %w", err)
			}
			fmt.Println("All preferences cleared.")
			return nil
		},
	}
}
