package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raven-os/albinos/pkg/cli"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key> <setting>",
		Short: "Read one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, prefs, err := dialService()
			if err != nil {
				return err
			}
			defer c.Close()

			key, err := resolveKey(prefs, args[0])
			if err != nil {
				return err
			}
			id, err := loadHandle(c, key)
			if err != nil {
				return err
			}

			reply, err := c.GetSetting(id, args[1])
			if err := checkState(reply, err); err != nil {
				return err
			}
			fmt.Println(reply.SettingValue)
			return nil
		},
	}
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <setting>=<value> [<setting>=<value>...]",
		Short: "Write settings",
		Long: `Write one or more settings on a configuration. All pairs of one
invocation are applied together; subscribers see one event per changed
setting.

  albinos set shell prompt=% editor=vi`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs := make(map[string]any, len(args)-1)
			for _, arg := range args[1:] {
				name, value, ok := strings.Cut(arg, "=")
				if !ok || name == "" {
					return fmt.Errorf("bad setting %q, want name=value", arg)
				}
				pairs[name] = value
			}

			c, prefs, err := dialService()
			if err != nil {
				return err
			}
			defer c.Close()

			key, err := resolveKey(prefs, args[0])
			if err != nil {
				return err
			}
			id, err := loadHandle(c, key)
			if err != nil {
				return err
			}

			reply, err := c.UpdateSettings(id, pairs)
			if err := checkState(reply, err); err != nil {
				return err
			}
			fmt.Println(cli.Green(fmt.Sprintf("updated %d setting(s)", len(pairs))))
			return nil
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <key> <setting>",
		Short: "Delete one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, prefs, err := dialService()
			if err != nil {
				return err
			}
			defer c.Close()

			key, err := resolveKey(prefs, args[0])
			if err != nil {
				return err
			}
			id, err := loadHandle(c, key)
			if err != nil {
				return err
			}

			reply, err := c.RemoveSetting(id, args[1])
			if err := checkState(reply, err); err != nil {
				return err
			}
			fmt.Println(cli.Green("removed"))
			return nil
		},
	}
}

func newSettingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings <key>",
		Short: "List all settings with their values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, prefs, err := dialService()
			if err != nil {
				return err
			}
			defer c.Close()

			key, err := resolveKey(prefs, args[0])
			if err != nil {
				return err
			}
			id, err := loadHandle(c, key)
			if err != nil {
				return err
			}

			reply, err := c.Settings(id)
			if err := checkState(reply, err); err != nil {
				return err
			}

			names := make([]string, 0, len(reply.Settings))
			for name := range reply.Settings {
				names = append(names, name)
			}
			sort.Strings(names)

			table := cli.NewTable("SETTING", "VALUE")
			for _, name := range names {
				table.Row(name, fmt.Sprint(reply.Settings[name]))
			}
			table.Flush()
			return nil
		},
	}
}

func newNamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "names <key>",
		Short: "List setting names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, prefs, err := dialService()
			if err != nil {
				return err
			}
			defer c.Close()

			key, err := resolveKey(prefs, args[0])
			if err != nil {
				return err
			}
			id, err := loadHandle(c, key)
			if err != nil {
				return err
			}

			reply, err := c.SettingsNames(id)
			if err := checkState(reply, err); err != nil {
				return err
			}
			for _, name := range reply.SettingsNames {
				fmt.Println(name)
			}
			return nil
		},
	}
}
