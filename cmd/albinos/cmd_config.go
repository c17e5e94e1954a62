package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raven-os/albinos/pkg/cli"
)

func newCreateCmd() *cobra.Command {
	var saveAs string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a configuration",
		Long: `Create a configuration and print its two access keys.

The read-write key grants every operation; the read-only key only reads.
Names are labels, not identifiers: creating the same name twice yields
two independent configurations.

Use --save to store the read-write key under a friendly name:

  albinos create shell --save shell`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, prefs, err := dialService()
			if err != nil {
				return err
			}
			defer c.Close()

			reply, err := c.Create(args[0])
			if err := checkState(reply, err); err != nil {
				return err
			}

			fmt.Printf("%s %s\n", cli.DotPad("key", 22), cli.Green(reply.ConfigKey))
			fmt.Printf("%s %s\n", cli.DotPad("read-only key", 22), cli.Yellow(reply.ReadonlyKey))

			if saveAs != "" {
				prefs.SetKey(saveAs, reply.ConfigKey)
				if err := prefs.Save(); err != nil {
					return fmt.Errorf("saving key: %w", err)
				}
				fmt.Printf("saved read-write key as %s\n", cli.Bold(saveAs))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&saveAs, "save", "", "save the read-write key under this name")
	return cmd
}

func newIncludeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "include <key> <source-key>",
		Short: "Include one configuration into another",
		Long: `Add the configuration behind source-key to the includes of the one
behind key. Included configurations contribute their settings when the
including one is resolved; repeating an include has no effect.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, prefs, err := dialService()
			if err != nil {
				return err
			}
			defer c.Close()

			dstKey, err := resolveKey(prefs, args[0])
			if err != nil {
				return err
			}
			srcKey, err := resolveKey(prefs, args[1])
			if err != nil {
				return err
			}

			dst, err := loadHandle(c, dstKey)
			if err != nil {
				return err
			}
			src, err := loadHandle(c, srcKey)
			if err != nil {
				return err
			}

			reply, err := c.Include(dst, src)
			if err := checkState(reply, err); err != nil {
				return err
			}
			fmt.Println(cli.Green("included"))
			return nil
		},
	}
}
