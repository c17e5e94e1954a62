package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raven-os/albinos/pkg/cli"
	"github.com/raven-os/albinos/pkg/protocol"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <key> <setting> [<setting>...]",
		Short: "Stream change events for settings",
		Long: `Subscribe to one or more settings and print an event line whenever
one of them is updated or deleted. Runs until interrupted.`,
		Args: cobra.MinimumNArgs(2),
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

			for _, name := range args[1:] {
				reply, err := c.Subscribe(id, name)
				if err := checkState(reply, err); err != nil {
					return fmt.Errorf("subscribing to %s: %w", name, err)
				}
			}
			fmt.Fprintf(os.Stderr, "watching %d setting(s), Ctrl-C to stop\n", len(args)-1)

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

			for {
				select {
				case ev, ok := <-c.Events():
					if !ok {
						return fmt.Errorf("connection closed by service")
					}
					stamp := time.Now().Format("15:04:05")
					switch ev.Type {
					case protocol.EventDelete:
						fmt.Printf("%s %s %s\n", cli.Dim(stamp), cli.Red("DELETE"), ev.SettingName)
					default:
						fmt.Printf("%s %s %s\n", cli.Dim(stamp), cli.Green("UPDATE"), ev.SettingName)
					}
				case <-sigs:
					return nil
				}
			}
		},
	}
}
