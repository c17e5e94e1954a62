package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raven-os/albinos/pkg/service"
	"github.com/raven-os/albinos/pkg/util"
	"github.com/raven-os/albinos/pkg/version"
)

func main() {
	var (
		configPath string
		socket     string
		database   string
		redisAddr  string
		logLevel   string
		logJSON    bool
	)

	rootCmd := &cobra.Command{
		Use:   "albinosd",
		Short: "The albinos configuration service",
		Long: `Albinosd is the local configuration service of Raven-OS.

It listens on a UNIX socket in the system temp directory, stores
configurations in a single SQLite file, and notifies subscribed clients
when settings they watch change.

Clients talk JSON over the socket; the albinos CLI and the client
library in pkg/client are the usual front ends.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}

			// Flags win over the file.
			if cmd.Flags().Changed("socket") {
				cfg.Socket = socket
			}
			if cmd.Flags().Changed("database") {
				cfg.Database = database
			}
			if cmd.Flags().Changed("redis") {
				cfg.RedisAddr = redisAddr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("log-json") {
				cfg.LogJSON = logJSON
			}

			if err := util.SetLogLevel(cfg.LogLevel); err != nil {
				return err
			}
			if cfg.LogJSON {
				util.SetJSONFormat()
			}

			svc, err := service.New(service.Options{
				SocketPath:   cfg.Socket,
				DatabasePath: cfg.Database,
				RedisAddr:    cfg.RedisAddr,
			})
			if err != nil {
				return err
			}
			if err := svc.Start(); err != nil {
				return err
			}

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigs
			util.WithField("signal", sig.String()).Info("shutting down")

			return svc.Close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/albinos/albinosd.yaml", "configuration file")
	rootCmd.Flags().StringVar(&socket, "socket", "", "listening socket path")
	rootCmd.Flags().StringVar(&database, "database", "", "SQLite database file")
	rootCmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address for the event mirror (host:port)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&logJSON, "log-json", false, "log as JSON lines")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if version.Version == "dev" {
				fmt.Println("albinosd dev build (use 'make build' for version info)")
			} else {
				fmt.Printf("albinosd %s (%s)\n", version.Version, version.GitCommit)
			}
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
