package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ipcluster/controller/internal/app"
	"github.com/ipcluster/controller/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ipcontroller",
		Short: "Cluster controller",
		Long:  "ipcontroller runs the controller of a compute cluster: it accepts tasks from clients and dispatches them to registered engines.",
	}
	rootCmd.AddCommand(newStartCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the controller (client and engine listeners)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := config.NewStore()
			if err != nil {
				return err
			}
			if err := store.LoadFlags(cmd.Flags()); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := app.Run(ctx, app.Options{Store: store}); err != nil {
				return fmt.Errorf("controller error: %w", err)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.String("cluster-dir", "", "Cluster directory holding config, security files and logs")
	f.String("profile", "", "Cluster profile name; selects the cluster_<profile> directory")
	f.BoolP("reuse-furls", "r", false, "Reuse existing connection files and certificates")
	f.Bool("log-to-file", false, "Write logs to a per-process file under the cluster log directory")
	f.String("log-level", "", "Log level: debug|info|warn|error")
	f.String("log-format", "", "Log format: text|json")

	f.String("client-ip", "", "Client listener IP (empty binds all interfaces)")
	f.Int("client-port", 0, "Client listener port (0 picks a free port)")
	f.String("client-location", "", "Hostname or IP advertised to clients")
	f.BoolP("x", "x", false, "Turn off TLS on the client listener")

	f.String("engine-ip", "", "Engine listener IP (empty binds all interfaces)")
	f.Int("engine-port", 0, "Engine listener port (0 picks a free port)")
	f.String("engine-location", "", "Hostname or IP advertised to engines")
	f.BoolP("y", "y", false, "Turn off TLS on the engine listener")

	return cmd
}
