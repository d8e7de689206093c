package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yanmxa/finsight/internal/server"
)

var portFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if portFlag != "" {
			a.cfg.HTTP.Addr = ":" + portFlag
		}
		return server.New(a.cfg, a.svc).Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&portFlag, "port", "p", "", "Port to listen on (overrides HTTP_PORT)")
}
